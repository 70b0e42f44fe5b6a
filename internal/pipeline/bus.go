package pipeline

import (
	"context"
	"fmt"
	"time"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/pkg/logger"
)

// Subscriber receives published signals. Implementations must either
// complete quickly or hand off to their own asynchronous worker; the bus
// bounds each call with a timeout but relies on subscribers being
// well-behaved.
type Subscriber interface {
	Name() string
	OnSignalPublished(ctx context.Context, s *models.Signal) error
}

// ClosedSubscriber is optionally implemented by subscribers that also want
// position-closure events.
type ClosedSubscriber interface {
	OnSignalClosed(ctx context.Context, s *models.Signal) error
}

// Bus fans an accepted signal out to every subscriber registered at
// construction. A failing subscriber is logged and skipped; it never blocks
// delivery to the rest. Delivery order is the registration order, so the
// persistence subscriber must be registered first.
type Bus struct {
	subs    []Subscriber
	log     *logger.Logger
	m       repository.Metrics
	timeout time.Duration
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithSubscriberTimeout bounds a single subscriber invocation.
func WithSubscriberTimeout(d time.Duration) BusOption {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithBusMetrics attaches a metrics recorder.
func WithBusMetrics(m repository.Metrics) BusOption {
	return func(b *Bus) { b.m = m }
}

// NewBus creates a Bus delivering to subs in order.
func NewBus(log *logger.Logger, subs []Subscriber, opts ...BusOption) *Bus {
	b := &Bus{
		subs:    subs,
		log:     log,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers s to every subscriber. It returns an error only when the
// first subscriber (durable persistence) fails, since nothing should react
// to a signal that was never stored; later failures are isolated.
func (b *Bus) Publish(ctx context.Context, s *models.Signal) error {
	for i, sub := range b.subs {
		err := b.deliver(ctx, sub, func(ctx context.Context) error {
			return sub.OnSignalPublished(ctx, s)
		})
		if err != nil {
			b.log.Error("subscriber failed on publish",
				logger.String("subscriber", sub.Name()),
				logger.String("signal_id", s.ID),
				logger.Error(err))
			if b.m != nil {
				b.m.RecordError("bus_publish_" + sub.Name())
			}
			if i == 0 {
				return fmt.Errorf("persist signal %s: %w", s.ID, err)
			}
		}
	}
	return nil
}

// PublishClosed delivers a closure event to every subscriber implementing
// ClosedSubscriber. All failures are isolated; closure is already durable
// by the time this is called.
func (b *Bus) PublishClosed(ctx context.Context, s *models.Signal) {
	for _, sub := range b.subs {
		cs, ok := sub.(ClosedSubscriber)
		if !ok {
			continue
		}
		err := b.deliver(ctx, sub, func(ctx context.Context) error {
			return cs.OnSignalClosed(ctx, s)
		})
		if err != nil {
			b.log.Error("subscriber failed on close",
				logger.String("subscriber", sub.Name()),
				logger.String("signal_id", s.ID),
				logger.Error(err))
			if b.m != nil {
				b.m.RecordError("bus_close_" + sub.Name())
			}
		}
	}
}

// deliver wraps one subscriber call with a timeout and panic recovery.
func (b *Bus) deliver(ctx context.Context, sub Subscriber, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber %s panicked: %v", sub.Name(), r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return fn(ctx)
}
