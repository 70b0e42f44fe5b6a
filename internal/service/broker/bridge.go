package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	phttp "GoldPulse/pkg/http"
	"GoldPulse/pkg/logger"
)

// Bridge talks to an MT5 bridge process over its local REST interface.
// The bridge owns the terminal connection; this client places orders,
// polls for position closures, and rate limits itself so a signal burst
// cannot flood the terminal.
type Bridge struct {
	client  *phttp.Client
	baseURL string
	limiter *rate.Limiter
	poll    time.Duration
	log     *logger.Logger

	events chan models.BrokerEvent
	stop   chan struct{}
	once   sync.Once
}

// BridgeOption configures the bridge client.
type BridgeOption func(*Bridge)

// WithBridgeTimeout sets the per-request timeout.
func WithBridgeTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		if d > 0 {
			b.client = phttp.NewClient(phttp.WithTimeout(d))
		}
	}
}

// WithEventPoll sets how often closed positions are polled.
func WithEventPoll(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		if d > 0 {
			b.poll = d
		}
	}
}

// NewBridge creates a client for the bridge at baseURL.
func NewBridge(baseURL string, log *logger.Logger, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		client:  phttp.NewClient(phttp.WithTimeout(10 * time.Second)),
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		poll:    2 * time.Second,
		log:     log,
		events:  make(chan models.BrokerEvent, 16),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run polls the bridge for position closures until the context ends.
func (b *Bridge) Run(ctx context.Context) {
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stop:
			return
		case <-ticker.C:
			if err := b.pollEvents(ctx); err != nil {
				b.log.Warn("bridge event poll failed", logger.Error(err))
			}
		}
	}
}

func (b *Bridge) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.OrderAck, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var ack models.OrderAck
	err := b.client.SendAndParse(ctx, &phttp.RequestOptions{
		Method: phttp.MethodPost,
		URL:    b.baseURL + "/orders",
		Body:   req,
	}, &ack)
	if err != nil {
		return nil, fmt.Errorf("bridge place order: %w", err)
	}
	if ack.Ticket == "" {
		return nil, fmt.Errorf("bridge returned empty ticket for signal %s", req.SignalID)
	}
	return &ack, nil
}

func (b *Bridge) CloseOrder(ctx context.Context, ticket string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	err := b.client.SendAndParse(ctx, &phttp.RequestOptions{
		Method: phttp.MethodPost,
		URL:    fmt.Sprintf("%s/orders/%s/close", b.baseURL, ticket),
	}, nil)
	if err != nil {
		return fmt.Errorf("bridge close order %s: %w", ticket, err)
	}
	return nil
}

func (b *Bridge) Events() <-chan models.BrokerEvent { return b.events }

func (b *Bridge) Health(ctx context.Context) error {
	return b.client.SendAndParse(ctx, &phttp.RequestOptions{
		Method: phttp.MethodGet,
		URL:    b.baseURL + "/health",
	}, nil)
}

func (b *Bridge) Close() error {
	b.once.Do(func() { close(b.stop) })
	return nil
}

// pollEvents drains the bridge's pending closure queue. The bridge removes
// events once acknowledged by a successful read, so each event is seen
// exactly once.
func (b *Bridge) pollEvents(ctx context.Context) error {
	var evs []models.BrokerEvent
	err := b.client.SendAndParse(ctx, &phttp.RequestOptions{
		Method: phttp.MethodGet,
		URL:    b.baseURL + "/events",
	}, &evs)
	if err != nil {
		return err
	}

	for _, ev := range evs {
		select {
		case b.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

var _ repository.Broker = (*Bridge)(nil)
