package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/internal/risk"
	"GoldPulse/pkg/logger"
)

// Coordinator converts authorized signals into broker orders and tracks
// the resulting positions to closure. One instance serves the whole
// process; the broker event loop runs on its own goroutine.
type Coordinator struct {
	broker repository.Broker
	gate   *risk.Gate
	store  repository.SignalStore
	log    *logger.Logger
	m      repository.Metrics

	maxAttempts int
	baseBackoff time.Duration

	mu   sync.Mutex
	open map[string]*models.Signal // by broker ticket

	// onClosed is invoked after a position close has been booked and
	// persisted, letting the bus fan the closure out.
	onClosed func(ctx context.Context, s *models.Signal)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRetry sets the bounded order-submission retry policy.
func WithRetry(attempts int, base time.Duration) Option {
	return func(c *Coordinator) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
		if base > 0 {
			c.baseBackoff = base
		}
	}
}

// WithOnClosed registers the closure fan-out callback.
func WithOnClosed(fn func(ctx context.Context, s *models.Signal)) Option {
	return func(c *Coordinator) { c.onClosed = fn }
}

// SetOnClosed registers the closure fan-out callback after construction.
// Must be called before Run; the bus that receives closures is itself
// built from subscribers that need the coordinator.
func (c *Coordinator) SetOnClosed(fn func(ctx context.Context, s *models.Signal)) {
	c.onClosed = fn
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(broker repository.Broker, gate *risk.Gate, store repository.SignalStore,
	log *logger.Logger, m repository.Metrics, opts ...Option,
) *Coordinator {
	c := &Coordinator{
		broker:      broker,
		gate:        gate,
		store:       store,
		log:         log,
		m:           m,
		maxAttempts: 3,
		baseBackoff: 2 * time.Second,
		open:        make(map[string]*models.Signal),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute places the order for an authorized signal. On fill the signal
// transitions to ACTIVE and the risk reservation is confirmed; after
// exhausting retries it transitions to REJECTED and the reservation is
// released. The status update is persisted either way.
func (c *Coordinator) Execute(ctx context.Context, s *models.Signal, lots float64) error {
	req := models.OrderRequest{
		SignalID:   s.ID,
		Symbol:     s.Symbol,
		Direction:  s.Direction,
		Entry:      s.Entry,
		StopLoss:   s.StopLoss,
		TakeProfit: s.TakeProfit,
		Lots:       lots,
		Comment:    fmt.Sprintf("%s %s", s.Strategy, s.Timeframe),
	}

	ack, err := c.placeWithRetry(ctx, req)
	if err != nil {
		c.gate.Release(s.ID)
		s.Status = models.StatusRejected
		s.RejectReason = fmt.Sprintf("execution failed: %v", err)
		if c.m != nil {
			c.m.RecordExecution("rejected")
		}
		c.log.Error("order submission exhausted retries",
			logger.String("signal_id", s.ID),
			logger.Error(err))
		if uerr := c.store.UpdateStatus(ctx, s); uerr != nil {
			c.log.Error("persist rejected status failed",
				logger.String("signal_id", s.ID), logger.Error(uerr))
		}
		return err
	}

	now := ack.FilledAt
	s.Status = models.StatusActive
	s.Ticket = ack.Ticket
	s.Lots = lots
	s.FillPrice = ack.FillPrice
	s.ExecutedAt = &now
	c.gate.Confirm(s.ID)

	c.mu.Lock()
	c.open[ack.Ticket] = s
	c.mu.Unlock()

	if c.m != nil {
		c.m.RecordExecution("filled")
	}
	c.log.Info("order filled",
		logger.String("signal_id", s.ID),
		logger.String("ticket", ack.Ticket),
		logger.Float64("lots", lots),
		logger.Float64("fill_price", ack.FillPrice))

	if err := c.store.UpdateStatus(ctx, s); err != nil {
		c.log.Error("persist active status failed",
			logger.String("signal_id", s.ID), logger.Error(err))
	}
	return nil
}

// Run consumes broker events until ctx is cancelled or the event channel
// closes.
func (c *Coordinator) Run(ctx context.Context) {
	events := c.broker.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleClose(ctx, ev)
		}
	}
}

// handleClose books a position close against the tracked signal.
func (c *Coordinator) handleClose(ctx context.Context, ev models.BrokerEvent) {
	c.mu.Lock()
	s, ok := c.open[ev.Ticket]
	if ok {
		delete(c.open, ev.Ticket)
	}
	c.mu.Unlock()

	if !ok {
		c.log.Warn("close event for unknown ticket",
			logger.String("ticket", ev.Ticket))
		return
	}

	at := ev.At
	s.Status = models.StatusClosed
	s.ExitPrice = ev.ExitPrice
	s.PnL = ev.PnL
	s.CloseReason = ev.Kind.CloseReason()
	s.ClosedAt = &at

	c.gate.RecordClose(ev.PnL)
	if c.m != nil {
		c.m.RecordExecution("closed_" + string(ev.Kind))
	}
	c.log.Info("position closed",
		logger.String("signal_id", s.ID),
		logger.String("ticket", ev.Ticket),
		logger.String("reason", string(s.CloseReason)),
		logger.Float64("pnl", ev.PnL))

	if err := c.store.UpdateStatus(ctx, s); err != nil {
		c.log.Error("persist closed status failed",
			logger.String("signal_id", s.ID), logger.Error(err))
	}
	if c.onClosed != nil {
		c.onClosed(ctx, s)
	}
}

// OpenCount reports the number of tracked open positions.
func (c *Coordinator) OpenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}

// placeWithRetry retries transient submission failures with exponential
// backoff.
func (c *Coordinator) placeWithRetry(ctx context.Context, req models.OrderRequest) (*models.OrderAck, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		ack, err := c.broker.PlaceOrder(ctx, req)
		if err == nil {
			return ack, nil
		}
		lastErr = err
		c.log.Warn("order submission failed",
			logger.String("signal_id", req.SignalID),
			logger.Int("attempt", attempt),
			logger.Error(err))

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}
