package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/internal/risk"
	"GoldPulse/pkg/logger"
)

type fakeBroker struct {
	failures int
	placed   []models.OrderRequest
	events   chan models.BrokerEvent
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{events: make(chan models.BrokerEvent, 4)}
}

func (b *fakeBroker) PlaceOrder(_ context.Context, req models.OrderRequest) (*models.OrderAck, error) {
	if b.failures > 0 {
		b.failures--
		return nil, errors.New("bridge unavailable")
	}
	b.placed = append(b.placed, req)
	return &models.OrderAck{
		Ticket:    "T1",
		FillPrice: req.Entry,
		FilledAt:  time.Now(),
	}, nil
}

func (b *fakeBroker) CloseOrder(_ context.Context, _ string) error { return nil }
func (b *fakeBroker) Events() <-chan models.BrokerEvent            { return b.events }
func (b *fakeBroker) Health(_ context.Context) error               { return nil }
func (b *fakeBroker) Close() error                                 { return nil }

type fakeStore struct {
	repository.SignalStore
	updates []models.Status
}

func (f *fakeStore) UpdateStatus(_ context.Context, s *models.Signal) error {
	f.updates = append(f.updates, s.Status)
	return nil
}

func testGate(t *testing.T) *risk.Gate {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cfg := risk.Config{MaxPositions: 3, MaxRiskPerTrade: 0.02, DailyLossLimit: 0.1, MinEquityFrac: 0.5}
	return risk.NewGate(cfg, risk.NewState(10000), log, nil)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func authorizedSignal(t *testing.T, g *risk.Gate) (*models.Signal, float64) {
	t.Helper()
	s := models.NewSignal(models.CandidateSignal{
		Symbol:     "XAUUSD",
		Timeframe:  "1h",
		Strategy:   "momentum",
		Direction:  models.Long,
		Entry:      2400,
		StopLoss:   2395,
		TakeProfit: 2410,
		CandleTime: time.Now(),
	}, time.Now())
	lots, err := g.Authorize(s)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	return s, lots
}

func TestExecuteFillActivatesSignal(t *testing.T) {
	broker := newFakeBroker()
	store := &fakeStore{}
	gate := testGate(t)
	c := NewCoordinator(broker, gate, store, testLogger(t), nil)

	s, lots := authorizedSignal(t, gate)
	if err := c.Execute(context.Background(), s, lots); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if s.Status != models.StatusActive || s.Ticket != "T1" {
		t.Fatalf("expected ACTIVE with ticket, got %s %q", s.Status, s.Ticket)
	}
	if c.OpenCount() != 1 {
		t.Fatalf("expected 1 tracked position")
	}
	if gate.Summary().OpenPositions != 1 {
		t.Fatalf("fill must confirm the risk reservation")
	}
}

func TestExecuteRetriesTransientFailure(t *testing.T) {
	broker := newFakeBroker()
	broker.failures = 2
	gate := testGate(t)
	c := NewCoordinator(broker, gate, &fakeStore{}, testLogger(t), nil,
		WithRetry(3, time.Millisecond))

	s, lots := authorizedSignal(t, gate)
	if err := c.Execute(context.Background(), s, lots); err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if len(broker.placed) != 1 {
		t.Fatalf("expected one successful placement")
	}
}

func TestExecuteExhaustionRejectsAndReleases(t *testing.T) {
	broker := newFakeBroker()
	broker.failures = 10
	store := &fakeStore{}
	gate := testGate(t)
	c := NewCoordinator(broker, gate, store, testLogger(t), nil,
		WithRetry(3, time.Millisecond))

	s, lots := authorizedSignal(t, gate)
	if err := c.Execute(context.Background(), s, lots); err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if s.Status != models.StatusRejected || s.RejectReason == "" {
		t.Fatalf("expected REJECTED with reason, got %s", s.Status)
	}
	if gate.Summary().OpenPositions != 0 {
		t.Fatalf("failed execution must release the reservation")
	}
	if len(store.updates) != 1 || store.updates[0] != models.StatusRejected {
		t.Fatalf("rejected status must be persisted")
	}
}

func TestBrokerCloseEventClosesSignal(t *testing.T) {
	broker := newFakeBroker()
	store := &fakeStore{}
	gate := testGate(t)

	closed := make(chan *models.Signal, 1)
	c := NewCoordinator(broker, gate, store, testLogger(t), nil,
		WithOnClosed(func(_ context.Context, s *models.Signal) { closed <- s }))

	s, lots := authorizedSignal(t, gate)
	if err := c.Execute(context.Background(), s, lots); err != nil {
		t.Fatalf("execute: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	broker.events <- models.BrokerEvent{
		Kind:      models.BrokerEventTakeProfit,
		Ticket:    "T1",
		SignalID:  s.ID,
		ExitPrice: 2410,
		PnL:       400,
		At:        time.Now(),
	}

	select {
	case got := <-closed:
		if got.Status != models.StatusClosed || got.CloseReason != models.CloseTakeProfit {
			t.Fatalf("expected CLOSED tp, got %s %s", got.Status, got.CloseReason)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for close fan-out")
	}

	sum := gate.Summary()
	if sum.OpenPositions != 0 {
		t.Fatalf("close must free the position slot")
	}
	if sum.DailyPnL != 400 {
		t.Fatalf("close must book pnl, got %v", sum.DailyPnL)
	}
	if c.OpenCount() != 0 {
		t.Fatalf("ticket must be untracked after close")
	}
}
