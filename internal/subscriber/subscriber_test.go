package subscriber

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/internal/execution"
	"GoldPulse/internal/risk"
	"GoldPulse/pkg/logger"
	"GoldPulse/pkg/queue"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func testSignal() *models.Signal {
	c := models.CandidateSignal{
		Symbol:     "XAUUSD",
		Timeframe:  "1h",
		Strategy:   "momentum",
		Direction:  models.Long,
		Entry:      2400,
		StopLoss:   2395,
		TakeProfit: 2410,
		Confidence: 0.7,
		CandleTime: time.Now().UTC().Add(-time.Minute),
	}
	return models.NewSignal(c, time.Now().UTC())
}

type fakeStore struct {
	repository.SignalStore

	mu       sync.Mutex
	stored   []*models.Signal
	statuses []models.Status
	storeErr error
}

func (f *fakeStore) Store(_ context.Context, s *models.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return f.storeErr
	}
	f.stored = append(f.stored, s)
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, s *models.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, s.Status)
	return nil
}

func TestPersistenceStoresSignal(t *testing.T) {
	st := &fakeStore{}
	p := NewPersistence(st)

	if err := p.OnSignalPublished(context.Background(), testSignal()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(st.stored) != 1 {
		t.Fatalf("expected 1 stored signal, got %d", len(st.stored))
	}
}

func TestPersistenceSurfacesStoreError(t *testing.T) {
	st := &fakeStore{storeErr: errors.New("clickhouse down")}
	p := NewPersistence(st)

	if err := p.OnSignalPublished(context.Background(), testSignal()); err == nil {
		t.Fatalf("expected store error to propagate")
	}
}

type fakeNotifier struct {
	mu      sync.Mutex
	signals []string
	closes  []string
	done    chan struct{}
}

func (f *fakeNotifier) record(dst *[]string, id string) {
	f.mu.Lock()
	*dst = append(*dst, id)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
}

func (f *fakeNotifier) NotifySignal(_ context.Context, s *models.Signal) error {
	f.record(&f.signals, s.ID)
	return nil
}

func (f *fakeNotifier) NotifyClose(_ context.Context, s *models.Signal) error {
	f.record(&f.closes, s.ID)
	return nil
}

func (f *fakeNotifier) NotifyText(context.Context, string) error { return nil }

func TestNotificationDeliversThroughQueue(t *testing.T) {
	log := testLogger(t)
	notifier := &fakeNotifier{done: make(chan struct{}, 2)}
	q := queue.NewMemoryQueue(log, &queue.QueueConfig{Workers: 1, QueueSize: 8}, []queue.Job{
		NewSignalNotifyJob(notifier),
		NewCloseNotifyJob(notifier),
	})
	if err := q.Start(); err != nil {
		t.Fatalf("start queue: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	}()

	n := NewNotification(q, log)
	s := testSignal()
	if err := n.OnSignalPublished(context.Background(), s); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := n.OnSignalClosed(context.Background(), s); err != nil {
		t.Fatalf("closed: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-notifier.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("notification %d not delivered", i+1)
		}
	}
	if len(notifier.signals) != 1 || notifier.signals[0] != s.ID {
		t.Fatalf("unexpected signal alerts %v", notifier.signals)
	}
	if len(notifier.closes) != 1 || notifier.closes[0] != s.ID {
		t.Fatalf("unexpected close alerts %v", notifier.closes)
	}
}

type fakeBroker struct {
	mu     sync.Mutex
	placed []models.OrderRequest
	events chan models.BrokerEvent
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{events: make(chan models.BrokerEvent, 4)}
}

func (f *fakeBroker) PlaceOrder(_ context.Context, req models.OrderRequest) (*models.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, req)
	return &models.OrderAck{Ticket: "T-1", FillPrice: req.Entry, FilledAt: time.Now().UTC()}, nil
}

func (f *fakeBroker) CloseOrder(context.Context, string) error { return nil }
func (f *fakeBroker) Events() <-chan models.BrokerEvent        { return f.events }
func (f *fakeBroker) Health(context.Context) error             { return nil }
func (f *fakeBroker) Close() error                             { return nil }

func riskGate(t *testing.T, maxPositions int) *risk.Gate {
	t.Helper()
	cfg := risk.Config{
		MaxPositions:    maxPositions,
		MaxRiskPerTrade: 0.02,
		DailyLossLimit:  0.2,
		MinEquityFrac:   0.5,
	}
	return risk.NewGate(cfg, risk.NewState(10000), testLogger(t), nil)
}

func TestExecutionDenialRejectsSignal(t *testing.T) {
	log := testLogger(t)
	st := &fakeStore{}
	gate := riskGate(t, 0) // no slots, every signal denied
	broker := newFakeBroker()
	coord := execution.NewCoordinator(broker, gate, st, log, nil)

	e := NewExecution(gate, coord, st, log)
	s := testSignal()
	if err := e.OnSignalPublished(context.Background(), s); err != nil {
		t.Fatalf("denial must not surface as bus error: %v", err)
	}
	if s.Status != models.StatusRejected {
		t.Fatalf("expected rejected status, got %s", s.Status)
	}
	if s.RejectReason != string(risk.DenyMaxPositions) {
		t.Fatalf("unexpected reject reason %q", s.RejectReason)
	}
	if len(st.statuses) != 1 || st.statuses[0] != models.StatusRejected {
		t.Fatalf("rejection not persisted: %v", st.statuses)
	}
	if len(broker.placed) != 0 {
		t.Fatalf("denied signal must not reach the broker")
	}
}

func TestExecutionAuthorizedSignalReachesBroker(t *testing.T) {
	log := testLogger(t)
	st := &fakeStore{}
	gate := riskGate(t, 3)
	broker := newFakeBroker()
	coord := execution.NewCoordinator(broker, gate, st, log, nil,
		execution.WithRetry(1, time.Millisecond))

	e := NewExecution(gate, coord, st, log)
	s := testSignal()
	if err := e.OnSignalPublished(context.Background(), s); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		broker.mu.Lock()
		placed := len(broker.placed)
		broker.mu.Unlock()
		if placed == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("order never reached the broker")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := gate.Summary().OpenPositions; got != 1 {
		t.Fatalf("expected 1 open position after fill, got %d", got)
	}
}
