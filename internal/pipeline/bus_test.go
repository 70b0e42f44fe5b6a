package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"GoldPulse/internal/domain/models"
	"GoldPulse/pkg/logger"
)

type recordingSub struct {
	name      string
	published []string
	closed    []string
	fail      error
	panics    bool
}

func (r *recordingSub) Name() string { return r.name }

func (r *recordingSub) OnSignalPublished(_ context.Context, s *models.Signal) error {
	if r.panics {
		panic("boom")
	}
	if r.fail != nil {
		return r.fail
	}
	r.published = append(r.published, s.ID)
	return nil
}

func (r *recordingSub) OnSignalClosed(_ context.Context, s *models.Signal) error {
	r.closed = append(r.closed, s.ID)
	return nil
}

func busLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func testSignal() *models.Signal {
	return models.NewSignal(models.CandidateSignal{
		Symbol:     "XAUUSD",
		Timeframe:  "1h",
		Strategy:   "momentum",
		Direction:  models.Long,
		Entry:      2400,
		StopLoss:   2395,
		TakeProfit: 2410,
		CandleTime: time.Now(),
	}, time.Now())
}

func TestBusDeliversInOrder(t *testing.T) {
	a := &recordingSub{name: "persistence"}
	b := &recordingSub{name: "notification"}
	bus := NewBus(busLogger(t), []Subscriber{a, b})

	s := testSignal()
	if err := bus.Publish(context.Background(), s); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(a.published) != 1 || len(b.published) != 1 {
		t.Fatalf("expected both subscribers delivered")
	}
}

func TestBusIsolatesFailingSubscriber(t *testing.T) {
	a := &recordingSub{name: "persistence"}
	b := &recordingSub{name: "notification", fail: errors.New("chat down")}
	c := &recordingSub{name: "execution"}
	bus := NewBus(busLogger(t), []Subscriber{a, b, c})

	if err := bus.Publish(context.Background(), testSignal()); err != nil {
		t.Fatalf("non-first subscriber failure must not surface: %v", err)
	}
	if len(c.published) != 1 {
		t.Fatalf("subscriber after a failing one must still be delivered")
	}
}

func TestBusIsolatesPanickingSubscriber(t *testing.T) {
	a := &recordingSub{name: "persistence"}
	b := &recordingSub{name: "notification", panics: true}
	c := &recordingSub{name: "execution"}
	bus := NewBus(busLogger(t), []Subscriber{a, b, c})

	if err := bus.Publish(context.Background(), testSignal()); err != nil {
		t.Fatalf("panic must be contained: %v", err)
	}
	if len(c.published) != 1 {
		t.Fatalf("subscriber after a panicking one must still be delivered")
	}
}

func TestBusPersistenceFailureStopsNothingElseButReturns(t *testing.T) {
	a := &recordingSub{name: "persistence", fail: errors.New("db down")}
	bus := NewBus(busLogger(t), []Subscriber{a})

	if err := bus.Publish(context.Background(), testSignal()); err == nil {
		t.Fatalf("first (persistence) subscriber failure must surface")
	}
}

func TestBusPublishClosedSkipsNonClosedSubscribers(t *testing.T) {
	a := &recordingSub{name: "persistence"}
	bus := NewBus(busLogger(t), []Subscriber{a})

	s := testSignal()
	bus.PublishClosed(context.Background(), s)
	if len(a.closed) != 1 {
		t.Fatalf("closed event not delivered")
	}
}
