package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

type fakeData struct {
	mu   sync.Mutex
	tick *models.Tick
}

func (f *fakeData) setQuote(bid, ask float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tick = &models.Tick{Symbol: "XAUUSD", Bid: bid, Ask: ask, Time: time.Now().UTC()}
}

func (f *fakeData) Candles(context.Context, string, repository.Timeframe, int) ([]models.Candle, error) {
	return nil, nil
}

func (f *fakeData) LastTick(context.Context, string) (*models.Tick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tick == nil {
		return nil, context.DeadlineExceeded
	}
	t := *f.tick
	return &t, nil
}

func longOrder() models.OrderRequest {
	return models.OrderRequest{
		SignalID:   "sig-1",
		Symbol:     "XAUUSD",
		Direction:  models.Long,
		Entry:      2400,
		StopLoss:   2395,
		TakeProfit: 2410,
		Lots:       0.1,
	}
}

func TestPaperFillsAtAskPlusSlippage(t *testing.T) {
	data := &fakeData{}
	data.setQuote(2399.8, 2400.2)
	p := NewPaper(data, "XAUUSD", testLogger(t), WithSlippage(2))

	ack, err := p.PlaceOrder(context.Background(), longOrder())
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if diff := ack.FillPrice - 2400.22; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected fill at ask+slip 2400.22, got %v", ack.FillPrice)
	}
}

func TestPaperStopLossClosesPosition(t *testing.T) {
	data := &fakeData{}
	data.setQuote(2399.8, 2400.2)
	p := NewPaper(data, "XAUUSD", testLogger(t), WithSlippage(0), WithPollInterval(5*time.Millisecond))

	ack, err := p.PlaceOrder(context.Background(), longOrder())
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// Bid drops through the stop.
	data.setQuote(2394.5, 2394.9)

	select {
	case ev := <-p.Events():
		if ev.Kind != models.BrokerEventStopLoss {
			t.Fatalf("expected stop loss event, got %s", ev.Kind)
		}
		if ev.Ticket != ack.Ticket {
			t.Fatalf("event for wrong ticket %q", ev.Ticket)
		}
		if ev.ExitPrice != 2395 {
			t.Fatalf("expected exit at stop 2395, got %v", ev.ExitPrice)
		}
		// 0.1 lots, 100 oz per lot, 5.2 points adverse from the 2400.2 fill.
		if ev.PnL > -51 || ev.PnL < -53 {
			t.Fatalf("unexpected pnl %v", ev.PnL)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stop loss never fired")
	}

	if err := p.CloseOrder(context.Background(), ack.Ticket); err == nil {
		t.Fatalf("position should already be closed")
	}
}

func TestPaperTakeProfitShort(t *testing.T) {
	data := &fakeData{}
	data.setQuote(2399.8, 2400.2)
	p := NewPaper(data, "XAUUSD", testLogger(t), WithSlippage(0), WithPollInterval(5*time.Millisecond))

	req := models.OrderRequest{
		SignalID:   "sig-2",
		Symbol:     "XAUUSD",
		Direction:  models.Short,
		Entry:      2400,
		StopLoss:   2405,
		TakeProfit: 2390,
		Lots:       0.1,
	}
	if _, err := p.PlaceOrder(context.Background(), req); err != nil {
		t.Fatalf("place: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// Ask falls to the target.
	data.setQuote(2389.2, 2389.6)

	select {
	case ev := <-p.Events():
		if ev.Kind != models.BrokerEventTakeProfit {
			t.Fatalf("expected take profit, got %s", ev.Kind)
		}
		if ev.PnL <= 0 {
			t.Fatalf("short take profit must be positive pnl, got %v", ev.PnL)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("take profit never fired")
	}
}

func TestBridgePlacesOrderAndPollsEvents(t *testing.T) {
	var placed models.OrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders":
			if err := json.NewDecoder(r.Body).Decode(&placed); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(models.OrderAck{
				Ticket:    "mt5-42",
				FillPrice: placed.Entry,
				FilledAt:  time.Now().UTC(),
			})
		case "/events":
			json.NewEncoder(w).Encode([]models.BrokerEvent{{
				Kind:      models.BrokerEventTakeProfit,
				Ticket:    "mt5-42",
				SignalID:  "sig-1",
				ExitPrice: 2410,
				PnL:       98,
				At:        time.Now().UTC(),
			}})
		case "/health":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	b := NewBridge(srv.URL, testLogger(t), WithEventPoll(10*time.Millisecond))
	defer b.Close()

	if err := b.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}

	ack, err := b.PlaceOrder(context.Background(), longOrder())
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if ack.Ticket != "mt5-42" {
		t.Fatalf("unexpected ticket %q", ack.Ticket)
	}
	if placed.SignalID != "sig-1" {
		t.Fatalf("order body not forwarded: %+v", placed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	select {
	case ev := <-b.Events():
		if ev.Ticket != "mt5-42" || ev.Kind != models.BrokerEventTakeProfit {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event never polled")
	}
}

func TestBridgeRejectsEmptyTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.OrderAck{})
	}))
	defer srv.Close()

	b := NewBridge(srv.URL, testLogger(t))
	if _, err := b.PlaceOrder(context.Background(), longOrder()); err == nil {
		t.Fatalf("empty ticket must be an error")
	}
}
