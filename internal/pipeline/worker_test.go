package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/internal/strategy"
)

type stubData struct {
	mu       sync.Mutex
	candles  []models.Candle
	failures int
	calls    int
}

func (d *stubData) Candles(_ context.Context, _ string, _ repository.Timeframe, _ int) ([]models.Candle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("feed hiccup")
	}
	return d.candles, nil
}

func (d *stubData) LastTick(context.Context, string) (*models.Tick, error) {
	return &models.Tick{Symbol: "XAUUSD", Bid: 2399.9, Ask: 2400.1, Time: evalTime}, nil
}

type stubStrategy struct {
	candidate *models.CandidateSignal
}

func (s *stubStrategy) Name() string    { return "stub" }
func (s *stubStrategy) MinCandles() int { return 1 }

func (s *stubStrategy) Evaluate([]models.Candle) *models.CandidateSignal {
	if s.candidate == nil {
		return nil
	}
	c := *s.candidate
	return &c
}

func freshCandles() []models.Candle {
	closed := evalTime.Add(-2 * time.Minute)
	return []models.Candle{{
		Symbol:    "XAUUSD",
		Timeframe: "1h",
		Open:      2395,
		High:      2401,
		Low:       2394,
		Close:     2400,
		OpenTime:  closed.Add(-time.Hour),
		CloseTime: closed,
	}}
}

func TestWorkerEvaluatePublishesCandidate(t *testing.T) {
	sink := &recordingSub{name: "persistence"}
	pipe := newTestPipeline(t, sink)

	data := &stubData{candles: freshCandles()}
	cand := longCandidate(0)
	st := &stubStrategy{candidate: &cand}

	w := NewTimeframeWorker("XAUUSD", repository.TF1h, data,
		[]strategy.Strategy{st}, pipe, busLogger(t), nil)
	w.evaluate(context.Background())

	if len(sink.published) != 1 {
		t.Fatalf("expected 1 published signal, got %d", len(sink.published))
	}
}

func TestWorkerStampsCandidateFromCandle(t *testing.T) {
	sink := &recordingSub{name: "persistence"}
	pipe := newTestPipeline(t, sink)

	data := &stubData{candles: freshCandles()}
	cand := longCandidate(0)
	cand.Symbol = ""
	cand.Timeframe = ""
	cand.CandleTime = time.Time{}
	st := &stubStrategy{candidate: &cand}

	w := NewTimeframeWorker("XAUUSD", repository.TF4h, data,
		[]strategy.Strategy{st}, pipe, busLogger(t), nil)
	w.evaluate(context.Background())

	if len(sink.published) != 1 {
		t.Fatalf("expected 1 published signal, got %d", len(sink.published))
	}
}

func TestWorkerRetriesTransientFeedErrors(t *testing.T) {
	sink := &recordingSub{name: "persistence"}
	pipe := newTestPipeline(t, sink)

	data := &stubData{candles: freshCandles(), failures: 2}
	cand := longCandidate(0)
	st := &stubStrategy{candidate: &cand}

	w := NewTimeframeWorker("XAUUSD", repository.TF1h, data,
		[]strategy.Strategy{st}, pipe, busLogger(t), nil,
		WithRetry(5, time.Millisecond))
	w.evaluate(context.Background())

	if data.calls != 3 {
		t.Fatalf("expected 3 fetch attempts, got %d", data.calls)
	}
	if len(sink.published) != 1 {
		t.Fatalf("expected publish after retries, got %d", len(sink.published))
	}
}

func TestWorkerSkipsPassWhenRetriesExhausted(t *testing.T) {
	sink := &recordingSub{name: "persistence"}
	pipe := newTestPipeline(t, sink)

	data := &stubData{failures: 10}
	cand := longCandidate(0)
	st := &stubStrategy{candidate: &cand}

	w := NewTimeframeWorker("XAUUSD", repository.TF1h, data,
		[]strategy.Strategy{st}, pipe, busLogger(t), nil,
		WithRetry(2, time.Millisecond))
	w.evaluate(context.Background())

	if len(sink.published) != 0 {
		t.Fatalf("exhausted fetch must not publish, got %d", len(sink.published))
	}
}

func TestWorkerGroupStopsOnCancel(t *testing.T) {
	sink := &recordingSub{name: "persistence"}
	pipe := newTestPipeline(t, sink)

	data := &stubData{candles: freshCandles()}
	w := NewTimeframeWorker("XAUUSD", repository.TF1h, data,
		[]strategy.Strategy{&stubStrategy{}}, pipe, busLogger(t), nil)
	g := NewWorkerGroup(w)

	ctx, cancel := context.WithCancel(context.Background())
	g.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker group did not stop on cancel")
	}
}
