package marketdata

import (
	"context"
	"testing"
	"time"

	"GoldPulse/internal/domain/models"
	drepo "GoldPulse/internal/domain/repository"
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

func tick(price float64, at time.Time) *models.Tick {
	return &models.Tick{Symbol: "XAUUSD", Bid: price - 0.1, Ask: price + 0.1, Time: at}
}

func TestFeedAggregatesCandles(t *testing.T) {
	f := NewFeed("XAUUSD", nil, testLogger(t), nil)

	h0 := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	f.apply(tick(2400, h0.Add(2*time.Minute)))
	f.apply(tick(2410, h0.Add(10*time.Minute)))
	f.apply(tick(2395, h0.Add(30*time.Minute)))
	f.apply(tick(2405, h0.Add(50*time.Minute)))
	// Next hour opens, finalizing the first bar.
	f.apply(tick(2406, h0.Add(61*time.Minute)))

	candles, err := f.Candles(context.Background(), "XAUUSD", drepo.TF1h, 10)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("expected 1 completed bar, got %d", len(candles))
	}
	c := candles[0]
	if c.Open != 2400 || c.High != 2410 || c.Low != 2395 || c.Close != 2405 {
		t.Fatalf("unexpected ohlc %+v", c)
	}
	if !c.OpenTime.Equal(h0) || !c.CloseTime.Equal(h0.Add(time.Hour)) {
		t.Fatalf("unexpected bar bounds %v..%v", c.OpenTime, c.CloseTime)
	}
}

func TestFeedFormingBarIsHidden(t *testing.T) {
	f := NewFeed("XAUUSD", nil, testLogger(t), nil)
	f.apply(tick(2400, time.Date(2025, 6, 2, 14, 5, 0, 0, time.UTC)))

	if _, err := f.Candles(context.Background(), "XAUUSD", drepo.TF1h, 10); err == nil {
		t.Fatalf("forming bar must not be visible")
	}
}

func TestFeedLastTick(t *testing.T) {
	f := NewFeed("XAUUSD", nil, testLogger(t), nil)
	if _, err := f.LastTick(context.Background(), "XAUUSD"); err == nil {
		t.Fatalf("expected error before first tick")
	}

	f.apply(tick(2400, time.Now().UTC()))
	got, err := f.LastTick(context.Background(), "XAUUSD")
	if err != nil {
		t.Fatalf("last tick: %v", err)
	}
	if got.Mid() != 2400 {
		t.Fatalf("unexpected mid %v", got.Mid())
	}
}

func TestFeedSeedAndTrim(t *testing.T) {
	f := NewFeed("XAUUSD", nil, testLogger(t), nil)
	f.maxBars = 3

	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	var candles []models.Candle
	for i := 0; i < 5; i++ {
		candles = append(candles, models.Candle{
			Symbol:    "XAUUSD",
			Timeframe: "1h",
			Close:     2400 + float64(i),
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			CloseTime: start.Add(time.Duration(i+1) * time.Hour),
		})
	}
	f.Seed(drepo.TF1h, candles)

	got, err := f.Candles(context.Background(), "XAUUSD", drepo.TF1h, 10)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected ring trimmed to 3, got %d", len(got))
	}
	if got[len(got)-1].Close != 2404 {
		t.Fatalf("expected newest bar kept, got %+v", got[len(got)-1])
	}
}
