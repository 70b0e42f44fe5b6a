package strategy

import (
	"testing"
	"time"

	"GoldPulse/internal/domain/models"
)

func series(closes []float64) []models.Candle {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		high, low := open, open
		if c > high {
			high = c
		}
		if c < low {
			low = c
		}
		out[i] = models.Candle{
			Symbol:    "XAUUSD",
			Timeframe: "1h",
			Open:      open,
			High:      high + 0.5,
			Low:       low - 0.5,
			Close:     c,
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			CloseTime: start.Add(time.Duration(i+1) * time.Hour),
		}
	}
	return out
}

func ramp(n int, from, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	return out
}

func TestATRInsufficientData(t *testing.T) {
	if got := ATR(series(ramp(5, 2400, 1)), 14); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestATRConstantRange(t *testing.T) {
	// Every bar: high-low = 1 + climb of 1 between closes.
	candles := series(ramp(30, 2400, 1))
	got := ATR(candles, 14)
	if got <= 0 {
		t.Fatalf("expected positive atr, got %v", got)
	}
}

func TestRSIExtremes(t *testing.T) {
	if got := RSI(series(ramp(30, 2400, 1)), 14); got != 100 {
		t.Fatalf("monotonic rise should read 100, got %v", got)
	}
	if got := RSI(series(ramp(30, 2430, -1)), 14); got != 0 {
		t.Fatalf("monotonic fall should read 0, got %v", got)
	}
	if got := RSI(series(ramp(5, 2400, 1)), 14); got != 50 {
		t.Fatalf("insufficient data should read neutral 50, got %v", got)
	}
}

func TestEMAFollowsTrend(t *testing.T) {
	candles := series(ramp(60, 2400, 1))
	fast := EMA(candles, 12)
	slow := EMA(candles, 26)
	if fast <= slow {
		t.Fatalf("fast ema should lead slow in an uptrend: %v <= %v", fast, slow)
	}
}

func TestSwingPointsDetectsExtremes(t *testing.T) {
	// Spike the wick only. Pushing the close would raise the next bar's
	// open to the same high and the strict comparison would reject both.
	candles := series(ramp(11, 2400, 1))
	candles[5].High = 2420.5
	swings := SwingPoints(candles, 3)

	var foundHigh bool
	for _, s := range swings {
		if s.IsHigh && s.Index == 5 {
			foundHigh = true
		}
	}
	if !foundHigh {
		t.Fatalf("expected swing high at spike index, got %+v", swings)
	}
}

// zigzag builds a trending series that still breathes, so RSI stays off
// the extremes.
func zigzag(n int, from, up, down float64) []float64 {
	out := make([]float64, n)
	out[0] = from
	for i := 1; i < n; i++ {
		if i%2 == 1 {
			out[i] = out[i-1] + up
		} else {
			out[i] = out[i-1] - down
		}
	}
	return out
}

func TestMomentumLongInUptrend(t *testing.T) {
	m := NewMomentum()
	c := m.Evaluate(series(zigzag(60, 2400, 1.0, 0.6)))
	if c == nil {
		t.Fatalf("expected candidate in steady uptrend")
	}
	if c.Direction != models.Long {
		t.Fatalf("expected long, got %s", c.Direction)
	}
	if c.StopLoss >= c.Entry || c.TakeProfit <= c.Entry {
		t.Fatalf("stop/target on wrong side: entry=%v sl=%v tp=%v", c.Entry, c.StopLoss, c.TakeProfit)
	}
}

func TestMomentumShortInDowntrend(t *testing.T) {
	m := NewMomentum()
	c := m.Evaluate(series(zigzag(60, 2500, -1.0, -0.6)))
	if c == nil {
		t.Fatalf("expected candidate in steady downtrend")
	}
	if c.Direction != models.Short {
		t.Fatalf("expected short, got %s", c.Direction)
	}
	if c.StopLoss <= c.Entry || c.TakeProfit >= c.Entry {
		t.Fatalf("stop/target on wrong side: entry=%v sl=%v tp=%v", c.Entry, c.StopLoss, c.TakeProfit)
	}
}

func TestMomentumNoSignalInChop(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 2400
		} else {
			closes[i] = 2401
		}
	}
	if c := NewMomentum().Evaluate(series(closes)); c != nil {
		t.Fatalf("expected no candidate in chop, got %+v", c)
	}
}

func TestFibLevel(t *testing.T) {
	// 78.6% retracement of a 100-point leg from 2400 to 2500.
	got := FibLevel(2400, 2500, 0.786)
	if got < 2421.3 || got > 2421.5 {
		t.Fatalf("unexpected fib level %v", got)
	}
	if !NearFib(2421.4, 2400, 2500, 0.786, 0.02) {
		t.Fatalf("price at level should be near")
	}
	if NearFib(2450, 2400, 2500, 0.786, 0.02) {
		t.Fatalf("price far from level should not be near")
	}
}

func TestFactoryKnownAndUnknown(t *testing.T) {
	for _, name := range []string{"", "fib_retest", "momentum"} {
		if _, err := New(name); err != nil {
			t.Fatalf("strategy %q: %v", name, err)
		}
	}
	if _, err := New("nope"); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}
