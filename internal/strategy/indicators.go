package strategy

import (
	"math"

	"GoldPulse/internal/domain/models"
)

// ATR computes the average true range over the last period bars.
// Returns 0 if there is insufficient data.
func ATR(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		c := candles[i]
		prev := candles[i-1].Close
		tr := c.High - c.Low
		if d := math.Abs(c.High - prev); d > tr {
			tr = d
		}
		if d := math.Abs(c.Low - prev); d > tr {
			tr = d
		}
		sum += tr
	}
	return sum / float64(period)
}

// RSI computes the relative strength index of closes over period using the
// simple-average form. Returns 50 on insufficient data so a missing value
// never reads as overbought or oversold.
func RSI(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 50
	}
	var gains, losses float64
	for i := len(candles) - period; i < len(candles); i++ {
		d := candles[i].Close - candles[i-1].Close
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	if losses == 0 {
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}

// EMA computes the exponential moving average of closes over period,
// seeded with the first close. Returns 0 on insufficient data.
func EMA(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}
	k := 2.0 / (float64(period) + 1)
	ema := candles[len(candles)-period].Close
	for i := len(candles) - period + 1; i < len(candles); i++ {
		ema = candles[i].Close*k + ema*(1-k)
	}
	return ema
}

// SwingPoint marks a local extreme in the candle series.
type SwingPoint struct {
	Index  int
	Price  float64
	IsHigh bool
}

// SwingPoints detects local highs and lows: a bar whose high (low) exceeds
// (undercuts) every bar within strength bars on both sides. Results are
// ordered by index.
func SwingPoints(candles []models.Candle, strength int) []SwingPoint {
	if strength <= 0 || len(candles) < 2*strength+1 {
		return nil
	}
	var out []SwingPoint
	for i := strength; i < len(candles)-strength; i++ {
		high, low := true, true
		for j := i - strength; j <= i+strength; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				high = false
			}
			if candles[j].Low <= candles[i].Low {
				low = false
			}
		}
		if high {
			out = append(out, SwingPoint{Index: i, Price: candles[i].High, IsHigh: true})
		}
		if low {
			out = append(out, SwingPoint{Index: i, Price: candles[i].Low, IsHigh: false})
		}
	}
	return out
}

// Trend classifies the series direction from its swing structure.
type Trend int

const (
	TrendNone Trend = iota
	TrendUp
	TrendDown
)

// DetectTrend returns TrendUp for higher highs and higher lows across the
// two most recent swing pairs, TrendDown for the opposite, TrendNone
// otherwise.
func DetectTrend(swings []SwingPoint) Trend {
	var highs, lows []float64
	for _, s := range swings {
		if s.IsHigh {
			highs = append(highs, s.Price)
		} else {
			lows = append(lows, s.Price)
		}
	}
	if len(highs) < 2 || len(lows) < 2 {
		return TrendNone
	}
	hh := highs[len(highs)-1] > highs[len(highs)-2]
	hl := lows[len(lows)-1] > lows[len(lows)-2]
	if hh && hl {
		return TrendUp
	}
	if !hh && !hl {
		return TrendDown
	}
	return TrendNone
}

// FibLevel returns the retracement price at level between swingLow and
// swingHigh measured from the high back toward the low.
func FibLevel(swingLow, swingHigh, level float64) float64 {
	return swingHigh - (swingHigh-swingLow)*level
}

// NearFib reports whether price sits within tolerance (fraction of the
// swing range) of the given retracement level.
func NearFib(price, swingLow, swingHigh, level, tolerance float64) bool {
	rng := swingHigh - swingLow
	if rng <= 0 {
		return false
	}
	target := FibLevel(swingLow, swingHigh, level)
	return math.Abs(price-target) <= rng*tolerance
}
