package strategy

import (
	"fmt"

	"GoldPulse/internal/domain/models"
)

// FibRetest is the long-only retracement rule: in an uptrend, after price
// breaks a prior swing high, enter when the pullback reaches the 78.6%
// retracement of the last swing leg.
type FibRetest struct {
	fibLevel      float64
	fibTolerance  float64
	swingStrength int
	breakoutBars  int
	atrPeriod     int
	rsiPeriod     int
	tpRR          float64
}

// NewFibRetest creates the rule with its standard parameters.
func NewFibRetest() *FibRetest {
	return &FibRetest{
		fibLevel:      0.786,
		fibTolerance:  0.02,
		swingStrength: 5,
		breakoutBars:  20,
		atrPeriod:     14,
		rsiPeriod:     14,
		tpRR:          2.0,
	}
}

func (f *FibRetest) Name() string { return "fib_retest" }

func (f *FibRetest) MinCandles() int { return 50 }

func (f *FibRetest) Evaluate(candles []models.Candle) *models.CandidateSignal {
	if len(candles) < f.MinCandles() {
		return nil
	}

	swings := SwingPoints(candles, f.swingStrength)
	if DetectTrend(swings) != TrendUp {
		return nil
	}

	var highs, lows []SwingPoint
	for _, s := range swings {
		if s.IsHigh {
			highs = append(highs, s)
		} else {
			lows = append(lows, s)
		}
	}
	if len(highs) < 2 || len(lows) < 1 {
		return nil
	}

	swingHigh := highs[len(highs)-1]
	swingLow := lows[len(lows)-1]
	breakoutLevel := highs[len(highs)-2].Price

	// The breakout must have happened within the recent window.
	broke := false
	for i := max(0, len(candles)-f.breakoutBars); i < len(candles); i++ {
		if candles[i].High > breakoutLevel {
			broke = true
			break
		}
	}
	if !broke {
		return nil
	}

	last := candles[len(candles)-1]
	if !NearFib(last.Low, swingLow.Price, swingHigh.Price, f.fibLevel, f.fibTolerance) {
		return nil
	}

	atr := ATR(candles, f.atrPeriod)
	if atr <= 0 {
		return nil
	}

	entry := last.Close
	stop := swingLow.Price - atr*0.5
	risk := entry - stop
	if risk <= 0 {
		return nil
	}
	target := entry + risk*f.tpRR
	if swingHigh.Price > target {
		target = swingHigh.Price
	}

	confidence := 0.7
	if rsi := RSI(candles, f.rsiPeriod); rsi > 30 && rsi < 70 {
		confidence += 0.1
	}

	return &models.CandidateSignal{
		Strategy:   f.Name(),
		Direction:  models.Long,
		Entry:      entry,
		StopLoss:   stop,
		TakeProfit: target,
		Confidence: confidence,
		Notes: fmt.Sprintf("fib %.1f%% retest at %.2f after breakout of %.2f",
			f.fibLevel*100, entry, breakoutLevel),
	}
}
