package strategy

import (
	"fmt"
	"math"

	"GoldPulse/internal/domain/models"
)

// Momentum trades EMA alignment in either direction: price closing beyond
// both EMAs with the fast EMA on the right side of the slow one, filtered
// by RSI to avoid chasing exhausted moves. Stops and targets come from ATR.
type Momentum struct {
	fastPeriod int
	slowPeriod int
	rsiPeriod  int
	atrPeriod  int
	slATR      float64
	tpRR       float64
}

// NewMomentum creates the rule with its standard parameters.
func NewMomentum() *Momentum {
	return &Momentum{
		fastPeriod: 12,
		slowPeriod: 26,
		rsiPeriod:  14,
		atrPeriod:  14,
		slATR:      1.5,
		tpRR:       2.0,
	}
}

func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) MinCandles() int { return m.slowPeriod + m.atrPeriod }

func (m *Momentum) Evaluate(candles []models.Candle) *models.CandidateSignal {
	if len(candles) < m.MinCandles() {
		return nil
	}

	fast := EMA(candles, m.fastPeriod)
	slow := EMA(candles, m.slowPeriod)
	atr := ATR(candles, m.atrPeriod)
	rsi := RSI(candles, m.rsiPeriod)
	if fast == 0 || slow == 0 || atr <= 0 {
		return nil
	}

	last := candles[len(candles)-1]
	entry := last.Close

	// A near-zero EMA spread is chop, not momentum.
	spread := math.Abs(fast-slow) / atr
	if spread < 0.1 {
		return nil
	}

	var dir models.Direction
	switch {
	case entry > fast && fast > slow && rsi < 70:
		dir = models.Long
	case entry < fast && fast < slow && rsi > 30:
		dir = models.Short
	default:
		return nil
	}

	risk := atr * m.slATR
	var stop, target float64
	if dir == models.Long {
		stop = entry - risk
		target = entry + risk*m.tpRR
	} else {
		stop = entry + risk
		target = entry - risk*m.tpRR
	}

	// Confidence scales with how far the fast EMA has pulled away.
	confidence := 0.6 + 0.1*spread
	if confidence > 0.9 {
		confidence = 0.9
	}

	return &models.CandidateSignal{
		Strategy:   m.Name(),
		Direction:  dir,
		Entry:      entry,
		StopLoss:   stop,
		TakeProfit: target,
		Confidence: confidence,
		Notes: fmt.Sprintf("%s momentum, ema %.2f/%.2f, rsi %.1f",
			dir, fast, slow, rsi),
	}
}
