package strategy

import (
	"fmt"

	"GoldPulse/internal/domain/models"
)

// Strategy evaluates a candle window and produces at most one candidate.
// Implementations are pure: same window, same answer. The caller fills in
// symbol, timeframe, candle time and current price on any candidate
// returned.
type Strategy interface {
	Name() string
	// MinCandles is the smallest window Evaluate accepts; shorter windows
	// return no candidate.
	MinCandles() int
	Evaluate(candles []models.Candle) *models.CandidateSignal
}

// New returns the strategy registered under name.
func New(name string) (Strategy, error) {
	switch name {
	case "fib_retest", "":
		return NewFibRetest(), nil
	case "momentum":
		return NewMomentum(), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// All returns every built-in strategy.
func All() []Strategy {
	return []Strategy{NewFibRetest(), NewMomentum()}
}
