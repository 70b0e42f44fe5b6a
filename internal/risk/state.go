package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"GoldPulse/internal/domain/models"
)

// State is the process-wide risk ledger shared by all workers. All money
// amounts are decimals so repeated P&L accumulation never drifts. Mutated
// only by the Gate under its single mutex; never lock State while doing
// I/O.
type State struct {
	mu sync.Mutex

	equity        decimal.Decimal
	initialEquity decimal.Decimal
	dailyPnL      decimal.Decimal

	// open counts confirmed fills; reserved holds authorizations whose
	// order is still in flight. Both count against the position cap so
	// racing authorizations cannot exceed it.
	open     int
	reserved map[string]reservation

	halted     bool
	haltReason string
	resetAt    time.Time
}

type reservation struct {
	lots      float64
	riskMoney decimal.Decimal
}

// NewState creates a ledger with the session-start equity baseline.
func NewState(initialEquity float64) *State {
	eq := decimal.NewFromFloat(initialEquity)
	return &State{
		equity:        eq,
		initialEquity: eq,
		reserved:      make(map[string]reservation),
		resetAt:       time.Now().UTC(),
	}
}

// Rehydrate replaces the daily aggregates, used at startup when persisted
// daily stats exist.
func (s *State) Rehydrate(equity, dailyPnL float64, openPositions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.equity = decimal.NewFromFloat(equity)
	s.dailyPnL = decimal.NewFromFloat(dailyPnL)
	s.open = openPositions
}

// Summary returns a read snapshot for reporting.
func (s *State) Summary(maxPositions int, dailyLossLimit float64) models.RiskSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	eq, _ := s.equity.Float64()
	ieq, _ := s.initialEquity.Float64()
	pnl, _ := s.dailyPnL.Float64()
	return models.RiskSummary{
		Equity:         eq,
		InitialEquity:  ieq,
		DailyPnL:       pnl,
		OpenPositions:  s.open + len(s.reserved),
		MaxPositions:   maxPositions,
		DailyLossLimit: dailyLossLimit,
		TradingHalted:  s.halted,
		HaltReason:     s.haltReason,
		AsOf:           time.Now().UTC(),
	}
}

// Equity returns the current equity as a float for sizing.
func (s *State) Equity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, _ := s.equity.Float64()
	return f
}
