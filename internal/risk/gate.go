package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/pkg/logger"
)

// DenyReason classifies an authorization denial.
type DenyReason string

const (
	DenyMaxPositions DenyReason = "max_positions"
	DenyDailyLoss    DenyReason = "daily_loss_limit"
	DenyEquityFloor  DenyReason = "equity_floor"
	DenyHalted       DenyReason = "trading_halted"
	DenyZeroSize     DenyReason = "zero_position_size"
)

// DenialError is a terminal, non-retried outcome for one signal.
type DenialError struct {
	Reason DenyReason
	Detail string
}

func (e *DenialError) Error() string {
	return fmt.Sprintf("risk denied (%s): %s", e.Reason, e.Detail)
}

func deny(reason DenyReason, format string, a ...interface{}) *DenialError {
	return &DenialError{Reason: reason, Detail: fmt.Sprintf(format, a...)}
}

// Config bounds what the gate will authorize. Percentages are fractions.
type Config struct {
	MaxPositions    int
	MaxRiskPerTrade float64
	DailyLossLimit  float64
	MinEquityFrac   float64
}

// Gate authorizes or rejects execution of published signals against the
// shared risk ledger. The ledger is updated only on confirmed fills and
// closes; an authorization holds a slot reservation until the coordinator
// confirms or releases it.
type Gate struct {
	cfg      Config
	state    *State
	contract Contract
	log      *logger.Logger
	m        repository.Metrics
}

// NewGate creates a Gate over state.
func NewGate(cfg Config, state *State, log *logger.Logger, m repository.Metrics) *Gate {
	return &Gate{
		cfg:      cfg,
		state:    state,
		contract: GoldContract(),
		log:      log,
		m:        m,
	}
}

// Authorize decides whether s may be executed. On allow it returns the
// position size and reserves a slot keyed by the signal ID; the caller must
// later Confirm or Release. On deny it returns a *DenialError naming the
// breached limit.
func (g *Gate) Authorize(s *models.Signal) (float64, error) {
	st := g.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.halted {
		return 0, g.denied(s, deny(DenyHalted, "%s", st.haltReason))
	}

	if st.open+len(st.reserved) >= g.cfg.MaxPositions {
		return 0, g.denied(s, deny(DenyMaxPositions, "open+pending %d at cap %d",
			st.open+len(st.reserved), g.cfg.MaxPositions))
	}

	floor := st.initialEquity.Mul(decimal.NewFromFloat(g.cfg.MinEquityFrac))
	if st.equity.Cmp(floor) < 0 {
		return 0, g.denied(s, deny(DenyEquityFloor, "equity %s below floor %s",
			st.equity.StringFixed(2), floor.StringFixed(2)))
	}

	equity, _ := st.equity.Float64()
	lots := LotSize(equity, g.cfg.MaxRiskPerTrade, s.Entry, s.StopLoss, g.contract)
	if lots <= 0 {
		return 0, g.denied(s, deny(DenyZeroSize, "stop distance %v unsizable", s.Entry-s.StopLoss))
	}

	// Realized losses plus the worst case of every reserved trade and
	// this one must stay inside the daily budget.
	riskMoney := decimal.NewFromFloat(RiskMoney(lots, s.Entry, s.StopLoss, g.contract))
	pending := riskMoney
	for _, r := range st.reserved {
		pending = pending.Add(r.riskMoney)
	}
	budget := st.initialEquity.Mul(decimal.NewFromFloat(g.cfg.DailyLossLimit))
	if st.dailyPnL.Neg().Add(pending).Cmp(budget) > 0 {
		return 0, g.denied(s, deny(DenyDailyLoss,
			"daily loss %s plus pending risk %s exceeds budget %s",
			st.dailyPnL.Neg().StringFixed(2), pending.StringFixed(2), budget.StringFixed(2)))
	}

	st.reserved[s.ID] = reservation{lots: lots, riskMoney: riskMoney}

	g.log.Info("execution authorized",
		logger.String("signal_id", s.ID),
		logger.Float64("lots", lots),
		logger.Int("open_positions", st.open),
		logger.Int("reserved", len(st.reserved)))
	return lots, nil
}

// Confirm moves a reservation to an open position after the broker fill.
func (g *Gate) Confirm(signalID string) {
	st := g.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.reserved[signalID]; !ok {
		return
	}
	delete(st.reserved, signalID)
	st.open++
	g.gauges(st)
}

// Release drops a reservation without opening a position, called when
// execution fails permanently.
func (g *Gate) Release(signalID string) {
	st := g.state
	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.reserved, signalID)
	g.gauges(st)
}

// RecordClose applies a confirmed close: decrements the open count, books
// realized P&L and trips the daily-loss halt when the budget is exhausted.
func (g *Gate) RecordClose(pnl float64) {
	st := g.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.open > 0 {
		st.open--
	}
	d := decimal.NewFromFloat(pnl)
	st.dailyPnL = st.dailyPnL.Add(d)
	st.equity = st.equity.Add(d)

	budget := st.initialEquity.Mul(decimal.NewFromFloat(g.cfg.DailyLossLimit))
	if st.dailyPnL.Neg().Cmp(budget) >= 0 {
		st.halted = true
		st.haltReason = fmt.Sprintf("daily loss %s reached limit %s",
			st.dailyPnL.Neg().StringFixed(2), budget.StringFixed(2))
		g.log.Warn("trading halted", logger.String("reason", st.haltReason))
	}
	g.gauges(st)
}

// ResetDaily clears the daily aggregates at the trading-day boundary and
// lifts a daily-loss halt. An equity-floor condition re-trips on the next
// authorization, so the reset does not need to re-check it.
func (g *Gate) ResetDaily() {
	st := g.state
	st.mu.Lock()
	defer st.mu.Unlock()

	st.dailyPnL = decimal.Zero
	st.halted = false
	st.haltReason = ""
	g.log.Info("daily risk state reset")
}

// Summary returns the reporting snapshot.
func (g *Gate) Summary() models.RiskSummary {
	return g.state.Summary(g.cfg.MaxPositions, g.cfg.DailyLossLimit)
}

func (g *Gate) denied(s *models.Signal, err *DenialError) error {
	if g.m != nil {
		g.m.RecordRiskRejection(string(err.Reason))
	}
	g.log.Warn("execution denied",
		logger.String("signal_id", s.ID),
		logger.String("reason", string(err.Reason)),
		logger.String("detail", err.Detail))
	return err
}

func (g *Gate) gauges(st *State) {
	if g.m == nil {
		return
	}
	g.m.RecordOpenPositions(st.open + len(st.reserved))
	eq, _ := st.equity.Float64()
	g.m.RecordEquity(eq)
}
