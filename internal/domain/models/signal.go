package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Direction expresses which side of the market a signal trades.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool { return d == Long || d == Short }

// Status is the lifecycle state of a published Signal.
//
// PENDING is the only non-terminal state besides ACTIVE and transitions
// exactly once: to ACTIVE when an order is filled, or to REJECTED when the
// risk gate denies it or execution fails permanently.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusActive   Status = "ACTIVE"
	StatusClosed   Status = "CLOSED"
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool { return s == StatusClosed || s == StatusRejected }

// CloseReason records why an ACTIVE signal was closed.
type CloseReason string

const (
	CloseTakeProfit CloseReason = "tp"
	CloseStopLoss   CloseReason = "sl"
	CloseManual     CloseReason = "manual"
)

// CandidateSignal is the ephemeral output of one strategy evaluation pass.
// It lives for a single trip through validation and deduplication and is
// never mutated after creation.
type CandidateSignal struct {
	Symbol     string
	Timeframe  string
	Strategy   string
	Direction  Direction
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	Confidence float64
	// CandleTime is the close time of the candle that produced the
	// candidate, not the wall clock at evaluation.
	CandleTime   time.Time
	CurrentPrice float64
	Notes        string
}

// RiskDistance returns the price distance from entry to stop, positive when
// the stop sits on the losing side for the stated direction.
func (c CandidateSignal) RiskDistance() float64 {
	if c.Direction == Long {
		return c.Entry - c.StopLoss
	}
	return c.StopLoss - c.Entry
}

// RewardDistance returns the price distance from entry to target, positive
// when the target sits on the winning side for the stated direction.
func (c CandidateSignal) RewardDistance() float64 {
	if c.Direction == Long {
		return c.TakeProfit - c.Entry
	}
	return c.Entry - c.TakeProfit
}

// RiskReward returns reward/risk, or 0 when risk is not positive.
func (c CandidateSignal) RiskReward() float64 {
	r := c.RiskDistance()
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return c.RewardDistance() / r
}

// Signal is the durable, published entity. After publication only the
// status and closing fields may change; everything else is frozen at
// creation time.
type Signal struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	Strategy   string    `json:"strategy"`
	Direction  Direction `json:"direction"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Confidence float64   `json:"confidence"`
	RiskPips   float64   `json:"risk_pips"`
	RewardPips float64   `json:"reward_pips"`
	RiskReward float64   `json:"risk_reward"`
	Notes      string    `json:"notes,omitempty"`

	CandleTime  time.Time `json:"candle_time"`
	PublishedAt time.Time `json:"published_at"`

	Status Status `json:"status"`
	// Ticket is the broker-assigned position identifier, set on fill.
	Ticket     string     `json:"ticket,omitempty"`
	Lots       float64    `json:"lots,omitempty"`
	FillPrice  float64    `json:"fill_price,omitempty"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`

	ExitPrice    float64     `json:"exit_price,omitempty"`
	PnL          float64     `json:"pnl,omitempty"`
	CloseReason  CloseReason `json:"close_reason,omitempty"`
	ClosedAt     *time.Time  `json:"closed_at,omitempty"`
	RejectReason string      `json:"reject_reason,omitempty"`
}

// NewSignal promotes a candidate that survived validation and deduplication
// into a durable Signal in the PENDING state.
func NewSignal(c CandidateSignal, publishedAt time.Time) *Signal {
	return &Signal{
		ID:          uuid.NewString(),
		Symbol:      c.Symbol,
		Timeframe:   c.Timeframe,
		Strategy:    c.Strategy,
		Direction:   c.Direction,
		Entry:       c.Entry,
		StopLoss:    c.StopLoss,
		TakeProfit:  c.TakeProfit,
		Confidence:  c.Confidence,
		RiskPips:    c.RiskDistance() * PipsPerPoint,
		RewardPips:  c.RewardDistance() * PipsPerPoint,
		RiskReward:  c.RiskReward(),
		Notes:       c.Notes,
		CandleTime:  c.CandleTime,
		PublishedAt: publishedAt,
		Status:      StatusPending,
	}
}

// PipsPerPoint converts a gold price distance into pips (0.1 price step).
const PipsPerPoint = 10.0
