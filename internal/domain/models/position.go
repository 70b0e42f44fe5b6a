package models

import "time"

// OrderRequest is what the execution coordinator hands to a broker bridge.
type OrderRequest struct {
	SignalID   string    `json:"signal_id"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Lots       float64   `json:"lots"`
	Comment    string    `json:"comment,omitempty"`
}

// OrderAck is the broker's response to a placed order.
type OrderAck struct {
	Ticket    string    `json:"ticket"`
	FillPrice float64   `json:"fill_price"`
	FilledAt  time.Time `json:"filled_at"`
}

// BrokerEventKind distinguishes position close notifications.
type BrokerEventKind string

const (
	BrokerEventTakeProfit BrokerEventKind = "tp"
	BrokerEventStopLoss   BrokerEventKind = "sl"
	BrokerEventManual     BrokerEventKind = "manual"
)

// CloseReason maps the broker event onto the signal close reason.
func (k BrokerEventKind) CloseReason() CloseReason {
	switch k {
	case BrokerEventTakeProfit:
		return CloseTakeProfit
	case BrokerEventStopLoss:
		return CloseStopLoss
	default:
		return CloseManual
	}
}

// BrokerEvent is an asynchronous position update pushed by the broker
// bridge, typically a stop or target being hit.
type BrokerEvent struct {
	Kind      BrokerEventKind `json:"kind"`
	Ticket    string          `json:"ticket"`
	SignalID  string          `json:"signal_id"`
	ExitPrice float64         `json:"exit_price"`
	PnL       float64         `json:"pnl"`
	At        time.Time       `json:"at"`
}

// RiskSummary is a read-only snapshot of the risk ledger served over HTTP.
type RiskSummary struct {
	Equity         float64   `json:"equity"`
	InitialEquity  float64   `json:"initial_equity"`
	DailyPnL       float64   `json:"daily_pnl"`
	OpenPositions  int       `json:"open_positions"`
	MaxPositions   int       `json:"max_positions"`
	DailyLossLimit float64   `json:"daily_loss_limit"`
	TradingHalted  bool      `json:"trading_halted"`
	HaltReason     string    `json:"halt_reason,omitempty"`
	AsOf           time.Time `json:"as_of"`
}
