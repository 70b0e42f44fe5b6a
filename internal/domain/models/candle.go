package models

import "time"

// Tick is a single bid/ask quote from the market data feed.
type Tick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

// Mid returns the quote midpoint.
func (t Tick) Mid() float64 { return (t.Bid + t.Ask) / 2 }

// Candle is one completed OHLCV bar on a timeframe. CloseTime identifies
// the bar; two candles with equal Symbol, Timeframe and CloseTime are the
// same bar even when delivered twice.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Range returns high minus low.
func (c Candle) Range() float64 { return c.High - c.Low }

// Body returns the absolute open-to-close distance.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}
