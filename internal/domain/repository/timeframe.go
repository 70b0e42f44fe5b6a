package repository

import "time"

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1h Timeframe = "1h"
	TF4h Timeframe = "4h"
	TF1d Timeframe = "1d"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1h, TF4h, TF1d:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1h }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// AllTimeframes lists supported timeframes in ascending duration order.
func AllTimeframes() []Timeframe { return []Timeframe{TF1h, TF4h, TF1d} }

// Duration returns the bar length of the timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// NextClose returns the first bar close strictly after t, aligned to the
// timeframe grid in UTC.
func (tf Timeframe) NextClose(t time.Time) time.Time {
	d := tf.Duration()
	return t.UTC().Truncate(d).Add(d)
}

// Bucket truncates t onto the timeframe grid in UTC. Two candle times in
// the same bucket are treated as the same bar for deduplication.
func (tf Timeframe) Bucket(t time.Time) time.Time {
	return t.UTC().Truncate(tf.Duration())
}
