package dedup

import (
	"fmt"
	"time"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/pkg/cache"
)

// EntryTick is the price granularity used when fingerprinting. Entries
// closer together than one tick map to the same fingerprint.
const EntryTick = 0.01

// Fingerprint derives the dedup key for a candidate. Two candidates with
// equal direction, strategy, tick-rounded entry and candle-time bucket are
// the same market event regardless of which timeframe produced them, so the
// timeframe itself is deliberately excluded.
func Fingerprint(c models.CandidateSignal, bucket time.Duration) string {
	key := cache.GenerateKeyWithParams("signal",
		string(c.Direction),
		c.Strategy,
		fmt.Sprintf("%.2f", roundTick(c.Entry)),
		c.CandleTime.UTC().Truncate(bucket).Unix(),
	)
	return cache.HashKey(key)
}

// StoredFingerprint recomputes the fingerprint of an already persisted
// signal so rehydrated entries match live candidates bit for bit.
func StoredFingerprint(s *models.Signal, bucket time.Duration) string {
	return Fingerprint(models.CandidateSignal{
		Strategy:   s.Strategy,
		Direction:  s.Direction,
		Entry:      s.Entry,
		CandleTime: s.CandleTime,
	}, bucket)
}

// DefaultBucket is the candle-time bucket used for fingerprinting. Aligned
// to the shortest timeframe so the same bar seen by different timeframes
// still collides on entry price.
func DefaultBucket() time.Duration { return repository.TF1h.Duration() }

func roundTick(v float64) float64 {
	n := int64(v/EntryTick + 0.5)
	return float64(n) * EntryTick
}
