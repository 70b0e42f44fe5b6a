package dedup

import (
	"context"
	"testing"
	"time"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func candidate(entry float64, candleTime time.Time) models.CandidateSignal {
	return models.CandidateSignal{
		Symbol:     "XAUUSD",
		Timeframe:  "1h",
		Strategy:   "momentum",
		Direction:  models.Long,
		Entry:      entry,
		StopLoss:   entry - 5,
		TakeProfit: entry + 10,
		CandleTime: candleTime,
	}
}

func TestFingerprintIgnoresTimeframe(t *testing.T) {
	ct := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	a := candidate(2400.00, ct)
	a.Timeframe = "1h"
	b := candidate(2400.00, ct)
	b.Timeframe = "4h"
	if Fingerprint(a, time.Hour) != Fingerprint(b, time.Hour) {
		t.Fatalf("expected equal fingerprints across timeframes")
	}
}

func TestFingerprintTickRounding(t *testing.T) {
	ct := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	a := Fingerprint(candidate(2400.004, ct), time.Hour)
	b := Fingerprint(candidate(2400.001, ct), time.Hour)
	if a != b {
		t.Fatalf("sub-tick entries should collide")
	}
	c := Fingerprint(candidate(2400.02, ct), time.Hour)
	if a == c {
		t.Fatalf("distinct ticks should not collide")
	}
}

func TestFingerprintDiffersAcrossBuckets(t *testing.T) {
	a := Fingerprint(candidate(2400, time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)), time.Hour)
	b := Fingerprint(candidate(2400, time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)), time.Hour)
	if a == b {
		t.Fatalf("different candle buckets should not collide")
	}
}

func TestCacheAdmitFirstSeenWins(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	fc := NewFingerprintCache(4*time.Hour, WithClock(func() time.Time { return now }))

	if !fc.Admit("fp") {
		t.Fatalf("first admit should succeed")
	}
	now = now.Add(5 * time.Second)
	if fc.Admit("fp") {
		t.Fatalf("second admit within window should be suppressed")
	}
	// The suppressed arrival must not refresh the entry.
	now = now.Add(4 * time.Hour)
	if !fc.Admit("fp") {
		t.Fatalf("admit after TTL should succeed")
	}
}

func TestCacheSweepBoundsSize(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	fc := NewFingerprintCache(time.Hour, WithClock(func() time.Time { return now }))

	fc.Admit("a")
	fc.Admit("b")
	now = now.Add(2 * time.Hour)
	fc.Admit("c")
	if fc.Len() != 1 {
		t.Fatalf("expected expired entries swept, len=%d", fc.Len())
	}
}

type fakeStore struct {
	repository.SignalStore
	signals []*models.Signal
}

func (f *fakeStore) PublishedSince(_ context.Context, _ time.Time) ([]*models.Signal, error) {
	return f.signals, nil
}

func TestRehydrationSuppressesRestartReplay(t *testing.T) {
	ct := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	published := candidate(2400.00, ct)

	// A signal published 30 minutes ago survives in the store across a
	// restart. After rehydration the same candidate must be suppressed.
	store := &fakeStore{signals: []*models.Signal{
		models.NewSignal(published, ct.Add(30*time.Minute)),
	}}

	// Pin the clock an hour after publication so the seeded entry sits
	// inside the dedup window regardless of when the test runs.
	now := ct.Add(time.Hour)
	fc := NewFingerprintCache(4*time.Hour, WithClock(func() time.Time { return now }))
	d := New(fc, store, 4*time.Hour, testLogger(t))
	if err := d.Rehydrate(context.Background()); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}

	if d.Admit(context.Background(), published) {
		t.Fatalf("rehydrated fingerprint must be suppressed")
	}
}

func TestAdmitRaceSingleWinner(t *testing.T) {
	fc := NewFingerprintCache(4 * time.Hour)
	d := New(fc, &fakeStore{}, 4*time.Hour, testLogger(t))

	ct := time.Now().UTC().Truncate(time.Hour)
	c := candidate(2400.00, ct)

	wins := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		go func() { wins <- d.Admit(context.Background(), c) }()
	}

	var n int
	for i := 0; i < 8; i++ {
		if <-wins {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("expected exactly one winner, got %d", n)
	}
}
