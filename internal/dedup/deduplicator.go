package dedup

import (
	"context"
	"fmt"
	"time"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/pkg/cache"
	"GoldPulse/pkg/logger"
)

// Deduplicator decides whether a validated candidate is a duplicate of a
// signal already emitted within the dedup window. The in-memory cache is
// authoritative; an optional shared cache layer extends admission across
// replicas via a best-effort lock.
type Deduplicator struct {
	cache  *FingerprintCache
	store  repository.SignalStore
	shared cache.Service
	log    *logger.Logger

	window time.Duration
	bucket time.Duration
	m      repository.Metrics
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithSharedCache adds a cross-replica admission layer. When set, a
// fingerprint admitted locally must also win a short-lived lock in the
// shared cache before the candidate is considered unique.
func WithSharedCache(c cache.Service) Option {
	return func(d *Deduplicator) { d.shared = c }
}

// WithBucket overrides the candle-time bucket used in fingerprints.
func WithBucket(bucket time.Duration) Option {
	return func(d *Deduplicator) { d.bucket = bucket }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m repository.Metrics) Option {
	return func(d *Deduplicator) { d.m = m }
}

// New creates a Deduplicator over fc. The store is consulted only during
// Rehydrate; the hot path never touches it.
func New(fc *FingerprintCache, store repository.SignalStore, window time.Duration, log *logger.Logger, opts ...Option) *Deduplicator {
	d := &Deduplicator{
		cache:  fc,
		store:  store,
		log:    log,
		window: window,
		bucket: DefaultBucket(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Rehydrate seeds the cache with fingerprints of all signals persisted
// within the dedup window. It must complete before any worker emits; a
// failure here is fatal to startup since an empty cache after restart would
// let every timeframe re-announce the same market event.
func (d *Deduplicator) Rehydrate(ctx context.Context) error {
	since := time.Now().Add(-d.window)
	signals, err := d.store.PublishedSince(ctx, since)
	if err != nil {
		return fmt.Errorf("dedup rehydration: %w", err)
	}

	for _, s := range signals {
		d.cache.Seed(StoredFingerprint(s, d.bucket), s.PublishedAt)
	}
	if d.m != nil {
		d.m.RecordFingerprintCacheSize(d.cache.Len())
	}

	d.log.Info("fingerprint cache rehydrated",
		logger.Int("fingerprints", len(signals)),
		logger.Duration("window", d.window))
	return nil
}

// Admit returns true when the candidate is the first occurrence of its
// fingerprint within the window. First arrival wins; the losing candidate
// is suppressed without merging.
func (d *Deduplicator) Admit(ctx context.Context, c models.CandidateSignal) bool {
	fp := Fingerprint(c, d.bucket)

	if !d.cache.Admit(fp) {
		d.suppress(c, fp, "window")
		return false
	}

	if d.shared != nil {
		ok, err := d.shared.TryLock(ctx, cache.GenerateKey("dedup", fp), d.window)
		if err != nil {
			// Shared layer is best effort. Local admission already
			// protects this process, so fail open.
			d.log.Warn("shared dedup cache unavailable", logger.Error(err))
		} else if !ok {
			d.suppress(c, fp, "shared")
			return false
		}
	}

	if d.m != nil {
		d.m.RecordFingerprintCacheSize(d.cache.Len())
	}
	return true
}

// Forget evicts the candidate's fingerprint after a failed publication so
// a retry within the window is not suppressed. The shared lock is released
// too; a replica that admits the retry re-announces an event nobody stored.
func (d *Deduplicator) Forget(ctx context.Context, c models.CandidateSignal) {
	fp := Fingerprint(c, d.bucket)
	d.cache.Forget(fp)

	if d.shared != nil {
		if err := d.shared.Unlock(ctx, cache.GenerateKey("dedup", fp)); err != nil {
			d.log.Warn("shared dedup unlock failed", logger.Error(err))
		}
	}
}

func (d *Deduplicator) suppress(c models.CandidateSignal, fp, reason string) {
	if d.m != nil {
		d.m.RecordDuplicateSuppressed(c.Timeframe, reason)
	}
	d.log.Debug("duplicate suppressed",
		logger.String("fingerprint", fp),
		logger.String("timeframe", c.Timeframe),
		logger.String("strategy", c.Strategy),
		logger.String("reason", reason))
}
