package dedup

import (
	"sync"
	"time"
)

// FingerprintCache is an in-memory TTL set of recently emitted signal
// fingerprints. It is safe for concurrent use by all timeframe workers; a
// single mutex is sufficient since every operation is a hash lookup.
type FingerprintCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// CacheOption configures a FingerprintCache.
type CacheOption func(*FingerprintCache)

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) CacheOption {
	return func(fc *FingerprintCache) { fc.now = now }
}

// NewFingerprintCache creates a cache whose entries expire after ttl.
func NewFingerprintCache(ttl time.Duration, opts ...CacheOption) *FingerprintCache {
	fc := &FingerprintCache{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(fc)
	}
	return fc
}

// Admit records fp if it is not already present within the TTL. It returns
// true when the fingerprint is new (caller may proceed) and false when a
// live entry exists. The live entry is never refreshed: first-seen wins and
// later arrivals are suppressed without extending the window.
func (fc *FingerprintCache) Admit(fp string) bool {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	now := fc.now()
	if seen, ok := fc.entries[fp]; ok && now.Sub(seen) < fc.ttl {
		return false
	}
	fc.entries[fp] = now
	fc.sweepLocked(now)
	return true
}

// Seed inserts fp with an explicit first-seen time, used during
// rehydration. Existing entries are kept if they are older; rehydrated
// history never shrinks an in-memory window.
func (fc *FingerprintCache) Seed(fp string, seenAt time.Time) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if prev, ok := fc.entries[fp]; ok && prev.Before(seenAt) {
		return
	}
	fc.entries[fp] = seenAt
}

// Forget removes fp so the next arrival is admitted again. Used when the
// admitted candidate failed downstream and was never announced.
func (fc *FingerprintCache) Forget(fp string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	delete(fc.entries, fp)
}

// Contains reports whether fp has a live entry.
func (fc *FingerprintCache) Contains(fp string) bool {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	seen, ok := fc.entries[fp]
	return ok && fc.now().Sub(seen) < fc.ttl
}

// Len returns the number of entries including any not yet swept.
func (fc *FingerprintCache) Len() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.entries)
}

// sweepLocked drops expired entries. Called on the write path so the map
// stays bounded by the number of distinct fingerprints per TTL window.
func (fc *FingerprintCache) sweepLocked(now time.Time) {
	for fp, seen := range fc.entries {
		if now.Sub(seen) >= fc.ttl {
			delete(fc.entries, fp)
		}
	}
}
