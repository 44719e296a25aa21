package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/visiongate/visiongate/pkg/models"
)

// Fingerprint is the content-derived cache key: a SHA-256 digest of the raw
// input bytes. Equal inputs always fingerprint equally.
type Fingerprint [sha256.Size]byte

// String returns the digest as lowercase hex.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Compute returns the fingerprint of raw input bytes.
func Compute(data []byte) Fingerprint {
	return Fingerprint(sha256.Sum256(data))
}

type entry struct {
	result     *models.DetectionResult
	insertedAt time.Time
}

// Cache maps content fingerprints to detection results, expiring entries
// after a TTL. Expired entries are purged lazily before every lookup, so a
// Get never observes an entry older than the TTL.
//
// The cache has no size bound; growth inside the TTL window is accepted and
// observable through Stats. It lives in memory only and is lost on restart.
//
// Mutating calls are serialized by the gateway's single-flight guard; only
// the hit/miss counters are touched concurrently (by Stats readers) and are
// atomic for that reason.
type Cache struct {
	entries map[Fingerprint]entry
	ttl     time.Duration
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache with the given entry TTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[Fingerprint]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get purges expired entries, then looks up the fingerprint. The returned
// result is the stored value, unchanged.
func (c *Cache) Get(fp Fingerprint) (*models.DetectionResult, bool) {
	c.purge()
	e, ok := c.entries[fp]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.result, true
}

// Put inserts or overwrites the entry with the current timestamp.
func (c *Cache) Put(fp Fingerprint, result *models.DetectionResult) {
	c.entries[fp] = entry{result: result, insertedAt: c.now()}
}

// Len returns the number of entries, including any not yet purged.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.entries = make(map[Fingerprint]entry)
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() models.CacheStats {
	return models.CacheStats{
		Entries: int64(len(c.entries)),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

func (c *Cache) purge() {
	now := c.now()
	for fp, e := range c.entries {
		if now.Sub(e.insertedAt) > c.ttl {
			delete(c.entries, fp)
		}
	}
}
