package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL is how long cached vectors stay fresh. Expiry is a cost
// optimization, not a correctness requirement: re-embedding identical text is
// idempotent.
const DefaultCacheTTL = 24 * time.Hour

// CachingEmbedder wraps an Embedder with a content-addressed in-process
// cache. Keys are a hash of the normalized input text plus the model name, so
// the same text embedded under a different model never collides. Safe for
// unbounded concurrent reads and bounded concurrent writes.
type CachingEmbedder struct {
	inner Embedder
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	vector    []float32
	expiresAt time.Time
}

// NewCachingEmbedder wraps the given embedder with a TTL cache. A ttl of 0
// uses DefaultCacheTTL.
func NewCachingEmbedder(inner Embedder, ttl time.Duration) *CachingEmbedder {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachingEmbedder{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *CachingEmbedder) Name() string    { return c.inner.Name() }
func (c *CachingEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Embed returns cached vectors where possible and batches only the misses to
// the underlying provider. No outbound call is made on a full cache hit.
func (c *CachingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	now := time.Now()
	results := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	// First pass: resolve hits under the read lock. Duplicate texts within
	// one batch collapse onto the same key.
	var missKeys []string
	var missTexts []string
	missSeen := make(map[string]bool)

	c.mu.RLock()
	for i, text := range texts {
		key := c.cacheKey(text)
		keys[i] = key
		if e, ok := c.entries[key]; ok && now.Before(e.expiresAt) {
			results[i] = e.vector
			continue
		}
		if !missSeen[key] {
			missSeen[key] = true
			missKeys = append(missKeys, key)
			missTexts = append(missTexts, text)
		}
	}
	c.mu.RUnlock()

	c.mu.Lock()
	c.hits += uint64(len(texts) - len(missTexts))
	c.misses += uint64(len(missTexts))
	c.mu.Unlock()

	if len(missTexts) == 0 {
		return results, nil
	}

	vectors, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	fresh := make(map[string][]float32, len(missKeys))
	expiry := now.Add(c.ttl)

	c.mu.Lock()
	for i, key := range missKeys {
		c.entries[key] = cacheEntry{vector: vectors[i], expiresAt: expiry}
		fresh[key] = vectors[i]
	}
	c.pruneLocked(now)
	c.mu.Unlock()

	for i := range results {
		if results[i] == nil {
			results[i] = fresh[keys[i]]
		}
	}
	return results, nil
}

// Stats returns cumulative hit/miss counts.
func (c *CachingEmbedder) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// pruneLocked drops expired entries. Called with the write lock held; kept
// cheap so writes stay bounded.
func (c *CachingEmbedder) pruneLocked(now time.Time) {
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// cacheKey hashes the normalized text together with the model name.
func (c *CachingEmbedder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(c.inner.Name()))
	h.Write([]byte{0})
	h.Write([]byte(Normalize(text)))
	return hex.EncodeToString(h.Sum(nil))
}

// Normalize collapses whitespace so trivially reformatted text shares a cache
// entry.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
