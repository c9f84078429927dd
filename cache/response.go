package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// fingerprintLen is the number of hex characters kept from a sha256 digest,
// 128 bits of the full hash.
const fingerprintLen = 32

// ResponseCache stores generated answers keyed by the pair of normalized
// query and retrieved-context fingerprint. Two users asking the same question
// against the same retrieved passages share an entry; a reindex that changes
// the retrieved text changes the fingerprint and misses.
type ResponseCache struct {
	inner Cache
}

// NewResponseCache creates a response cache holding at most maxEntries
// answers. ttl <= 0 disables expiry.
func NewResponseCache(maxEntries int, ttl time.Duration) *ResponseCache {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &ResponseCache{inner: NewLRU(maxEntries, ttl)}
}

// Fingerprint derives a stable identifier for a block of retrieved context.
func Fingerprint(contextText string) string {
	sum := sha256.Sum256([]byte(contextText))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// Get returns a cached answer for the query/context pair.
func (c *ResponseCache) Get(query, fingerprint string) (string, bool) {
	v, ok := c.inner.Get(cacheKey(query, fingerprint))
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set records an answer for the query/context pair.
func (c *ResponseCache) Set(query, fingerprint, answer string) {
	c.inner.Set(cacheKey(query, fingerprint), answer, 0)
}

// Len reports the number of cached answers.
func (c *ResponseCache) Len() int {
	return c.inner.Len()
}

// Purge drops every cached answer.
func (c *ResponseCache) Purge() {
	c.inner.Purge()
}

func cacheKey(query, fingerprint string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:fingerprintLen] + ":" + fingerprint
}
