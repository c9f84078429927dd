package embedding

import (
	"context"

	"github.com/docsage/ragpipe/cache"
	"github.com/docsage/ragpipe/metrics"
)

// CachedProvider memoizes vectors by exact input text in front of another
// provider. Re-ingesting an unchanged document skips the remote call.
type CachedProvider struct {
	inner Provider
	store cache.Cache
}

// NewCachedProvider wraps inner with an LRU of maxEntries texts.
func NewCachedProvider(inner Provider, maxEntries int) *CachedProvider {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &CachedProvider{
		inner: inner,
		store: cache.NewLRU(maxEntries, 0),
	}
}

func (c *CachedProvider) Dimensions() int {
	return c.inner.Dimensions()
}

func (c *CachedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	missing := make([]string, 0, len(texts))
	missingIdx := make([]int, 0, len(texts))
	for i, text := range texts {
		if v, ok := c.store.Get(text); ok {
			vectors[i] = v.([]float32)
			metrics.IncCache("embedding", "hit")
			continue
		}
		metrics.IncCache("embedding", "miss")
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	fresh, err := c.inner.Embed(ctx, missing)
	for i, vec := range fresh {
		vectors[missingIdx[i]] = vec
		c.store.Set(missing[i], vec, 0)
	}
	if err != nil {
		// Partial: report only the prefix that is fully populated.
		complete := 0
		for complete < len(vectors) && vectors[complete] != nil {
			complete++
		}
		return vectors[:complete], err
	}
	return vectors, nil
}

func (c *CachedProvider) EmbedOne(ctx context.Context, text string) ([]float32, bool) {
	if v, ok := c.store.Get(text); ok {
		metrics.IncCache("embedding", "hit")
		return v.([]float32), true
	}
	metrics.IncCache("embedding", "miss")
	vec, ok := c.inner.EmbedOne(ctx, text)
	if ok {
		c.store.Set(text, vec, 0)
	}
	return vec, ok
}
