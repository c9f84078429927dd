package vectordb

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docsage/ragpipe/config"
	"github.com/docsage/ragpipe/metrics"
	"github.com/docsage/ragpipe/schema"
)

const (
	upsertBatchSize = 10
	maxFetchK       = 20
	retryAttempts   = 3
	retryBaseDelay  = 200 * time.Millisecond
)

// Gateway wraps a backend with the behavior every store shares: dimension
// validation, batched upserts that survive individual batch failures,
// over-fetched searches filtered by threshold, and namespace resolution.
type Gateway struct {
	backend          backend
	dimensions       int
	defaultNamespace string
	logger           *zap.Logger
}

func newGateway(b backend, cfg *config.VectorDBConfig, dimensions int, logger *zap.Logger) *Gateway {
	return &Gateway{
		backend:          b,
		dimensions:       dimensions,
		defaultNamespace: cfg.Namespace,
		logger:           logger,
	}
}

func (g *Gateway) Store(ctx context.Context, sourceID string, chunks []schema.Chunk, vectors [][]float32, scope Scope) (int, error) {
	if len(vectors) > len(chunks) {
		return 0, fmt.Errorf("store: %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for i, vec := range vectors {
		if len(vec) != g.dimensions {
			return 0, fmt.Errorf("chunk %d: %w: got %d, want %d", i, schema.ErrDimensionMismatch, len(vec), g.dimensions)
		}
	}

	ns := scope.Resolve(g.defaultNamespace)
	now := time.Now()
	docs := make([]schema.Document, len(vectors))
	for i := range vectors {
		docs[i] = schema.Document{
			ID:         uuid.NewString(),
			SourceID:   sourceID,
			ChunkIndex: chunks[i].ChunkIndex,
			Content:    chunks[i].Text,
			Vector:     vectors[i],
			CreatedAt:  now,
		}
	}

	stored := 0
	var lastErr error
	for start := 0; start < len(docs); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		err := retry.Do(
			func() error { return g.backend.Upsert(ctx, ns, batch) },
			retry.Attempts(retryAttempts),
			retry.Delay(retryBaseDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.Context(ctx),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			lastErr = err
			g.logger.Warn("upsert batch failed",
				zap.String("namespace", ns),
				zap.String("source_id", sourceID),
				zap.Int("offset", start),
				zap.Error(err))
			continue
		}
		stored += len(batch)
	}
	if stored == 0 && lastErr != nil {
		return 0, fmt.Errorf("store %s: %w", sourceID, lastErr)
	}
	return stored, nil
}

func (g *Gateway) Query(ctx context.Context, vector []float32, scope Scope, opts schema.SearchOptions) ([]schema.SearchResult, error) {
	if len(vector) != g.dimensions {
		return nil, fmt.Errorf("query: %w: got %d, want %d", schema.ErrDimensionMismatch, len(vector), g.dimensions)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = config.DefaultTopK
	}
	// Over-fetch so the reranker has candidates beyond the final cut.
	fetchK := topK * 3
	if fetchK > maxFetchK {
		fetchK = maxFetchK
	}

	ns := scope.Resolve(g.defaultNamespace)
	start := time.Now()
	var results []schema.SearchResult
	err := retry.Do(
		func() error {
			var searchErr error
			results, searchErr = g.backend.Search(ctx, ns, vector, fetchK, opts.Filter)
			return searchErr
		},
		retry.Attempts(retryAttempts),
		retry.Delay(retryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		// Transient search failure reads as an empty corpus downstream; the
		// caller degrades instead of erroring out.
		g.logger.Warn("search failed after retries",
			zap.String("namespace", ns),
			zap.Error(err))
		metrics.ObserveRetrieval(g.backend.Name(), start, 0)
		return nil, nil
	}

	filtered := results[:0]
	for _, r := range results {
		if opts.Threshold > 0 && r.Score < opts.Threshold {
			continue
		}
		r.Namespace = ns
		filtered = append(filtered, r)
	}
	metrics.ObserveRetrieval(g.backend.Name(), start, len(filtered))
	return filtered, nil
}

func (g *Gateway) Delete(ctx context.Context, sourceID string, scope Scope) error {
	ns := scope.Resolve(g.defaultNamespace)
	if err := g.backend.DeleteBySource(ctx, ns, sourceID); err != nil {
		return fmt.Errorf("delete %s from %s: %w", sourceID, ns, err)
	}
	return nil
}

func (g *Gateway) Close() error {
	return g.backend.Close()
}
