package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"

	"github.com/docsage/ragpipe/config"
)

const (
	defaultBatchSize  = 20
	defaultBatchDelay = 100 * time.Millisecond
	retryAttempts     = 3
	retryBaseDelay    = 200 * time.Millisecond
)

// OpenAIProvider embeds text through an OpenAI-compatible embeddings endpoint.
type OpenAIProvider struct {
	client     openai.Client
	model      string
	dimensions int
	batchSize  int
	batchDelay time.Duration
	logger     *zap.Logger
}

// NewOpenAIProvider builds a provider from config. BaseURL may point at any
// OpenAI-compatible server.
func NewOpenAIProvider(cfg *config.EmbeddingConfig, logger *zap.Logger) *OpenAIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	batchDelay := time.Duration(cfg.BatchDelayMS) * time.Millisecond
	if batchDelay <= 0 {
		batchDelay = defaultBatchDelay
	}
	return &OpenAIProvider{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		logger:     logger,
	}
}

func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// Embed vectorizes texts in order, batching requests to stay under provider
// input limits. A failure on the first batch is returned as an error; a
// failure on a later batch returns the vectors produced so far alongside the
// error, so ingestion can keep the work already paid for.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		if start > 0 {
			if err := sleepCtx(ctx, p.batchDelay); err != nil {
				return vectors, err
			}
		}
		batch, err := p.embedBatch(ctx, texts[start:end])
		if err != nil {
			if start == 0 {
				return nil, err
			}
			p.logger.Warn("embedding batch failed, keeping partial result",
				zap.Int("completed", len(vectors)),
				zap.Int("total", len(texts)),
				zap.Error(err))
			return vectors, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedOne vectorizes a single query. It never returns an error: exhausted
// retries report ok=false so the caller can serve a degraded answer.
func (p *OpenAIProvider) EmbedOne(ctx context.Context, text string) ([]float32, bool) {
	batch, err := p.embedBatch(ctx, []string{text})
	if err != nil || len(batch) != 1 {
		p.logger.Warn("query embedding failed", zap.Error(err))
		return nil, false
	}
	return batch[0], true
}

func (p *OpenAIProvider) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp *openai.CreateEmbeddingResponse
	err := retry.Do(
		func() error {
			var callErr error
			resp, callErr = p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
				Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
				Model: openai.EmbeddingModel(p.model),
			})
			return callErr
		},
		retry.Attempts(retryAttempts),
		retry.Delay(retryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("embed batch of %d: %w", len(texts), err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embed batch of %d: got %d vectors", len(texts), len(resp.Data))
	}
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		vectors[item.Index] = vec
	}
	return vectors, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
