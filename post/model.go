package post

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/docsage/ragpipe/common/httpx"
	"github.com/docsage/ragpipe/config"
	"github.com/docsage/ragpipe/schema"
)

// ModelReranker calls a cross-encoder scoring endpoint. On any failure it
// hands off to Fallback when set, otherwise returns the input order trimmed
// to topK, so reranking problems never lose retrieved context.
type ModelReranker struct {
	endpoint string
	model    string
	apiKey   string
	client   *httpx.Client
	logger   *zap.Logger

	// Fallback handles requests the model endpoint could not serve.
	Fallback Reranker
}

func NewModelReranker(cfg *config.RerankConfig, logger *zap.Logger) *ModelReranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelReranker{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   httpx.NewFromConfig(cfg.HTTP, logger),
		logger:   logger,
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func (r *ModelReranker) Rerank(ctx context.Context, query string, in []schema.SearchResult, history []schema.Exchange, topK int) []schema.SearchResult {
	if len(in) == 0 {
		return in
	}
	out, err := r.rerank(ctx, query, in, topK)
	if err != nil {
		r.logger.Warn("model rerank failed, falling back", zap.Error(err))
		if r.Fallback != nil {
			return r.Fallback.Rerank(ctx, query, in, history, topK)
		}
		return capTopK(in, topK)
	}
	return out
}

func (r *ModelReranker) rerank(ctx context.Context, query string, in []schema.SearchResult, topK int) ([]schema.SearchResult, error) {
	docs := make([]string, len(in))
	for i, res := range in {
		docs[i] = res.Document.Content
	}
	body, err := json.Marshal(rerankRequest{
		Query:     query,
		Documents: docs,
		Model:     r.model,
		TopN:      topK,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank endpoint returned %d: %s", resp.StatusCode, payload)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return nil, fmt.Errorf("rerank response had no results")
	}

	out := make([]schema.SearchResult, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		if item.Index < 0 || item.Index >= len(in) {
			return nil, fmt.Errorf("rerank result index %d out of range", item.Index)
		}
		res := in[item.Index]
		res.Score = item.RelevanceScore
		out = append(out, res)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return capTopK(out, topK), nil
}

// NewReranker builds the configured reranker. The model provider always
// carries the lexical reranker as its fallback.
func NewReranker(cfg *config.RerankConfig, logger *zap.Logger) Reranker {
	switch cfg.Provider {
	case "model":
		r := NewModelReranker(cfg, logger)
		r.Fallback = NewLexicalReranker()
		return r
	default:
		return NewLexicalReranker()
	}
}
