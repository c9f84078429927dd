package post

import (
	"context"

	"github.com/docsage/ragpipe/schema"
)

// Reranker reorders retrieved candidates by relevance to the query. History
// is available so conversational references can pull in context from earlier
// turns. Implementations return at most topK results in descending relevance.
type Reranker interface {
	Rerank(ctx context.Context, query string, in []schema.SearchResult, history []schema.Exchange, topK int) []schema.SearchResult
}

func capTopK(in []schema.SearchResult, topK int) []schema.SearchResult {
	if topK > 0 && len(in) > topK {
		return in[:topK]
	}
	return in
}
