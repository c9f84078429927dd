package embedding

import "context"

// Provider turns text into vectors.
//
// Embed is the bulk path for ingestion: it may return fewer vectors than
// inputs when a later batch fails, and the caller decides whether a partial
// result is usable. EmbedOne is the query path: it reports failure with a
// boolean so callers can degrade instead of aborting.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, bool)
	Dimensions() int
}
