package schema

import "errors"

var (
	// ErrEmbeddingUnavailable means all embedding retries were exhausted.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrNoRelevantContext means retrieval produced zero matches.
	ErrNoRelevantContext = errors.New("no relevant context found")

	// ErrRateBudgetExceeded means the token bucket could not grant capacity
	// within the configured wait.
	ErrRateBudgetExceeded = errors.New("rate budget exceeded")

	// ErrGenerationFailure means the completion call failed after retries.
	ErrGenerationFailure = errors.New("completion generation failed")

	// ErrDimensionMismatch means a vector's dimensionality does not match the
	// index configuration. This is a fatal configuration error at store time.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrSourceNotFound is returned by document stores for unknown source ids.
	ErrSourceNotFound = errors.New("source document not found")
)
