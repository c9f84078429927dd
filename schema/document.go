package schema

import "time"

// Chunk is a token-bounded slice of a source document. Chunks are immutable
// once produced; re-ingesting a source supersedes its previous chunks.
type Chunk struct {
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
	SourceID   string `json:"source_id"`
	ChunkIndex int    `json:"chunk_index"`
}

// Document is a stored chunk plus its citation metadata and vector.
type Document struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Title      string    `json:"title,omitempty"`
	Category   string    `json:"category,omitempty"`
	Vector     []float32 `json:"vector,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// SearchResult is one retrieved match, produced per query and never persisted.
type SearchResult struct {
	Document  Document `json:"document"`
	Score     float64  `json:"score"`
	Namespace string   `json:"namespace,omitempty"`
}

// SearchOptions controls a vector index query.
type SearchOptions struct {
	TopK      int
	Threshold float64
	// Filter restricts matches by metadata field, e.g. {"category": "billing"}.
	Filter map[string]string
}
