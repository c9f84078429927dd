package schema

// DegradedReason explains why an answer was produced without a successful
// generation round-trip. Empty means the answer is a normal completion.
type DegradedReason string

const (
	DegradedNone         DegradedReason = ""
	DegradedEmbedding    DegradedReason = "embedding_unavailable"
	DegradedNoContext    DegradedReason = "no_relevant_context"
	DegradedRateLimited  DegradedReason = "rate_budget_exceeded"
	DegradedGeneration   DegradedReason = "generation_failure"
)

// Citation points at a source document that contributed to an answer.
type Citation struct {
	SourceID string  `json:"source_id"`
	Title    string  `json:"title,omitempty"`
	Category string  `json:"category,omitempty"`
	Score    float64 `json:"score"`
}

// Answer is the result of one query invocation.
type Answer struct {
	Text     string         `json:"text"`
	Sources  []Citation     `json:"sources,omitempty"`
	Degraded DegradedReason `json:"degraded,omitempty"`
	CacheHit bool           `json:"cache_hit,omitempty"`
}

// IsDegraded reports whether the answer came from an early-exit path.
func (a *Answer) IsDegraded() bool { return a.Degraded != DegradedNone }
