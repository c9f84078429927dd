package config

// Config is the root configuration for the query pipeline.
type Config struct {
	RAG       RAGConfig       `json:"rag" yaml:"rag"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	LLM       LLMConfig       `json:"llm" yaml:"llm"`
	VectorDB  VectorDBConfig  `json:"vectordb" yaml:"vectordb"`
	Rerank    RerankConfig    `json:"rerank" yaml:"rerank"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	// Agents holds optional multi-agent decomposition settings. If nil,
	// complex queries take the standard retrieval path.
	Agents *AgentsConfig `json:"agents,omitempty" yaml:"agents,omitempty"`
	// Memory holds optional conversation store settings. If nil or
	// store=inmemory, an in-memory store is used.
	Memory  *MemoryConfig `json:"memory,omitempty" yaml:"memory,omitempty"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// RAGConfig contains retrieval and prompt assembly settings.
type RAGConfig struct {
	Splitter  SplitterConfig `json:"splitter" yaml:"splitter"`
	TopK      int            `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	Threshold float64        `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	// ContextTokenBudget caps prompt context tokens (default 20000).
	ContextTokenBudget int `json:"context_token_budget,omitempty" yaml:"context_token_budget,omitempty"`
	// HistoryTokenBudget caps conversation history tokens (default 2000).
	HistoryTokenBudget int `json:"history_token_budget,omitempty" yaml:"history_token_budget,omitempty"`
	// TemplateOverheadTokens is the fixed prompt template cost added to the
	// rate-limiter estimate (default 200).
	TemplateOverheadTokens int `json:"template_overhead_tokens,omitempty" yaml:"template_overhead_tokens,omitempty"`
}

// SplitterConfig defines document chunking parameters.
type SplitterConfig struct {
	// Encoding is the tokenizer encoding name (default cl100k_base).
	Encoding     string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	ChunkSize    int    `json:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`
	ChunkOverlap int    `json:"chunk_overlap,omitempty" yaml:"chunk_overlap,omitempty"`
}

// EmbeddingConfig defines the embedding provider.
type EmbeddingConfig struct {
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model      string `json:"model,omitempty" yaml:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	// BatchSize is the number of texts per remote call (default 20).
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	// BatchDelayMS is the pause between consecutive batches (default 100).
	BatchDelayMS int `json:"batch_delay_ms,omitempty" yaml:"batch_delay_ms,omitempty"`
	// CacheSize bounds the memoizing single-text cache (default 256).
	CacheSize int `json:"cache_size,omitempty" yaml:"cache_size,omitempty"`
}

// LLMConfig defines the completion provider.
type LLMConfig struct {
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	TimeoutSec  int     `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`
}

// VectorDBConfig defines the vector index backend.
type VectorDBConfig struct {
	// Provider selects the backend at construction time: milvus, redis.
	Provider string `json:"provider" yaml:"provider"`
	Address  string `json:"address,omitempty" yaml:"address,omitempty"`
	// Addrs is used by the redis backend (cluster-capable).
	Addrs      []string `json:"addrs,omitempty" yaml:"addrs,omitempty"`
	Username   string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string   `json:"password,omitempty" yaml:"password,omitempty"`
	Database   string   `json:"database,omitempty" yaml:"database,omitempty"`
	Collection string   `json:"collection,omitempty" yaml:"collection,omitempty"`
	// Namespace is the fallback partition when no tenant or explicit
	// namespace applies (default "global").
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// RerankConfig selects and configures the reranker. The primary path is
// chosen at deployment time, not per request.
type RerankConfig struct {
	// Provider: "model" (cross-encoder endpoint) or "lexical".
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// HTTP holds outbound client settings for the model endpoint.
	HTTP *HTTPClientConfig `json:"http,omitempty" yaml:"http,omitempty"`
}

// RateLimitConfig defines the shared completion token bucket.
type RateLimitConfig struct {
	// TokensPerMinute is bucket capacity and refill rate (default 40000).
	TokensPerMinute int `json:"tokens_per_minute,omitempty" yaml:"tokens_per_minute,omitempty"`
	// WaitTimeoutSec bounds how long a query waits for capacity (default 30).
	WaitTimeoutSec int `json:"wait_timeout_sec,omitempty" yaml:"wait_timeout_sec,omitempty"`
}

// CacheConfig defines the response cache.
type CacheConfig struct {
	MaxEntries int `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
	TTLSeconds int `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
}

// AgentsConfig defines the optional multi-agent decomposition service used
// as a best-effort escalation for complex queries.
type AgentsConfig struct {
	Endpoint  string            `json:"endpoint" yaml:"endpoint"`
	APIKey    string            `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	TimeoutMS int               `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	HTTP      *HTTPClientConfig `json:"http,omitempty" yaml:"http,omitempty"`
}

// MemoryConfig defines the conversation store.
type MemoryConfig struct {
	// Store: "inmemory" (default) or "redis".
	Store      string   `json:"store,omitempty" yaml:"store,omitempty"`
	Addrs      []string `json:"addrs,omitempty" yaml:"addrs,omitempty"`
	Password   string   `json:"password,omitempty" yaml:"password,omitempty"`
	KeyPrefix  string   `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
	TTLSeconds int      `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
	MaxRounds  int      `json:"max_rounds,omitempty" yaml:"max_rounds,omitempty"`
}

// HTTPClientConfig holds defaults for outbound HTTP calls.
type HTTPClientConfig struct {
	TimeoutMs              int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Retry                  int      `json:"retry,omitempty" yaml:"retry,omitempty"`
	BackoffMinMs           int      `json:"backoff_min_ms,omitempty" yaml:"backoff_min_ms,omitempty"`
	BackoffMaxMs           int      `json:"backoff_max_ms,omitempty" yaml:"backoff_max_ms,omitempty"`
	HostAllowlist          []string `json:"host_allowlist,omitempty" yaml:"host_allowlist,omitempty"`
	MaxConsecutiveFailures int      `json:"max_consecutive_failures,omitempty" yaml:"max_consecutive_failures,omitempty"`
	CircuitOpenSeconds     int      `json:"circuit_open_seconds,omitempty" yaml:"circuit_open_seconds,omitempty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Env selects the zap profile: prod (JSON) or dev (console). Default dev.
	Env string `json:"env,omitempty" yaml:"env,omitempty"`
	// Level overrides the log level: debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
}
