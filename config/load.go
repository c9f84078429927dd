package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values applied by ApplyDefaults.
const (
	DefaultChunkSize              = 512
	DefaultChunkOverlap           = 64
	DefaultEncoding               = "cl100k_base"
	DefaultTopK                   = 5
	DefaultContextTokenBudget     = 20000
	DefaultHistoryTokenBudget     = 2000
	DefaultTemplateOverheadTokens = 200
	DefaultEmbeddingBatchSize     = 20
	DefaultEmbeddingBatchDelayMS  = 100
	DefaultEmbeddingCacheSize     = 256
	DefaultTokensPerMinute        = 40000
	DefaultWaitTimeoutSec         = 30
	DefaultCacheMaxEntries        = 100
	DefaultNamespace              = "global"
)

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values with documented defaults.
func (c *Config) ApplyDefaults() {
	if c.RAG.Splitter.Encoding == "" {
		c.RAG.Splitter.Encoding = DefaultEncoding
	}
	if c.RAG.Splitter.ChunkSize <= 0 {
		c.RAG.Splitter.ChunkSize = DefaultChunkSize
	}
	if c.RAG.Splitter.ChunkOverlap < 0 {
		c.RAG.Splitter.ChunkOverlap = 0
	}
	if c.RAG.Splitter.ChunkOverlap == 0 {
		c.RAG.Splitter.ChunkOverlap = DefaultChunkOverlap
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = DefaultTopK
	}
	if c.RAG.ContextTokenBudget <= 0 {
		c.RAG.ContextTokenBudget = DefaultContextTokenBudget
	}
	if c.RAG.HistoryTokenBudget <= 0 {
		c.RAG.HistoryTokenBudget = DefaultHistoryTokenBudget
	}
	if c.RAG.TemplateOverheadTokens <= 0 {
		c.RAG.TemplateOverheadTokens = DefaultTemplateOverheadTokens
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = DefaultEmbeddingBatchSize
	}
	if c.Embedding.BatchDelayMS <= 0 {
		c.Embedding.BatchDelayMS = DefaultEmbeddingBatchDelayMS
	}
	if c.Embedding.CacheSize <= 0 {
		c.Embedding.CacheSize = DefaultEmbeddingCacheSize
	}
	if c.RateLimit.TokensPerMinute <= 0 {
		c.RateLimit.TokensPerMinute = DefaultTokensPerMinute
	}
	if c.RateLimit.WaitTimeoutSec <= 0 {
		c.RateLimit.WaitTimeoutSec = DefaultWaitTimeoutSec
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = DefaultCacheMaxEntries
	}
	if c.VectorDB.Namespace == "" {
		c.VectorDB.Namespace = DefaultNamespace
	}
	if c.VectorDB.Collection == "" {
		c.VectorDB.Collection = "ragpipe_chunks"
	}
	if c.Rerank.Provider == "" {
		c.Rerank.Provider = "lexical"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
}
