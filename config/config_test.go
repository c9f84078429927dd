package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	c := &Config{}
	c.Embedding.Model = "text-embedding-3-small"
	c.Embedding.Dimensions = 1536
	c.VectorDB.Provider = "milvus"
	c.VectorDB.Address = "localhost:19530"
	c.ApplyDefaults()
	return c
}

func TestApplyDefaults(t *testing.T) {
	c := &Config{}
	c.ApplyDefaults()

	if c.RAG.Splitter.ChunkSize != DefaultChunkSize {
		t.Fatalf("chunk size = %d", c.RAG.Splitter.ChunkSize)
	}
	if c.RAG.Splitter.Encoding != DefaultEncoding {
		t.Fatalf("encoding = %q", c.RAG.Splitter.Encoding)
	}
	if c.RAG.TopK != DefaultTopK {
		t.Fatalf("topK = %d", c.RAG.TopK)
	}
	if c.RateLimit.TokensPerMinute != DefaultTokensPerMinute {
		t.Fatalf("tokens per minute = %d", c.RateLimit.TokensPerMinute)
	}
	if c.Cache.MaxEntries != DefaultCacheMaxEntries {
		t.Fatalf("cache entries = %d", c.Cache.MaxEntries)
	}
	if c.VectorDB.Namespace != DefaultNamespace {
		t.Fatalf("namespace = %q", c.VectorDB.Namespace)
	}
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	c := &Config{}
	c.RAG.TopK = 9
	c.RAG.Splitter.ChunkSize = 128
	c.ApplyDefaults()

	if c.RAG.TopK != 9 || c.RAG.Splitter.ChunkSize != 128 {
		t.Fatal("explicit values must survive ApplyDefaults")
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRequiresEmbedding(t *testing.T) {
	c := validConfig()
	c.Embedding.Model = ""
	c.Embedding.Dimensions = 0

	err := c.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "embedding.model") || !strings.Contains(msg, "embedding.dimensions") {
		t.Fatalf("expected both embedding errors, got: %s", msg)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	c := validConfig()
	c.VectorDB.Provider = "pinecone"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}

func TestValidateModelRerankNeedsEndpoint(t *testing.T) {
	c := validConfig()
	c.Rerank.Provider = "model"
	c.Rerank.Endpoint = ""
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for model reranker without endpoint")
	}
}

func TestValidateOverlapBound(t *testing.T) {
	c := validConfig()
	c.RAG.Splitter.ChunkSize = 100
	c.RAG.Splitter.ChunkOverlap = 100
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for overlap >= chunk size")
	}
}

func TestLoadFromYAML(t *testing.T) {
	raw := `
embedding:
  model: text-embedding-3-small
  dimensions: 1536
vectordb:
  provider: milvus
  address: localhost:19530
  collection: docs
rag:
  top_k: 3
rate_limit:
  tokens_per_minute: 1000
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VectorDB.Collection != "docs" {
		t.Fatalf("collection = %q", cfg.VectorDB.Collection)
	}
	if cfg.RAG.TopK != 3 {
		t.Fatalf("topK = %d", cfg.RAG.TopK)
	}
	if cfg.RateLimit.TokensPerMinute != 1000 {
		t.Fatalf("tokens per minute = %d", cfg.RateLimit.TokensPerMinute)
	}
	// Untouched fields pick up defaults.
	if cfg.RAG.Splitter.ChunkSize != DefaultChunkSize {
		t.Fatalf("chunk size = %d", cfg.RAG.Splitter.ChunkSize)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("vectordb:\n  provider: milvus\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation failure")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
