package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("found %d configuration error(s):\n", len(errs)))
	for i, err := range errs {
		b.WriteString(fmt.Sprintf("  %d. [%s] %s\n", i+1, err.Field, err.Message))
	}
	return b.String()
}

// Validate validates the complete configuration.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateVectorDB()...)
	errs = append(errs, c.validateRerank()...)
	errs = append(errs, c.validateSplitter()...)

	if c.Agents != nil && c.Agents.Endpoint == "" {
		errs = append(errs, ValidationError{
			Field:   "agents.endpoint",
			Message: "agents endpoint is required when agents is configured",
		})
	}
	if c.Memory != nil && c.Memory.Store == "redis" && len(c.Memory.Addrs) == 0 {
		errs = append(errs, ValidationError{
			Field:   "memory.addrs",
			Message: "redis conversation store requires at least one address",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateEmbedding() ValidationErrors {
	var errs ValidationErrors

	if c.Embedding.Model == "" {
		errs = append(errs, ValidationError{
			Field:   "embedding.model",
			Message: "embedding model is required",
		})
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, ValidationError{
			Field:   "embedding.dimensions",
			Message: "embedding dimensions must be positive (e.g. 1536 or 3072)",
		})
	}
	return errs
}

func (c *Config) validateVectorDB() ValidationErrors {
	var errs ValidationErrors

	switch c.VectorDB.Provider {
	case "milvus":
		if c.VectorDB.Address == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.address",
				Message: "milvus backend requires an address",
			})
		}
	case "redis":
		if len(c.VectorDB.Addrs) == 0 && c.VectorDB.Address == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.addrs",
				Message: "redis backend requires at least one address",
			})
		}
	case "":
		errs = append(errs, ValidationError{
			Field:   "vectordb.provider",
			Message: "vectordb provider is required (milvus, redis)",
		})
	default:
		errs = append(errs, ValidationError{
			Field:   "vectordb.provider",
			Message: fmt.Sprintf("unsupported vectordb provider %q (milvus, redis)", c.VectorDB.Provider),
		})
	}
	return errs
}

func (c *Config) validateRerank() ValidationErrors {
	var errs ValidationErrors

	switch c.Rerank.Provider {
	case "", "lexical":
	case "model":
		if c.Rerank.Endpoint == "" {
			errs = append(errs, ValidationError{
				Field:   "rerank.endpoint",
				Message: "model reranker requires an endpoint",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "rerank.provider",
			Message: fmt.Sprintf("unsupported rerank provider %q (model, lexical)", c.Rerank.Provider),
		})
	}
	return errs
}

func (c *Config) validateSplitter() ValidationErrors {
	var errs ValidationErrors

	if c.RAG.Splitter.ChunkOverlap >= c.RAG.Splitter.ChunkSize && c.RAG.Splitter.ChunkSize > 0 {
		errs = append(errs, ValidationError{
			Field:   "rag.splitter.chunk_overlap",
			Message: "chunk overlap must be smaller than chunk size",
		})
	}
	return errs
}
