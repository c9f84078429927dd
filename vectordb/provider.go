package vectordb

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/docsage/ragpipe/config"
	"github.com/docsage/ragpipe/schema"
)

// Provider is the read/write surface over a vector store.
type Provider interface {
	// Store persists chunks with their vectors under the scope's namespace
	// and returns how many were actually written.
	Store(ctx context.Context, sourceID string, chunks []schema.Chunk, vectors [][]float32, scope Scope) (int, error)
	Query(ctx context.Context, vector []float32, scope Scope, opts schema.SearchOptions) ([]schema.SearchResult, error)
	Delete(ctx context.Context, sourceID string, scope Scope) error
	Close() error
}

// Scope selects the namespace a request operates in. An organization ID maps
// to a dedicated namespace and takes precedence over an explicit namespace;
// with neither set, requests fall through to the default namespace.
type Scope struct {
	OrgID     string
	Namespace string
}

// Resolve returns the effective namespace for the scope.
func (s Scope) Resolve(defaultNamespace string) string {
	if s.OrgID != "" {
		return "org_" + s.OrgID
	}
	if s.Namespace != "" {
		return s.Namespace
	}
	if defaultNamespace != "" {
		return defaultNamespace
	}
	return config.DefaultNamespace
}

// backend is the raw operations a concrete store implements. The gateway
// layers batching, retries, dimension checks and namespace resolution on top.
type backend interface {
	Upsert(ctx context.Context, namespace string, docs []schema.Document) error
	Search(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]string) ([]schema.SearchResult, error)
	DeleteBySource(ctx context.Context, namespace string, sourceID string) error
	Name() string
	Close() error
}

// NewProvider constructs the configured backend wrapped in a Gateway.
// Connectivity problems surface here, at construction, not on first use.
func NewProvider(ctx context.Context, cfg *config.VectorDBConfig, dimensions int, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		b   backend
		err error
	)
	switch cfg.Provider {
	case "milvus", "":
		b, err = newMilvusBackend(ctx, cfg, dimensions, logger)
	case "redis":
		b, err = newRedisBackend(ctx, cfg, dimensions, logger)
	default:
		return nil, fmt.Errorf("unknown vectordb provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return newGateway(b, cfg, dimensions, logger), nil
}
