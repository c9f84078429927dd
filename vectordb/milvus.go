package vectordb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/docsage/ragpipe/config"
	"github.com/docsage/ragpipe/schema"
)

const (
	milvusVectorField = "vector"
	milvusMaxVarChar  = 65535
	hnswM             = 16
	hnswEfConstruct   = 200
	hnswEfSearch      = 64
)

type milvusBackend struct {
	client     mclient.Client
	collection string
	dimensions int
	logger     *zap.Logger

	mu         sync.Mutex
	partitions map[string]struct{}
}

func newMilvusBackend(ctx context.Context, cfg *config.VectorDBConfig, dimensions int, logger *zap.Logger) (*milvusBackend, error) {
	c, err := mclient.NewClient(ctx, mclient.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus at %s: %w", cfg.Address, err)
	}
	b := &milvusBackend{
		client:     c,
		collection: cfg.Collection,
		dimensions: dimensions,
		logger:     logger,
		partitions: make(map[string]struct{}),
	}
	if err := b.ensureCollection(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return b, nil
}

func (b *milvusBackend) Name() string { return "milvus" }

func (b *milvusBackend) ensureCollection(ctx context.Context) error {
	has, err := b.client.HasCollection(ctx, b.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", b.collection, err)
	}
	if !has {
		sch := entity.NewSchema().WithName(b.collection).
			WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName("source_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(512)).
			WithField(entity.NewField().WithName("chunk_index").WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName("content").WithDataType(entity.FieldTypeVarChar).WithMaxLength(milvusMaxVarChar)).
			WithField(entity.NewField().WithName("title").WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024)).
			WithField(entity.NewField().WithName("category").WithDataType(entity.FieldTypeVarChar).WithMaxLength(256)).
			WithField(entity.NewField().WithName("created_at").WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(milvusVectorField).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(b.dimensions)))
		if err := b.client.CreateCollection(ctx, sch, 1); err != nil {
			return fmt.Errorf("create collection %s: %w", b.collection, err)
		}
		idx, err := entity.NewIndexHNSW(entity.COSINE, hnswM, hnswEfConstruct)
		if err != nil {
			return fmt.Errorf("build hnsw index: %w", err)
		}
		if err := b.client.CreateIndex(ctx, b.collection, milvusVectorField, idx, false); err != nil {
			return fmt.Errorf("create index on %s: %w", b.collection, err)
		}
	}
	if err := b.client.LoadCollection(ctx, b.collection, false); err != nil {
		return fmt.Errorf("load collection %s: %w", b.collection, err)
	}
	return nil
}

// ensurePartition makes namespace isolation a partition per namespace.
func (b *milvusBackend) ensurePartition(ctx context.Context, namespace string) error {
	b.mu.Lock()
	_, known := b.partitions[namespace]
	b.mu.Unlock()
	if known {
		return nil
	}
	has, err := b.client.HasPartition(ctx, b.collection, namespace)
	if err != nil {
		return fmt.Errorf("check partition %s: %w", namespace, err)
	}
	if !has {
		if err := b.client.CreatePartition(ctx, b.collection, namespace); err != nil {
			return fmt.Errorf("create partition %s: %w", namespace, err)
		}
	}
	b.mu.Lock()
	b.partitions[namespace] = struct{}{}
	b.mu.Unlock()
	return nil
}

func (b *milvusBackend) Upsert(ctx context.Context, namespace string, docs []schema.Document) error {
	if err := b.ensurePartition(ctx, namespace); err != nil {
		return err
	}
	n := len(docs)
	ids := make([]string, n)
	sourceIDs := make([]string, n)
	chunkIdx := make([]int64, n)
	contents := make([]string, n)
	titles := make([]string, n)
	categories := make([]string, n)
	createdAt := make([]int64, n)
	vectors := make([][]float32, n)
	for i, d := range docs {
		ids[i] = d.ID
		sourceIDs[i] = d.SourceID
		chunkIdx[i] = int64(d.ChunkIndex)
		contents[i] = d.Content
		titles[i] = d.Title
		categories[i] = d.Category
		createdAt[i] = d.CreatedAt.Unix()
		vectors[i] = d.Vector
	}
	_, err := b.client.Upsert(ctx, b.collection, namespace,
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("source_id", sourceIDs),
		entity.NewColumnInt64("chunk_index", chunkIdx),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("category", categories),
		entity.NewColumnInt64("created_at", createdAt),
		entity.NewColumnFloatVector(milvusVectorField, b.dimensions, vectors),
	)
	if err != nil {
		return fmt.Errorf("upsert %d docs into %s/%s: %w", n, b.collection, namespace, err)
	}
	return nil
}

func (b *milvusBackend) Search(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]string) ([]schema.SearchResult, error) {
	if err := b.ensurePartition(ctx, namespace); err != nil {
		return nil, err
	}
	sp, err := entity.NewIndexHNSWSearchParam(hnswEfSearch)
	if err != nil {
		return nil, fmt.Errorf("hnsw search param: %w", err)
	}
	expr := buildMilvusExpr(filter)
	outputFields := []string{"id", "source_id", "chunk_index", "content", "title", "category"}
	results, err := b.client.Search(ctx, b.collection, []string{namespace}, expr, outputFields,
		[]entity.Vector{entity.FloatVector(vector)}, milvusVectorField, entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("search %s/%s: %w", b.collection, namespace, err)
	}

	var out []schema.SearchResult
	for _, rs := range results {
		for i := 0; i < rs.ResultCount; i++ {
			doc := schema.Document{
				ID:         columnString(rs.Fields, "id", i),
				SourceID:   columnString(rs.Fields, "source_id", i),
				ChunkIndex: int(columnInt64(rs.Fields, "chunk_index", i)),
				Content:    columnString(rs.Fields, "content", i),
				Title:      columnString(rs.Fields, "title", i),
				Category:   columnString(rs.Fields, "category", i),
			}
			out = append(out, schema.SearchResult{
				Document: doc,
				Score:    float64(rs.Scores[i]),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (b *milvusBackend) DeleteBySource(ctx context.Context, namespace string, sourceID string) error {
	if err := b.ensurePartition(ctx, namespace); err != nil {
		return err
	}
	expr := fmt.Sprintf("source_id == %q", sourceID)
	if err := b.client.Delete(ctx, b.collection, namespace, expr); err != nil {
		return fmt.Errorf("delete source %s from %s/%s: %w", sourceID, b.collection, namespace, err)
	}
	return nil
}

func (b *milvusBackend) Close() error {
	return b.client.Close()
}

func buildMilvusExpr(filter map[string]string) string {
	if len(filter) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	terms := make([]string, 0, len(keys))
	for _, k := range keys {
		terms = append(terms, fmt.Sprintf("%s == %q", k, filter[k]))
	}
	return strings.Join(terms, " && ")
}

func columnString(cols []entity.Column, name string, idx int) string {
	for _, col := range cols {
		if col.Name() != name {
			continue
		}
		if vc, ok := col.(*entity.ColumnVarChar); ok {
			v, err := vc.ValueByIdx(idx)
			if err == nil {
				return v
			}
		}
	}
	return ""
}

func columnInt64(cols []entity.Column, name string, idx int) int64 {
	for _, col := range cols {
		if col.Name() != name {
			continue
		}
		if ic, ok := col.(*entity.ColumnInt64); ok {
			v, err := ic.ValueByIdx(idx)
			if err == nil {
				return v
			}
		}
	}
	return 0
}
