package vectordb

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/docsage/ragpipe/config"
	"github.com/docsage/ragpipe/schema"
)

func TestScopeResolve(t *testing.T) {
	cases := []struct {
		name  string
		scope Scope
		def   string
		want  string
	}{
		{"org wins over namespace", Scope{OrgID: "42", Namespace: "custom"}, "global", "org_42"},
		{"explicit namespace", Scope{Namespace: "custom"}, "global", "custom"},
		{"default namespace", Scope{}, "global", "global"},
		{"built-in fallback", Scope{}, "", config.DefaultNamespace},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.scope.Resolve(tc.def); got != tc.want {
				t.Fatalf("Resolve = %q, want %q", got, tc.want)
			}
		})
	}
}

type fakeBackend struct {
	upserts   map[string][]schema.Document
	failNS    string
	searchOut []schema.SearchResult
	searchNS  string
	searchK   int
	deleted   []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{upserts: make(map[string][]schema.Document)}
}

func (f *fakeBackend) Upsert(_ context.Context, ns string, docs []schema.Document) error {
	if ns == f.failNS {
		return errors.New("backend down")
	}
	f.upserts[ns] = append(f.upserts[ns], docs...)
	return nil
}

func (f *fakeBackend) Search(_ context.Context, ns string, _ []float32, topK int, _ map[string]string) ([]schema.SearchResult, error) {
	f.searchNS = ns
	f.searchK = topK
	if ns == f.failNS {
		return nil, errors.New("backend down")
	}
	return f.searchOut, nil
}

func (f *fakeBackend) DeleteBySource(_ context.Context, ns, sourceID string) error {
	f.deleted = append(f.deleted, ns+"/"+sourceID)
	return nil
}

func (f *fakeBackend) Name() string { return "fake" }
func (f *fakeBackend) Close() error { return nil }

func testGateway(b backend, dims int) *Gateway {
	return newGateway(b, &config.VectorDBConfig{Namespace: "global"}, dims, zap.NewNop())
}

func testChunks(n int) ([]schema.Chunk, [][]float32) {
	chunks := make([]schema.Chunk, n)
	vectors := make([][]float32, n)
	for i := range chunks {
		chunks[i] = schema.Chunk{Text: "chunk", ChunkIndex: i}
		vectors[i] = []float32{1, 2, 3}
	}
	return chunks, vectors
}

func TestGatewayStoreAssignsNamespaceAndIDs(t *testing.T) {
	fb := newFakeBackend()
	g := testGateway(fb, 3)
	chunks, vectors := testChunks(2)

	stored, err := g.Store(context.Background(), "doc-1", chunks, vectors, Scope{OrgID: "7"})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if stored != 2 {
		t.Fatalf("stored = %d, want 2", stored)
	}
	docs := fb.upserts["org_7"]
	if len(docs) != 2 {
		t.Fatalf("expected docs in org namespace, got %d", len(docs))
	}
	for i, d := range docs {
		if d.ID == "" {
			t.Fatalf("doc %d has no id", i)
		}
		if d.SourceID != "doc-1" {
			t.Fatalf("doc %d source = %q", i, d.SourceID)
		}
		if d.CreatedAt.IsZero() || time.Since(d.CreatedAt) > time.Minute {
			t.Fatalf("doc %d has implausible timestamp", i)
		}
	}
}

func TestGatewayStoreRejectsDimensionMismatch(t *testing.T) {
	g := testGateway(newFakeBackend(), 3)
	chunks, _ := testChunks(1)

	_, err := g.Store(context.Background(), "doc", chunks, [][]float32{{1, 2}}, Scope{})
	if !errors.Is(err, schema.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestGatewayStoreAllBatchesFailing(t *testing.T) {
	fb := newFakeBackend()
	fb.failNS = "global"
	g := testGateway(fb, 3)
	chunks, vectors := testChunks(2)

	stored, err := g.Store(context.Background(), "doc", chunks, vectors, Scope{})
	if err == nil {
		t.Fatal("expected error when nothing was stored")
	}
	if stored != 0 {
		t.Fatalf("stored = %d, want 0", stored)
	}
}

func TestGatewayQueryOverFetchesAndFilters(t *testing.T) {
	fb := newFakeBackend()
	fb.searchOut = []schema.SearchResult{
		{Document: schema.Document{ID: "1"}, Score: 0.9},
		{Document: schema.Document{ID: "2"}, Score: 0.4},
		{Document: schema.Document{ID: "3"}, Score: 0.1},
	}
	g := testGateway(fb, 3)

	got, err := g.Query(context.Background(), []float32{1, 2, 3}, Scope{Namespace: "team"},
		schema.SearchOptions{TopK: 5, Threshold: 0.3})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if fb.searchNS != "team" {
		t.Fatalf("searched namespace %q", fb.searchNS)
	}
	if fb.searchK != 15 {
		t.Fatalf("expected over-fetch of 15, got %d", fb.searchK)
	}
	if len(got) != 2 {
		t.Fatalf("expected threshold to drop one result, got %d", len(got))
	}
	for _, r := range got {
		if r.Namespace != "team" {
			t.Fatalf("result namespace %q", r.Namespace)
		}
	}
}

func TestGatewayQueryCapsOverFetch(t *testing.T) {
	fb := newFakeBackend()
	g := testGateway(fb, 3)

	if _, err := g.Query(context.Background(), []float32{1, 2, 3}, Scope{}, schema.SearchOptions{TopK: 10}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if fb.searchK != maxFetchK {
		t.Fatalf("expected fetch capped at %d, got %d", maxFetchK, fb.searchK)
	}
}

func TestGatewayQueryBackendFailureReturnsEmpty(t *testing.T) {
	fb := newFakeBackend()
	fb.failNS = "team"
	g := testGateway(fb, 3)

	got, err := g.Query(context.Background(), []float32{1, 2, 3}, Scope{Namespace: "team"},
		schema.SearchOptions{TopK: 5})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no results, got %d", len(got))
	}
}

func TestGatewayQueryDimensionMismatch(t *testing.T) {
	g := testGateway(newFakeBackend(), 3)
	_, err := g.Query(context.Background(), []float32{1}, Scope{}, schema.SearchOptions{TopK: 5})
	if !errors.Is(err, schema.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestGatewayDeleteResolvesScope(t *testing.T) {
	fb := newFakeBackend()
	g := testGateway(fb, 3)

	if err := g.Delete(context.Background(), "doc-9", Scope{OrgID: "3"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(fb.deleted) != 1 || fb.deleted[0] != "org_3/doc-9" {
		t.Fatalf("unexpected delete calls: %v", fb.deleted)
	}
}
