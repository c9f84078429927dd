package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docsage/ragpipe/agents"
	"github.com/docsage/ragpipe/cache"
	"github.com/docsage/ragpipe/config"
	"github.com/docsage/ragpipe/post"
	"github.com/docsage/ragpipe/ratelimit"
	"github.com/docsage/ragpipe/schema"
	"github.com/docsage/ragpipe/vectordb"
)

type fakeEmbedder struct {
	fail bool
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedOne(context.Context, string) ([]float32, bool) {
	if f.fail {
		return nil, false
	}
	return []float32{1, 0, 0}, true
}

type fakeStore struct {
	results []schema.SearchResult
	err     error
}

func (f *fakeStore) Store(context.Context, string, []schema.Chunk, [][]float32, vectordb.Scope) (int, error) {
	return 0, nil
}

func (f *fakeStore) Query(context.Context, []float32, vectordb.Scope, schema.SearchOptions) ([]schema.SearchResult, error) {
	return f.results, f.err
}

func (f *fakeStore) Delete(context.Context, string, vectordb.Scope) error { return nil }
func (f *fakeStore) Close() error                                         { return nil }

type fakeGenerator struct {
	reply string
	err   error
	calls int
}

func (f *fakeGenerator) GenerateCompletion(context.Context, string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func (f *fakeGenerator) GenerateCompletionStream(_ context.Context, _ string, fn func(string)) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if fn != nil {
		fn(f.reply)
	}
	return f.reply, nil
}

type fakeDecomposer struct {
	result *agents.Result
	err    error
	calls  int
}

func (f *fakeDecomposer) Orchestrate(context.Context, string, map[string]string, map[string]any) (*agents.Result, error) {
	f.calls++
	return f.result, f.err
}

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func result(id, sourceID, content string, score float64) schema.SearchResult {
	return schema.SearchResult{
		Document: schema.Document{ID: id, SourceID: sourceID, Content: content},
		Score:    score,
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	return cfg
}

func newTestOrchestrator(cfg *config.Config, deps Deps) *Orchestrator {
	if deps.Counter == nil {
		deps.Counter = wordCounter{}
	}
	if deps.Reranker == nil {
		deps.Reranker = post.NewLexicalReranker()
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewTokenBucket(cfg.RateLimit.TokensPerMinute)
	}
	if deps.Responses == nil {
		deps.Responses = cache.NewResponseCache(cfg.Cache.MaxEntries, 0)
	}
	return New(cfg, deps)
}

func TestAnswerHappyPath(t *testing.T) {
	gen := &fakeGenerator{reply: "generated answer"}
	o := newTestOrchestrator(testConfig(), Deps{
		Embedder: &fakeEmbedder{},
		Store: &fakeStore{results: []schema.SearchResult{
			result("1", "doc-a", "relevant passage about widgets", 0.9),
		}},
		Generator: gen,
	})

	ans, err := o.Answer(context.Background(), Request{Query: "what is a widget"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.IsDegraded() {
		t.Fatalf("unexpected degraded answer: %s", ans.Degraded)
	}
	if ans.Text != "generated answer" {
		t.Fatalf("text = %q", ans.Text)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].SourceID != "doc-a" {
		t.Fatalf("sources = %+v", ans.Sources)
	}
}

func TestAnswerEmbeddingFailureDegrades(t *testing.T) {
	gen := &fakeGenerator{reply: "unused"}
	o := newTestOrchestrator(testConfig(), Deps{
		Embedder:  &fakeEmbedder{fail: true},
		Store:     &fakeStore{},
		Generator: gen,
	})

	ans, err := o.Answer(context.Background(), Request{Query: "anything"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Degraded != schema.DegradedEmbedding {
		t.Fatalf("degraded = %q", ans.Degraded)
	}
	if gen.calls != 0 {
		t.Fatal("generation must not run after an embedding failure")
	}
}

func TestAnswerEmptyCorpusDegrades(t *testing.T) {
	o := newTestOrchestrator(testConfig(), Deps{
		Embedder:  &fakeEmbedder{},
		Store:     &fakeStore{},
		Generator: &fakeGenerator{reply: "unused"},
	})

	ans, err := o.Answer(context.Background(), Request{Query: "niche question"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Degraded != schema.DegradedNoContext {
		t.Fatalf("degraded = %q", ans.Degraded)
	}
	if ans.Text != msgNoContext {
		t.Fatalf("text = %q", ans.Text)
	}
}

func TestAnswerRetrievalErrorDegradesNotFails(t *testing.T) {
	o := newTestOrchestrator(testConfig(), Deps{
		Embedder:  &fakeEmbedder{},
		Store:     &fakeStore{err: errors.New("store down")},
		Generator: &fakeGenerator{reply: "unused"},
	})

	ans, err := o.Answer(context.Background(), Request{Query: "q"})
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if ans.Degraded != schema.DegradedNoContext {
		t.Fatalf("degraded = %q", ans.Degraded)
	}
}

func TestAnswerGenerationFailureKeepsCitations(t *testing.T) {
	o := newTestOrchestrator(testConfig(), Deps{
		Embedder: &fakeEmbedder{},
		Store: &fakeStore{results: []schema.SearchResult{
			result("1", "doc-a", "useful passage", 0.8),
		}},
		Generator: &fakeGenerator{err: errors.New("model down")},
	})

	ans, err := o.Answer(context.Background(), Request{Query: "q about passage"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Degraded != schema.DegradedGeneration {
		t.Fatalf("degraded = %q", ans.Degraded)
	}
	if len(ans.Sources) != 1 {
		t.Fatal("expected citations preserved on generation failure")
	}
}

func TestAnswerCacheHitSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{reply: "first answer"}
	cfg := testConfig()
	o := newTestOrchestrator(cfg, Deps{
		Embedder: &fakeEmbedder{},
		Store: &fakeStore{results: []schema.SearchResult{
			result("1", "doc-a", "stable passage", 0.9),
		}},
		Generator: gen,
	})

	req := Request{Query: "repeat question"}
	first, err := o.Answer(context.Background(), req)
	if err != nil {
		t.Fatalf("first Answer: %v", err)
	}
	if first.CacheHit {
		t.Fatal("first answer must not be a cache hit")
	}

	second, err := o.Answer(context.Background(), req)
	if err != nil {
		t.Fatalf("second Answer: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("expected cache hit on identical query and context")
	}
	if second.Text != first.Text {
		t.Fatalf("cached text %q differs from original %q", second.Text, first.Text)
	}
	if gen.calls != 1 {
		t.Fatalf("expected 1 generation, got %d", gen.calls)
	}
}

func TestAnswerRateLimitDegrades(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.WaitTimeoutSec = 1
	limiter := ratelimit.NewTokenBucket(60)
	for limiter.Consume(1) {
	}
	gen := &fakeGenerator{reply: "unused"}
	o := newTestOrchestrator(cfg, Deps{
		Embedder: &fakeEmbedder{},
		Store: &fakeStore{results: []schema.SearchResult{
			result("1", "doc-a", strings.Repeat("long passage ", 50), 0.9),
		}},
		Generator: gen,
		Limiter:   limiter,
	})

	ans, err := o.Answer(context.Background(), Request{Query: "q"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Degraded != schema.DegradedRateLimited {
		t.Fatalf("degraded = %q", ans.Degraded)
	}
	if gen.calls != 0 {
		t.Fatal("generation must not run when the budget is exhausted")
	}
}

func TestAnswerDedupsCitationsBySource(t *testing.T) {
	o := newTestOrchestrator(testConfig(), Deps{
		Embedder: &fakeEmbedder{},
		Store: &fakeStore{results: []schema.SearchResult{
			result("1", "doc-a", "widget assembly overview", 0.9),
			result("2", "doc-a", "widget assembly details", 0.7),
			result("3", "doc-b", "widget history", 0.6),
		}},
		Generator: &fakeGenerator{reply: "answer"},
	})

	ans, err := o.Answer(context.Background(), Request{Query: "widget assembly"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(ans.Sources) != 2 {
		t.Fatalf("expected 2 deduped sources, got %d", len(ans.Sources))
	}
	for _, c := range ans.Sources {
		if c.SourceID == "doc-a" && c.Score < 0.7 {
			t.Fatalf("doc-a should keep its best score, got %f", c.Score)
		}
	}
}

func TestAnswerContextBudgetKeepsPartial(t *testing.T) {
	cfg := testConfig()
	cfg.RAG.ContextTokenBudget = 6
	gen := &fakeGenerator{reply: "answer"}
	o := newTestOrchestrator(cfg, Deps{
		Embedder: &fakeEmbedder{},
		Store: &fakeStore{results: []schema.SearchResult{
			result("1", "doc-a", "four words fit here", 0.9),
			result("2", "doc-b", "these four words overflow", 0.8),
		}},
		Generator: gen,
	})

	ans, err := o.Answer(context.Background(), Request{Query: "q"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.IsDegraded() {
		t.Fatalf("unexpected degraded answer: %s", ans.Degraded)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].SourceID != "doc-a" {
		t.Fatalf("expected only the top passage kept, sources = %+v", ans.Sources)
	}
}

func TestAnswerComplexQueryEscalates(t *testing.T) {
	dec := &fakeDecomposer{result: &agents.Result{Response: "agent answer", Sources: []string{"doc-z"}}}
	gen := &fakeGenerator{reply: "unused"}
	o := newTestOrchestrator(testConfig(), Deps{
		Embedder:   &fakeEmbedder{},
		Store:      &fakeStore{},
		Generator:  gen,
		Decomposer: dec,
	})

	ans, err := o.Answer(context.Background(), Request{Query: "compare widget designs and contrast their costs"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if dec.calls != 1 {
		t.Fatalf("expected 1 escalation, got %d", dec.calls)
	}
	if ans.Text != "agent answer" {
		t.Fatalf("text = %q", ans.Text)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].SourceID != "doc-z" {
		t.Fatalf("sources = %+v", ans.Sources)
	}
}

func TestAnswerEscalationFailureFallsBack(t *testing.T) {
	dec := &fakeDecomposer{err: errors.New("agents down")}
	o := newTestOrchestrator(testConfig(), Deps{
		Embedder: &fakeEmbedder{},
		Store: &fakeStore{results: []schema.SearchResult{
			result("1", "doc-a", "comparison of widget designs", 0.9),
		}},
		Generator:  &fakeGenerator{reply: "pipeline answer"},
		Decomposer: dec,
	})

	ans, err := o.Answer(context.Background(), Request{Query: "compare widget designs and contrast their costs"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if dec.calls != 1 {
		t.Fatal("expected escalation attempt")
	}
	if ans.Text != "pipeline answer" {
		t.Fatalf("expected fallback to the retrieval pipeline, got %q", ans.Text)
	}
}

func TestAnswerStreamDeliversDeltas(t *testing.T) {
	o := newTestOrchestrator(testConfig(), Deps{
		Embedder: &fakeEmbedder{},
		Store: &fakeStore{results: []schema.SearchResult{
			result("1", "doc-a", "passage", 0.9),
		}},
		Generator: &fakeGenerator{reply: "streamed answer"},
	})

	var got strings.Builder
	ans, err := o.Answer(context.Background(), Request{
		Query:  "q",
		Stream: func(delta string) { got.WriteString(delta) },
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got.String() != ans.Text {
		t.Fatalf("streamed %q, answer %q", got.String(), ans.Text)
	}
}

func TestAnswerCancelledContext(t *testing.T) {
	o := newTestOrchestrator(testConfig(), Deps{
		Embedder:  &fakeEmbedder{},
		Store:     &fakeStore{},
		Generator: &fakeGenerator{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Answer(ctx, Request{Query: "q"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
