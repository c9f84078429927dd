package orchestrator

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docsage/ragpipe/agents"
	"github.com/docsage/ragpipe/cache"
	"github.com/docsage/ragpipe/config"
	"github.com/docsage/ragpipe/docstore"
	"github.com/docsage/ragpipe/embedding"
	"github.com/docsage/ragpipe/llm"
	"github.com/docsage/ragpipe/metrics"
	"github.com/docsage/ragpipe/post"
	"github.com/docsage/ragpipe/pre"
	"github.com/docsage/ragpipe/ratelimit"
	"github.com/docsage/ragpipe/schema"
	"github.com/docsage/ragpipe/vectordb"
)

// User-facing texts for the degraded exits. Kept fixed so callers can show
// them directly.
const (
	msgNoContext      = "I couldn't find any relevant information for your question in the knowledge base. Try rephrasing, or ask about a different topic."
	msgEmbedFail      = "I'm having trouble processing your question right now. Please try again in a moment."
	msgRateLimited    = "The system is handling a lot of requests right now. Please try again shortly."
	msgGenerationFail = "I found relevant material for your question but couldn't generate an answer right now. Please try again in a moment."
)

// Request is one question through the pipeline.
type Request struct {
	Query   string
	History []schema.Exchange

	// OrgID scopes retrieval to the organization's namespace and takes
	// precedence over Namespace.
	OrgID     string
	Namespace string

	// Category filters retrieval when set.
	Category string

	TopK     int
	Language string

	// Stream receives answer deltas as they are generated. The full text is
	// still returned on the Answer.
	Stream func(delta string)
}

// Orchestrator runs the retrieval-augmented answer pipeline.
type Orchestrator struct {
	embedder   embedding.Provider
	store      vectordb.Provider
	reranker   post.Reranker
	generator  llm.Provider
	decomposer agents.Decomposer
	docs       docstore.Store
	limiter    *ratelimit.TokenBucket
	responses  *cache.ResponseCache
	history    *pre.HistoryManager
	counter    pre.TokenCounter
	cfg        *config.RAGConfig
	waitWindow time.Duration
	logger     *zap.Logger
}

// Deps carries the orchestrator's collaborators. Decomposer and Docs are
// optional; everything else is required.
type Deps struct {
	Embedder   embedding.Provider
	Store      vectordb.Provider
	Reranker   post.Reranker
	Generator  llm.Provider
	Decomposer agents.Decomposer
	Docs       docstore.Store
	Limiter    *ratelimit.TokenBucket
	Responses  *cache.ResponseCache
	Counter    pre.TokenCounter
	Logger     *zap.Logger
}

func New(cfg *config.Config, deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	waitWindow := time.Duration(cfg.RateLimit.WaitTimeoutSec) * time.Second
	if waitWindow <= 0 {
		waitWindow = time.Duration(config.DefaultWaitTimeoutSec) * time.Second
	}
	return &Orchestrator{
		embedder:   deps.Embedder,
		store:      deps.Store,
		reranker:   deps.Reranker,
		generator:  deps.Generator,
		decomposer: deps.Decomposer,
		docs:       deps.Docs,
		limiter:    deps.Limiter,
		responses:  deps.Responses,
		history:    pre.NewHistoryManager(deps.Counter, cfg.RAG.HistoryTokenBudget),
		counter:    deps.Counter,
		cfg:        &cfg.RAG,
		waitWindow: waitWindow,
		logger:     logger,
	}
}

// Answer runs the full pipeline for one request. Infrastructure failures
// produce a degraded Answer, not an error; the error return is reserved for
// invalid input and context cancellation.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (*schema.Answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	classification := pre.Classify(req.Query, len(req.History) > 0)

	if classification.IsComplex && o.decomposer != nil {
		if ans := o.tryEscalate(ctx, req); ans != nil {
			return ans, nil
		}
	}

	history := o.history.Truncate(req.History)

	vector, ok := o.embedder.EmbedOne(ctx, req.Query)
	if !ok {
		return o.degraded(schema.DegradedEmbedding, msgEmbedFail), nil
	}

	scope := vectordb.Scope{OrgID: req.OrgID, Namespace: req.Namespace}
	opts := schema.SearchOptions{
		TopK:      classification.RetrievalDepth(req.TopK),
		Threshold: o.cfg.Threshold,
	}
	if req.Category != "" {
		opts.Filter = map[string]string{"category": req.Category}
	}
	results, err := o.store.Query(ctx, vector, scope, opts)
	if err != nil {
		o.logger.Warn("retrieval failed", zap.Error(err))
	}
	if len(results) == 0 {
		return o.degraded(schema.DegradedNoContext, msgNoContext), nil
	}

	ranked := o.reranker.Rerank(ctx, req.Query, results, history, opts.TopK)
	if len(ranked) == 0 {
		return o.degraded(schema.DegradedNoContext, msgNoContext), nil
	}

	passages, kept := o.assembleContext(ranked)
	citations := buildCitations(kept)
	o.hydrateCitations(ctx, citations)

	contextText := joinPassages(passages)
	fingerprint := cache.Fingerprint(contextText)
	if cached, hit := o.responses.Get(req.Query, fingerprint); hit {
		metrics.IncCache("response", "hit")
		if req.Stream != nil {
			req.Stream(cached)
		}
		return &schema.Answer{Text: cached, Sources: citations, CacheHit: true}, nil
	}
	metrics.IncCache("response", "miss")

	langInstruction := o.languageInstruction(req)
	prompt := llm.BuildPrompt(req.Query, passages, history, langInstruction)
	promptTokens := o.counter.Count(contextText) +
		o.counter.Count(schema.RenderHistory(history)) +
		o.counter.Count(req.Query) +
		o.cfg.TemplateOverheadTokens
	metrics.ObservePromptTokens(promptTokens)

	waitStart := time.Now()
	granted := o.limiter.WaitFor(ctx, promptTokens, o.waitWindow)
	metrics.ObserveRateLimitWait(waitStart)
	if !granted {
		return o.degraded(schema.DegradedRateLimited, msgRateLimited), nil
	}

	text, err := o.generate(ctx, prompt, req.Stream)
	if err != nil {
		o.logger.Warn("generation failed", zap.Error(err))
		ans := o.degraded(schema.DegradedGeneration, msgGenerationFail)
		ans.Sources = citations
		return ans, nil
	}

	o.responses.Set(req.Query, fingerprint, text)
	return &schema.Answer{Text: text, Sources: citations}, nil
}

// tryEscalate hands a complex question to the agent service. Escalation is
// best effort: any failure falls back to the retrieval pipeline silently.
func (o *Orchestrator) tryEscalate(ctx context.Context, req Request) *schema.Answer {
	prefs := map[string]string{}
	if req.Language != "" {
		prefs["language"] = req.Language
	}
	params := map[string]any{}
	if req.OrgID != "" {
		params["org_id"] = req.OrgID
	}
	result, err := o.decomposer.Orchestrate(ctx, req.Query, prefs, params)
	if err != nil {
		metrics.IncEscalation("fallback")
		o.logger.Warn("agent escalation failed, using retrieval pipeline", zap.Error(err))
		return nil
	}
	metrics.IncEscalation("success")
	citations := make([]schema.Citation, 0, len(result.Sources))
	for _, src := range result.Sources {
		citations = append(citations, schema.Citation{SourceID: src})
	}
	if req.Stream != nil {
		req.Stream(result.Response)
	}
	return &schema.Answer{Text: result.Response, Sources: citations}
}

// assembleContext walks ranked results in relevance order, collapsing each
// source document to its best chunk, and keeps passages up to the context
// token budget. The top result is always kept so the model sees at least one
// passage.
func (o *Orchestrator) assembleContext(ranked []schema.SearchResult) ([]string, []schema.SearchResult) {
	budget := o.cfg.ContextTokenBudget
	if budget <= 0 {
		budget = config.DefaultContextTokenBudget
	}

	seen := make(map[string]struct{}, len(ranked))
	var passages []string
	var kept []schema.SearchResult
	used := 0
	for _, res := range ranked {
		// Results arrive best-first, so the first chunk seen for a source is
		// its highest scored one.
		if _, dup := seen[res.Document.SourceID]; dup {
			continue
		}
		cost := o.counter.Count(res.Document.Content)
		if len(passages) > 0 && used+cost > budget {
			break
		}
		seen[res.Document.SourceID] = struct{}{}
		used += cost
		passages = append(passages, res.Document.Content)
		kept = append(kept, res)
	}
	return passages, kept
}

// buildCitations dedups kept results by source, keeping each source's best
// score, in relevance order.
func buildCitations(kept []schema.SearchResult) []schema.Citation {
	index := make(map[string]int, len(kept))
	var citations []schema.Citation
	for _, res := range kept {
		if i, ok := index[res.Document.SourceID]; ok {
			if res.Score > citations[i].Score {
				citations[i].Score = res.Score
			}
			continue
		}
		index[res.Document.SourceID] = len(citations)
		citations = append(citations, schema.Citation{
			SourceID: res.Document.SourceID,
			Title:    res.Document.Title,
			Category: res.Document.Category,
			Score:    res.Score,
		})
	}
	return citations
}

func (o *Orchestrator) hydrateCitations(ctx context.Context, citations []schema.Citation) {
	if o.docs == nil {
		return
	}
	for i := range citations {
		if citations[i].Title != "" {
			continue
		}
		doc, err := o.docs.Get(ctx, citations[i].SourceID)
		if err != nil {
			continue
		}
		citations[i].Title = doc.Title
		if citations[i].Category == "" {
			citations[i].Category = doc.Category
		}
	}
}

func (o *Orchestrator) languageInstruction(req Request) string {
	if req.Language != "" {
		return "Answer in " + req.Language + "."
	}
	return llm.DetectLanguage(req.Query)
}

func (o *Orchestrator) generate(ctx context.Context, prompt string, stream func(string)) (string, error) {
	if stream != nil {
		return o.generator.GenerateCompletionStream(ctx, prompt, stream)
	}
	return o.generator.GenerateCompletion(ctx, prompt)
}

func (o *Orchestrator) degraded(reason schema.DegradedReason, text string) *schema.Answer {
	metrics.IncDegraded(string(reason))
	return &schema.Answer{Text: text, Degraded: reason}
}

func joinPassages(passages []string) string {
	return strings.Join(passages, "\n")
}
