// Package ragpipe is a retrieval-augmented query pipeline: it ingests
// documents as token-budgeted chunks, embeds and indexes them in a vector
// store, and answers questions by retrieving, reranking and assembling
// context for an LLM, with caching, rate limiting and graceful degradation
// along the way.
package ragpipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/docsage/ragpipe/agents"
	"github.com/docsage/ragpipe/cache"
	"github.com/docsage/ragpipe/common/logger"
	"github.com/docsage/ragpipe/config"
	"github.com/docsage/ragpipe/docstore"
	"github.com/docsage/ragpipe/embedding"
	"github.com/docsage/ragpipe/llm"
	"github.com/docsage/ragpipe/memory"
	"github.com/docsage/ragpipe/orchestrator"
	"github.com/docsage/ragpipe/post"
	"github.com/docsage/ragpipe/ratelimit"
	"github.com/docsage/ragpipe/schema"
	"github.com/docsage/ragpipe/textsplitter"
	"github.com/docsage/ragpipe/vectordb"
)

// AskRequest is one question through the pipeline.
type AskRequest = orchestrator.Request

// Client is the front door to the pipeline.
type Client struct {
	cfg           *config.Config
	logger        *zap.Logger
	splitter      *textsplitter.TokenSplitter
	counter       *textsplitter.Counter
	embedder      embedding.Provider
	store         vectordb.Provider
	orch          *orchestrator.Orchestrator
	docs          docstore.Store
	conversations memory.ConversationStore
}

// Option customizes a Client.
type Option func(*options)

type options struct {
	logger        *zap.Logger
	docs          docstore.Store
	decomposer    agents.Decomposer
	conversations memory.ConversationStore
	embedder      embedding.Provider
	store         vectordb.Provider
	generator     llm.Provider
	reranker      post.Reranker
}

// WithLogger overrides the logger built from config.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDocStore supplies document metadata for citation hydration.
func WithDocStore(s docstore.Store) Option {
	return func(o *options) { o.docs = s }
}

// WithDecomposer enables agent escalation for complex questions.
func WithDecomposer(d agents.Decomposer) Option {
	return func(o *options) { o.decomposer = d }
}

// WithConversationStore overrides the session history store.
func WithConversationStore(s memory.ConversationStore) Option {
	return func(o *options) { o.conversations = s }
}

// WithEmbedder replaces the embedding provider built from config.
func WithEmbedder(p embedding.Provider) Option {
	return func(o *options) { o.embedder = p }
}

// WithVectorStore replaces the vector store built from config.
func WithVectorStore(p vectordb.Provider) Option {
	return func(o *options) { o.store = p }
}

// WithGenerator replaces the completion provider built from config.
func WithGenerator(p llm.Provider) Option {
	return func(o *options) { o.generator = p }
}

// WithReranker replaces the reranker built from config.
func WithReranker(r post.Reranker) Option {
	return func(o *options) { o.reranker = r }
}

// New wires the pipeline from config. Backends that need connections are
// dialed here, so a returned Client is ready to serve.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		var err error
		log, err = logger.New(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
	}

	splitter, err := textsplitter.NewTokenSplitter(&cfg.RAG.Splitter)
	if err != nil {
		return nil, fmt.Errorf("build splitter: %w", err)
	}
	counter, err := textsplitter.NewCounter(cfg.RAG.Splitter.Encoding)
	if err != nil {
		return nil, fmt.Errorf("build token counter: %w", err)
	}

	embedder := o.embedder
	if embedder == nil {
		embedder = embedding.NewCachedProvider(
			embedding.NewOpenAIProvider(&cfg.Embedding, log),
			cfg.Embedding.CacheSize,
		)
	}

	store := o.store
	if store == nil {
		store, err = vectordb.NewProvider(ctx, &cfg.VectorDB, embedder.Dimensions(), log)
		if err != nil {
			return nil, err
		}
	}

	generator := o.generator
	if generator == nil {
		generator = llm.NewOpenAIProvider(&cfg.LLM, log)
	}

	reranker := o.reranker
	if reranker == nil {
		reranker = post.NewReranker(&cfg.Rerank, log)
	}

	var decomposer agents.Decomposer = o.decomposer
	if decomposer == nil && cfg.Agents != nil && cfg.Agents.Endpoint != "" {
		decomposer = agents.NewHTTPDecomposer(cfg.Agents, log)
	}

	conversations := o.conversations
	if conversations == nil {
		conversations, err = memory.NewStore(cfg.Memory)
		if err != nil {
			return nil, err
		}
	}

	docs := o.docs
	if docs == nil {
		docs = docstore.NewInMemory()
	}

	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	orch := orchestrator.New(cfg, orchestrator.Deps{
		Embedder:   embedder,
		Store:      store,
		Reranker:   reranker,
		Generator:  generator,
		Decomposer: decomposer,
		Docs:       docs,
		Limiter:    ratelimit.NewTokenBucket(cfg.RateLimit.TokensPerMinute),
		Responses:  cache.NewResponseCache(cfg.Cache.MaxEntries, ttl),
		Counter:    counter,
		Logger:     log,
	})

	return &Client{
		cfg:           cfg,
		logger:        log,
		splitter:      splitter,
		counter:       counter,
		embedder:      embedder,
		store:         store,
		orch:          orch,
		docs:          docs,
		conversations: conversations,
	}, nil
}

// IngestText splits, embeds and indexes a document under sourceID, returning
// how many chunks were stored. A partial embedding failure stores the chunks
// that did embed and reports the error alongside the count.
func (c *Client) IngestText(ctx context.Context, sourceID, text string, scope vectordb.Scope) (int, error) {
	if sourceID == "" {
		return 0, errors.New("source id is required")
	}
	chunks := c.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, nil
	}
	for i := range chunks {
		chunks[i].SourceID = sourceID
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, embedErr := c.embedder.Embed(ctx, texts)
	if len(vectors) == 0 {
		if embedErr != nil {
			return 0, fmt.Errorf("ingest %s: %w", sourceID, embedErr)
		}
		return 0, nil
	}

	stored, storeErr := c.store.Store(ctx, sourceID, chunks[:len(vectors)], vectors, scope)
	c.logger.Info("ingested document",
		zap.String("source_id", sourceID),
		zap.Int("chunks", len(chunks)),
		zap.Int("stored", stored))
	if storeErr != nil {
		return stored, storeErr
	}
	if embedErr != nil {
		return stored, fmt.Errorf("ingest %s: %w", sourceID, embedErr)
	}
	return stored, nil
}

// DeleteSource removes every chunk of a document from the scope's namespace.
func (c *Client) DeleteSource(ctx context.Context, sourceID string, scope vectordb.Scope) error {
	return c.store.Delete(ctx, sourceID, scope)
}

// SearchChunks runs raw vector retrieval without generation.
func (c *Client) SearchChunks(ctx context.Context, query string, scope vectordb.Scope, opts schema.SearchOptions) ([]schema.SearchResult, error) {
	vector, ok := c.embedder.EmbedOne(ctx, query)
	if !ok {
		return nil, schema.ErrEmbeddingUnavailable
	}
	return c.store.Query(ctx, vector, scope, opts)
}

// Ask answers a question through the full pipeline.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*schema.Answer, error) {
	return c.orch.Answer(ctx, req)
}

// AskStream answers a question, delivering deltas to fn as they arrive.
func (c *Client) AskStream(ctx context.Context, req AskRequest, fn func(delta string)) (*schema.Answer, error) {
	req.Stream = fn
	return c.orch.Answer(ctx, req)
}

// AskSession answers within a stored conversation: history is loaded from
// the session, and the completed exchange is appended back.
func (c *Client) AskSession(ctx context.Context, sessionID string, req AskRequest) (*schema.Answer, error) {
	history, err := c.conversations.LastN(ctx, sessionID, 0)
	if err != nil {
		c.logger.Warn("loading session history failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	req.History = history

	ans, err := c.orch.Answer(ctx, req)
	if err != nil {
		return nil, err
	}
	if !ans.IsDegraded() {
		ex := schema.Exchange{User: req.Query, Assistant: ans.Text}
		if err := c.conversations.AppendExchange(ctx, sessionID, ex); err != nil {
			c.logger.Warn("storing exchange failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return ans, nil
}

// ClearSession drops a conversation's stored history.
func (c *Client) ClearSession(ctx context.Context, sessionID string) error {
	return c.conversations.Clear(ctx, sessionID)
}

// Close releases backend connections.
func (c *Client) Close() error {
	return c.store.Close()
}
