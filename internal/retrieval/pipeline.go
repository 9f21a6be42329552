// Package retrieval implements the embed, search, re-rank, assemble
// pipeline that turns a user query into a context string for grounded
// generation.
//
// Stages run strictly in sequence because each stage consumes the
// previous stage's output. No stage retries internally; retry policy
// belongs to the caller.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aldenhart/ragchat/internal/knowledge"
)

// Pipeline stage failures, distinguishable with errors.Is.
var (
	// ErrEmbedding indicates the query could not be embedded.
	ErrEmbedding = errors.New("query embedding failed")

	// ErrVectorStore indicates the nearest-neighbor search failed.
	ErrVectorStore = errors.New("vector search failed")

	// ErrRerank indicates the re-ranker call failed or returned a
	// malformed score list.
	ErrRerank = errors.New("re-ranking failed")
)

// queryEmbedder is the slice of knowledge.Embedder the pipeline needs.
type queryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// searcher is the slice of knowledge.Store the pipeline needs.
type searcher interface {
	Search(ctx context.Context, vector []float32, opts ...knowledge.SearchOption) ([]knowledge.Match, error)
}

// Reranker scores candidates against a query more precisely than raw
// vector similarity. Scores are returned in candidate order; higher is
// more relevant.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string) ([]float32, error)
}

// Item is one surviving piece of context with its authoritative score
// (re-ranked when re-ranking was applied, raw similarity otherwise).
type Item struct {
	Text        string
	Score       float32
	Source      string
	ContentType knowledge.ContentType
}

// Result is an ordered set of context items, descending by score.
type Result struct {
	Items []Item
}

// Empty reports whether retrieval found no candidates.
func (r *Result) Empty() bool {
	return len(r.Items) == 0
}

// Context joins the surviving texts in ranked order with a blank-line
// separator, forming the context block for the generation prompt.
func (r *Result) Context() string {
	texts := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		texts = append(texts, item.Text)
	}
	return strings.Join(texts, "\n\n")
}

// Option configures a Retrieve call.
type Option func(*retrieveConfig)

type retrieveConfig struct {
	finalK      int
	overFetch   int
	rerank      bool
	contentType knowledge.ContentType
}

// WithFinalK sets how many items survive into the Result. Default is 5.
func WithFinalK(k int) Option {
	return func(c *retrieveConfig) {
		c.finalK = k
	}
}

// WithOverFetch sets the over-fetch factor: the store is asked for
// finalK*factor candidates so the re-ranker sees a wider pool. Default
// is 2.
func WithOverFetch(factor int) Option {
	return func(c *retrieveConfig) {
		c.overFetch = factor
	}
}

// WithRerank toggles the re-ranking stage for this call, overriding the
// pipeline default.
func WithRerank(enabled bool) Option {
	return func(c *retrieveConfig) {
		c.rerank = enabled
	}
}

// WithContentType restricts retrieval to a single content type.
func WithContentType(ct knowledge.ContentType) Option {
	return func(c *retrieveConfig) {
		c.contentType = ct
	}
}

// Pipeline orchestrates embed, search, optional re-rank and context
// assembly. Safe for concurrent use.
type Pipeline struct {
	embedder queryEmbedder
	store    searcher
	reranker Reranker // nil disables re-ranking regardless of options
	defaults retrieveConfig
	logger   *slog.Logger
}

// Config holds pipeline defaults, normally sourced from the application
// configuration.
type Config struct {
	FinalK    int  // default 5
	OverFetch int  // default 2
	Rerank    bool // default re-rank policy
}

// NewPipeline creates a Pipeline. reranker may be nil when re-ranking
// is not available; Retrieve then keeps raw similarity order.
func NewPipeline(embedder queryEmbedder, store searcher, reranker Reranker, cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	defaults := retrieveConfig{
		finalK:    cfg.FinalK,
		overFetch: cfg.OverFetch,
		rerank:    cfg.Rerank,
	}
	if defaults.finalK <= 0 {
		defaults.finalK = 5
	}
	if defaults.overFetch <= 0 {
		defaults.overFetch = 2
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		reranker: reranker,
		defaults: defaults,
		logger:   logger,
	}, nil
}

// Retrieve runs the pipeline for a query.
//
// An empty candidate pool yields an empty Result, not an error; the
// caller must branch on Result.Empty and tell the user no context was
// found rather than fabricating an answer.
func (p *Pipeline) Retrieve(ctx context.Context, query string, opts ...Option) (*Result, error) {
	cfg := p.defaults
	for _, opt := range opts {
		opt(&cfg)
	}

	vector, err := p.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	searchOpts := []knowledge.SearchOption{
		knowledge.WithTopK(cfg.finalK * cfg.overFetch),
	}
	if cfg.contentType != "" {
		searchOpts = append(searchOpts, knowledge.WithContentType(cfg.contentType))
	}

	matches, err := p.store.Search(ctx, vector, searchOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVectorStore, err)
	}

	if len(matches) == 0 {
		p.logger.Debug("retrieval found no candidates", "query_length", len(query))
		return &Result{}, nil
	}

	items := make([]Item, 0, len(matches))
	for _, m := range matches {
		items = append(items, Item{
			Text:        m.Point.Content,
			Score:       m.Score,
			Source:      m.Point.Source,
			ContentType: m.Point.ContentType,
		})
	}

	if cfg.rerank && p.reranker != nil {
		items, err = p.rerankItems(ctx, query, items)
		if err != nil {
			return nil, err
		}
	}

	if len(items) > cfg.finalK {
		items = items[:cfg.finalK]
	}

	p.logger.Debug("retrieval completed",
		"candidates", len(matches),
		"kept", len(items),
		"reranked", cfg.rerank && p.reranker != nil)

	return &Result{Items: items}, nil
}

// rerankItems replaces similarity scores with re-ranker scores and
// re-sorts. The re-ranked score is authoritative.
func (p *Pipeline) rerankItems(ctx context.Context, query string, items []Item) ([]Item, error) {
	candidates := make([]string, 0, len(items))
	for _, item := range items {
		candidates = append(candidates, item.Text)
	}

	scores, err := p.reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRerank, err)
	}
	if len(scores) != len(items) {
		return nil, fmt.Errorf("%w: got %d scores for %d candidates", ErrRerank, len(scores), len(items))
	}

	for i := range items {
		items[i].Score = scores[i]
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})

	return items, nil
}
