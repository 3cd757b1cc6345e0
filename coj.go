// Package coj is a hybrid fact retrieval engine for Thai court-case text.
// Ingested texts are mined for parties, amounts, dates and statute
// references, stored as a knowledge graph in SQLite, and searched by
// fusing TF-IDF with optional embedding similarity. Answers and
// court-document suggestions are assembled from the ranked evidence.
package coj

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/StartGackt/coj-backend/extract"
	"github.com/StartGackt/coj-backend/graph"
	"github.com/StartGackt/coj-backend/llm"
	"github.com/StartGackt/coj-backend/parser"
	"github.com/StartGackt/coj-backend/retrieval"
	"github.com/StartGackt/coj-backend/semantic"
	"github.com/StartGackt/coj-backend/store"
	"github.com/StartGackt/coj-backend/synth"
)

// DefaultK is the number of documents a search returns when WithK is not
// given.
const DefaultK = 5

// recentCases is how many ingested case ids LatestCaseID remembers.
const recentCases = 10

// Engine is the main entry point of the retrieval engine.
type Engine interface {
	// Ingest extracts facts from texts, merges them into the graph under one
	// case and indexes each text as document chunks.
	Ingest(ctx context.Context, texts []string, opts ...IngestOption) (*IngestResult, error)

	// IngestFile parses a txt, md, pdf, xlsx or html file and ingests its
	// page texts.
	IngestFile(ctx context.Context, path string, opts ...IngestOption) (*IngestResult, error)

	// Search ranks document chunks for query and attaches case facts.
	Search(ctx context.Context, query string, opts ...QueryOption) (*SearchResult, error)

	// Answer searches and summarizes the evidence as Thai text.
	Answer(ctx context.Context, query string, opts ...QueryOption) (*AnswerResult, error)

	// SuggestDocuments ranks court-document templates for query.
	SuggestDocuments(ctx context.Context, query string, opts ...QueryOption) (*SuggestResult, error)

	// SearchCatalog ranks court-document templates by fuzzy match against
	// the catalog alone, without touching the store.
	SearchCatalog(ctx context.Context, query string, opts ...QueryOption) (*SuggestResult, error)

	// Facts returns up to limit facts of caseID.
	Facts(ctx context.Context, caseID string, limit int) ([]store.Fact, error)

	// Chunks returns the document chunks of caseID in insertion order.
	Chunks(ctx context.Context, caseID string) ([]store.DocChunk, error)

	// LatestCaseID returns the most recently ingested case id, or "".
	LatestCaseID() string

	// Stats returns row counts of the store.
	Stats(ctx context.Context) (*store.Stats, error)

	// SemanticAvailable reports whether an embedding provider is configured.
	SemanticAvailable() bool

	// Close cleanly shuts down the engine.
	Close() error
}

// IngestResult reports what one ingest call wrote.
type IngestResult struct {
	CaseID           string   `json:"case_id"`
	EntitiesWritten  int      `json:"entities_written"`
	RelationsWritten int      `json:"relations_written"`
	ChunksIndexed    int      `json:"chunks"`
	Misses           []string `json:"misses,omitempty"`
}

// SearchResult is the outcome of Search.
type SearchResult struct {
	Query   string                 `json:"query"`
	CaseID  string                 `json:"case_id,omitempty"`
	TopDocs []retrieval.ScoredDoc  `json:"top_docs"`
	Facts   []store.Fact           `json:"facts"`
	Mode    string                 `json:"mode"`
	Trace   *retrieval.SearchTrace `json:"trace,omitempty"`
}

// AnswerResult is the outcome of Answer.
type AnswerResult struct {
	Query   string                `json:"query"`
	CaseID  string                `json:"case_id,omitempty"`
	Text    string                `json:"answer"`
	TopDocs []retrieval.ScoredDoc `json:"doc_hits"`
	Facts   []store.Fact          `json:"facts"`
	Mode    string                `json:"mode"`
}

// SuggestResult is the outcome of SuggestDocuments.
type SuggestResult struct {
	Query   string             `json:"query"`
	CaseID  string             `json:"case_id,omitempty"`
	Results []synth.Suggestion `json:"results"`
	Total   int                `json:"total"`
	Source  string             `json:"source"`
}

// Suggestion sources reported in SuggestResult.Source.
const (
	SourceHybrid = "hybrid_search"
	SourceSimple = "simple_search"
)

// IngestOption configures ingestion behavior.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	caseID string
}

// WithCaseID files the ingested texts under id. Without it, or with a
// placeholder such as "auto", the case id is detected from the texts.
func WithCaseID(id string) IngestOption {
	return func(o *ingestOptions) { o.caseID = id }
}

// QueryOption configures query behavior.
type QueryOption func(*queryOptions)

type queryOptions struct {
	k      int
	caseID string
}

// WithK sets the number of documents to return. k <= 0 yields an empty
// result.
func WithK(k int) QueryOption {
	return func(o *queryOptions) { o.k = k }
}

// InCase restricts a query to one case.
func InCase(caseID string) QueryOption {
	return func(o *queryOptions) { o.caseID = strings.TrimSpace(caseID) }
}

// Option configures New.
type Option func(*engineOptions)

type engineOptions struct {
	embedder llm.Embedder
}

// WithEmbedder uses e instead of the provider named in Config.Embedding.
func WithEmbedder(e llm.Embedder) Option {
	return func(o *engineOptions) { o.embedder = e }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg     Config
	store   *store.Store
	coord   *graph.Coordinator
	ranker  *retrieval.Ranker
	scorer  *semantic.Scorer
	catalog synth.Catalog
	parsers *parser.Registry
	redis   *redis.Client

	mu     sync.Mutex
	recent []string
}

// New creates an engine with the given configuration.
func New(cfg Config, opts ...Option) (Engine, error) {
	var eo engineOptions
	for _, o := range opts {
		o(&eo)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Resolve database path from config (DBPath > DBName+StorageDir > default)
	dbPath := cfg.resolveDBPath()

	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening store: %v", ErrStoreUnavailable, err)
	}

	e := &engine{
		cfg:     cfg,
		store:   s,
		coord:   graph.NewCoordinator(s),
		catalog: synth.DefaultCatalog,
		parsers: parser.NewRegistry(),
	}

	if cfg.CatalogPath != "" {
		c, err := synth.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		e.catalog = c
	}

	embedder := eo.embedder
	if embedder == nil {
		embedder, err = newEmbedder(cfg.Embedding)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	var cache semantic.Cache
	if embedder != nil {
		cache, err = e.newCache()
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	e.scorer = semantic.New(embedder, cache, time.Duration(cfg.EmbedTimeout))
	e.ranker = retrieval.New(s, e.scorer, retrieval.Config{
		MaxVocab:  cfg.MaxVocab,
		FactLimit: cfg.FactLimit,
	})

	// Seed the recent-case ring so LatestCaseID survives restarts.
	if ids, err := s.RecentCaseIDs(context.Background(), recentCases); err == nil {
		e.recent = append(e.recent, ids...)
	}

	slog.Info("coj: engine ready",
		"db", dbPath,
		"semantic", e.scorer.Available(),
		"cache", cfg.Cache.Backend,
		"catalog", len(e.catalog))
	return e, nil
}

// newEmbedder returns nil, without error, when semantic scoring is not
// configured. Hosted providers without a key are a valid lexical-only
// setup.
func newEmbedder(cfg llm.Config) (llm.Embedder, error) {
	if cfg.Provider == "" || cfg.Provider == "none" {
		slog.Info("coj: semantic scoring disabled", "reason", "no embedding provider")
		return nil, nil
	}
	emb, err := llm.NewEmbedder(cfg)
	if errors.Is(err, llm.ErrMissingAPIKey) {
		slog.Info("coj: semantic scoring disabled", "reason", "no api key", "provider", cfg.Provider)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return emb, nil
}

func (e *engine) newCache() (semantic.Cache, error) {
	switch e.cfg.Cache.Backend {
	case "none":
		return nil, nil
	case "redis":
		c := e.cfg.Cache
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := semantic.DialRedis(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err != nil {
			slog.Warn("coj: redis cache unavailable, using sqlite cache", "addr", c.RedisAddr, "error", err)
			return semantic.NewSQLiteCache(e.store), nil
		}
		e.redis = client
		return semantic.NewRedisCache(client, semantic.WithTTL(time.Duration(c.TTL))), nil
	default: // "sqlite" or empty
		return semantic.NewSQLiteCache(e.store), nil
	}
}

// storeErr maps a store failure onto the engine's error taxonomy.
func storeErr(op string, err error) error {
	if errors.Is(err, store.ErrClosed) {
		return fmt.Errorf("%s: %w", op, ErrStoreClosed)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

// Ingest runs extraction over every text and writes the result.
func (e *engine) Ingest(ctx context.Context, texts []string, opts ...IngestOption) (*IngestResult, error) {
	options := &ingestOptions{}
	for _, o := range opts {
		o(options)
	}

	var nonEmpty []string
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, ErrNoTexts
	}

	start := time.Now()
	caseID := extract.ResolveCaseID(options.caseID, nonEmpty)

	bundles := make([]*extract.Bundle, 0, len(nonEmpty))
	var chunks []extract.Chunk
	misses := make(map[string]int)
	for _, t := range nonEmpty {
		b, err := extract.ExtractWithLimit(t, e.cfg.MaxChunkRunes)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
		chunks = append(chunks, b.Chunks...)
		for _, m := range b.Misses {
			misses[m]++
		}
	}
	chunks = extract.AssignChunkIDs(caseID, chunks)

	sum, err := e.coord.UpsertGraph(ctx, caseID, bundles...)
	if err != nil {
		return nil, storeErr("upserting graph", err)
	}
	n, err := e.coord.IndexDocChunks(ctx, chunks)
	if err != nil {
		return nil, storeErr("indexing chunks", err)
	}

	gen := e.ranker.Invalidate()
	e.rememberCase(caseID)

	// A rule class counts as missed only if no text matched it.
	var missed []string
	for _, name := range extract.RuleNames() {
		if misses[name] == len(bundles) {
			missed = append(missed, name)
		}
	}

	slog.Info("ingest: case indexed",
		"case_id", caseID,
		"texts", len(nonEmpty),
		"entities", sum.EntitiesWritten,
		"relations", sum.RelationsWritten,
		"chunks", n,
		"generation", gen,
		"elapsed", time.Since(start).Round(time.Millisecond))

	return &IngestResult{
		CaseID:           caseID,
		EntitiesWritten:  sum.EntitiesWritten,
		RelationsWritten: sum.RelationsWritten,
		ChunksIndexed:    n,
		Misses:           missed,
	}, nil
}

// IngestFile parses path and ingests its page texts.
func (e *engine) IngestFile(ctx context.Context, path string, opts ...IngestOption) (*IngestResult, error) {
	format := parser.FormatOf(path)
	if _, err := e.parsers.Get(format); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	res, err := e.parsers.ParseFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	return e.Ingest(ctx, res.Texts(), opts...)
}

func (e *engine) queryOptions(opts []QueryOption) *queryOptions {
	o := &queryOptions{k: DefaultK}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// Search ranks chunks for query.
func (e *engine) Search(ctx context.Context, query string, opts ...QueryOption) (*SearchResult, error) {
	o := e.queryOptions(opts)
	return e.search(ctx, "search", query, o)
}

func (e *engine) search(ctx context.Context, op, query string, o *queryOptions) (*SearchResult, error) {
	res, err := e.ranker.Search(ctx, query, retrieval.SearchOptions{K: o.k, CaseID: o.caseID})
	if err != nil {
		return nil, storeErr(op, err)
	}

	out := &SearchResult{
		Query:   query,
		CaseID:  o.caseID,
		TopDocs: res.TopDocs,
		Facts:   res.Facts,
		Mode:    res.Trace.Mode,
		Trace:   res.Trace,
	}
	if strings.TrimSpace(query) != "" && o.k > 0 {
		e.logQuery(ctx, op, out, o.k)
	}
	return out, nil
}

func (e *engine) logQuery(ctx context.Context, op string, r *SearchResult, k int) {
	err := e.store.LogQuery(ctx, store.QueryLog{
		Query:     r.Query,
		CaseID:    r.CaseID,
		Operation: op,
		Mode:      r.Mode,
		TopK:      k,
		Hits:      len(r.TopDocs),
		ElapsedMs: r.Trace.ElapsedMs,
	})
	if err != nil {
		slog.Warn("coj: query log write failed", "error", err)
	}
}

// Answer searches and synthesizes a text answer.
func (e *engine) Answer(ctx context.Context, query string, opts ...QueryOption) (*AnswerResult, error) {
	o := e.queryOptions(opts)
	res, err := e.search(ctx, "answer", query, o)
	if err != nil {
		return nil, err
	}
	return &AnswerResult{
		Query:   query,
		CaseID:  o.caseID,
		Text:    synth.Answer(query, res.TopDocs, res.Facts, o.caseID),
		TopDocs: res.TopDocs,
		Facts:   res.Facts,
		Mode:    res.Mode,
	}, nil
}

// SuggestDocuments suggests court-document templates. When the store
// cannot be searched the catalog alone is consulted.
func (e *engine) SuggestDocuments(ctx context.Context, query string, opts ...QueryOption) (*SuggestResult, error) {
	o := e.queryOptions(opts)
	out := &SuggestResult{Query: query, CaseID: o.caseID, Results: []synth.Suggestion{}, Source: SourceHybrid}
	if strings.TrimSpace(query) == "" {
		return out, nil
	}

	res, err := e.search(ctx, "suggest", query, o)
	switch {
	case err == nil:
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrStoreClosed):
		slog.Warn("coj: suggestion search failed, using simple catalog search", "error", err)
		return e.searchCatalog(query, o), nil
	default:
		return nil, err
	}

	results, total := e.catalog.Suggest(query, res.TopDocs, res.Facts)
	if results != nil {
		out.Results = results
	}
	out.Total = total
	return out, nil
}

// SearchCatalog fuzzy-matches query against the catalog with the lower
// simple-search threshold. Unlike SuggestDocuments it may return no
// results.
func (e *engine) SearchCatalog(_ context.Context, query string, opts ...QueryOption) (*SuggestResult, error) {
	return e.searchCatalog(query, e.queryOptions(opts)), nil
}

func (e *engine) searchCatalog(query string, o *queryOptions) *SuggestResult {
	out := &SuggestResult{Query: query, CaseID: o.caseID, Results: []synth.Suggestion{}, Source: SourceSimple}
	if strings.TrimSpace(query) == "" {
		return out
	}
	results, total := e.catalog.SuggestFuzzy(query, o.k, synth.SimpleThreshold)
	if o.k > 0 && results != nil {
		out.Results = results
	}
	out.Total = total
	return out
}

// Facts returns the facts of caseID.
func (e *engine) Facts(ctx context.Context, caseID string, limit int) ([]store.Fact, error) {
	if limit <= 0 {
		limit = e.cfg.FactLimit
	}
	facts, err := e.store.QueryFacts(ctx, caseID, limit)
	if err != nil {
		return nil, storeErr("querying facts", err)
	}
	if facts == nil {
		facts = []store.Fact{}
	}
	return facts, nil
}

// Chunks returns the chunks of caseID.
func (e *engine) Chunks(ctx context.Context, caseID string) ([]store.DocChunk, error) {
	chunks, err := e.store.QueryChunks(ctx, caseID)
	if err != nil {
		return nil, storeErr("querying chunks", err)
	}
	if chunks == nil {
		chunks = []store.DocChunk{}
	}
	return chunks, nil
}

func (e *engine) rememberCase(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recent = append(e.recent, id)
	if len(e.recent) > recentCases {
		e.recent = e.recent[len(e.recent)-recentCases:]
	}
}

// LatestCaseID returns the last ingested case id.
func (e *engine) LatestCaseID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.recent) == 0 {
		return ""
	}
	return e.recent[len(e.recent)-1]
}

// Stats returns row counts of the store.
func (e *engine) Stats(ctx context.Context) (*store.Stats, error) {
	st, err := e.store.Stats(ctx)
	if err != nil {
		return nil, storeErr("reading stats", err)
	}
	return st, nil
}

func (e *engine) SemanticAvailable() bool {
	return e.scorer.Available()
}

// Close releases the store and the cache connection.
func (e *engine) Close() error {
	var errs []error
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
