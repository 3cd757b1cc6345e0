// Package retrieval ranks document chunks for a query by fusing lexical
// TF-IDF similarity with optional embedding similarity, and gathers the
// structured facts of the cases behind the top results.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/StartGackt/coj-backend/lexical"
	"github.com/StartGackt/coj-backend/semantic"
	"github.com/StartGackt/coj-backend/store"
)

// DefaultFactLimit caps the facts returned with a search.
const DefaultFactLimit = 20

// Modes reported in SearchTrace.Mode.
const (
	ModeHybrid  = "hybrid"
	ModeLexical = "lexical"
)

// Store is the read side of the store used by the ranker.
type Store interface {
	QueryChunks(ctx context.Context, caseID string) ([]store.DocChunk, error)
	QueryFacts(ctx context.Context, caseID string, limit int) ([]store.Fact, error)
}

// Config holds ranker configuration.
type Config struct {
	MaxVocab  int
	FactLimit int
}

// SearchOptions configures a single search.
type SearchOptions struct {
	K      int
	CaseID string
}

// ScoredDoc is a chunk with its fused score.
type ScoredDoc struct {
	CaseID  string  `json:"caseId"`
	ChunkID string  `json:"chunkId"`
	Text    string  `json:"text"`
	Page    int     `json:"page"`
	Section string  `json:"section"`
	Score   float64 `json:"score"`
}

// SearchTrace records how a search was answered.
type SearchTrace struct {
	Mode          string               `json:"mode"`
	Candidates    int                  `json:"candidates"`
	Rebuilt       bool                 `json:"rebuilt"`
	Generation    int64                `json:"generation"`
	SemanticError string               `json:"semantic_error,omitempty"`
	ElapsedMs     int64                `json:"elapsed_ms"`
	PerResult     map[string]ScoreInfo `json:"per_result,omitempty"`
}

// Result is the outcome of Search.
type Result struct {
	TopDocs []ScoredDoc  `json:"top_docs"`
	Facts   []store.Fact `json:"facts"`
	Trace   *SearchTrace `json:"trace,omitempty"`
}

// Ranker answers hybrid searches over the stored chunks.
type Ranker struct {
	store  Store
	index  *lexical.Index
	scorer *semantic.Scorer
	cfg    Config
	gen    atomic.Int64
}

// New creates a ranker. scorer may be nil for lexical-only ranking.
func New(s Store, scorer *semantic.Scorer, cfg Config) *Ranker {
	if cfg.FactLimit <= 0 {
		cfg.FactLimit = DefaultFactLimit
	}
	r := &Ranker{
		store:  s,
		index:  lexical.NewIndex(cfg.MaxVocab),
		scorer: scorer,
		cfg:    cfg,
	}
	// Generation 1 forces the first search to build the index.
	r.gen.Store(1)
	return r
}

// Invalidate marks the lexical index stale after the corpus changed and
// returns the new corpus generation.
func (r *Ranker) Invalidate() int64 {
	return r.gen.Add(1)
}

// Search ranks chunks against query. An empty query or K <= 0 yields an
// empty result. When CaseID is set only that case's chunks are candidates.
func (r *Ranker) Search(ctx context.Context, query string, opts SearchOptions) (*Result, error) {
	start := time.Now()
	trace := &SearchTrace{Mode: ModeLexical}
	res := &Result{TopDocs: []ScoredDoc{}, Facts: []store.Fact{}, Trace: trace}

	query = strings.TrimSpace(query)
	if query == "" || opts.K <= 0 {
		return res, nil
	}

	gen := r.gen.Load()
	trace.Generation = gen
	model, rebuilt, err := r.index.Ensure(gen, func() ([]lexical.Doc, error) {
		return r.loadDocs(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("building lexical index: %w", err)
	}
	trace.Rebuilt = rebuilt

	candidates, err := r.store.QueryChunks(ctx, opts.CaseID)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	trace.Candidates = len(candidates)

	lexByKey := make(map[string]float64, model.Len())
	for i, s := range model.Score(query) {
		lexByKey[model.Keys()[i]] = s
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	var semScores []float64
	semOK := false
	if r.scorer.Available() && len(candidates) > 0 {
		semScores, err = r.scorer.Score(ctx, query, texts)
		if err != nil {
			if !errors.Is(err, semantic.ErrUnavailable) {
				return nil, err
			}
			trace.SemanticError = err.Error()
			slog.Warn("retrieval: semantic scoring unavailable, using lexical only", "error", err)
		} else {
			semOK = true
			trace.Mode = ModeHybrid
		}
	}

	type scored struct {
		doc  ScoredDoc
		info ScoreInfo
	}
	all := make([]scored, len(candidates))
	for i, c := range candidates {
		lex := lexByKey[docKey(c)]
		info := ScoreInfo{Lexical: lex, Methods: []string{"lexical"}}
		var sem float64
		if semOK {
			sem = semScores[i]
			info.Semantic = sem
			info.Methods = append(info.Methods, "semantic")
		}
		all[i] = scored{
			doc: ScoredDoc{
				CaseID:  c.CaseID,
				ChunkID: c.ChunkID,
				Text:    c.Text,
				Page:    c.Page,
				Section: c.Section,
				Score:   Fuse(sem, lex, semOK),
			},
			info: info,
		}
	}

	// Candidates arrive in insertion order, so a stable sort keeps it for ties.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].doc.Score > all[j].doc.Score
	})
	if len(all) > opts.K {
		all = all[:opts.K]
	}

	trace.PerResult = make(map[string]ScoreInfo, len(all))
	for _, s := range all {
		res.TopDocs = append(res.TopDocs, s.doc)
		trace.PerResult[s.doc.CaseID+"/"+s.doc.ChunkID] = s.info
	}

	res.Facts, err = r.facts(ctx, opts.CaseID, res.TopDocs)
	if err != nil {
		return nil, fmt.Errorf("loading facts: %w", err)
	}

	trace.ElapsedMs = time.Since(start).Milliseconds()
	slog.Debug("retrieval: search complete",
		"mode", trace.Mode,
		"candidates", trace.Candidates,
		"returned", len(res.TopDocs),
		"facts", len(res.Facts),
		"rebuilt", rebuilt,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// facts returns the facts of caseID, or of each case among docs in rank
// order, capped at the configured limit.
func (r *Ranker) facts(ctx context.Context, caseID string, docs []ScoredDoc) ([]store.Fact, error) {
	limit := r.cfg.FactLimit
	if caseID != "" {
		facts, err := r.store.QueryFacts(ctx, caseID, limit)
		if err != nil {
			return nil, err
		}
		if facts == nil {
			facts = []store.Fact{}
		}
		return facts, nil
	}

	out := []store.Fact{}
	seenCase := make(map[string]bool)
	seen := make(map[store.Fact]bool)
	for _, d := range docs {
		if seenCase[d.CaseID] {
			continue
		}
		seenCase[d.CaseID] = true
		facts, err := r.store.QueryFacts(ctx, d.CaseID, limit)
		if err != nil {
			return nil, err
		}
		for _, f := range facts {
			if seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func (r *Ranker) loadDocs(ctx context.Context) ([]lexical.Doc, error) {
	chunks, err := r.store.QueryChunks(ctx, "")
	if err != nil {
		return nil, err
	}
	docs := make([]lexical.Doc, len(chunks))
	for i, c := range chunks {
		docs[i] = lexical.Doc{Key: docKey(c), Text: c.Text}
	}
	return docs, nil
}

func docKey(c store.DocChunk) string {
	return strconv.FormatInt(c.ID, 10)
}
