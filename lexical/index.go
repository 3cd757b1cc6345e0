package lexical

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Index publishes immutable Models. Readers take a Snapshot without
// locking; writers build a complete model and swap it in.
type Index struct {
	maxVocab int
	current  atomic.Pointer[Model]
	mu       sync.Mutex // serializes rebuilds
}

// NewIndex creates an empty index. maxVocab <= 0 uses DefaultMaxVocab.
func NewIndex(maxVocab int) *Index {
	if maxVocab <= 0 {
		maxVocab = DefaultMaxVocab
	}
	return &Index{maxVocab: maxVocab}
}

// Snapshot returns the published model, or nil before the first build.
func (ix *Index) Snapshot() *Model {
	return ix.current.Load()
}

// Stale reports whether the published model was built before corpus
// generation gen.
func (ix *Index) Stale(gen int64) bool {
	m := ix.current.Load()
	return m == nil || m.Generation < gen
}

// Rebuild builds a model over docs for generation gen and publishes it.
func (ix *Index) Rebuild(gen int64, docs []Doc) *Model {
	start := time.Now()
	m := Build(docs, ix.maxVocab)
	m.Generation = gen
	ix.current.Store(m)
	slog.Debug("lexical: index rebuilt",
		"generation", gen,
		"docs", m.Len(),
		"vocab", m.VocabSize(),
		"elapsed", time.Since(start).Round(time.Microsecond))
	return m
}

// Ensure returns a model at least as new as gen, rebuilding from load when
// the published one is stale. Concurrent callers share one rebuild. The
// bool reports whether this call rebuilt.
func (ix *Index) Ensure(gen int64, load func() ([]Doc, error)) (*Model, bool, error) {
	if m := ix.current.Load(); m != nil && m.Generation >= gen {
		return m, false, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if m := ix.current.Load(); m != nil && m.Generation >= gen {
		return m, false, nil
	}
	docs, err := load()
	if err != nil {
		return nil, false, err
	}
	return ix.Rebuild(gen, docs), true, nil
}
