// Package semantic scores texts against a query by embedding cosine
// similarity. The scorer is optional: when no embedder is configured, or
// the provider fails, callers fall back to lexical scoring.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/StartGackt/coj-backend/llm"
)

// ErrUnavailable is returned by Score when no embedder is configured or the
// provider failed or timed out.
var ErrUnavailable = errors.New("semantic: embedding unavailable")

// DefaultTimeout bounds one Score call.
const DefaultTimeout = 10 * time.Second

// batchSize caps the number of texts sent in one provider call.
const batchSize = 64

// Scorer embeds a query and candidate texts and returns their cosine
// similarity.
type Scorer struct {
	embedder llm.Embedder
	cache    Cache
	timeout  time.Duration
}

// New creates a scorer. A nil embedder yields a scorer that is never
// Available. A nil cache disables caching; timeout <= 0 uses
// DefaultTimeout.
func New(embedder llm.Embedder, cache Cache, timeout time.Duration) *Scorer {
	if cache == nil {
		cache = NopCache{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scorer{embedder: embedder, cache: cache, timeout: timeout}
}

// Available reports whether an embedder is configured.
func (s *Scorer) Available() bool {
	return s != nil && s.embedder != nil
}

// Score returns the cosine similarity, clamped to [0, 1], between query and
// each of texts. Any failure is reported as ErrUnavailable.
func (s *Scorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	if len(texts) == 0 {
		return []float64{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vecs, err := s.embed(ctx, append([]string{query}, texts...))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	q := vecs[0]
	scores := make([]float64, len(texts))
	for i, v := range vecs[1:] {
		if len(v) != len(q) {
			return nil, fmt.Errorf("%w: dimension mismatch %d vs %d", ErrUnavailable, len(v), len(q))
		}
		scores[i] = Cosine(q, v)
	}
	return scores, nil
}

// embed returns one vector per text, reading through the cache.
func (s *Scorer) embed(ctx context.Context, texts []string) ([][]float32, error) {
	model := s.embedder.Model()

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = TextKey(t)
	}

	cached, err := s.cache.Get(ctx, model, uniqueKeys(keys))
	if err != nil {
		slog.Debug("semantic: cache read failed", "error", err)
		cached = nil
	}
	if cached == nil {
		cached = map[string][]float32{}
	}

	// Embed each distinct missing text once.
	var missing []string
	var missingKeys []string
	queued := make(map[string]bool)
	for i, k := range keys {
		if _, ok := cached[k]; ok || queued[k] {
			continue
		}
		queued[k] = true
		missing = append(missing, texts[i])
		missingKeys = append(missingKeys, k)
	}

	if len(missing) > 0 {
		fresh := make(map[string][]float32, len(missing))
		for start := 0; start < len(missing); start += batchSize {
			end := min(start+batchSize, len(missing))
			vecs, err := s.embedder.Embed(ctx, missing[start:end])
			if err != nil {
				return nil, err
			}
			if len(vecs) != end-start {
				return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), end-start)
			}
			for j, v := range vecs {
				fresh[missingKeys[start+j]] = v
				cached[missingKeys[start+j]] = v
			}
		}
		if err := s.cache.Put(ctx, model, fresh); err != nil {
			slog.Debug("semantic: cache write failed", "error", err)
		}
		slog.Debug("semantic: embedded texts", "model", model, "embedded", len(missing), "cached", len(keys)-len(missing))
	}

	out := make([][]float32, len(texts))
	for i, k := range keys {
		out[i] = cached[k]
	}
	return out, nil
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// Cosine returns the cosine similarity of a and b clamped to [0, 1].
// Mismatched or zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, s))
}
