package eval

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/StartGackt/coj-backend/retrieval"
	"github.com/StartGackt/coj-backend/store"
)

// RetrievalKValues are the k values at which P@k and R@k are computed.
var RetrievalKValues = []int{1, 3, 5}

// normalizeText folds text so that substring matching works across
// copy-pasted Thai: NFC, Unicode whitespace to ASCII space, zero-width
// characters stripped, lower-cased.
func normalizeText(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case r == '\u200B' || r == '\u200C' || r == '\u200D' || r == '\uFEFF':
			// strip zero-width characters
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// computeAccuracy is the fraction of expected facts found in the answer.
// A test without expected facts scores 1.
func computeAccuracy(answer string, expectedFacts []string) float64 {
	if len(expectedFacts) == 0 {
		return 1
	}
	a := normalizeText(answer)
	found := 0
	for _, f := range expectedFacts {
		if strings.Contains(a, normalizeText(f)) {
			found++
		}
	}
	return float64(found) / float64(len(expectedFacts))
}

// computeContextRecall is the fraction of expected facts present in the
// retrieved evidence: chunk texts plus the attached case facts.
func computeContextRecall(docs []retrieval.ScoredDoc, facts []store.Fact, expectedFacts []string) float64 {
	if len(expectedFacts) == 0 {
		return 1
	}
	var pool strings.Builder
	for _, d := range docs {
		pool.WriteString(d.Text)
		pool.WriteByte('\n')
	}
	for _, f := range facts {
		pool.WriteString(strings.Join([]string{f.Person, f.Role, f.Date, f.Amount, f.Section}, " "))
		pool.WriteByte('\n')
	}
	ctx := normalizeText(pool.String())

	found := 0
	for _, f := range expectedFacts {
		if strings.Contains(ctx, normalizeText(f)) {
			found++
		}
	}
	return float64(found) / float64(len(expectedFacts))
}

// computeCitationCoverage is the fraction of returned chunks the answer
// cites by chunk id.
func computeCitationCoverage(answer string, docs []retrieval.ScoredDoc) float64 {
	if len(docs) == 0 {
		return 0
	}
	cited := 0
	for _, d := range docs {
		if d.ChunkID != "" && strings.Contains(answer, d.ChunkID) {
			cited++
		}
	}
	return float64(cited) / float64(len(docs))
}

func topK(docs []retrieval.ScoredDoc, k int) []retrieval.ScoredDoc {
	if len(docs) > k {
		return docs[:k]
	}
	return docs
}

func expectedSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// computeRetrievalPrecisionAtK computes what fraction of the top-k
// retrieved chunks are expected chunks.
func computeRetrievalPrecisionAtK(docs []retrieval.ScoredDoc, expected []string, k int) float64 {
	top := topK(docs, k)
	if len(top) == 0 || len(expected) == 0 {
		return 0
	}
	want := expectedSet(expected)
	relevant := 0
	for _, d := range top {
		if want[d.ChunkID] {
			relevant++
		}
	}
	return float64(relevant) / float64(len(top))
}

// computeRetrievalRecallAtK computes what fraction of the expected chunks
// appear among the top-k retrieved chunks.
func computeRetrievalRecallAtK(docs []retrieval.ScoredDoc, expected []string, k int) float64 {
	if len(expected) == 0 {
		return 0
	}
	want := expectedSet(expected)
	found := 0
	for _, d := range topK(docs, k) {
		if want[d.ChunkID] {
			found++
			delete(want, d.ChunkID)
		}
	}
	return float64(found) / float64(len(expected))
}

// computeReciprocalRank is 1/rank of the first expected chunk, or 0.
func computeReciprocalRank(docs []retrieval.ScoredDoc, expected []string) float64 {
	want := expectedSet(expected)
	for i, d := range docs {
		if want[d.ChunkID] {
			return 1 / float64(i+1)
		}
	}
	return 0
}
