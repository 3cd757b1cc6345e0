package synth

import (
	"sort"
	"strings"

	"github.com/StartGackt/coj-backend/retrieval"
	"github.com/StartGackt/coj-backend/store"
)

// MaxSuggestions caps the suggestions returned by Suggest.
const MaxSuggestions = 5

// fuzzyThreshold is the minimum fuzzy score a template needs to be kept.
const fuzzyThreshold = 0.2

// SimpleThreshold is the looser cut-off of catalog-only searches.
const SimpleThreshold = 0.1

// Suggestion is a template with its relevance score.
type Suggestion struct {
	Template
	Score float64 `json:"score"`
}

// keywordRule suggests a template when any of its cues occurs in the
// evidence pool.
type keywordRule struct {
	cues       []string
	templateID int
	// score returns the suggestion score given the ranked docs.
	score func(docs []retrieval.ScoredDoc) float64
}

var keywordRules = []keywordRule{
	{
		cues:       []string{"เลิกจ้างไม่เป็นธรรม", "เลิกจ้าง", "ไม่เป็นธรรม"},
		templateID: 1,
		score:      maxDocScore,
	},
	{
		cues:       []string{"ค่าจ้างค้างจ่าย", "ค่าจ้าง", "ค้างจ่าย", "ล่วงเวลา"},
		templateID: 3,
		score:      func([]retrieval.ScoredDoc) float64 { return 0.7 },
	},
}

func maxDocScore(docs []retrieval.ScoredDoc) float64 {
	if len(docs) == 0 {
		return 0.8
	}
	best := docs[0].Score
	for _, d := range docs[1:] {
		best = max(best, d.Score)
	}
	return best
}

// Suggest ranks the catalog's templates for query given the ranked docs and
// case facts. It never returns an empty list for a non-empty catalog: when
// no keyword rule fires and no template clears the fuzzy threshold, the
// single nearest template is returned. At most MaxSuggestions are returned
// along with the total number of matches.
func (c Catalog) Suggest(query string, docs []retrieval.ScoredDoc, facts []store.Fact) ([]Suggestion, int) {
	pool := evidencePool(query, docs, facts)

	var out []Suggestion
	for _, r := range keywordRules {
		if !containsAny(pool, r.cues) {
			continue
		}
		if t, ok := c.byID(r.templateID); ok {
			out = append(out, Suggestion{Template: t, Score: r.score(docs)})
		}
	}

	if len(out) == 0 {
		out = c.fuzzy(query, fuzzyThreshold)
	}
	if len(out) == 0 {
		if s, ok := c.nearest(query); ok {
			out = []Suggestion{s}
		}
	}

	sortSuggestions(out)
	total := len(out)
	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out, total
}

// SuggestFuzzy ranks templates by fuzzy match alone, keeping those scoring
// above threshold, and returns at most k with the total.
func (c Catalog) SuggestFuzzy(query string, k int, threshold float64) ([]Suggestion, int) {
	out := c.fuzzy(query, threshold)
	sortSuggestions(out)
	total := len(out)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, total
}

func (c Catalog) fuzzy(query string, threshold float64) []Suggestion {
	var out []Suggestion
	for _, t := range c {
		if s := templateScore(query, t); s > threshold {
			out = append(out, Suggestion{Template: t, Score: s})
		}
	}
	return out
}

func (c Catalog) nearest(query string) (Suggestion, bool) {
	if len(c) == 0 {
		return Suggestion{}, false
	}
	best := Suggestion{Template: c[0], Score: templateScore(query, c[0])}
	for _, t := range c[1:] {
		if s := templateScore(query, t); s > best.Score {
			best = Suggestion{Template: t, Score: s}
		}
	}
	return best, true
}

// templateScore is max(title, 0.8*description, 0.9*best keyword).
func templateScore(query string, t Template) float64 {
	kw := 0.0
	for _, k := range t.Keywords {
		kw = max(kw, fuzzyMatch(query, k))
	}
	return max(fuzzyMatch(query, t.Title), fuzzyMatch(query, t.Description)*0.8, kw*0.9)
}

// fuzzyMatch is 1 when query is a substring of text, else the fraction of
// query words that appear as words of text. Both are compared lower-cased.
func fuzzyMatch(query, text string) float64 {
	q := strings.ToLower(query)
	t := strings.ToLower(text)
	if strings.Contains(t, q) {
		return 1
	}
	qWords := wordSet(q)
	if len(qWords) == 0 {
		return 0
	}
	tWords := wordSet(t)
	common := 0
	for w := range qWords {
		if tWords[w] {
			common++
		}
	}
	return float64(common) / float64(len(qWords))
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}

func evidencePool(query string, docs []retrieval.ScoredDoc, facts []store.Fact) string {
	parts := []string{query}
	for _, d := range docs {
		parts = append(parts, d.Text)
	}
	for _, f := range facts {
		parts = append(parts, f.Person, f.Role, f.Amount, f.Date)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func sortSuggestions(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Score > s[j].Score })
}
