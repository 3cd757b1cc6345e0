package lexical

import (
	"math"
	"sort"
)

// DefaultMaxVocab caps the vocabulary size when Build is given maxVocab <= 0.
const DefaultMaxVocab = 2048

// Doc is one document to index. Key is opaque to the index and is returned
// unchanged by Model.Keys.
type Doc struct {
	Key  string
	Text string
}

// Vector is a sparse term-weight vector with indices in ascending order.
type Vector struct {
	Indices []int
	Values  []float64
	Norm    float64
}

// Model is an immutable TF-IDF model over a fixed corpus. It is safe for
// concurrent use.
type Model struct {
	Generation int64

	vocab   map[string]int
	terms   []string
	idf     []float64
	keys    []string
	vectors []Vector
}

// Build fits a model to docs. The vocabulary is the maxVocab terms with the
// highest document frequency, ties broken by term. Weights are
// tf = count/maxCount and idf = ln((N+1)/(df+1)) + 1.
func Build(docs []Doc, maxVocab int) *Model {
	if maxVocab <= 0 {
		maxVocab = DefaultMaxVocab
	}

	tokenized := make([][]string, len(docs))
	df := make(map[string]int)
	for i, d := range docs {
		toks := Tokenize(d.Text)
		tokenized[i] = toks
		seen := make(map[string]bool, len(toks))
		for _, t := range toks {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > maxVocab {
		terms = terms[:maxVocab]
	}

	n := float64(len(docs))
	m := &Model{
		vocab:   make(map[string]int, len(terms)),
		terms:   terms,
		idf:     make([]float64, len(terms)),
		keys:    make([]string, len(docs)),
		vectors: make([]Vector, len(docs)),
	}
	for i, t := range terms {
		m.vocab[t] = i
		m.idf[i] = math.Log((n+1)/(float64(df[t])+1)) + 1
	}
	for i, d := range docs {
		m.keys[i] = d.Key
		m.vectors[i] = m.vectorizeTokens(tokenized[i])
	}
	return m
}

// Vectorize maps text into the model's term space.
func (m *Model) Vectorize(text string) Vector {
	return m.vectorizeTokens(Tokenize(text))
}

func (m *Model) vectorizeTokens(toks []string) Vector {
	counts := make(map[int]int)
	maxCount := 0
	for _, t := range toks {
		idx, ok := m.vocab[t]
		if !ok {
			continue
		}
		counts[idx]++
		if counts[idx] > maxCount {
			maxCount = counts[idx]
		}
	}
	if maxCount == 0 {
		return Vector{}
	}

	v := Vector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		v.Indices = append(v.Indices, idx)
	}
	sort.Ints(v.Indices)
	var sq float64
	for _, idx := range v.Indices {
		w := float64(counts[idx]) / float64(maxCount) * m.idf[idx]
		v.Values = append(v.Values, w)
		sq += w * w
	}
	v.Norm = math.Sqrt(sq)
	return v
}

// Cosine returns the cosine similarity of a and b clamped to [0, 1]. An
// empty vector scores 0.
func Cosine(a, b Vector) float64 {
	if a.Norm == 0 || b.Norm == 0 {
		return 0
	}
	var dot float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			dot += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	s := dot / (a.Norm * b.Norm)
	return math.Max(0, math.Min(1, s))
}

// Score returns the cosine similarity of query to every document, in
// document order.
func (m *Model) Score(query string) []float64 {
	q := m.Vectorize(query)
	out := make([]float64, len(m.vectors))
	for i, v := range m.vectors {
		out[i] = Cosine(q, v)
	}
	return out
}

// Keys returns the document keys in document order.
func (m *Model) Keys() []string { return m.keys }

// Len returns the number of indexed documents.
func (m *Model) Len() int { return len(m.keys) }

// VocabSize returns the number of terms kept.
func (m *Model) VocabSize() int { return len(m.terms) }

// IDF returns the inverse document frequency of term and whether the term
// is in the vocabulary.
func (m *Model) IDF(term string) (float64, bool) {
	idx, ok := m.vocab[term]
	if !ok {
		return 0, false
	}
	return m.idf[idx], true
}
