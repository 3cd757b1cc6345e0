package retrieval

// Fusion weights applied when semantic scores are available. They are the
// only weighting the ranker uses.
const (
	SemanticWeight = 0.7
	LexicalWeight  = 0.3
)

// ScoreInfo records how a result's fused score was composed.
type ScoreInfo struct {
	Lexical  float64  `json:"lexical"`
	Semantic float64  `json:"semantic,omitempty"`
	Methods  []string `json:"methods"`
}

// Fuse returns 0.7*sem + 0.3*lex when semOK, and lex alone otherwise. A
// lexical-only result is not rescaled.
func Fuse(sem, lex float64, semOK bool) float64 {
	if !semOK {
		return lex
	}
	return SemanticWeight*sem + LexicalWeight*lex
}
