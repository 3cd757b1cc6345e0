package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// ollamaProvider implements Embedder with Ollama's native /api/embed
// endpoint, which accepts a batch of inputs in one call.
type ollamaProvider struct {
	base openAICompatClient
}

// NewOllama creates an embedder for Ollama.
func NewOllama(cfg Config) Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "bge-m3"
	}
	return &ollamaProvider{base: newOpenAICompatClientPrefix(cfg, "/api")}
}

func (p *ollamaProvider) Model() string { return p.base.cfg.Model }

func (p *ollamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := ollamaEmbedRequest{
		Model: p.base.cfg.Model,
		Input: texts,
	}

	respBody, err := p.base.doPost(ctx, p.base.pathPrefix+"/embed", body)
	if err != nil {
		return nil, fmt.Errorf("ollama embed request failed: %w", err)
	}

	var embedResp ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &embedResp); err != nil {
		return nil, fmt.Errorf("decoding ollama embed response: %w", err)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(embedResp.Embeddings), len(texts))
	}

	result := make([][]float32, len(embedResp.Embeddings))
	for i, emb := range embedResp.Embeddings {
		result[i] = float64sToFloat32s(emb)
	}
	return result, nil
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}
