package llm

import "context"

// openRouterProvider implements Embedder for OpenRouter, which serves
// embeddings through the OpenAI-compatible API format.
type openRouterProvider struct {
	base openAICompatClient
}

// NewOpenRouter creates an embedder for OpenRouter.
func NewOpenRouter(cfg Config) Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api"
	}
	return &openRouterProvider{base: newOpenAICompatClient(cfg)}
}

func (p *openRouterProvider) Model() string { return p.base.cfg.Model }

func (p *openRouterProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}
