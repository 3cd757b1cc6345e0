package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned for hosted providers configured without a
// credential.
var ErrMissingAPIKey = errors.New("llm: api key required")

// Embedder turns texts into embedding vectors.
type Embedder interface {
	// Embed generates embeddings for a batch of texts. The result has one
	// vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Model names the embedding model, used to key cached vectors.
	Model() string
}

// Config configures an embedding provider.
type Config struct {
	Provider   string `json:"provider" yaml:"provider"` // openai, ollama, lmstudio, openrouter, custom
	Model      string `json:"model" yaml:"model"`
	BaseURL    string `json:"base_url" yaml:"base_url"`
	APIKey     string `json:"api_key" yaml:"api_key"`
	MaxRetries int    `json:"max_retries" yaml:"max_retries"` // 0 uses the default
}

// NewEmbedder creates an embedding provider from configuration.
func NewEmbedder(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openai", ErrMissingAPIKey)
		}
		return NewOpenAI(cfg), nil
	case "openrouter":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openrouter", ErrMissingAPIKey)
		}
		return NewOpenRouter(cfg), nil
	case "ollama":
		return NewOllama(cfg), nil
	case "lmstudio":
		return NewLMStudio(cfg), nil
	case "custom":
		return NewOpenAICompat(cfg), nil
	case "":
		return nil, fmt.Errorf("llm provider not specified")
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

func float64sToFloat32s(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
