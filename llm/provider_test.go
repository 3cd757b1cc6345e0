package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func TestNewEmbedder(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"openai", "*llm.openAIProvider"},
		{"ollama", "*llm.ollamaProvider"},
		{"lmstudio", "*llm.lmStudioProvider"},
		{"openrouter", "*llm.openRouterProvider"},
		{"custom", "*llm.openAICompatProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := Config{
				Provider: tt.provider,
				Model:    "test-model",
				APIKey:   "sk-test",
			}
			e, err := NewEmbedder(cfg)
			if err != nil {
				t.Fatalf("NewEmbedder(%q) returned error: %v", tt.provider, err)
			}
			gotType := fmt.Sprintf("%T", e)
			if gotType != tt.wantType {
				t.Errorf("NewEmbedder(%q) type = %s, want %s", tt.provider, gotType, tt.wantType)
			}
			if e.Model() != "test-model" {
				t.Errorf("Model() = %q, want test-model", e.Model())
			}
		})
	}
}

func TestNewEmbedderUnknown(t *testing.T) {
	_, err := NewEmbedder(Config{Provider: "doesnotexist", Model: "test-model"})
	if err == nil {
		t.Fatal("expected error for unknown provider, got nil")
	}
	want := "unknown llm provider: doesnotexist"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestNewEmbedderEmpty(t *testing.T) {
	_, err := NewEmbedder(Config{Provider: "", Model: "test-model"})
	if err == nil {
		t.Fatal("expected error for empty provider, got nil")
	}
	want := "llm provider not specified"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestNewEmbedderHostedWithoutKey(t *testing.T) {
	for _, p := range []string{"openai", "openrouter"} {
		_, err := NewEmbedder(Config{Provider: p})
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("NewEmbedder(%q) err = %v, want ErrMissingAPIKey", p, err)
		}
	}
	// Local providers need no key.
	if _, err := NewEmbedder(Config{Provider: "ollama"}); err != nil {
		t.Errorf("ollama without key: %v", err)
	}
}

// TestDefaultBaseURLs verifies that when BaseURL is empty in the config,
// each provider constructor sets the correct default.
func TestDefaultBaseURLs(t *testing.T) {
	tests := []struct {
		provider string
		wantURL  string
	}{
		{"ollama", "http://localhost:11434"},
		{"lmstudio", "http://localhost:1234"},
		{"openrouter", "https://openrouter.ai/api"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			e, err := NewEmbedder(Config{Provider: tt.provider, Model: "test-model", APIKey: "k"})
			if err != nil {
				t.Fatalf("NewEmbedder(%q): %v", tt.provider, err)
			}

			v := reflect.ValueOf(e).Elem()
			gotURL := v.FieldByName("base").FieldByName("cfg").FieldByName("BaseURL").String()
			if gotURL != tt.wantURL {
				t.Errorf("default BaseURL for %q = %q, want %q", tt.provider, gotURL, tt.wantURL)
			}
		})
	}
}

func TestOpenAIDefaults(t *testing.T) {
	e, err := NewEmbedder(Config{Provider: "openai", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	if e.Model() != "text-embedding-3-small" {
		t.Errorf("default model = %q", e.Model())
	}
}

// ---------------------------------------------------------------------------
// HTTP round trips
// ---------------------------------------------------------------------------

func TestOpenAICompatEmbedOrdersByIndex(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %s, want /v1/embeddings", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		var req embeddingRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Input) != 2 {
			t.Errorf("inputs = %d, want 2", len(req.Input))
		}
		fmt.Fprint(w, `{"data":[{"embedding":[0,1],"index":1},{"embedding":[1,0],"index":0}]}`)
	}))
	defer srv.Close()

	e := NewOpenAICompat(Config{Model: "m", BaseURL: srv.URL, APIKey: "secret"})
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors not ordered by index: %v", vecs)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestOpenAICompatNonRetryableError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	e := NewOpenAICompat(Config{Model: "m", BaseURL: srv.URL})
	_, err := e.Embed(context.Background(), []string{"a"})
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("err = %v, want 400 error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 400)", calls)
	}
}

func TestOpenAICompatMissingVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"embedding":[1],"index":0}]}`)
	}))
	defer srv.Close()

	e := NewOpenAICompat(Config{Model: "m", BaseURL: srv.URL})
	if _, err := e.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error when a vector is missing")
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s, want /api/embed", r.URL.Path)
		}
		fmt.Fprint(w, `{"embeddings":[[0.5,0.25]]}`)
	}))
	defer srv.Close()

	e := NewOllama(Config{Model: "bge-m3", BaseURL: srv.URL})
	vecs, err := e.Embed(context.Background(), []string{"ค่าจ้าง"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 1 || vecs[0][0] != 0.5 || vecs[0][1] != 0.25 {
		t.Errorf("vecs = %v", vecs)
	}
}

func TestOpenAIEmbedViaClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %s, want /v1/embeddings", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"object":"embedding","embedding":[0.1,0.2],"index":0}],"model":"text-embedding-3-small"}`)
	}))
	defer srv.Close()

	e := NewOpenAI(Config{APIKey: "sk-test", BaseURL: srv.URL})
	vecs, err := e.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != 2 {
		t.Errorf("vecs = %v", vecs)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	e := NewOpenAICompat(Config{Model: "m", BaseURL: "http://127.0.0.1:0"})
	vecs, err := e.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("Embed(nil) = %v, %v; want nil, nil", vecs, err)
	}
}
