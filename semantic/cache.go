package semantic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Cache stores provider embeddings keyed by model and text hash. A cache
// returns exactly the vectors it was given, so scoring with and without a
// cache yields the same results.
type Cache interface {
	// Get returns the cached vectors for keys. Missing keys are absent.
	Get(ctx context.Context, model string, keys []string) (map[string][]float32, error)
	// Put stores vectors by key.
	Put(ctx context.Context, model string, vectors map[string][]float32) error
}

// TextKey is the cache key of a text: the hex sha256 of its bytes.
func TextKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// NopCache caches nothing.
type NopCache struct{}

func (NopCache) Get(context.Context, string, []string) (map[string][]float32, error) {
	return map[string][]float32{}, nil
}

func (NopCache) Put(context.Context, string, map[string][]float32) error { return nil }

// vectorStore is the embedding table of the SQLite store.
type vectorStore interface {
	GetEmbeddings(ctx context.Context, model string, hashes []string) (map[string][]float32, error)
	PutEmbeddings(ctx context.Context, model string, vectors map[string][]float32) error
}

// SQLiteCache keeps embeddings in the store's embedding_cache table.
type SQLiteCache struct {
	store vectorStore
}

// NewSQLiteCache creates a cache backed by s (normally a *store.Store).
func NewSQLiteCache(s vectorStore) *SQLiteCache {
	return &SQLiteCache{store: s}
}

func (c *SQLiteCache) Get(ctx context.Context, model string, keys []string) (map[string][]float32, error) {
	return c.store.GetEmbeddings(ctx, model, keys)
}

func (c *SQLiteCache) Put(ctx context.Context, model string, vectors map[string][]float32) error {
	return c.store.PutEmbeddings(ctx, model, vectors)
}
