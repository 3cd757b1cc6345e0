package coj

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/StartGackt/coj-backend/llm"
	"github.com/StartGackt/coj-backend/retrieval"
)

// Config holds all configuration for the engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.coj/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. "home" (default) uses ~/.coj/, "local" uses
	// the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// Embedding configures the optional semantic scorer. An empty provider,
	// "none", or a hosted provider without an API key runs lexical-only.
	Embedding llm.Config `json:"embedding" yaml:"embedding"`

	// EmbedTimeout bounds one semantic scoring call.
	EmbedTimeout Duration `json:"embed_timeout" yaml:"embed_timeout"`

	// Cache selects where embeddings are cached.
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// MaxVocab caps the TF-IDF vocabulary.
	MaxVocab int `json:"max_vocab" yaml:"max_vocab"`

	// MaxChunkRunes splits long ingest texts into paragraph-packed chunks.
	// 0 keeps each text as one chunk.
	MaxChunkRunes int `json:"max_chunk_runes" yaml:"max_chunk_runes"`

	// FactLimit caps the facts attached to a search.
	FactLimit int `json:"fact_limit" yaml:"fact_limit"`

	// CatalogPath optionally replaces the built-in court-document catalog
	// with a YAML file.
	CatalogPath string `json:"catalog_path" yaml:"catalog_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// CacheConfig configures the embedding cache.
type CacheConfig struct {
	Backend       string   `json:"backend" yaml:"backend"` // sqlite, redis, none
	RedisAddr     string   `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string   `json:"redis_password" yaml:"redis_password"`
	RedisDB       int      `json:"redis_db" yaml:"redis_db"`
	TTL           Duration `json:"ttl" yaml:"ttl"`
}

// Duration is a time.Duration that reads from "10s"-style strings in JSON
// and YAML.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.parse(n.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, s, err)
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns a Config with sensible defaults. Semantic scoring
// uses OpenAI embeddings once an API key is supplied.
func DefaultConfig() Config {
	return Config{
		DBName:     "coj",
		StorageDir: "home",
		Embedding: llm.Config{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		EmbedTimeout: Duration(10 * time.Second),
		Cache:        CacheConfig{Backend: "sqlite", TTL: Duration(30 * 24 * time.Hour)},
		MaxVocab:     2048,
		FactLimit:    retrieval.DefaultFactLimit,
		LogLevel:     "info",
	}
}

// LoadConfig reads a YAML or JSON config file (by extension) over
// DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, filepath.Ext(path))
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, filepath.Base(path), err)
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from COJ_* environment variables. The
// embedding key falls back to OPENAI_API_KEY.
func (c *Config) ApplyEnv() error {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	setString(&c.DBPath, "COJ_DB_PATH")
	setString(&c.Embedding.Provider, "COJ_EMBED_PROVIDER")
	setString(&c.Embedding.Model, "COJ_EMBED_MODEL")
	setString(&c.Embedding.BaseURL, "COJ_EMBED_BASE_URL")
	setString(&c.Embedding.APIKey, "COJ_EMBED_API_KEY", "OPENAI_API_KEY")
	setString(&c.Cache.Backend, "COJ_CACHE")
	setString(&c.Cache.RedisAddr, "COJ_REDIS_ADDR")
	setString(&c.Cache.RedisPassword, "COJ_REDIS_PASSWORD")
	setString(&c.CatalogPath, "COJ_CATALOG")
	setString(&c.LogLevel, "COJ_LOG_LEVEL")

	if v := os.Getenv("COJ_EMBED_TIMEOUT"); v != "" {
		if err := c.EmbedTimeout.parse(v); err != nil {
			return err
		}
	}
	if v := os.Getenv("COJ_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: COJ_REDIS_DB: %v", ErrInvalidConfig, err)
		}
		c.Cache.RedisDB = n
	}
	return c.Validate()
}

// Validate reports configuration values the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "", "sqlite", "none":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("%w: redis cache needs redis_addr", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.Cache.Backend)
	}
	if c.MaxChunkRunes < 0 {
		return fmt.Errorf("%w: max_chunk_runes must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "coj"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".coj", name+".db")
	}
}
