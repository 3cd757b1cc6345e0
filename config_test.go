package coj

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.EmbedTimeout))
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "coj.yaml", `
db_path: /tmp/cases.db
embedding:
  provider: ollama
  model: bge-m3
embed_timeout: 3s
cache:
  backend: redis
  redis_addr: localhost:6379
  ttl: 1h
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/cases.db", cfg.DBPath)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "bge-m3", cfg.Embedding.Model)
	assert.Equal(t, 3*time.Second, time.Duration(cfg.EmbedTimeout))
	assert.Equal(t, time.Hour, time.Duration(cfg.Cache.TTL))
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	// Unset fields keep their defaults.
	assert.Equal(t, 2048, cfg.MaxVocab)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfig(t, "coj.json", `{"db_name": "labor", "cache": {"backend": "none"}, "embed_timeout": "250ms"}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "labor", cfg.DBName)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Equal(t, 250*time.Millisecond, time.Duration(cfg.EmbedTimeout))
}

func TestLoadConfigErrors(t *testing.T) {
	tests := map[string]string{
		"coj.toml": `db_name = "x"`,
		"bad.yaml": "cache: [",
		"dur.json": `{"embed_timeout": "soon"}`,
		"rds.yaml": "cache:\n  backend: redis\n",
		"neg.yaml": "max_chunk_runes: -1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, name, body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidConfig))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("COJ_DB_PATH", "/data/coj.db")
	t.Setenv("COJ_EMBED_PROVIDER", "lmstudio")
	t.Setenv("COJ_EMBED_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("COJ_CACHE", "redis")
	t.Setenv("COJ_REDIS_ADDR", "redis:6379")
	t.Setenv("COJ_REDIS_DB", "2")
	t.Setenv("COJ_EMBED_TIMEOUT", "5s")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "/data/coj.db", cfg.DBPath)
	assert.Equal(t, "lmstudio", cfg.Embedding.Provider)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "redis:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 2, cfg.Cache.RedisDB)
	assert.Equal(t, 5*time.Second, time.Duration(cfg.EmbedTimeout))
}

func TestApplyEnvInvalid(t *testing.T) {
	t.Setenv("COJ_REDIS_DB", "two")
	cfg := DefaultConfig()
	assert.ErrorIs(t, cfg.ApplyEnv(), ErrInvalidConfig)

	t.Setenv("COJ_REDIS_DB", "")
	t.Setenv("COJ_CACHE", "memcached")
	cfg = DefaultConfig()
	assert.ErrorIs(t, cfg.ApplyEnv(), ErrInvalidConfig)
}

func TestDurationJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		D Duration `json:"d"`
	}{Duration(90 * time.Second)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"1m30s"}`, string(b))

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`""`), &d))
	assert.Zero(t, d)
	assert.Error(t, json.Unmarshal([]byte(`15`), &d))
}

func TestResolveDBPath(t *testing.T) {
	explicit := Config{DBPath: "/x/y.db", DBName: "ignored"}
	assert.Equal(t, "/x/y.db", explicit.resolveDBPath())

	local := Config{DBName: "labor", StorageDir: "local"}
	assert.Equal(t, "labor.db", local.resolveDBPath())

	home := Config{}
	got := home.resolveDBPath()
	assert.True(t, strings.HasSuffix(got, filepath.Join(".coj", "coj.db")) || got == "coj.db", got)
}
