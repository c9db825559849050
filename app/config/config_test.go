package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault_NeedsOnlyAnAPIKey(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate())

	cfg.LLM.APIKey = "secret"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"LLM_API_KEY":         "k",
		"LLM_BASE_URL":        "http://llm.local/v1",
		"LLM_MODEL":           "m",
		"LLM_TIMEOUT_SECONDS": "15",
		"LLM_MAX_RETRIES":     "5",
		"LLM_TEMPERATURE":     "0.7",
		"LLM_MAX_TOKENS":      "512",
		"LLM_RPS":             "2.5",
		"SERVER_PORT":         "9000",
		"CACHE_BACKEND":       "sqlite",
		"CACHE_SIZE":          "10",
		"CACHE_TTL":           "90m",
		"SQLITE_PATH":         "/tmp/x.db",
		"ARTIFACT_DIR":        "",
		"LOG_LEVEL":           "debug",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "k", cfg.LLM.APIKey)
	assert.Equal(t, "http://llm.local/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 5, cfg.LLM.MaxRetries)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, 512, cfg.LLM.MaxTokens)
	assert.Equal(t, 2.5, cfg.LLM.RPS)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, CacheBackendSQLite, cfg.Cache.Backend)
	assert.Equal(t, 10, cfg.Cache.Size)
	assert.Equal(t, 90*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "/tmp/x.db", cfg.SQLite.Path)
	assert.Equal(t, "./artifacts", cfg.Artifacts.Dir, "empty values do not override")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestApplyEnv_BadNumbers(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"LLM_MAX_RETRIES": "three",
		"CACHE_TTL":       "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_MAX_RETRIES")
	assert.Contains(t, err.Error(), "CACHE_TTL")
}

func TestValidate_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero retries", func(c *Config) { c.LLM.MaxRetries = 0 }},
		{"zero tokens", func(c *Config) { c.LLM.MaxTokens = 0 }},
		{"hot temperature", func(c *Config) { c.LLM.Temperature = 3 }},
		{"zero timeout", func(c *Config) { c.LLM.Timeout = 0 }},
		{"negative rps", func(c *Config) { c.LLM.RPS = -1 }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"zero cache", func(c *Config) { c.Cache.Size = 0 }},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "redis" }},
		{"mongo without uri", func(c *Config) { c.Cache.Backend = CacheBackendMongo; c.Mongo.URI = "" }},
		{"unknown level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.LLM.APIKey = "k"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

const sampleHCL = `
log_level = "warn"

server {
  port            = 9090
  allowed_origins = ["https://qa.example.com"]
}

llm {
  api_key     = "from-file"
  model       = "gpt-4o-mini"
  temperature = 0.2
  timeout     = "30s"
  rps         = 1
}

cache {
  backend = "mongo"
  ttl     = "12h"
}

mongo {
  database = "qa"
}

metrics {
  stream_interval = "2s"
}
`

func TestApplyHCL(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.applyHCL("testgen.hcl", []byte(sampleHCL)))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"https://qa.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "from-file", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 1.0, cfg.LLM.RPS)
	assert.Equal(t, CacheBackendMongo, cfg.Cache.Backend)
	assert.Equal(t, 12*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "qa", cfg.Mongo.Database)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, 2*time.Second, cfg.Metrics.StreamInterval)
}

func TestApplyHCL_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", "server {\n  port = \n"},
		{"unknown attribute", "colour = \"blue\"\n"},
		{"bad duration", "llm {\n  timeout = \"soon\"\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Default().applyHCL("bad.hcl", []byte(tt.src)))
		})
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "testgen.hcl")
	require.NoError(t, os.WriteFile(path, []byte(sampleHCL), 0o644))
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("LLM_MODEL", "from-env")
	t.Setenv("MONGO_URI", "mongodb://db:27017")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, "from-file", cfg.LLM.APIKey)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	assert.Error(t, err)
}
