package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	CacheBackendMemory = "memory"
	CacheBackendSQLite = "sqlite"
	CacheBackendMongo  = "mongo"
)

type Config struct {
	Server    HTTPServerConfig `json:"server"`
	LLM       LLMConfig        `json:"llm"`
	Cache     CacheConfig      `json:"cache"`
	Mongo     MongoConfig      `json:"mongo"`
	SQLite    SQLiteConfig     `json:"sqlite"`
	Artifacts ArtifactConfig   `json:"artifacts"`
	Metrics   MetricsConfig    `json:"metrics"`
	LogLevel  string           `json:"log_level"`
}

type HTTPServerConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	AllowedOrigins []string      `json:"allowed_origins"`
}

type LLMConfig struct {
	APIKey      string        `json:"-"`
	BaseURL     string        `json:"base_url"`
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`
	MaxRetries  int           `json:"max_retries"`
	// RPS caps upstream attempts per second; 0 disables the limiter.
	RPS         float64       `json:"rps"`
}

type CacheConfig struct {
	Backend string        `json:"backend"`
	Size    int           `json:"size"`
	TTL     time.Duration `json:"ttl"`
}

type MongoConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

type SQLiteConfig struct {
	Path string `json:"path"`
}

// ArtifactConfig.Dir empty disables artifact storage.
type ArtifactConfig struct {
	Dir string `json:"dir"`
}

type MetricsConfig struct {
	Capacity       int           `json:"capacity"`
	StreamInterval time.Duration `json:"stream_interval"`
}

func Default() *Config {
	return &Config{
		Server: HTTPServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    2 * time.Minute,
			WriteTimeout:   5 * time.Minute,
			AllowedOrigins: []string{"*"},
		},
		LLM: LLMConfig{
			BaseURL:     "https://foundation-models.api.cloud.ru/v1",
			Model:       "ai-sage/GigaChat3-10B-A1.8B",
			MaxTokens:   2048,
			Temperature: 0.3,
			Timeout:     60 * time.Second,
			MaxRetries:  3,
		},
		Cache: CacheConfig{
			Backend: CacheBackendMemory,
			Size:    1024,
			TTL:     24 * time.Hour,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "testgen",
		},
		SQLite: SQLiteConfig{
			Path: "./testgen-cache.db",
		},
		Artifacts: ArtifactConfig{
			Dir: "./artifacts",
		},
		Metrics: MetricsConfig{
			Capacity:       1000,
			StreamInterval: 5 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load layers defaults, the optional HCL file at path and the environment,
// then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.applyHCL(path, src); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm api key is required (LLM_API_KEY)"))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm model is required"))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("llm max_tokens must be positive, got %d", c.LLM.MaxTokens))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm temperature must be within [0, 2], got %g", c.LLM.Temperature))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm timeout must be positive, got %s", c.LLM.Timeout))
	}
	if c.LLM.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("llm max_retries must be positive, got %d", c.LLM.MaxRetries))
	}
	if c.LLM.RPS < 0 {
		errs = append(errs, fmt.Errorf("llm rps must not be negative, got %g", c.LLM.RPS))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port out of range: %d", c.Server.Port))
	}
	if c.Cache.Size <= 0 {
		errs = append(errs, fmt.Errorf("cache size must be positive, got %d", c.Cache.Size))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache ttl must not be negative, got %s", c.Cache.TTL))
	}
	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("sqlite path is required for the sqlite cache backend"))
		}
	case CacheBackendMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			errs = append(errs, errors.New("mongo uri and database are required for the mongo cache backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Metrics.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("metrics capacity must be positive, got %d", c.Metrics.Capacity))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SlogLevel returns the configured log level; Validate has already rejected unknown names.
func (c *Config) SlogLevel() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// applyEnv overrides fields from environment variables that are set and non-empty.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	var errs []error
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	seconds := func(key string, dst *time.Duration) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = time.Duration(n) * time.Second
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := get(key); ok {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("LLM_API_KEY", &c.LLM.APIKey)
	str("LLM_BASE_URL", &c.LLM.BaseURL)
	str("LLM_MODEL", &c.LLM.Model)
	seconds("LLM_TIMEOUT_SECONDS", &c.LLM.Timeout)
	integer("LLM_MAX_RETRIES", &c.LLM.MaxRetries)
	integer("LLM_MAX_TOKENS", &c.LLM.MaxTokens)
	float("LLM_RPS", &c.LLM.RPS)
	temperature := float64(c.LLM.Temperature)
	float("LLM_TEMPERATURE", &temperature)
	c.LLM.Temperature = float32(temperature)

	str("SERVER_HOST", &c.Server.Host)
	integer("SERVER_PORT", &c.Server.Port)

	str("CACHE_BACKEND", &c.Cache.Backend)
	integer("CACHE_SIZE", &c.Cache.Size)
	duration("CACHE_TTL", &c.Cache.TTL)

	str("MONGO_URI", &c.Mongo.URI)
	str("MONGO_DB", &c.Mongo.Database)
	str("SQLITE_PATH", &c.SQLite.Path)
	str("ARTIFACT_DIR", &c.Artifacts.Dir)
	str("LOG_LEVEL", &c.LogLevel)

	return errors.Join(errs...)
}

// parseDuration accepts Go durations ("90s", "2h") and bare seconds ("3600").
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}
