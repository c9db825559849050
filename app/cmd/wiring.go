package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"testgen/app/config"
	"testgen/internal/domain/repository"
	"testgen/internal/infrastructure/llm"
	"testgen/internal/infrastructure/store/mongodb"
	"testgen/internal/infrastructure/store/sqlite"
)

const (
	connectTimeout   = time.Minute
	minPurgeInterval = time.Minute
	maxPurgeInterval = time.Hour
)

// purgeInterval sweeps twice per ttl, within [minPurgeInterval, maxPurgeInterval].
func purgeInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval < minPurgeInterval {
		return minPurgeInterval
	}
	if interval > maxPurgeInterval {
		return maxPurgeInterval
	}
	return interval
}

// newCacheStore opens the durable cache tier selected by cfg.Cache.Backend;
// the memory backend has none. ctx bounds the store's lifetime: the sqlite
// purge loop runs until it is done. Mongo expires entries with a TTL index.
func newCacheStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.CacheStore, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendSQLite:
		store, err := sqlite.NewCacheStore(cfg.SQLite.Path, cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		logger.Info("using sqlite cache", "path", cfg.SQLite.Path)
		if cfg.Cache.TTL > 0 {
			go store.PurgeEvery(ctx, purgeInterval(cfg.Cache.TTL), logger)
		}
		return store, nil
	case config.CacheBackendMongo:
		ctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		client, err := mongodb.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		store, err := mongodb.NewMongoCacheStore(ctx, client.Database(cfg.Mongo.Database), cfg.Cache.TTL)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		logger.Info("connected to mongo", "database", cfg.Mongo.Database)
		return store, nil
	default:
		return nil, nil
	}
}

// newLLMClient builds the generation client with its cache tiers and limiter.
// Cancel ctx before closing the client.
func newLLMClient(ctx context.Context, cfg *config.Config, sink llm.MetricsSink, logger *slog.Logger) (*llm.Client, error) {
	store, err := newCacheStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	completer := llm.NewOpenAICompleter(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, &http.Client{})

	var limiter *rate.Limiter
	if cfg.LLM.RPS > 0 {
		burst := int(cfg.LLM.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.LLM.RPS), burst)
	}

	opts := llm.Options{
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		AttemptTimeout: cfg.LLM.Timeout,
		Retry:          llm.DefaultRetryPolicy(cfg.LLM.MaxRetries),
		Limiter:        limiter,
		Store:          store,
	}

	return llm.NewClient(completer, llm.NewCache(cfg.Cache.Size, cfg.Cache.TTL), sink, logger, opts), nil
}
