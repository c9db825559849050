package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"testgen/internal/domain/entity"
	"testgen/internal/domain/repository"
	"testgen/internal/infrastructure/extractor"
	"testgen/internal/infrastructure/metrics"
)

// MetricsSink receives exactly one record per Generate call.
type MetricsSink interface {
	Record(rec entity.MetricsRecord)
}

// Options are the client defaults and collaborators. Limiter throttles upstream
// attempts and may be nil for unlimited; Store is an optional durable second
// cache tier.
type Options struct {
	SystemRole     string
	Temperature    float32
	MaxTokens      int
	AttemptTimeout time.Duration
	Retry          RetryPolicy
	Limiter        *rate.Limiter
	Store          repository.CacheStore
}

// Client turns the unreliable upstream model into a call that always yields
// usable test code: cached, retried within bounds, sanitized, and replaced by
// the fallback artifact when nothing else works.
type Client struct {
	completer repository.ChatCompleter
	cache     *Cache
	sink      MetricsSink
	logger    *slog.Logger
	opts      Options

	flight singleflight.Group
}

func NewClient(completer repository.ChatCompleter, cache *Cache, sink MetricsSink, logger *slog.Logger, opts Options) *Client {
	if opts.SystemRole == "" {
		opts.SystemRole = entity.DefaultSystemRole
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy(3)
	}
	return &Client{
		completer: completer,
		cache:     cache,
		sink:      sink,
		logger:    logger,
		opts:      opts,
	}
}

func (c *Client) Model() string {
	return c.completer.Model()
}

func (c *Client) CacheStats() CacheStats {
	return c.cache.Stats()
}

// Close releases the durable cache tier, if any.
func (c *Client) Close(ctx context.Context) error {
	if c.opts.Store == nil {
		return nil
	}
	return c.opts.Store.Close(ctx)
}

// Generate never fails because of the upstream: any generation failure, including
// cancellation of ctx, yields the fallback artifact with Success=false. The only
// error is an InputContractError for an empty prompt.
func (c *Client) Generate(ctx context.Context, req entity.GenerationRequest) (entity.GenerationOutcome, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return entity.GenerationOutcome{}, entity.NewInputError("prompt", "must not be empty")
	}
	start := time.Now()
	creq := c.completion(req)
	key := Fingerprint(creq.SystemRole, creq.Prompt, creq.Temperature, creq.MaxTokens)

	var (
		text string
		hit  bool
		err  error
	)
	if req.UseCache {
		text, hit, err = c.cachedOrGenerate(ctx, key, creq)
	} else {
		text, err = c.generate(ctx, creq)
	}

	outcome := entity.GenerationOutcome{CacheKey: key, CacheHit: hit}
	if err != nil {
		kind := errorKind(err)
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			c.logger.Error("upstream rejected credentials, check LLM_API_KEY", "model", c.Model(), "err", err)
		} else {
			c.logger.Error("generation failed, serving fallback", "model", c.Model(), "kind", kind, "err", err)
		}
		metrics.IncError("llm", kind)
		outcome.Text = Fallback()
		outcome.ValidationIssues = []string{"fallback: " + kind}
	} else {
		outcome.Text = text
		outcome.Success = true
		if req.Validate {
			outcome.Text, outcome.ValidationIssues = selfHeal(ctx, text)
			if len(outcome.ValidationIssues) > 0 {
				c.logger.Warn("generated code needed healing", "key", key, "issues", outcome.ValidationIssues)
			}
		}
	}
	outcome.Latency = time.Since(start)

	length := 0
	if outcome.Success {
		length = len(outcome.Text)
	}
	c.sink.Record(entity.MetricsRecord{
		Timestamp:      time.Now(),
		RequestType:    req.RequestType,
		Success:        outcome.Success,
		Latency:        outcome.Latency,
		ResponseLength: length,
		CacheHit:       outcome.CacheHit,
	})
	c.logger.Info("generation finished",
		"type", req.RequestType,
		"latency_ms", outcome.Latency.Milliseconds(),
		"length", len(outcome.Text),
		"cache_hit", outcome.CacheHit,
		"success", outcome.Success,
		"model", c.Model(),
	)
	return outcome, nil
}

func (c *Client) completion(req entity.GenerationRequest) repository.CompletionRequest {
	creq := repository.CompletionRequest{
		SystemRole:  strings.TrimSpace(req.SystemRole),
		Prompt:      strings.TrimSpace(req.Prompt),
		Temperature: c.opts.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.Temperature != nil {
		creq.Temperature = *req.Temperature
	}
	if creq.SystemRole == "" {
		creq.SystemRole = c.opts.SystemRole
	}
	if creq.MaxTokens == 0 {
		creq.MaxTokens = c.opts.MaxTokens
	}
	return creq
}

type fillResult struct {
	text      string
	fromStore bool
}

// abandonedError marks a fill whose leader context ended; waiters with a live
// context start a new flight instead of sharing the failure.
type abandonedError struct {
	err error
}

func (e *abandonedError) Error() string { return "generation abandoned: " + e.err.Error() }
func (e *abandonedError) Unwrap() error { return e.err }

func (c *Client) cachedOrGenerate(ctx context.Context, key entity.CacheKey, creq repository.CompletionRequest) (string, bool, error) {
	if v, ok := c.cache.Get(key); ok {
		metrics.IncCacheLookup("memory", "hit")
		c.logger.Debug("cache hit", "key", key)
		return v, true, nil
	}
	metrics.IncCacheLookup("memory", "miss")

	for {
		ch := c.flight.DoChan(string(key), func() (any, error) {
			return c.fill(ctx, key, creq)
		})
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				var abandoned *abandonedError
				if errors.As(res.Err, &abandoned) && ctx.Err() == nil {
					continue
				}
				return "", false, res.Err
			}
			fr := res.Val.(fillResult)
			return fr.text, fr.fromStore, nil
		}
	}
}

// fill resolves a memory miss: durable store first, then the upstream.
func (c *Client) fill(ctx context.Context, key entity.CacheKey, creq repository.CompletionRequest) (fillResult, error) {
	if store := c.opts.Store; store != nil {
		v, ok, err := store.Get(ctx, key)
		switch {
		case err != nil:
			metrics.IncCacheLookup("store", "error")
			metrics.IncError("cache_store", "get")
			c.logger.Warn("cache store read failed", "key", key, "err", err)
		case ok:
			metrics.IncCacheLookup("store", "hit")
			c.cache.Put(key, v)
			return fillResult{text: v, fromStore: true}, nil
		default:
			metrics.IncCacheLookup("store", "miss")
		}
	}

	text, err := c.generate(ctx, creq)
	if ctx.Err() != nil {
		if err == nil {
			err = ctx.Err()
		}
		return fillResult{}, &abandonedError{err: err}
	}
	if err != nil {
		return fillResult{}, err
	}

	c.cache.Put(key, text)
	if store := c.opts.Store; store != nil {
		if err := store.Put(ctx, key, text); err != nil {
			metrics.IncError("cache_store", "put")
			c.logger.Warn("cache store write failed", "key", key, "err", err)
		}
	}
	return fillResult{text: text}, nil
}

// generate performs the upstream call under the retry policy and returns
// sanitized code.
func (c *Client) generate(ctx context.Context, creq repository.CompletionRequest) (string, error) {
	model := c.Model()
	var text string
	err := c.opts.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			metrics.IncLLMRetry(model)
		}
		if l := c.opts.Limiter; l != nil {
			if err := l.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return &TransientNetworkError{Err: fmt.Errorf("rate limiter: %w", err)}
			}
		}

		actx, cancel := ctx, context.CancelFunc(func() {})
		if c.opts.AttemptTimeout > 0 {
			actx, cancel = context.WithTimeout(ctx, c.opts.AttemptTimeout)
		}
		defer cancel()

		metrics.IncLLMRequest(model)
		raw, err := c.completer.Complete(actx, creq)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cerr := Classify(err)
			c.logger.Warn("upstream attempt failed", "model", model, "attempt", attempt, "kind", errorKind(cerr), "err", err)
			return cerr
		}

		cleaned := extractor.Extract(raw)
		if cleaned == "" {
			return &EmptyResponseError{Model: model}
		}
		text = cleaned
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
