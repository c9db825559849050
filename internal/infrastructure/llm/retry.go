package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryPolicy decides how many upstream attempts a generation gets and how long
// to wait between them.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         bool
	// Retryable defaults to IsRetryable.
	Retryable func(error) bool

	sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2,
		Jitter:         true,
	}
}

// Do calls fn until it succeeds, fails with a non-retryable error, or MaxAttempts
// is reached. fn receives the 1-based attempt number. When the budget runs out the
// last error is wrapped in RetriesExhaustedError. Cancellation of ctx is returned
// as ctx.Err().
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if err := p.wait(ctx, p.Backoff(attempt, err)); err != nil {
			return err
		}
	}
	return &RetriesExhaustedError{Attempts: attempts, Err: lastErr}
}

// Backoff is the delay after the given failed attempt. A RetryAfter hint wins
// over the exponential schedule; both are capped by MaxBackoff.
func (p RetryPolicy) Backoff(attempt int, err error) time.Duration {
	var rateErr *RateLimitedError
	if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
		return p.capped(rateErr.RetryAfter)
	}

	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * multiplier)
		if p.MaxBackoff > 0 && backoff >= p.MaxBackoff {
			break
		}
	}
	backoff = p.capped(backoff)

	if p.Jitter {
		// full jitter
		backoff = time.Duration(rand.Int64N(int64(backoff) + 1)) // #nosec G404
	}
	return backoff
}

func (p RetryPolicy) capped(d time.Duration) time.Duration {
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
