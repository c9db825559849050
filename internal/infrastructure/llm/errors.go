package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// AuthenticationError means the upstream rejected our credentials. Never retried.
type AuthenticationError struct {
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("upstream authentication failed (status %d): %v", e.StatusCode, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// RateLimitedError is a 429 from the upstream. RetryAfter is zero when no hint was given.
type RateLimitedError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("upstream rate limited, retry after %s: %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("upstream rate limited: %v", e.Err)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// TransientNetworkError covers connection failures, timeouts and 5xx responses.
type TransientNetworkError struct {
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient upstream failure: %v", e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// EmptyResponseError means the upstream answered without any content.
type EmptyResponseError struct {
	Model string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("model %s returned an empty response", e.Model)
}

// UpstreamError is any other non-retryable upstream rejection, e.g. an unknown model.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %v", e.StatusCode, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// RetriesExhaustedError wraps the last failure once the retry budget is spent.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

// Classify maps a raw completer error onto the taxonomy above. Errors that are
// already classified, and caller cancellation, are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if isClassified(err) || errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientNetworkError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientNetworkError{Err: err}
	}

	return &UpstreamError{Err: err}
}

func classifyStatus(status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthenticationError{StatusCode: status, Err: err}
	case status == http.StatusTooManyRequests:
		return &RateLimitedError{Err: err}
	case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		return &TransientNetworkError{Err: err}
	case status == 0:
		return &TransientNetworkError{Err: err}
	default:
		return &UpstreamError{StatusCode: status, Err: err}
	}
}

func isClassified(err error) bool {
	var (
		authErr  *AuthenticationError
		rateErr  *RateLimitedError
		netErr   *TransientNetworkError
		emptyErr *EmptyResponseError
		upErr    *UpstreamError
	)
	return errors.As(err, &authErr) || errors.As(err, &rateErr) || errors.As(err, &netErr) ||
		errors.As(err, &emptyErr) || errors.As(err, &upErr)
}

// IsRetryable reports whether another attempt could succeed.
func IsRetryable(err error) bool {
	var (
		rateErr *RateLimitedError
		netErr  *TransientNetworkError
	)
	return errors.As(err, &rateErr) || errors.As(err, &netErr)
}

// errorKind is the label used for logs and the errors counter.
func errorKind(err error) string {
	var (
		authErr  *AuthenticationError
		rateErr  *RateLimitedError
		netErr   *TransientNetworkError
		emptyErr *EmptyResponseError
		exhErr   *RetriesExhaustedError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &exhErr):
		return "retries_exhausted"
	case errors.As(err, &authErr):
		return "authentication"
	case errors.As(err, &rateErr):
		return "rate_limited"
	case errors.As(err, &netErr):
		return "transient_network"
	case errors.As(err, &emptyErr):
		return "empty_response"
	default:
		return "upstream"
	}
}
