package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  string
		retryable bool
	}{
		{"api 401", &openai.APIError{HTTPStatusCode: 401}, "authentication", false},
		{"api 403 wrapped", fmt.Errorf("chat completion: %w", &openai.APIError{HTTPStatusCode: 403}), "authentication", false},
		{"api 429", &openai.APIError{HTTPStatusCode: 429}, "rate_limited", true},
		{"api 500", &openai.APIError{HTTPStatusCode: 500}, "transient_network", true},
		{"api 408", &openai.APIError{HTTPStatusCode: 408}, "transient_network", true},
		{"api 404", &openai.APIError{HTTPStatusCode: 404}, "upstream", false},
		{"request 502", &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, "transient_network", true},
		{"deadline", context.DeadlineExceeded, "transient_network", true},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, "transient_network", true},
		{"unknown", errors.New("boom"), "upstream", false},
		{"already classified", &EmptyResponseError{Model: "m"}, "empty_response", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.wantKind, errorKind(got))
			assert.Equal(t, tt.retryable, IsRetryable(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassify_PassesThroughCancellation(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Equal(t, context.Canceled, Classify(context.Canceled))
	assert.Equal(t, "canceled", errorKind(context.Canceled))
}
