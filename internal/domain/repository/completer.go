package repository

import (
	"context"
)

// CompletionRequest is one chat completion against the upstream model.
type CompletionRequest struct {
	SystemRole  string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// ChatCompleter performs a single upstream generation attempt, without retries.
type ChatCompleter interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Model() string
}
