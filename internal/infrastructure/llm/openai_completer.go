package llm

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"testgen/internal/domain/repository"
)

// Sampling parameters sent with every completion.
const (
	topP             = 0.9
	frequencyPenalty = 0.1
	presencePenalty  = 0.1
)

// OpenAICompleter talks to any OpenAI-compatible chat completions API.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

var _ repository.ChatCompleter = (*OpenAICompleter)(nil)

// NewOpenAICompleter builds a completer for baseURL (empty means api.openai.com).
// httpClient may be nil.
func NewOpenAICompleter(apiKey, baseURL, model string, httpClient *http.Client) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *OpenAICompleter) Model() string {
	return o.model
}

// Complete performs one chat completion. Errors are returned as produced by the
// SDK; Classify maps them for the retry policy.
func (o *OpenAICompleter) Complete(ctx context.Context, req repository.CompletionRequest) (string, error) {
	temperature := req.Temperature
	if temperature == 0 {
		// omitempty drops 0, which the server reads as its own default
		temperature = math.SmallestNonzeroFloat32
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemRole},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature:      temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             topP,
		FrequencyPenalty: frequencyPenalty,
		PresencePenalty:  presencePenalty,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &EmptyResponseError{Model: o.model}
	}
	return resp.Choices[0].Message.Content, nil
}
