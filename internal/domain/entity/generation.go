package entity

import "time"

type RequestType string

const (
	RequestTypeGeneric     RequestType = "generic"
	RequestTypeTestcase    RequestType = "testcase"
	RequestTypeAutotestAPI RequestType = "autotest_api"
	RequestTypeAutotestUI  RequestType = "autotest_ui"
)

// GenerationRequest is a single call to the generation client.
// A nil Temperature or zero MaxTokens means "use the client defaults"; an
// explicit zero temperature is honoured.
type GenerationRequest struct {
	Prompt      string
	SystemRole  string
	RequestType RequestType
	UseCache    bool
	Validate    bool
	Temperature *float32
	MaxTokens   int
}

// NewGenerationRequest returns a request with caching and self-validation enabled.
func NewGenerationRequest(prompt, systemRole string, typ RequestType) GenerationRequest {
	return GenerationRequest{
		Prompt:      prompt,
		SystemRole:  systemRole,
		RequestType: typ,
		UseCache:    true,
		Validate:    true,
	}
}

// CacheKey is the hex SHA-256 fingerprint of a request's messages and parameters.
type CacheKey string

type CacheEntry struct {
	Key       CacheKey  `json:"key" bson:"key"`
	Value     string    `json:"value" bson:"value"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type GenerationOutcome struct {
	Text             string        `json:"text"`
	CacheKey         CacheKey      `json:"cache_key,omitempty"`
	CacheHit         bool          `json:"cache_hit"`
	Latency          time.Duration `json:"latency"`
	Success          bool          `json:"success"`
	ValidationIssues []string      `json:"validation_issues,omitempty"`
}
