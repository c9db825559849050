package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"testgen/internal/domain/entity"
)

type fingerprintMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type fingerprintInput struct {
	Messages    []fingerprintMessage `json:"messages"`
	Temperature float32              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
}

// Fingerprint derives the cache key for a fully resolved request. Surrounding
// whitespace of the prompt and system role does not change the key.
func Fingerprint(systemRole, prompt string, temperature float32, maxTokens int) entity.CacheKey {
	in := fingerprintInput{
		Messages: []fingerprintMessage{
			{Role: "system", Content: strings.TrimSpace(systemRole)},
			{Role: "user", Content: strings.TrimSpace(prompt)},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	// Marshal of this fixed struct cannot fail.
	raw, _ := json.Marshal(in)
	sum := sha256.Sum256(raw)
	return entity.CacheKey(hex.EncodeToString(sum[:]))
}
