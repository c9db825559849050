package entity

import (
	"time"

	"github.com/google/uuid"
)

type ArtifactKind string

const (
	ArtifactTestcase    ArtifactKind = "testcase"
	ArtifactAutotestAPI ArtifactKind = "autotest_api"
	ArtifactAutotestUI  ArtifactKind = "autotest_ui"
)

// GeneratedArtifact is a generated test module together with how it was produced.
type GeneratedArtifact struct {
	RequestID        string            `json:"request_id"`
	Kind             ArtifactKind      `json:"kind"`
	Code             string            `json:"code"`
	CacheHit         bool              `json:"cache_hit"`
	Success          bool              `json:"success"`
	ValidationIssues []string          `json:"validation_issues,omitempty"`
	Validation       *ValidationReport `json:"validation,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

func NewGeneratedArtifact(kind ArtifactKind, outcome GenerationOutcome) *GeneratedArtifact {
	return &GeneratedArtifact{
		RequestID:        uuid.NewString(),
		Kind:             kind,
		Code:             outcome.Text,
		CacheHit:         outcome.CacheHit,
		Success:          outcome.Success,
		ValidationIssues: outcome.ValidationIssues,
		CreatedAt:        time.Now().UTC(),
	}
}

// FileName is the name the artifact is stored under.
func (a *GeneratedArtifact) FileName() string {
	return "test_" + string(a.Kind) + ".py"
}
