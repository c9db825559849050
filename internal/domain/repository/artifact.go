package repository

import (
	"context"
	"testgen/internal/domain/entity"
)

// ArtifactRepository persists generated test artifacts.
type ArtifactRepository interface {
	Save(ctx context.Context, artifact *entity.GeneratedArtifact) error
	Get(ctx context.Context, requestID string) (*entity.GeneratedArtifact, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, requestID string) error
}
