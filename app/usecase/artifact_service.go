package usecase

import (
	"context"
	"fmt"

	"testgen/internal/domain/entity"
	"testgen/internal/domain/repository"
)

type ArtifactUseCase interface {
	GetArtifact(ctx context.Context, requestID string) (*entity.GeneratedArtifact, error)
	ListArtifacts(ctx context.Context) ([]string, error)
	DeleteArtifact(ctx context.Context, requestID string) error
}

type ArtifactService struct {
	repo repository.ArtifactRepository
}

func NewArtifactService(repo repository.ArtifactRepository) ArtifactUseCase {
	return &ArtifactService{repo: repo}
}

var _ ArtifactUseCase = (*ArtifactService)(nil)

func (s *ArtifactService) GetArtifact(ctx context.Context, requestID string) (*entity.GeneratedArtifact, error) {
	if requestID == "" {
		return nil, entity.NewInputError("request_id", "is required")
	}
	artifact, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get artifact %s: %w", requestID, err)
	}
	return artifact, nil
}

func (s *ArtifactService) ListArtifacts(ctx context.Context) ([]string, error) {
	ids, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return ids, nil
}

func (s *ArtifactService) DeleteArtifact(ctx context.Context, requestID string) error {
	if requestID == "" {
		return entity.NewInputError("request_id", "is required")
	}
	if err := s.repo.Delete(ctx, requestID); err != nil {
		return fmt.Errorf("delete artifact %s: %w", requestID, err)
	}
	return nil
}
