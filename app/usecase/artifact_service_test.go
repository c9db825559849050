package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testgen/internal/domain/entity"
)

func TestArtifactService(t *testing.T) {
	ctx := context.Background()
	store := newMemArtifacts()
	artifact := entity.NewGeneratedArtifact(entity.ArtifactTestcase, entity.GenerationOutcome{Text: "code", Success: true})
	require.NoError(t, store.Save(ctx, artifact))

	svc := NewArtifactService(store)

	got, err := svc.GetArtifact(ctx, artifact.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "code", got.Code)

	ids, err := svc.ListArtifacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{artifact.RequestID}, ids)

	require.NoError(t, svc.DeleteArtifact(ctx, artifact.RequestID))
	_, err = svc.GetArtifact(ctx, artifact.RequestID)
	assert.Error(t, err)
}

func TestArtifactService_EmptyID(t *testing.T) {
	svc := NewArtifactService(newMemArtifacts())

	_, err := svc.GetArtifact(context.Background(), "")
	assert.True(t, entity.IsInputError(err))
	assert.True(t, entity.IsInputError(svc.DeleteArtifact(context.Background(), "")))
}

func TestValidationService(t *testing.T) {
	svc := NewValidationService(fakeValidator{}, testLogger())
	report := svc.Validate(context.Background(), "anything")
	assert.True(t, report.IsValid)
}

type fakeValidator struct{}

func (fakeValidator) Validate(context.Context, string) entity.ValidationReport {
	return entity.ValidationReport{IsValid: true, Issues: []entity.ValidationIssue{}}
}
