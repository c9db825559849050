package repository

import (
	"context"
	"testgen/internal/domain/entity"
)

// TestValidator checks generated code against the test artifact contract.
type TestValidator interface {
	Validate(ctx context.Context, code string) entity.ValidationReport
}
