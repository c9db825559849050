package usecase

import (
	"context"
	"log/slog"
	"time"

	"testgen/internal/domain/entity"
	"testgen/internal/domain/repository"
	"testgen/internal/infrastructure/metrics"
)

const allureValidator = "allure"

type ValidationUseCase interface {
	Validate(ctx context.Context, code string) entity.ValidationReport
}

// ValidationService runs the structural validator and accounts for it.
type ValidationService struct {
	validator repository.TestValidator
	logger    *slog.Logger
}

func NewValidationService(v repository.TestValidator, logger *slog.Logger) *ValidationService {
	return &ValidationService{validator: v, logger: logger}
}

var _ ValidationUseCase = (*ValidationService)(nil)

func (s *ValidationService) Validate(ctx context.Context, code string) entity.ValidationReport {
	start := time.Now()
	report := s.validator.Validate(ctx, code)
	elapsed := time.Since(start)

	metrics.IncValidationRun(allureValidator, report.IsValid)
	metrics.ObserveValidationDuration(allureValidator, elapsed)

	s.logger.Info("validation finished",
		"valid", report.IsValid,
		"errors", report.ErrorCount(),
		"issues", len(report.Issues),
		"duration", elapsed,
	)
	return report
}
