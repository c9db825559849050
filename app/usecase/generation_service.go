package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"testgen/internal/domain/entity"
	"testgen/internal/domain/repository"
	"testgen/internal/infrastructure/metrics"
	"testgen/internal/infrastructure/openapi"
	"testgen/internal/infrastructure/validator"
)

const (
	TestTypeAPI = "api"
	TestTypeUI  = "ui"

	TargetAPI = "api"
	TargetUI  = "ui"

	priorityCritical = "CRITICAL"
	priorityNormal   = "NORMAL"

	importAllure     = "import allure"
	importHTTPX      = "import httpx"
	importPlaywright = "from playwright.sync_api import Page, expect"
)

// Generator is the generation client as seen by the use cases.
type Generator interface {
	Generate(ctx context.Context, req entity.GenerationRequest) (entity.GenerationOutcome, error)
}

type TestcaseInput struct {
	TestType         string
	RequirementsText string
	OpenAPISpec      string
}

type AutotestInput struct {
	Target      string
	OpenAPISpec string
	Method      string
	Path        string
	Scenario    string
}

type GenerationUseCase interface {
	GenerateTestcase(ctx context.Context, in TestcaseInput) (*entity.GeneratedArtifact, error)
	GenerateAutotest(ctx context.Context, in AutotestInput) (*entity.GeneratedArtifact, error)
}

// GenerationService builds prompts, generates, post-processes, validates and
// optionally stores the resulting artifact.
type GenerationService struct {
	gen        Generator
	validation ValidationUseCase
	artifacts  repository.ArtifactRepository
	logger     *slog.Logger
}

// NewGenerationService wires the pipeline. artifacts may be nil to disable persistence.
func NewGenerationService(
	gen Generator,
	validation ValidationUseCase,
	artifacts repository.ArtifactRepository,
	logger *slog.Logger,
) *GenerationService {
	return &GenerationService{
		gen:        gen,
		validation: validation,
		artifacts:  artifacts,
		logger:     logger,
	}
}

var _ GenerationUseCase = (*GenerationService)(nil)

func (s *GenerationService) GenerateTestcase(ctx context.Context, in TestcaseInput) (*entity.GeneratedArtifact, error) {
	priority := priorityNormal
	switch in.TestType {
	case TestTypeAPI:
		priority = priorityCritical
	case TestTypeUI:
	default:
		return nil, entity.NewInputError("test_type", "must be %q or %q, got %q", TestTypeUI, TestTypeAPI, in.TestType)
	}

	requirements := strings.TrimSpace(in.RequirementsText)
	if spec := strings.TrimSpace(in.OpenAPISpec); spec != "" {
		requirements = "OpenAPI specification:\n" + spec
	}
	if requirements == "" {
		return nil, entity.NewInputError("requirements_text", "either requirements_text or openapi_spec is required")
	}

	s.logger.Info("generating testcase", "test_type", in.TestType)
	req := entity.NewGenerationRequest(
		entity.RenderTestcasePrompt(in.TestType, priority, requirements),
		entity.TestcasePrompt.SystemRole,
		entity.RequestTypeTestcase,
	)
	return s.run(ctx, entity.ArtifactTestcase, req, "")
}

func (s *GenerationService) GenerateAutotest(ctx context.Context, in AutotestInput) (*entity.GeneratedArtifact, error) {
	switch in.Target {
	case TargetAPI:
		return s.generateAPIAutotest(ctx, in)
	case TargetUI:
		return s.generateUIAutotest(ctx, in)
	default:
		return nil, entity.NewInputError("target", "must be %q or %q, got %q", TargetAPI, TargetUI, in.Target)
	}
}

func (s *GenerationService) generateAPIAutotest(ctx context.Context, in AutotestInput) (*entity.GeneratedArtifact, error) {
	if strings.TrimSpace(in.OpenAPISpec) == "" || in.Method == "" || in.Path == "" {
		return nil, entity.NewInputError("openapi_spec", "openapi_spec, method and path are required for api autotests")
	}
	endpoints, err := openapi.ExtractEndpoints([]byte(in.OpenAPISpec))
	if err != nil {
		return nil, err
	}
	ep, ok := openapi.FindEndpoint(endpoints, in.Method, in.Path)
	if !ok {
		return nil, entity.NewInputError("path", "endpoint %s %s not found in OpenAPI spec", strings.ToUpper(in.Method), in.Path)
	}

	s.logger.Info("generating api autotest", "method", ep.Method, "path", ep.Path)
	req := entity.NewGenerationRequest(
		entity.RenderAPIAutotestPrompt(ep, in.OpenAPISpec),
		entity.APIAutotestPrompt.SystemRole,
		entity.RequestTypeAutotestAPI,
	)
	return s.run(ctx, entity.ArtifactAutotestAPI, req, TargetAPI)
}

func (s *GenerationService) generateUIAutotest(ctx context.Context, in AutotestInput) (*entity.GeneratedArtifact, error) {
	if strings.TrimSpace(in.Scenario) == "" {
		return nil, entity.NewInputError("scenario", "is required for ui autotests")
	}

	s.logger.Info("generating ui autotest")
	req := entity.NewGenerationRequest(
		entity.RenderUIAutotestPrompt(priorityNormal, in.Scenario),
		entity.UIAutotestPrompt.SystemRole,
		entity.RequestTypeAutotestUI,
	)
	return s.run(ctx, entity.ArtifactAutotestUI, req, TargetUI)
}

// run generates, adds imports the target framework needs, validates and stores.
func (s *GenerationService) run(ctx context.Context, kind entity.ArtifactKind, req entity.GenerationRequest, target string) (*entity.GeneratedArtifact, error) {
	start := time.Now()
	outcome, err := s.gen.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", kind, err)
	}

	if target != "" {
		var added []string
		outcome.Text, added = ensureImports(ctx, outcome.Text, target)
		outcome.ValidationIssues = append(outcome.ValidationIssues, added...)
	}

	artifact := entity.NewGeneratedArtifact(kind, outcome)
	report := s.validation.Validate(ctx, artifact.Code)
	artifact.Validation = &report

	if s.artifacts != nil {
		if err := s.artifacts.Save(ctx, artifact); err != nil {
			metrics.IncError("generation_service", "save_artifact")
			s.logger.Error("save artifact failed", "request_id", artifact.RequestID, "err", err)
		}
	}

	s.logger.Info("artifact ready",
		"request_id", artifact.RequestID,
		"kind", kind,
		"success", artifact.Success,
		"cache_hit", artifact.CacheHit,
		"valid", report.IsValid,
		"duration", time.Since(start),
	)
	return artifact, nil
}

// ensureImports prepends imports the generated code relies on but does not have.
// Running it twice is a no-op.
func ensureImports(ctx context.Context, code, target string) (string, []string) {
	facts, err := validator.CollectFacts(ctx, code)
	if err != nil {
		return code, nil
	}

	var missing []string
	if !facts.HasAllureImport {
		missing = append(missing, importAllure)
	}
	switch target {
	case TargetAPI:
		if (strings.Contains(code, "httpx.") || strings.Contains(code, "AsyncClient")) && !facts.HasImport("httpx") {
			missing = append(missing, importHTTPX)
		}
	case TargetUI:
		if strings.Contains(code, "page.goto") && !facts.HasImport("playwright") {
			missing = append(missing, importPlaywright)
		}
	}
	if len(missing) == 0 {
		return code, nil
	}

	issues := make([]string, 0, len(missing))
	for _, imp := range missing {
		issues = append(issues, "added missing "+imp)
	}
	return validator.InsertImports(code, facts.HeaderEnd, strings.Join(missing, "\n")+"\n"), issues
}
