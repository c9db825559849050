package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testgen/app/usecase"
	"testgen/internal/domain/entity"
	"testgen/internal/infrastructure/llm"
	"testgen/internal/infrastructure/metrics"
	"testgen/internal/infrastructure/validator"
)

type fakeGeneration struct {
	mu       sync.Mutex
	testcase []usecase.TestcaseInput
	autotest []usecase.AutotestInput
	err      error
}

func (f *fakeGeneration) GenerateTestcase(_ context.Context, in usecase.TestcaseInput) (*entity.GeneratedArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.testcase = append(f.testcase, in)
	if f.err != nil {
		return nil, f.err
	}
	return entity.NewGeneratedArtifact(entity.ArtifactTestcase, entity.GenerationOutcome{Text: "import allure\n", Success: true}), nil
}

func (f *fakeGeneration) GenerateAutotest(_ context.Context, in usecase.AutotestInput) (*entity.GeneratedArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autotest = append(f.autotest, in)
	if f.err != nil {
		return nil, f.err
	}
	return entity.NewGeneratedArtifact(entity.ArtifactAutotestAPI, entity.GenerationOutcome{Text: "import allure\n", Success: true}), nil
}

type fakeArtifacts struct {
	artifact *entity.GeneratedArtifact
}

func (f *fakeArtifacts) GetArtifact(_ context.Context, id string) (*entity.GeneratedArtifact, error) {
	if f.artifact == nil || f.artifact.RequestID != id {
		return nil, fmt.Errorf("get artifact %s: %w", id, entity.ErrArtifactNotFound)
	}
	return f.artifact, nil
}

func (f *fakeArtifacts) ListArtifacts(context.Context) ([]string, error) {
	if f.artifact == nil {
		return []string{}, nil
	}
	return []string{f.artifact.RequestID}, nil
}

func (f *fakeArtifacts) DeleteArtifact(context.Context, string) error {
	f.artifact = nil
	return nil
}

type fakeLLM struct{}

func (fakeLLM) Model() string { return "test-model" }

func (fakeLLM) CacheStats() llm.CacheStats { return llm.CacheStats{Size: 1, Hits: 2, Misses: 3} }

type fixture struct {
	gen       *fakeGeneration
	recorder  *metrics.Recorder
	artifacts *fakeArtifacts
	server    http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		gen:       &fakeGeneration{},
		recorder:  metrics.NewRecorder(100, logger),
		artifacts: &fakeArtifacts{},
	}
	h := NewHandler(Services{
		Generation:     f.gen,
		Validation:     usecase.NewValidationService(validator.NewAllureValidator(), logger),
		Artifacts:      f.artifacts,
		Metrics:        f.recorder,
		LLM:            fakeLLM{},
		StreamInterval: 20 * time.Millisecond,
	}, logger, prometheus.NewRegistry())
	f.server = h.Router(nil)
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestGenerateTestcase_OK(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/generate/testcase", `{"test_type":"api","requirements_text":"login works"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody[entity.GeneratedArtifact](t, rec)
	assert.Equal(t, "import allure\n", body.Code)

	_, err := uuid.Parse(rec.Header().Get(headerRequestID))
	assert.NoError(t, err)
	assert.NotEmpty(t, rec.Header().Get(headerProcessTime))

	require.Len(t, f.gen.testcase, 1)
	assert.Equal(t, usecase.TestcaseInput{TestType: "api", RequirementsText: "login works"}, f.gen.testcase[0])
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set(headerRequestID, "abc-123")
	rec := httptest.NewRecorder()

	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get(headerRequestID))
}

func TestGenerateTestcase_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"test_type":`},
		{"unknown test type", `{"test_type":"load","requirements_text":"x"}`},
		{"missing test type", `{"requirements_text":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, "/api/v1/generate/testcase", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody[errorResponse](t, rec)
			assert.Equal(t, "/api/v1/generate/testcase", body.Path)
			assert.NotEmpty(t, body.RequestID)
			assert.Empty(t, f.gen.testcase)
		})
	}
}

func TestGenerateTestcase_OpenAPISpecForms(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want string
	}{
		{"string", `"openapi: 3.0.0\npaths: {}"`, "openapi: 3.0.0\npaths: {}"},
		{"object", `{"openapi":"3.0.0"}`, "{\n  \"openapi\": \"3.0.0\"\n}"},
		{"null", `null`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, "/api/v1/generate/testcase",
				`{"test_type":"ui","openapi_spec":`+tt.spec+`}`)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			require.Len(t, f.gen.testcase, 1)
			assert.Equal(t, tt.want, f.gen.testcase[0].OpenAPISpec)
		})
	}
}

func TestGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"input error", entity.NewInputError("path", "endpoint not found"), http.StatusBadRequest, "path: endpoint not found"},
		{"internal error", errors.New("disk on fire"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.gen.err = tt.err

			rec := f.do(t, http.MethodPost, "/api/v1/generate/autotest",
				`{"target":"api","openapi_spec":"x","method":"get","path":"/pets"}`)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.message, decodeBody[errorResponse](t, rec).Message)
		})
	}
}

func TestGenerateAutotest_PassesFields(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/generate/autotest", `{"target":"ui","scenario":"open home"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, f.gen.autotest, 1)
	assert.Equal(t, usecase.AutotestInput{Target: "ui", Scenario: "open home"}, f.gen.autotest[0])
}

func TestValidateTestcase(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/validate/testcase", `{"code":""}`)

	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody[entity.ValidationReport](t, rec)
	assert.False(t, report.IsValid)
	assert.Equal(t, 2, report.ErrorCount())
}

func TestMetricsEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/metrics/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no data for the last 24 hours", decodeBody[map[string]string](t, rec)["message"])

	rec = f.do(t, http.MethodGet, "/api/v1/metrics/prometheus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# no metrics recorded\n", rec.Body.String())

	f.recorder.Record(entity.MetricsRecord{
		RequestType:    entity.RequestTypeTestcase,
		Success:        true,
		Latency:        time.Second,
		ResponseLength: 10,
	})

	rec = f.do(t, http.MethodGet, "/api/v1/metrics/summary?hours=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeBody[entity.MetricsSummary](t, rec)
	assert.Equal(t, 1, summary.TotalRequests)
	assert.Equal(t, 1.0, summary.PeriodHours)

	rec = f.do(t, http.MethodGet, "/api/v1/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[metricsResp](t, rec)
	require.NotNil(t, resp.Metrics)
	assert.Equal(t, 1, resp.Metrics.TotalRequests)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, &llm.CacheStats{Size: 1, Hits: 2, Misses: 3}, resp.Cache)

	rec = f.do(t, http.MethodGet, "/api/v1/metrics/prometheus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "aitest_agent_requests_total 1\n")
}

func TestMetricsSummary_BadHours(t *testing.T) {
	for _, q := range []string{"abc", "0", "-3"} {
		f := newFixture(t)
		rec := f.do(t, http.MethodGet, "/api/v1/metrics/summary?hours="+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestArtifacts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/artifacts/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.artifacts.artifact = entity.NewGeneratedArtifact(entity.ArtifactTestcase, entity.GenerationOutcome{Text: "x"})
	id := f.artifacts.artifact.RequestID

	rec = f.do(t, http.MethodGet, "/api/v1/artifacts/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decodeBody[entity.GeneratedArtifact](t, rec).RequestID)

	rec = f.do(t, http.MethodGet, "/api/v1/artifacts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{id}, decodeBody[map[string]any](t, rec)["artifacts"])

	rec = f.do(t, http.MethodDelete, "/api/v1/artifacts/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestArtifacts_Disabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(Services{Metrics: metrics.NewRecorder(10, logger)}, logger, prometheus.NewRegistry())

	rec := httptest.NewRecorder()
	h.Router(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/x", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPrometheusEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.server)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/metrics/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	var first metricsResp
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Nil(t, first.Metrics)
	assert.Equal(t, "no metrics recorded", first.Message)

	f.recorder.Record(entity.MetricsRecord{RequestType: entity.RequestTypeTestcase, Success: true})

	seen := false
	for i := 0; i < 50 && !seen; i++ {
		var next metricsResp
		require.NoError(t, conn.ReadJSON(&next))
		seen = next.Metrics != nil && next.Metrics.TotalRequests == 1
	}
	assert.True(t, seen)
}
