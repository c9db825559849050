package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"testgen/app/usecase"
	"testgen/internal/domain/entity"
	"testgen/internal/infrastructure/llm"
)

const (
	defaultSummaryHours = 24
	maxSummaryHours     = 24 * 365
)

var errArtifactsDisabled = errors.New("artifact storage is disabled")

// specField accepts openapi_spec either as a JSON string (raw YAML or JSON
// text) or as an inline JSON object.
type specField string

func (s *specField) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = ""
		return nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*s = specField(text)
		return nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, trimmed, "", "  "); err != nil {
		return err
	}
	*s = specField(out.String())
	return nil
}

type generateTestcaseReq struct {
	TestType         string    `json:"test_type" validate:"required,oneof=ui api"`
	RequirementsText string    `json:"requirements_text" validate:"max=200000"`
	OpenAPISpec      specField `json:"openapi_spec"`
}

type generateAutotestReq struct {
	Target      string    `json:"target" validate:"required,oneof=api ui"`
	OpenAPISpec specField `json:"openapi_spec"`
	Method      string    `json:"method" validate:"omitempty,alpha,max=10"`
	Path        string    `json:"path" validate:"omitempty,startswith=/"`
	Scenario    string    `json:"scenario" validate:"max=200000"`
}

type validateReq struct {
	Code string `json:"code" validate:"max=1000000"`
}

type metricsResp struct {
	Metrics *entity.MetricsSummary `json:"metrics"`
	Message string                 `json:"message,omitempty"`
	Model   string                 `json:"model,omitempty"`
	Cache   *llm.CacheStats        `json:"cache,omitempty"`
}

// decode reads a JSON body into dst and runs its validate tags.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return entity.NewInputError("body", "bad request body: %v", err)
	}
	return h.validate.Struct(dst)
}

// POST /api/v1/generate/testcase
func (h *Handler) handleGenerateTestcase(w http.ResponseWriter, r *http.Request) {
	var req generateTestcaseReq
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	artifact, err := h.svc.Generation.GenerateTestcase(r.Context(), usecase.TestcaseInput{
		TestType:         req.TestType,
		RequirementsText: req.RequirementsText,
		OpenAPISpec:      string(req.OpenAPISpec),
	})
	if err != nil {
		h.fail(w, r, "generate_testcase", err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// POST /api/v1/generate/autotest
func (h *Handler) handleGenerateAutotest(w http.ResponseWriter, r *http.Request) {
	var req generateAutotestReq
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	artifact, err := h.svc.Generation.GenerateAutotest(r.Context(), usecase.AutotestInput{
		Target:      req.Target,
		OpenAPISpec: string(req.OpenAPISpec),
		Method:      req.Method,
		Path:        req.Path,
		Scenario:    req.Scenario,
	})
	if err != nil {
		h.fail(w, r, "generate_autotest", err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// POST /api/v1/validate/testcase
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateReq
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Validation.Validate(r.Context(), req.Code))
}

// GET /api/v1/artifacts
func (h *Handler) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	if h.svc.Artifacts == nil {
		writeError(w, r, http.StatusNotFound, errArtifactsDisabled)
		return
	}
	ids, err := h.svc.Artifacts.ListArtifacts(r.Context())
	if err != nil {
		h.fail(w, r, "list_artifacts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": ids})
}

// GET /api/v1/artifacts/{id}
func (h *Handler) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	if h.svc.Artifacts == nil {
		writeError(w, r, http.StatusNotFound, errArtifactsDisabled)
		return
	}
	id := mux.Vars(r)["id"]
	artifact, err := h.svc.Artifacts.GetArtifact(r.Context(), id)
	if err != nil {
		if errors.Is(err, entity.ErrArtifactNotFound) {
			writeError(w, r, http.StatusNotFound, fmt.Errorf("artifact %s not found", id))
			return
		}
		h.fail(w, r, "get_artifact", err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// DELETE /api/v1/artifacts/{id}
func (h *Handler) handleDeleteArtifact(w http.ResponseWriter, r *http.Request) {
	if h.svc.Artifacts == nil {
		writeError(w, r, http.StatusNotFound, errArtifactsDisabled)
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.svc.Artifacts.DeleteArtifact(r.Context(), id); err != nil {
		h.fail(w, r, "delete_artifact", err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// GET /api/v1/metrics
func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	resp := metricsResp{}
	if s, ok := h.svc.Metrics.Snapshot(); ok {
		resp.Metrics = &s
	} else {
		resp.Message = "no metrics recorded"
	}
	if h.svc.LLM != nil {
		stats := h.svc.LLM.CacheStats()
		resp.Model = h.svc.LLM.Model()
		resp.Cache = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/metrics/summary?hours=N
func (h *Handler) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	hours := defaultSummaryHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSummaryHours {
			writeError(w, r, http.StatusBadRequest,
				entity.NewInputError("hours", "must be an integer between 1 and %d", maxSummaryHours))
			return
		}
		hours = n
	}

	s, ok := h.svc.Metrics.Summary(time.Duration(hours) * time.Hour)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("no data for the last %d hours", hours),
		})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GET /api/v1/metrics/prometheus
func (h *Handler) handleMetricsPrometheus(w http.ResponseWriter, r *http.Request) {
	h.svc.Metrics.Snapshot()
	text, err := h.svc.Metrics.ExportText()
	if err != nil {
		h.fail(w, r, "export_metrics", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// GET /api/v1/health
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"ok": true,
		"ts": time.Now().UTC(),
	}
	writeJSON(w, http.StatusOK, status)
}
