package transport

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"testgen/app/usecase"
	"testgen/internal/domain/entity"
	"testgen/internal/infrastructure/llm"
	"testgen/internal/infrastructure/metrics"
)

const (
	headerRequestID   = "X-Request-ID"
	headerProcessTime = "X-Process-Time"

	defaultStreamInterval = 5 * time.Second
	maxBodyBytes          = 4 << 20
)

// MetricsView is the read side of the metrics recorder.
type MetricsView interface {
	Snapshot() (entity.MetricsSummary, bool)
	Summary(window time.Duration) (entity.MetricsSummary, bool)
	ExportText() (string, error)
}

// LLMInfo describes the generation client for the metrics endpoint.
type LLMInfo interface {
	Model() string
	CacheStats() llm.CacheStats
}

type Services struct {
	Generation     usecase.GenerationUseCase
	Validation     usecase.ValidationUseCase
	// Artifacts is optional; artifact routes answer 404 without it.
	Artifacts      usecase.ArtifactUseCase
	Metrics        MetricsView
	LLM            LLMInfo
	StreamInterval time.Duration
}

type Handler struct {
	svc      Services
	logger   *slog.Logger
	validate *validator.Validate
	upgrader websocket.Upgrader

	reqDuration *prometheus.HistogramVec
	reqCount    *prometheus.CounterVec
	errCount    *prometheus.CounterVec
}

// NewHandler registers the HTTP metrics on reg; pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewHandler(svc Services, logger *slog.Logger, reg prometheus.Registerer) *Handler {
	if svc.StreamInterval <= 0 {
		svc.StreamInterval = defaultStreamInterval
	}

	reqDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	reqCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "path"},
	)

	errCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of HTTP request errors.",
		},
		[]string{"method", "path", "status"},
	)

	reg.MustRegister(reqDuration, reqCount, errCount)

	return &Handler{
		svc:      svc,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		reqDuration: reqDuration,
		reqCount:    reqCount,
		errCount:    errCount,
	}
}

// Router builds the full HTTP surface: API routes, request ids, timing, CORS
// and panic recovery.
func (h *Handler) Router(allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(h.withRequestID)
	h.RegisterRoutes(r)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", headerRequestID}),
		handlers.ExposedHeaders([]string{headerRequestID, headerProcessTime}),
	)
	recovery := handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))
	return recovery(cors(r))
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/generate/testcase", h.withMetrics(h.handleGenerateTestcase)).Methods(http.MethodPost)
	api.HandleFunc("/generate/autotest", h.withMetrics(h.handleGenerateAutotest)).Methods(http.MethodPost)
	api.HandleFunc("/validate/testcase", h.withMetrics(h.handleValidate)).Methods(http.MethodPost)
	api.HandleFunc("/artifacts", h.withMetrics(h.handleListArtifacts)).Methods(http.MethodGet)
	api.HandleFunc("/artifacts/{id}", h.withMetrics(h.handleGetArtifact)).Methods(http.MethodGet)
	api.HandleFunc("/artifacts/{id}", h.withMetrics(h.handleDeleteArtifact)).Methods(http.MethodDelete)
	api.HandleFunc("/metrics", h.withMetrics(h.handleMetrics)).Methods(http.MethodGet)
	api.HandleFunc("/metrics/summary", h.withMetrics(h.handleMetricsSummary)).Methods(http.MethodGet)
	api.HandleFunc("/metrics/prometheus", h.withMetrics(h.handleMetricsPrometheus)).Methods(http.MethodGet)
	api.HandleFunc("/metrics/stream", h.handleMetricsStream).Methods(http.MethodGet)
	api.HandleFunc("/health", h.withMetrics(h.handleHealth)).Methods(http.MethodGet)

	// Prometheus
	r.Handle("/metrics", metrics.Handler())
}

// withRequestID echoes or assigns X-Request-ID and stamps X-Process-Time.
func (h *Handler) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(headerRequestID, id)
		}
		w.Header().Set(headerRequestID, id)

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK, start: start}
		next.ServeHTTP(rw, r)

		h.logger.Info("request served",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", time.Since(start),
		)
	})
}

func (h *Handler) withMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		method := r.Method

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)

		duration := time.Since(start).Seconds()
		statusStr := strconv.Itoa(rw.status)

		h.reqCount.WithLabelValues(method, path).Inc()
		h.reqDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		if rw.status >= 400 {
			h.errCount.WithLabelValues(method, path, statusStr).Inc()
		}
	}
}

// statusRecorder remembers the status code; with a non-zero start it also
// writes X-Process-Time just before the header goes out.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	start       time.Time
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = code
	if !r.start.IsZero() {
		elapsed := time.Since(r.start).Seconds()
		r.Header().Set(headerProcessTime, strconv.FormatFloat(elapsed, 'f', 3, 64))
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.wroteHeader = true
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Path      string `json:"path"`
	Method    string `json:"method"`
}

// writeError hides the cause of 5xx responses from the client.
func writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, code, errorResponse{
		Error:     http.StatusText(code),
		Message:   msg,
		RequestID: r.Header.Get(headerRequestID),
		Path:      r.URL.Path,
		Method:    r.Method,
	})
}

// fail maps an error to its status: input problems are the caller's, the rest is ours.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verrs validator.ValidationErrors
	if entity.IsInputError(err) || errors.As(err, &verrs) {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	metrics.IncError("transport", op)
	h.logger.Error(op+" failed", "request_id", r.Header.Get(headerRequestID), "err", err)
	writeError(w, r, http.StatusInternalServerError, err)
}
