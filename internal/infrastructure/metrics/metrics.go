package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Generation
	Generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testgen_generations_total",
			Help: "Generation calls by request type and outcome",
		},
		[]string{"type", "outcome"}, // outcome: success|fallback
	)
	GenerationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "testgen_generation_duration_seconds",
			Help:    "End-to-end generation latency including cache lookups and retries",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms..80s
		},
		[]string{"type", "cache"}, // cache: hit|miss
	)

	// LLM upstream
	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testgen_llm_requests_total",
			Help: "Number of upstream completion attempts by model",
		},
		[]string{"model"},
	)
	LLMRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testgen_llm_retries_total",
			Help: "Upstream attempts that were retries of a failed attempt",
		},
		[]string{"model"},
	)

	// Cache
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testgen_cache_lookups_total",
			Help: "Generation cache lookups by tier and result",
		},
		[]string{"tier", "result"}, // tier: memory|store, result: hit|miss|error
	)

	// Validation
	ValidationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testgen_validation_runs_total",
			Help: "Number of validation runs by validator type and result",
		},
		[]string{"validator", "result"}, // result: pass|fail
	)
	ValidationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "testgen_validation_duration_seconds",
			Help:    "Duration of validation runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"validator"},
	)

	// Artifact storage ops
	ArtifactOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testgen_artifact_ops_total",
			Help: "Artifact repository operations performed",
		},
		[]string{"op"}, // op: get|save|delete|list
	)

	// Websockets / realtime
	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "testgen_ws_connections",
			Help: "Current number of open metrics stream connections",
		},
	)

	// Errors
	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testgen_errors_total",
			Help: "Errors encountered in components",
		},
		[]string{"component", "type"},
	)
)

func init() {
	prometheus.MustRegister(
		// Generation
		Generations,
		GenerationDurationSeconds,
		// LLM
		LLMRequests,
		LLMRetries,
		// Cache
		CacheLookups,
		// Validation
		ValidationRuns,
		ValidationDurationSeconds,
		// Artifacts
		ArtifactOps,
		// WS
		WebsocketConnections,
		// Errors
		Errors,
	)
}

// Handler serves the process-wide registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Generation
func IncGeneration(typ string, success bool) {
	outcome := "success"
	if !success {
		outcome = "fallback"
	}
	Generations.WithLabelValues(typ, outcome).Inc()
}

func ObserveGenerationDuration(typ string, cacheHit bool, d time.Duration) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	GenerationDurationSeconds.WithLabelValues(typ, cache).Observe(d.Seconds())
}

// LLM
func IncLLMRequest(model string) {
	LLMRequests.WithLabelValues(model).Inc()
}

func IncLLMRetry(model string) {
	LLMRetries.WithLabelValues(model).Inc()
}

// Cache
func IncCacheLookup(tier, result string) {
	CacheLookups.WithLabelValues(tier, result).Inc()
}

// Validation
func IncValidationRun(validator string, valid bool) {
	result := "pass"
	if !valid {
		result = "fail"
	}
	ValidationRuns.WithLabelValues(validator, result).Inc()
}

func ObserveValidationDuration(validator string, d time.Duration) {
	ValidationDurationSeconds.WithLabelValues(validator).Observe(d.Seconds())
}

// Artifacts
func IncArtifactOp(op string) {
	ArtifactOps.WithLabelValues(op).Inc()
}

// Websocket
func IncWSConnections() {
	WebsocketConnections.Inc()
}

func DecWSConnections() {
	WebsocketConnections.Dec()
}

// Errors
func IncError(component, typ string) {
	Errors.WithLabelValues(component, typ).Inc()
}
