package entity

import "time"

type MetricsRecord struct {
	Timestamp      time.Time     `json:"timestamp"`
	RequestType    RequestType   `json:"request_type"`
	Success        bool          `json:"success"`
	Latency        time.Duration `json:"latency"`
	ResponseLength int           `json:"response_length"`
	CacheHit       bool          `json:"cache_hit"`
}

type MetricsSummary struct {
	GeneratedAt         time.Time      `json:"generated_at"`
	Window              time.Duration  `json:"-"`
	PeriodHours         float64        `json:"period_hours,omitempty"`
	TotalRequests       int            `json:"total_requests"`
	SuccessfulRequests  int            `json:"successful_requests"`
	FailedRequests      int            `json:"failed_requests"`
	SuccessRate         float64        `json:"success_rate"`
	CacheHitRate        float64        `json:"cache_hit_rate"`
	AvgGenerationTimeMs float64        `json:"avg_generation_time_ms"`
	P50GenerationTimeMs float64        `json:"p50_generation_time_ms"`
	P95GenerationTimeMs float64        `json:"p95_generation_time_ms"`
	P99GenerationTimeMs float64        `json:"p99_generation_time_ms"`
	AvgResponseLength   float64        `json:"avg_response_length"`
	RequestsByType      map[string]int `json:"requests_by_type"`
	ErrorsByType        map[string]int `json:"errors_by_type"`
}
