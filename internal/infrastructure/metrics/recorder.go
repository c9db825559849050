package metrics

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"testgen/internal/domain/entity"
)

const (
	DefaultCapacity = 1000

	slowGeneration = 10 * time.Second
	noMetricsText  = "# no metrics recorded\n"
)

// Recorder keeps the most recent generation records in a fixed-size ring and
// aggregates them on demand. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	ring   []entity.MetricsRecord
	next   int
	count  int
	latest *entity.MetricsSummary

	now    func() time.Time
	logger *slog.Logger
}

func NewRecorder(capacity int, logger *slog.Logger) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		ring:   make([]entity.MetricsRecord, capacity),
		now:    time.Now,
		logger: logger,
	}
}

// Record appends rec, evicting the oldest record when the ring is full.
func (r *Recorder) Record(rec entity.MetricsRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.now()
	}
	if rec.RequestType == "" {
		rec.RequestType = entity.RequestTypeGeneric
	}

	r.mu.Lock()
	r.ring[r.next] = rec
	r.next = (r.next + 1) % len(r.ring)
	if r.count < len(r.ring) {
		r.count++
	}
	r.mu.Unlock()

	IncGeneration(string(rec.RequestType), rec.Success)
	ObserveGenerationDuration(string(rec.RequestType), rec.CacheHit, rec.Latency)

	if rec.Latency > slowGeneration {
		r.logger.Warn("slow generation", "type", rec.RequestType, "latency_ms", rec.Latency.Milliseconds())
	}
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// records returns a copy of the retained records, oldest first.
func (r *Recorder) records() []entity.MetricsRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]entity.MetricsRecord, 0, r.count)
	start := (r.next - r.count + len(r.ring)) % len(r.ring)
	for i := 0; i < r.count; i++ {
		out = append(out, r.ring[(start+i)%len(r.ring)])
	}
	return out
}

// Summary aggregates records newer than now-window. A non-positive window covers
// every retained record. ok is false when no record falls in the window.
func (r *Recorder) Summary(window time.Duration) (entity.MetricsSummary, bool) {
	now := r.now()
	recs := r.records()
	if window > 0 {
		cutoff := now.Add(-window)
		kept := recs[:0]
		for _, rec := range recs {
			if !rec.Timestamp.Before(cutoff) {
				kept = append(kept, rec)
			}
		}
		recs = kept
	}
	if len(recs) == 0 {
		return entity.MetricsSummary{}, false
	}

	s := aggregate(recs)
	s.GeneratedAt = now.UTC()
	s.Window = window
	if window > 0 {
		s.PeriodHours = window.Hours()
	}
	return s, true
}

// Snapshot summarizes every retained record and keeps the result as the latest
// snapshot for ExportText.
func (r *Recorder) Snapshot() (entity.MetricsSummary, bool) {
	s, ok := r.Summary(0)
	if !ok {
		return s, false
	}
	r.mu.Lock()
	r.latest = &s
	r.mu.Unlock()
	return s, true
}

func (r *Recorder) Latest() (entity.MetricsSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return entity.MetricsSummary{}, false
	}
	return *r.latest, true
}

// ExportText renders the latest snapshot in the Prometheus text format.
func (r *Recorder) ExportText() (string, error) {
	s, ok := r.Latest()
	if !ok {
		return noMetricsText, nil
	}

	reg := prometheus.NewRegistry()
	total := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aitest_agent_requests_total",
		Help: "Total generation requests",
	})
	successful := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aitest_agent_requests_successful_total",
		Help: "Generation requests served without fallback",
	})
	cacheHitRate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aitest_agent_cache_hit_rate",
		Help: "Share of requests served from cache",
	})
	genTime := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aitest_agent_generation_time_ms",
		Help: "Mean generation time in milliseconds",
	})
	respLen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aitest_agent_response_length",
		Help: "Mean response length in characters",
	})
	byType := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aitest_agent_requests_by_type_total",
		Help: "Generation requests by type",
	}, []string{"type"})
	reg.MustRegister(total, successful, cacheHitRate, genTime, respLen, byType)

	total.Add(float64(s.TotalRequests))
	successful.Add(float64(s.SuccessfulRequests))
	cacheHitRate.Set(s.CacheHitRate)
	genTime.Set(s.AvgGenerationTimeMs)
	respLen.Set(s.AvgResponseLength)
	for typ, n := range s.RequestsByType {
		byType.WithLabelValues(typ).Add(float64(n))
	}

	families, err := reg.Gather()
	if err != nil {
		return "", fmt.Errorf("gather snapshot metrics: %w", err)
	}
	return renderText(families)
}

func renderText(families []*dto.MetricFamily) (string, error) {
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", fmt.Errorf("render %s: %w", mf.GetName(), err)
		}
	}
	return buf.String(), nil
}

// aggregate expects at least one record. Latency and length statistics cover
// successful records only; fallbacks would skew them.
func aggregate(recs []entity.MetricsRecord) entity.MetricsSummary {
	s := entity.MetricsSummary{
		TotalRequests:  len(recs),
		RequestsByType: make(map[string]int),
		ErrorsByType:   make(map[string]int),
	}

	var (
		hits      int
		latencies []float64
		lengthSum int
	)
	for _, rec := range recs {
		typ := string(rec.RequestType)
		s.RequestsByType[typ]++
		if rec.CacheHit {
			hits++
		}
		if !rec.Success {
			s.FailedRequests++
			s.ErrorsByType[typ]++
			continue
		}
		s.SuccessfulRequests++
		latencies = append(latencies, float64(rec.Latency)/float64(time.Millisecond))
		lengthSum += rec.ResponseLength
	}

	s.SuccessRate = float64(s.SuccessfulRequests) / float64(s.TotalRequests)
	s.CacheHitRate = float64(hits) / float64(s.TotalRequests)

	if n := len(latencies); n > 0 {
		sort.Float64s(latencies)
		var sum float64
		for _, l := range latencies {
			sum += l
		}
		s.AvgGenerationTimeMs = sum / float64(n)
		s.P50GenerationTimeMs = nearestRank(latencies, 50)
		s.P95GenerationTimeMs = nearestRank(latencies, 95)
		s.P99GenerationTimeMs = nearestRank(latencies, 99)
		s.AvgResponseLength = float64(lengthSum) / float64(n)
	}
	return s
}

// nearestRank expects sorted, non-empty values.
func nearestRank(sorted []float64, p float64) float64 {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
