package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AutoMapMetrics records metadata for auto-map batch runs.
type AutoMapMetrics struct {
	duration     *prometheus.HistogramVec
	success      *prometheus.CounterVec
	failure      *prometheus.CounterVec
	linksCreated *prometheus.CounterVec
}

// NewAutoMapMetrics registers the batch metrics on the provided registerer.
func NewAutoMapMetrics(reg prometheus.Registerer) *AutoMapMetrics {
	if reg == nil {
		return &AutoMapMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "automap_batch_duration_seconds",
		Help:    "Duration of auto-map batch runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "automap_batch_success",
		Help: "Successful auto-map batch executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "automap_batch_failure",
		Help: "Failed auto-map batch executions.",
	}, []string{"job"})
	linksCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "automap_links_created_total",
		Help: "Order links created by the auto-mapper, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, success, failure, linksCreated)
	return &AutoMapMetrics{
		duration:     duration,
		success:      success,
		failure:      failure,
		linksCreated: linksCreated,
	}
}

// ObserveDuration records the duration for the named job.
func (m *AutoMapMetrics) ObserveDuration(job string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (m *AutoMapMetrics) IncSuccess(job string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (m *AutoMapMetrics) IncFailure(job string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// AddLinksCreated adds to the links-created counter for an outcome
// ("active" or "pending").
func (m *AutoMapMetrics) AddLinksCreated(outcome string, n int) {
	if m == nil || m.linksCreated == nil || n <= 0 {
		return
	}
	m.linksCreated.WithLabelValues(normalizeLabel(outcome)).Add(float64(n))
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
