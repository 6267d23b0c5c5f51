// Package metrics exposes Prometheus instruments for form submissions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the submission instruments. Construct with New so tests can
// use a private registry.
type Metrics struct {
	submissions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	bodyBytes   prometheus.Histogram
	gatherer    prometheus.Gatherer
}

// New registers the instruments on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		submissions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "incosense",
				Subsystem: "subscriptions",
				Name:      "submissions_total",
				Help:      "Subscription form submissions by outcome.",
			},
			[]string{"outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "incosense",
				Subsystem: "subscriptions",
				Name:      "request_duration_seconds",
				Help:      "Time from request start to response by outcome.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		bodyBytes: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "incosense",
				Subsystem: "subscriptions",
				Name:      "declared_body_bytes",
				Help:      "Declared Content-Length of submissions.",
				Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
			},
		),
		gatherer: reg,
	}
}

// NewDefault registers on a fresh registry that also carries the Go and
// process collectors.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// ObserveSubmission records one finished submission. bodyBytes is the
// declared length; negative means unknown and is not recorded.
func (m *Metrics) ObserveSubmission(outcome string, elapsed time.Duration, bodyBytes int64) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if bodyBytes >= 0 {
		m.bodyBytes.Observe(float64(bodyBytes))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Submissions exposes the outcome counter, mainly for tests.
func (m *Metrics) Submissions() *prometheus.CounterVec { return m.submissions }
