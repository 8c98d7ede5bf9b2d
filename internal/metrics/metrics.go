// Package metrics registers the Prometheus instruments for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	EventsPublished *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
	SessionsActive  prometheus.Gauge
	AICalls         *prometheus.CounterVec
	AICallDuration  prometheus.Histogram
}

// New creates and registers the metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "talentflow_events_published_total",
				Help: "Events published to tenant channels",
			},
			[]string{"type"},
		),
		EventsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "talentflow_events_dropped_total",
				Help: "Events dropped because a session buffer was full",
			},
			[]string{"type"},
		),
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "talentflow_sessions_active",
				Help: "Currently connected realtime sessions",
			},
		),
		AICalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "talentflow_ai_calls_total",
				Help: "Summarizer calls by outcome",
			},
			[]string{"provider", "outcome"},
		),
		AICallDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "talentflow_ai_call_duration_seconds",
				Help:    "Duration of summarizer calls",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}
