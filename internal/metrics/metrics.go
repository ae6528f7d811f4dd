// Package metrics provides Prometheus metrics for the drift monitor. It
// covers detection runs, alert volumes by severity, per-feature PSI scores,
// and webhook delivery failures, all exposed on the metrics endpoint in
// monitor mode.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"driftwatch/internal/drift"
)

// Metrics holds all Prometheus metrics for the drift monitor.
type Metrics struct {
	DetectionsTotal   prometheus.Counter   // Total number of detection runs
	DetectionFailures prometheus.Counter   // Total number of failed detection runs
	DetectionDuration prometheus.Histogram // Duration of detection runs in seconds
	FeaturesWithDrift prometheus.Gauge     // Features flagged as drifted in the latest run
	AlertsTotal       *prometheus.CounterVec // Alerts emitted, by severity
	FeaturePSI        *prometheus.GaugeVec   // Latest PSI score per feature
	WebhookFailures   prometheus.Counter   // Webhook notification failures
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		DetectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "drift_detections_total",
			Help: "Total number of drift detection runs",
		}),
		DetectionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "drift_detection_failures_total",
			Help: "Total number of failed drift detection runs",
		}),
		DetectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "drift_detection_duration_seconds",
			Help:    "Duration of drift detection runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		FeaturesWithDrift: factory.NewGauge(prometheus.GaugeOpts{
			Name: "drift_features_with_drift",
			Help: "Number of features flagged as drifted in the latest run",
		}),
		AlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "drift_alerts_total",
			Help: "Total number of drift alerts emitted, by severity",
		}, []string{"severity"}),
		FeaturePSI: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "drift_feature_psi",
			Help: "Latest PSI score per feature",
		}, []string{"feature"}),
		WebhookFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "drift_webhook_failures_total",
			Help: "Total number of webhook notification failures",
		}),
	}
}

// ObserveReport records the outcome of one detection run.
func (m *Metrics) ObserveReport(rep *drift.Report, duration time.Duration) {
	m.DetectionsTotal.Inc()
	m.DetectionDuration.Observe(duration.Seconds())
	m.FeaturesWithDrift.Set(float64(rep.Summary.FeaturesWithDrift))

	for _, alert := range rep.Alerts {
		m.AlertsTotal.WithLabelValues(string(alert.Severity)).Inc()
	}
	for name, fd := range rep.Features {
		m.FeaturePSI.WithLabelValues(name).Set(fd.PSI)
	}
}
