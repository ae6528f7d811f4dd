package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"driftwatch/internal/drift"
)

func TestObserveReport(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)

	rep := &drift.Report{
		GeneratedAt: time.Now().UTC(),
		Features: map[string]drift.FeatureDrift{
			"Age":    {PSI: 0.35, HasDrift: true},
			"Weight": {PSI: 0.02},
		},
		Alerts: []drift.Alert{
			{Severity: drift.SeverityCritical},
			{Severity: drift.SeverityWarning},
			{Severity: drift.SeverityWarning},
		},
		Summary: drift.Summary{FeaturesAnalyzed: 2, FeaturesWithDrift: 1, TotalAlerts: 3},
	}

	m.ObserveReport(rep, 120*time.Millisecond)

	if got := testutil.ToFloat64(m.DetectionsTotal); got != 1 {
		t.Errorf("expected 1 detection, got %f", got)
	}
	if got := testutil.ToFloat64(m.FeaturesWithDrift); got != 1 {
		t.Errorf("expected 1 feature with drift, got %f", got)
	}
	if got := testutil.ToFloat64(m.AlertsTotal.WithLabelValues("warning")); got != 2 {
		t.Errorf("expected 2 warning alerts, got %f", got)
	}
	if got := testutil.ToFloat64(m.AlertsTotal.WithLabelValues("critical")); got != 1 {
		t.Errorf("expected 1 critical alert, got %f", got)
	}
	if got := testutil.ToFloat64(m.FeaturePSI.WithLabelValues("Age")); got != 0.35 {
		t.Errorf("expected Age PSI gauge 0.35, got %f", got)
	}
}

func TestNewWithRegistry_Isolated(t *testing.T) {
	// Two registries must not collide on registration.
	m1 := NewWithRegistry(prometheus.NewRegistry())
	m2 := NewWithRegistry(prometheus.NewRegistry())

	m1.DetectionsTotal.Inc()
	if got := testutil.ToFloat64(m2.DetectionsTotal); got != 0 {
		t.Errorf("registries must be isolated, got %f", got)
	}
}
