package storage

import (
	"testing"
	"time"

	"driftwatch/internal/drift"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testReport(ts time.Time) *drift.Report {
	return &drift.Report{
		GeneratedAt: ts,
		Features: map[string]drift.FeatureDrift{
			"Age": {PSI: 0.35, PSILevel: drift.PSIMajor, HasDrift: true},
		},
		Metrics: map[string]drift.MetricDrift{
			"accuracy": {Baseline: 0.99, Current: 0.85, Degradation: 0.14, DegradationPct: 14.14, AlertLevel: drift.SeverityCritical},
		},
		Alerts: []drift.Alert{
			{Type: "feature_drift", Subject: "Age", Severity: drift.SeverityCritical, Score: 0.35, Message: "Feature \"Age\" shows major drift (PSI 0.350)"},
		},
		Summary: drift.Summary{FeaturesAnalyzed: 1, FeaturesWithDrift: 1, TotalAlerts: 1, CriticalAlerts: 1},
	}
}

func TestStore_SaveAndLatestReport(t *testing.T) {
	s := newTestStore(t)

	if rep, err := s.LatestReport(); err != nil || rep != nil {
		t.Fatalf("expected empty history, got rep=%v err=%v", rep, err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := s.SaveReport(testReport(base.Add(time.Duration(i) * time.Hour))); err != nil {
			t.Fatalf("failed to save report %d: %v", i, err)
		}
	}

	latest, err := s.LatestReport()
	if err != nil {
		t.Fatalf("failed to load latest report: %v", err)
	}
	if latest == nil {
		t.Fatal("expected a latest report")
	}
	if !latest.GeneratedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("expected latest timestamp %v, got %v", base.Add(2*time.Hour), latest.GeneratedAt)
	}
	if latest.Summary.CriticalAlerts != 1 {
		t.Errorf("expected 1 critical alert, got %d", latest.Summary.CriticalAlerts)
	}
}

func TestStore_ReportsInRange(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := s.SaveReport(testReport(base.Add(time.Duration(i) * 24 * time.Hour))); err != nil {
			t.Fatalf("failed to save report %d: %v", i, err)
		}
	}

	got, err := s.ReportsInRange(base.Add(24*time.Hour), base.Add(3*24*time.Hour))
	if err != nil {
		t.Fatalf("range query failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 reports in range, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].GeneratedAt.Before(got[i-1].GeneratedAt) {
			t.Error("reports must be ordered oldest first")
		}
	}
}

func TestStore_BaselineStats(t *testing.T) {
	s := newTestStore(t)

	if stats, err := s.LoadBaselineStats(); err != nil || stats != nil {
		t.Fatalf("expected no baseline yet, got stats=%v err=%v", stats, err)
	}

	want := map[string]drift.FeatureStats{
		"Age":    {Mean: 45.2, Std: 14.9, Min: 14, Max: 90, Count: 500, Quartiles: [3]float64{34, 45, 56}},
		"Weight": {Mean: 75.1, Std: 15.2, Min: 40, Max: 160, Count: 500, Quartiles: [3]float64{64, 75, 86}},
	}
	if err := s.SaveBaselineStats(want); err != nil {
		t.Fatalf("failed to save baseline stats: %v", err)
	}

	got, err := s.LoadBaselineStats()
	if err != nil {
		t.Fatalf("failed to load baseline stats: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d features, got %d", len(want), len(got))
	}
	for name, w := range want {
		g, ok := got[name]
		if !ok {
			t.Errorf("missing feature %s", name)
			continue
		}
		if g != w {
			t.Errorf("feature %s: got %+v, want %+v", name, g, w)
		}
	}
}

func TestStore_OverwriteBaseline(t *testing.T) {
	s := newTestStore(t)

	first := map[string]drift.FeatureStats{"Age": {Mean: 45, Count: 100}}
	second := map[string]drift.FeatureStats{"Age": {Mean: 50, Count: 200}}

	if err := s.SaveBaselineStats(first); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveBaselineStats(second); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadBaselineStats()
	if err != nil {
		t.Fatal(err)
	}
	if got["Age"].Count != 200 {
		t.Errorf("expected the second snapshot to win, got count %d", got["Age"].Count)
	}
}
