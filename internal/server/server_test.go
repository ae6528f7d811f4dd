package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"driftwatch/internal/drift"
)

func stubReport() *drift.Report {
	return &drift.Report{
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Features: map[string]drift.FeatureDrift{
			"Age":    {PSI: 0.35, PSILevel: drift.PSIMajor, HasDrift: true},
			"Weight": {PSI: 0.02, PSILevel: drift.PSINone},
		},
		Alerts: []drift.Alert{
			{Type: "feature_drift", Subject: "Age", Severity: drift.SeverityCritical, Score: 0.35},
		},
		Summary: drift.Summary{FeaturesAnalyzed: 2, FeaturesWithDrift: 1, TotalAlerts: 1, CriticalAlerts: 1},
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	s := New(func(ctx context.Context) (*drift.Report, error) {
		return stubReport(), nil
	}, time.Minute, nil)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestLatestReport_EmptyThenPublished(t *testing.T) {
	s, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/report/latest")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 before first run, got %d", resp.StatusCode)
	}

	s.SetReport(stubReport())

	resp, err = http.Get(ts.URL + "/api/v1/report/latest")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after publish, got %d", resp.StatusCode)
	}

	var rep drift.Report
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if rep.Summary.CriticalAlerts != 1 {
		t.Errorf("expected 1 critical alert, got %d", rep.Summary.CriticalAlerts)
	}
	if !rep.Features["Age"].HasDrift {
		t.Error("expected Age drift flag to survive the round trip")
	}
}

func TestDriftStatus(t *testing.T) {
	s, ts := newTestServer(t)
	s.SetReport(stubReport())

	resp, err := http.Get(ts.URL + "/api/v1/drift/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var status struct {
		Features map[string]struct {
			PSI      float64 `json:"psi"`
			HasDrift bool    `json:"has_drift"`
		} `json:"features"`
		Critical int `json:"critical_alerts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}

	if len(status.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(status.Features))
	}
	if !status.Features["Age"].HasDrift || status.Features["Age"].PSI != 0.35 {
		t.Errorf("unexpected Age status: %+v", status.Features["Age"])
	}
	if status.Critical != 1 {
		t.Errorf("expected 1 critical alert, got %d", status.Critical)
	}
}

func TestWebsocketFeed(t *testing.T) {
	s, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	s.SetReport(stubReport())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update runUpdate
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("failed to read update: %v", err)
	}

	if update.FeaturesWithDrift != 1 {
		t.Errorf("expected 1 drifted feature in update, got %d", update.FeaturesWithDrift)
	}
	if update.CriticalAlerts != 1 {
		t.Errorf("expected 1 critical alert in update, got %d", update.CriticalAlerts)
	}
}

func TestRun_LoopAndShutdown(t *testing.T) {
	runs := make(chan struct{}, 10)
	s := New(func(ctx context.Context) (*drift.Report, error) {
		select {
		case runs <- struct{}{}:
		default:
		}
		return stubReport(), nil
	}, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an immediate detection pass")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunOnce_FailureKeepsLastReport(t *testing.T) {
	fail := false
	s := New(func(ctx context.Context) (*drift.Report, error) {
		if fail {
			return nil, context.DeadlineExceeded
		}
		return stubReport(), nil
	}, time.Minute, nil)

	s.runOnce(context.Background())
	fail = true
	s.runOnce(context.Background())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		t.Fatal("a failed pass must not clear the last good report")
	}
}
