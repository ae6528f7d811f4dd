// Package server runs the continuous monitoring mode. It re-runs drift
// detection on a fixed interval and exposes the latest results over HTTP,
// Prometheus metrics, and a websocket feed for live dashboards.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"driftwatch/internal/drift"
)

// Runner executes one detection pass and returns the resulting report.
type Runner func(ctx context.Context) (*drift.Report, error)

// Server serves monitoring endpoints and drives the detection loop.
type Server struct {
	runner   Runner
	interval time.Duration

	metricsHandler http.Handler

	mu     sync.RWMutex
	latest *drift.Report

	hub *hub
}

// New creates a monitor server. metricsHandler may be nil, in which case
// the default Prometheus registry is served on /metrics.
func New(runner Runner, interval time.Duration, metricsHandler http.Handler) *Server {
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	return &Server{
		runner:         runner,
		interval:       interval,
		metricsHandler: metricsHandler,
		hub:            newHub(),
	}
}

// Handler returns the HTTP handler tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metricsHandler)
	mux.HandleFunc("/api/v1/report/latest", s.handleLatestReport)
	mux.HandleFunc("/api/v1/drift/status", s.handleDriftStatus)
	mux.HandleFunc("/ws", s.hub.handleWS)
	return mux
}

// Run starts the detection loop and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("monitor server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go s.detectionLoop(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.closeAll()
	return srv.Shutdown(shutdownCtx)
}

// detectionLoop runs a pass immediately, then on every tick.
func (s *Server) detectionLoop(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Server) runOnce(ctx context.Context) {
	rep, err := s.runner(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduled drift detection failed")
		return
	}
	s.SetReport(rep)
}

// SetReport publishes a new report to HTTP clients and the websocket feed.
func (s *Server) SetReport(rep *drift.Report) {
	s.mu.Lock()
	s.latest = rep
	s.mu.Unlock()

	s.hub.broadcast(runUpdate{
		GeneratedAt:       rep.GeneratedAt,
		FeaturesAnalyzed:  rep.Summary.FeaturesAnalyzed,
		FeaturesWithDrift: rep.Summary.FeaturesWithDrift,
		TotalAlerts:       rep.Summary.TotalAlerts,
		CriticalAlerts:    rep.Summary.CriticalAlerts,
	})
}

// runUpdate is the compact message pushed to websocket subscribers after
// each detection pass.
type runUpdate struct {
	GeneratedAt       time.Time `json:"generated_at"`
	FeaturesAnalyzed  int       `json:"features_analyzed"`
	FeaturesWithDrift int       `json:"features_with_drift"`
	TotalAlerts       int       `json:"total_alerts"`
	CriticalAlerts    int       `json:"critical_alerts"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleLatestReport(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	rep := s.latest
	s.mu.RUnlock()

	if rep == nil {
		http.Error(w, `{"error":"no report yet"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		log.Error().Err(err).Msg("failed to encode report")
	}
}

// handleDriftStatus returns a compact feature to PSI map for dashboards
// that only need the headline numbers.
func (s *Server) handleDriftStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	rep := s.latest
	s.mu.RUnlock()

	if rep == nil {
		http.Error(w, `{"error":"no report yet"}`, http.StatusNotFound)
		return
	}

	type featureStatus struct {
		PSI      float64        `json:"psi"`
		Level    drift.PSILevel `json:"level"`
		HasDrift bool           `json:"has_drift"`
	}

	status := struct {
		GeneratedAt time.Time                `json:"generated_at"`
		Features    map[string]featureStatus `json:"features"`
		Critical    int                      `json:"critical_alerts"`
	}{
		GeneratedAt: rep.GeneratedAt,
		Features:    make(map[string]featureStatus, len(rep.Features)),
		Critical:    rep.Summary.CriticalAlerts,
	}
	for name, fd := range rep.Features {
		status.Features[name] = featureStatus{PSI: fd.PSI, Level: fd.PSILevel, HasDrift: fd.HasDrift}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// hub fans run updates out to connected websocket clients.
type hub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func newHub() *hub {
	return &hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]bool),
	}
}

func (h *hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()
	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("websocket client connected")

	// Drain control frames until the client goes away.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *hub) broadcast(update runUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(update); err != nil {
			log.Debug().Err(err).Msg("dropping slow websocket client")
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

func (h *hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.Close()
	delete(h.conns, conn)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		delete(h.conns, conn)
	}
}
