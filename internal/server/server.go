// Package server provides the HTTP surface: the expired-record API used by
// the UI, the backend webhook, /metrics, /health, /ready and /config.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/hr-backoffice/nfd-autoupdater/internal/config"
	"github.com/hr-backoffice/nfd-autoupdater/internal/nfdstatus"
	"github.com/hr-backoffice/nfd-autoupdater/internal/store"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	shutdownTimeout     = 15 * time.Second
)

// Coordinator is the part of nfdstatus.Coordinator the server needs.
type Coordinator interface {
	AutoUpdate(ctx context.Context) nfdstatus.Outcome
	ForceUpdate(ctx context.Context) nfdstatus.Outcome
	CheckExpired(ctx context.Context) (nfdstatus.Preview, error)
	Snapshot() nfdstatus.Snapshot
}

// Deps groups what the server serves.
type Deps struct {
	Coordinator Coordinator
	History     store.Store
	// Metrics are registered on the server's Prometheus registry.
	Metrics []prometheus.Collector
	// OnRecordsChanged is called for webhook events that should trigger a
	// forced update. Nil disables the webhook route.
	OnRecordsChanged func(event string)
}

// Server is the HTTP server.
type Server struct {
	httpServer  *http.Server
	coordinator Coordinator
	history     store.Store
	config      *config.Config
	ready       atomic.Bool
	logger      *logrus.Entry
}

// NewServer creates a new HTTP server configured from cfg.
func NewServer(cfg *config.Config, deps Deps, logger *logrus.Entry) (*Server, error) {
	s := &Server{
		coordinator: deps.Coordinator,
		history:     deps.History,
		config:      cfg,
		logger:      logger.WithField("component", "server"),
	}

	mux := http.NewServeMux()

	// --- Prometheus metrics ---
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	for _, c := range deps.Metrics {
		if err := promRegistry.Register(c); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	// --- Expired-record API ---
	mux.HandleFunc("POST /api/nfd/auto-update", s.handleAutoUpdate)
	mux.HandleFunc("POST /api/nfd/force-update", s.handleForceUpdate)
	mux.HandleFunc("GET /api/nfd/check-expired", s.handleCheckExpired)
	mux.HandleFunc("GET /api/nfd/status", s.handleStatus)
	mux.HandleFunc("GET /api/nfd/history", s.handleHistory)

	// --- Webhook ---
	if cfg.Server.Webhook.Enabled && deps.OnRecordsChanged != nil {
		wh := NewWebhookHandler(cfg.Server.Webhook.SecretToken, deps.OnRecordsChanged, s.logger)
		mux.Handle("POST /webhooks/records", wh)
		s.logger.Info("records webhook enabled under /webhooks/records")
	}

	// --- Health / readiness / config ---
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /config", s.handleConfig)

	// --- pprof ---
	if cfg.Server.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		s.logger.Info("pprof endpoints enabled under /debug/pprof/")
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run listens on the configured address, marks the server ready, and serves
// until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}
	s.logger.WithField("addr", ln.Addr().String()).Info("starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()
	s.SetReady(true)

	select {
	case err := <-errCh:
		s.SetReady(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving HTTP: %w", err)
	case <-ctx.Done():
	}

	s.SetReady(false)
	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	return nil
}

// SetReady updates the readiness state exposed by the /ready endpoint.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// --- Response bodies ---

type updateResponse struct {
	Changed bool              `json:"changed"`
	Outcome nfdstatus.Outcome `json:"outcome"`
}

type statusResponse struct {
	InFlight    bool               `json:"in_flight"`
	TTLSeconds  float64            `json:"ttl_seconds"`
	LastRunAt   *time.Time         `json:"last_run_at,omitempty"`
	ExpiresAt   *time.Time         `json:"expires_at,omitempty"`
	LastOutcome *nfdstatus.Outcome `json:"last_outcome,omitempty"`
}

type historyResponse struct {
	Records []store.Record `json:"records"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- HTTP handlers ---

func (s *Server) handleAutoUpdate(w http.ResponseWriter, r *http.Request) {
	out := s.coordinator.AutoUpdate(r.Context())
	s.writeJSON(w, http.StatusOK, updateResponse{Changed: out.Changed(), Outcome: out})
}

func (s *Server) handleForceUpdate(w http.ResponseWriter, r *http.Request) {
	out := s.coordinator.ForceUpdate(r.Context())
	s.writeJSON(w, http.StatusOK, updateResponse{Changed: out.Changed(), Outcome: out})
}

func (s *Server) handleCheckExpired(w http.ResponseWriter, r *http.Request) {
	preview, err := s.coordinator.CheckExpired(r.Context())
	if err != nil {
		s.logger.WithError(err).Warn("check-expired failed")
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.coordinator.Snapshot()
	resp := statusResponse{
		InFlight:   snap.InFlight,
		TTLSeconds: snap.TTL.Seconds(),
	}
	if snap.HasRun() {
		lastRun, expires := snap.LastRunAt, snap.ExpiresAt()
		outcome := snap.LastOutcome
		resp.LastRunAt = &lastRun
		resp.ExpiresAt = &expires
		resp.LastOutcome = &outcome
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	recs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("failed to read history")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "history unavailable"})
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	s.writeJSON(w, http.StatusOK, historyResponse{Records: recs})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not_ready"}`))
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	data, err := s.config.RedactedJSON()
	if err != nil {
		s.logger.WithError(err).Error("failed to encode config")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}
