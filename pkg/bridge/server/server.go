// Package server assembles the bridge's HTTP surface and manages its
// lifecycle.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-go/voicebridge/pkg/bridge/config"
	"github.com/vango-go/voicebridge/pkg/bridge/handlers"
	"github.com/vango-go/voicebridge/pkg/bridge/metrics"
	"github.com/vango-go/voicebridge/pkg/bridge/session"
	"github.com/vango-go/voicebridge/pkg/bridge/sessions"
	"github.com/vango-go/voicebridge/pkg/bridge/status"
)

type Dependencies struct {
	Pipeline session.Pipeline
	Recorder session.Recorder   // optional
	Calls    handlers.CallStore // optional, enables the call log endpoint
	Status   *status.Sink
}

type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	mux     *http.ServeMux
	tracker *sessions.Tracker
	metrics *metrics.Metrics
	httpSrv *http.Server
}

func New(cfg config.Config, logger *slog.Logger, deps Dependencies) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		mux:     http.NewServeMux(),
		tracker: sessions.NewTracker(),
		metrics: metrics.New(registry),
	}

	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: cfg, Tracker: s.tracker})
	s.mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	if deps.Calls != nil {
		s.mux.Handle("/calls/{id}", handlers.CallLogHandler{Store: deps.Calls, Logger: logger})
	}

	s.mux.Handle("/voice", handlers.VoiceWebhookHandler{Config: cfg, Logger: logger})
	s.mux.Handle("/media", handlers.MediaHandler{
		Config:   cfg,
		Logger:   logger,
		Pipeline: deps.Pipeline,
		Recorder: deps.Recorder,
		Status:   deps.Status,
		Metrics:  s.metrics,
		Tracker:  s.tracker,
	})

	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s
}

// Tracker exposes the live stream tracker for drain coordination.
func (s *Server) Tracker() *sessions.Tracker {
	return s.tracker
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", "addr", s.cfg.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, hangs up live calls, and waits for
// their teardown within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	canceled := s.tracker.CancelAll()
	if canceled > 0 {
		s.logger.Info("canceled live calls for shutdown", "count", canceled)
	}
	if !s.tracker.Wait(ctx) {
		s.logger.Warn("shutdown grace period expired with live calls remaining", "count", s.tracker.Count())
	}
	return s.httpSrv.Shutdown(ctx)
}
