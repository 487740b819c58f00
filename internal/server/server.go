// Package server exposes the sync engine over HTTP and WebSocket. Both
// transports speak the same request/response shapes; callers are
// pre-authenticated and identified by a gateway-installed header.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fieldsync/fieldsync/internal/config"
	coresync "github.com/fieldsync/fieldsync/internal/core/sync"
	"github.com/fieldsync/fieldsync/internal/injector"
	"github.com/fieldsync/fieldsync/internal/observability/log"
)

// Server serves the sync API.
type Server struct {
	cfg       config.ServerConfig
	engine    *injector.Engine
	logger    log.Log
	validator *entityValidator
	http      *http.Server
}

// New builds a Server around an initialized engine.
func New(cfg config.ServerConfig, engine *injector.Engine, logger log.Log) (*Server, error) {
	validator, err := newEntityValidator()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		engine:    engine,
		logger:    logger.With(log.String("component", "server")),
		validator: validator,
	}
	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout.Std(),
		WriteTimeout: cfg.WriteTimeout.Std(),
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/sync/records", s.handleSync(coresync.KindCalculationRecord))
	api.HandleFunc("POST /api/v1/sync/parameters", s.handleSync(coresync.KindParameterSet))
	api.HandleFunc("POST /api/v1/sync/batch", s.handleBatchSync)
	api.HandleFunc("POST /api/v1/sync/resolve", s.handleResolve)
	api.HandleFunc("GET /api/v1/sync/logs", s.handleLogs)
	api.HandleFunc("GET /api/v1/records/changes", s.handleChanges(coresync.KindCalculationRecord))
	api.HandleFunc("GET /api/v1/parameters/changes", s.handleChanges(coresync.KindParameterSet))
	mux.Handle("/api/v1/", s.withIdentity(s.withRequestLog(api)))

	// The WebSocket upgrade hijacks the connection, so it skips the
	// status-recording request logger.
	mux.Handle("GET /ws", s.withIdentity(http.HandlerFunc(s.handleWebSocket)))

	return mux
}

// Start begins serving in the background.
func (s *Server) Start(_ context.Context) error {
	s.logger.Info("server listening", log.String("addr", s.cfg.ListenAddr))
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", log.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("server stopping")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}
