// Package server provides the HTTP API for the answering service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rblake2320/multi-agent-rag/internal/config"
	"github.com/rblake2320/multi-agent-rag/internal/ingest"
	"github.com/rblake2320/multi-agent-rag/internal/orchestrator"
	"github.com/rblake2320/multi-agent-rag/internal/registry"
	"go.uber.org/zap"
)

// Server is the HTTP server for the answering API.
type Server struct {
	orchestrator *orchestrator.Orchestrator
	pipeline     *ingest.Pipeline
	registry     *registry.Registry
	config       *config.ServerConfig
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	orch *orchestrator.Orchestrator,
	pipeline *ingest.Pipeline,
	reg *registry.Registry,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		orchestrator: orch,
		pipeline:     pipeline,
		registry:     reg,
		config:       cfg,
		logger:       logger,
	}
}

// Routes builds the chi router with all API endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Get("/api/v1/domains", s.handleListDomains)
	r.Post("/api/v1/domains/{domain}/documents", s.handleIngestDocuments)
	r.Post("/api/v1/domains/{domain}/ingest", s.handleIngestPath)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
