package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/docchat/internal/admission"
	"github.com/ziadkadry99/docchat/internal/chat"
	"github.com/ziadkadry99/docchat/internal/corpus"
	"github.com/ziadkadry99/docchat/internal/vectordb"
)

// Config holds server configuration.
type Config struct {
	Port           int
	AllowAll       bool // allow all CORS origins (dev mode)
	RequestTimeout time.Duration
}

// Server is the HTTP front of the question-answering core: SSE and
// WebSocket chat, ingestion triggers, and health.
type Server struct {
	cfg        Config
	engine     *chat.Engine
	admission  *admission.Controller
	pipeline   *corpus.Pipeline
	tasks      *corpus.TaskTracker
	docs       *corpus.Store
	index      vectordb.VectorIndex
	embedderOK func() bool
	startedAt  time.Time
	router     chi.Router
	httpServer *http.Server
}

// New wires the server with all dependencies. embedderOK reports whether the
// embedding provider is usable, for health reporting only.
func New(cfg Config, engine *chat.Engine, ctrl *admission.Controller, pipeline *corpus.Pipeline, tasks *corpus.TaskTracker, docs *corpus.Store, index vectordb.VectorIndex, embedderOK func() bool) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	if embedderOK == nil {
		embedderOK = func() bool { return false }
	}
	s := &Server{
		cfg:        cfg,
		engine:     engine,
		admission:  ctrl,
		pipeline:   pipeline,
		tasks:      tasks,
		docs:       docs,
		index:      index,
		embedderOK: embedderOK,
		startedAt:  time.Now(),
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// The chat stream manages its own deadline; a blanket timeout would
	// cut long answers short.

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		r.Get("/healthz", s.handleHealth)
		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{taskID}", s.handleIngestStatus)
	})

	r.Post("/api/chat", s.handleChat)
	r.Get("/api/chat/ws", s.handleWebSocket)

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      0, // streaming responses outlive any fixed write window
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("docchat server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
