// Package api provides HTTP handlers and routing for the workflow engine service.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/flowforge/dagflow/internal/auth"
)

// Server holds the HTTP handlers and dependencies.
type Server struct {
	router   *mux.Router
	handlers *Handlers

	// AuthMiddleware and RateLimiter are optional, config-gated chain
	// members wired in by the caller (see cmd/flowengine) rather than
	// constructed here, since they depend on OIDC discovery and config
	// that NewServer itself has no business owning.
	AuthMiddleware *auth.Middleware
	RateLimiter    *auth.PerIPRateLimiter
}

// NewServer creates a new API server with the given handlers.
func NewServer(h *Handlers) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		handlers: h,
	}
	s.setupRoutes()
	return s
}

// Router returns the configured router for use with http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("/health", s.handlers.Health).Methods("GET")
	s.router.HandleFunc("/healthz", s.handlers.Health).Methods("GET")
	s.router.HandleFunc("/ready", s.handlers.Ready).Methods("GET")

	// API routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Mutating endpoints additionally require the submitting/cancelling
	// capability once auth is enabled; read endpoints only need a valid
	// token, which the subrouter-level AuthMiddleware.Handler already
	// enforces below.
	submitRun := http.Handler(http.HandlerFunc(s.handlers.SubmitRun))
	cancelRun := http.Handler(http.HandlerFunc(s.handlers.CancelRun))
	if s.AuthMiddleware != nil {
		submitRun = auth.RequireCapability((*auth.Claims).CanSubmitWorkflows,
			"submitting workflow runs requires the workflow-operator or dagflow-admin role")(submitRun)
		cancelRun = auth.RequireCapability((*auth.Claims).CanCancelExecutions,
			"cancelling executions requires the workflow-operator or dagflow-admin role")(cancelRun)
	}

	// Workflow submission & definitions
	api.Handle("/workflows/{id}/runs", submitRun).Methods("POST")
	api.HandleFunc("/workflows/{id}", s.handlers.GetWorkflow).Methods("GET")
	api.HandleFunc("/workflows/{id}/history", s.handlers.WorkflowHistory).Methods("GET")

	// Execution observation & control
	api.HandleFunc("/runs/{id}", s.handlers.GetRun).Methods("GET")
	api.HandleFunc("/runs/{id}/events", s.handlers.StreamEvents).Methods("GET")
	api.Handle("/runs/{id}/cancel", cancelRun).Methods("POST")

	// Apply auth and rate limiting ahead of the API subrouter only:
	// health/ready must stay reachable for liveness/readiness probes
	// regardless of OIDC/rate-limit configuration.
	if s.AuthMiddleware != nil {
		api.Use(s.AuthMiddleware.Handler)
	}
	if s.RateLimiter != nil {
		api.Use(s.RateLimiter.Handler)
	}

	// Apply middleware
	s.router.Use(s.handlers.CORSMiddleware)
	s.router.Use(s.handlers.LoggingMiddleware)
	s.router.Use(s.handlers.RecoveryMiddleware)
}
