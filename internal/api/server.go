// Package api provides the HTTP API server for logkeeper.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/narvanalabs/logkeeper/internal/api/handlers"
	"github.com/narvanalabs/logkeeper/internal/api/health"
	"github.com/narvanalabs/logkeeper/internal/api/middleware"
	"github.com/narvanalabs/logkeeper/internal/auth"
	"github.com/narvanalabs/logkeeper/internal/cleanup"
	"github.com/narvanalabs/logkeeper/internal/logs"
	"github.com/narvanalabs/logkeeper/internal/store"
	"github.com/narvanalabs/logkeeper/pkg/config"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Deps are the services the server routes to.
type Deps struct {
	Store     store.Store
	Auth      *auth.Service
	Cleanup   *cleanup.Service
	Broker    *logs.Broker
	Scheduler health.Scheduler
}

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	deps          Deps
	rbac          *auth.RBACService
	config        *config.Config
	logger        *slog.Logger
	healthChecker *health.Checker
	baseCtx       context.Context
	cancelBase    context.CancelFunc
}

// NewServer creates a new API server with the given dependencies.
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Broker == nil {
		deps.Broker = logs.NewBroker(logger)
	}

	s := &Server{
		deps:   deps,
		rbac:   auth.NewRBACService(deps.Store.Admins(), logger),
		config: cfg,
		logger: logger,
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	s.healthChecker = health.NewChecker(deps.Store, Version)
	if deps.Scheduler != nil {
		s.healthChecker.SetScheduler(deps.Scheduler)
	}

	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))

	// Health check endpoint (no auth required)
	r.Get("/health", s.healthChecker.Handler())

	logHandler := handlers.NewLogHandler(s.deps.Store, handlers.QueryConfig{
		DefaultLimit: s.config.Query.DefaultPageSize,
		MaxLimit:     s.config.Query.MaxPageSize,
		Location:     s.config.QueryLocation(),
	}, s.logger)
	streamHandler := handlers.NewLogStreamHandler(s.deps.Broker, s.config.QueryLocation(), s.logger)
	cleanupHandler := handlers.NewCleanupHandler(s.deps.Cleanup, s.logger)
	adminHandler := handlers.NewAdminHandler(s.deps.Store.Admins(), s.logger)

	r.Route("/v1", func(r chi.Router) {
		authMiddleware := middleware.NewAuthMiddleware(s.deps.Auth, s.logger)
		r.Use(authMiddleware.Authenticate)

		r.Get("/me", adminHandler.Me)

		r.Route("/logs/{stream}", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(s.rbac, auth.PermissionViewLogs, s.logger))
				r.Get("/tail", streamHandler.Tail)
				r.Group(func(r chi.Router) {
					r.Use(chimiddleware.Timeout(60 * time.Second))
					r.Get("/", logHandler.List)
					r.Get("/stats", logHandler.Stats)
				})
			})
			r.With(
				middleware.RequirePermission(s.rbac, auth.PermissionExportLogs, s.logger),
				chimiddleware.Timeout(60*time.Second),
			).Get("/export", logHandler.Export)
			r.With(
				middleware.RequirePermission(s.rbac, auth.PermissionWriteLogs, s.logger),
				chimiddleware.Timeout(60*time.Second),
			).Post("/", logHandler.Create)
		})

		// Authorization for manual runs is decided by the cleanup service.
		r.Post("/admin/cleanup/logs", cleanupHandler.CleanupLogs)
	})

	s.router = r
}

// HTTPServer builds the http.Server for addr. Request contexts derive from a base
// context that is cancelled on shutdown, which ends open live tails.
func (s *Server) HTTPServer(addr string) *http.Server {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return s.baseCtx },
	}
	srv.RegisterOnShutdown(s.cancelBase)
	return srv
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
