// Package server is the HTTP surface of the Atlas sync service: idempotent,
// owner-scoped replication of completed session summaries and bundles.
package server

import (
	"log/slog"
	"net/http"

	"github.com/bhagyeshsagole/atlas/internal/auth"
	"github.com/bhagyeshsagole/atlas/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db     *storage.DB
	log    *slog.Logger
	authMW auth.Middleware
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(db *storage.DB, authCfg auth.Config, log *slog.Logger) *Server {
	s := &Server{
		db:     db,
		log:    log,
		authMW: auth.NewMiddleware(authCfg, nil),
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Everything under /api/v1 is scoped to the authenticated caller's
	// identity; rows belonging to anyone else read as absent.
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMW.Wrap)

		r.Put("/sessions/{id}/summary", s.handleUpsertSummary)
		r.Put("/sessions/{id}/bundle", s.handleUpsertBundle)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Get("/sessions", s.handleListSummaries)

		r.Get("/users/{owner}/sessions/{id}/bundle", s.handleGetBundle)

		r.Post("/connections", s.handleRequestConnection)
		r.Post("/connections/approve", s.handleApproveConnection)
	})
}
