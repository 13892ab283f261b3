// Package engine is the local HTTP surface the UI shell talks to. It owns
// no state of its own: every call goes straight to the history store, the
// importer, or the sync outbox.
package engine

import (
	"log/slog"
	"net/http"

	"github.com/bhagyeshsagole/atlas/internal/history"
	"github.com/bhagyeshsagole/atlas/internal/importer"
	"github.com/bhagyeshsagole/atlas/internal/syncer"
	"github.com/go-chi/chi/v5"
)

// Engine holds dependencies for the local API handlers.
type Engine struct {
	store    *history.Store
	importer *importer.Importer
	outbox   *syncer.Outbox
	apiKey   string
	log      *slog.Logger
	router   chi.Router
}

// New creates an Engine with all routes configured. The importer and outbox
// may be nil when the corresponding feature is not configured; their routes
// then answer 503.
func New(store *history.Store, imp *importer.Importer, outbox *syncer.Outbox, apiKey string, log *slog.Logger) *Engine {
	e := &Engine{
		store:    store,
		importer: imp,
		outbox:   outbox,
		apiKey:   apiKey,
		log:      log,
		router:   chi.NewRouter(),
	}
	e.routes()
	return e
}

// ServeHTTP implements http.Handler.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.router.ServeHTTP(w, r)
}

func (e *Engine) routes() {
	e.router.Use(RequestLogging(e.log))

	e.router.Get("/healthz", e.handleHealth)

	e.router.Route("/v1", func(r chi.Router) {
		if e.apiKey != "" {
			r.Use(APIKeyAuth(e.apiKey))
		}

		r.Post("/sessions/start", e.handleStartSession)
		r.Post("/sessions/{id}/sets", e.handleAddSet)
		r.Delete("/sets/{id}", e.handleDeleteSet)
		r.Post("/sessions/{id}/end", e.handleEndSession)
		r.Post("/sessions/{id}/hide", e.handleHideSession)
		r.Post("/sessions/{id}/rating", e.handleSetRating)

		r.Get("/sessions/{id}", e.handleGetSession)
		r.Get("/sessions/{id}/sync", e.handleSyncState)
		r.Get("/sessions/recent", e.handleRecentSessions)
		r.Get("/sessions/day/{date}", e.handleSessionsOnDay)
		r.Get("/calendar/{month}", e.handleActiveDays)

		r.Post("/import", e.handleImport)
		r.Post("/sync/retry", e.handleSyncRetry)
	})
}
