package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vaultgraph/internal/graph"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *graph.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Graph.
	r.Get("/stats", h.Stats)
	r.Get("/links", h.Links)
	r.Get("/backlinks/*", h.Backlinks)
	r.Get("/unresolved", h.Unresolved)
	r.Get("/outline/*", h.Outline)
	r.Get("/resolve", h.Resolve)
	r.Post("/rescan", h.Rescan)

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Get("/notes/*", h.GetNote)
	r.Get("/search", h.Search)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
