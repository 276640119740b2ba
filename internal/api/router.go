package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/onto/internal/service"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *service.Service, authEnabled bool, token string, sseHandler http.Handler, limits GraphLimits) chi.Router {
	h := NewHandler(svc, limits)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/validate", h.Validate)
	r.Get("/search", h.Search)
	r.Get("/graph/{id}", h.Graph)

	r.Get("/classes", h.ClassCounts)
	r.Get("/instances", h.ListInstances)
	r.Post("/instances", h.CreateInstance)
	r.Get("/instances/{id}", h.GetInstance)
	r.Delete("/instances/{id}", h.DeleteInstance)

	r.Put("/files/*", h.WriteFile)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
