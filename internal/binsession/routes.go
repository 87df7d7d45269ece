package binsession

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts the session endpoints. openLimit throttles opens per user.
func SetupRoutes(m *Manager, users UserFetcher, auth, openLimit func(http.Handler) http.Handler, origins []string) http.Handler {
	r := chi.NewRouter()
	h := &handlers{sessions: m, users: users, origins: origins}

	r.Use(auth)

	r.With(openLimit).Post("/", h.OpenSession)
	r.Get("/history", h.ListHistory)
	r.Get("/{session_id}", h.GetSession)
	r.Post("/{session_id}/close", h.CloseSession)
	r.Get("/{session_id}/stream", h.StreamSession)

	return r
}
