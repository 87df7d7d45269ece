package reclamations

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(gw Gateway, auth, admin func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := &handlers{gw: gw}

	r.Use(auth)

	r.Get("/", h.ListReclamations)
	r.Post("/", h.CreateReclamation)

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(admin)

		r.Post("/{reclamation_id}/resolve", h.Resolve)
		r.Post("/{reclamation_id}/in-progress", h.MarkInProgress)
	})

	return r
}
