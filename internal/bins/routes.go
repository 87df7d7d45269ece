package bins

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts the bin endpoints. Every route needs a signed in user;
// inventory changes also need admin.
func SetupRoutes(gw Gateway, geo Geocoder, auth, admin func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := &handlers{gw: gw, geo: geo}

	r.Use(auth)

	r.Get("/", h.ListBins)
	r.Get("/qr/{code}", h.GetBinByQRCode)

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(admin)

		r.Get("/stats", h.GetStats)
		r.Post("/", h.CreateBin)
		r.Put("/{bin_id}", h.UpdateBin)
		r.Delete("/{bin_id}", h.DeleteBin)
		r.Post("/{bin_id}/fill-level", h.UpdateFillLevel)
	})

	r.Get("/{bin_id}", h.GetBin)

	return r
}
