package account

import (
	"context"
	"net/http"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/go-chi/chi/v5"
)

type Gateway interface {
	UserByClerkID(ctx context.Context, clerkID string) (*gateway.User, error)
	PointsHistory(ctx context.Context) ([]gateway.PointsTransaction, error)
}

func SetupRoutes(gw Gateway, auth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := &handlers{gw: gw}

	r.Use(auth)

	r.Get("/", h.GetMe)
	r.Get("/points/history", h.GetPointsHistory)

	return r
}
