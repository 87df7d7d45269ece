package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/SmartBin/SmartBin-Backend/internal/account"
	"github.com/SmartBin/SmartBin-Backend/internal/binsession"
	"github.com/SmartBin/SmartBin-Backend/internal/bins"
	"github.com/SmartBin/SmartBin-Backend/internal/config"
	"github.com/SmartBin/SmartBin-Backend/internal/db"
	"github.com/SmartBin/SmartBin-Backend/internal/frontend"
	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/SmartBin/SmartBin-Backend/internal/geocoding"
	"github.com/SmartBin/SmartBin-Backend/internal/middleware"
	"github.com/SmartBin/SmartBin-Backend/internal/reclamations"
	"github.com/SmartBin/SmartBin-Backend/internal/utils"
	"github.com/SmartBin/SmartBin-Backend/internal/webhooks"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	response := "Server is up!"
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, response)
}

// HealthHandler reports the gateway and the number of bins held open.
func HealthHandler(gw *gateway.Client, sessions *binsession.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status, gatewayStatus, code := "ok", "ok", http.StatusOK
		if err := gw.Health(ctx); err != nil {
			log.Printf("[health] gateway: %v", err)
			status, gatewayStatus, code = "degraded", "unreachable", http.StatusServiceUnavailable
		}
		utils.WriteJSON(w, code, map[string]any{
			"status":          status,
			"gateway":         gatewayStatus,
			"database":        db.DB != nil,
			"active_sessions": sessions.Active(),
		})
	}
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	gw := gateway.NewClient(cfg.GatewayURL, cfg.GatewayTimeout, cfg.GatewayRPS)

	verifier, err := middleware.NewClerkVerifier(cfg.ClerkJWTKey, cfg.ClerkIssuer)
	if err != nil {
		log.Fatal(err)
	}
	svix, err := webhooks.NewVerifier(cfg.ClerkWebhookSecret)
	if err != nil {
		log.Fatal(err)
	}

	// History and webhook deliveries live in Postgres when configured.
	var recorder binsession.Recorder = binsession.NewMemoryRecorder(1000)
	var deliveries webhooks.DeliveryStore
	if cfg.DatabaseURL != "" {
		d, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()

		history := binsession.NewGormRecorder(d)
		if err := history.Migrate(); err != nil {
			log.Fatal("Failed to migrate session history: ", err)
		}
		store := webhooks.NewGormStore(d)
		if err := store.Migrate(); err != nil {
			log.Fatal("Failed to migrate webhook deliveries: ", err)
		}
		recorder, deliveries = history, store
	} else {
		log.Println("DATABASE_URL not set, session history is kept in memory")
	}

	refresher := account.NewRefresher(gw, cfg.Session.RefreshAttempts, cfg.Session.RefreshDelay)
	sessions := binsession.NewManager(gw, refresher, recorder, cfg.Session)

	var geo bins.Geocoder
	if c := geocoding.NewClient(cfg.GoogleMapsAPIKey); c != nil {
		geo = c
	}

	auth := middleware.ClerkAuth(verifier)
	admin := middleware.AdminMiddleware(gw)
	openLimiter := middleware.NewUserRateLimiter(cfg.OpenRatePerMinute)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	r.Use(middleware.RouteGuard(verifier))

	r.Get("/", RootHandler)
	r.Get("/health", HealthHandler(gw, sessions))

	r.Route("/api", func(r chi.Router) {
		r.Mount("/bins", bins.SetupRoutes(gw, geo, auth, admin))
		r.Mount("/sessions", binsession.SetupRoutes(sessions, gw, auth, openLimiter.Middleware, cfg.CORSOrigins))
		r.Mount("/me", account.SetupRoutes(gw, auth))
		r.Mount("/reclamations", reclamations.SetupRoutes(gw, auth, admin))
		r.Mount("/webhooks", webhooks.SetupRoutes(webhooks.NewHandler(svix, gw, deliveries)))
	})

	if cfg.FrontendURL != "" {
		proxy, err := frontend.NewProxy(cfg.FrontendURL)
		if err != nil {
			log.Fatal(err)
		}
		r.NotFound(proxy.ServeHTTP)
		log.Printf("Serving pages from %s", cfg.FrontendURL)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server listening on %s...", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Close open bins before the listener goes away
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		log.Printf("Session shutdown: %v", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
}
