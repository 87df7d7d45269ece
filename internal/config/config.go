package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common errors
var (
	ErrMissingWebhookSecret = errors.New("CLERK_WEBHOOK_SECRET environment variable is required")
	ErrMissingJWTKey        = errors.New("CLERK_JWT_KEY environment variable is required")
	ErrMissingGatewayURL    = errors.New("GATEWAY_URL must not be empty")
)

// DefaultGatewayURL is the gateway service name on the compose network.
const DefaultGatewayURL = "http://gateway:8000"

// Config holds configuration for the SmartBin backend.
type Config struct {
	Port        string
	DatabaseURL string

	// Gateway in front of the auth, bin, detection and reclamation services
	GatewayURL     string
	GatewayTimeout time.Duration
	GatewayRPS     float64

	// Clerk
	ClerkWebhookSecret string
	ClerkJWTKey        string
	ClerkIssuer        string

	CORSOrigins      []string
	GoogleMapsAPIKey string

	// Web client served behind the route guard (optional)
	FrontendURL string

	// Open requests allowed per user per minute
	OpenRatePerMinute int

	Session SessionTimings
}

// SessionTimings drive the bin interaction flow.
type SessionTimings struct {
	PollInterval    time.Duration
	DisplayDelay    time.Duration
	CloseDelay      time.Duration
	Countdown       time.Duration
	MaxOpen         time.Duration
	RefreshAttempts int
	RefreshDelay    time.Duration
}

// DefaultSessionTimings mirror the web client's bin control.
func DefaultSessionTimings() SessionTimings {
	return SessionTimings{
		PollInterval:    500 * time.Millisecond,
		DisplayDelay:    2500 * time.Millisecond,
		CloseDelay:      500 * time.Millisecond,
		Countdown:       10 * time.Second,
		MaxOpen:         2 * time.Minute,
		RefreshAttempts: 3,
		RefreshDelay:    1500 * time.Millisecond,
	}
}

// LoadFromEnv loads configuration from environment variables.
//
// Environment variables:
//   - PORT: listen port (default: 5050)
//   - DATABASE_URL: Postgres DSN for session history and webhook deliveries (optional)
//   - GATEWAY_URL: base URL of the API gateway (default: http://gateway:8000)
//   - GATEWAY_TIMEOUT: per-request timeout (default: 10s)
//   - GATEWAY_RPS: outbound requests per second to the gateway (default: 20)
//   - CLERK_WEBHOOK_SECRET: Svix signing secret, "whsec_..." (required)
//   - CLERK_JWT_KEY: PEM encoded RSA public key for session tokens (required)
//   - CLERK_ISSUER: expected "iss" claim (optional)
//   - CORS_ORIGINS: comma separated allow-list (default: http://localhost:3000)
//   - GOOGLE_MAPS_API_KEY: enables geocoding of new bins (optional)
//   - FRONTEND_URL: web client to reverse proxy page requests to (optional)
//   - OPEN_RATE_PER_MINUTE: bin open requests per user per minute (default: 6)
//   - SESSION_POLL_INTERVAL, SESSION_DISPLAY_DELAY, SESSION_CLOSE_DELAY,
//     SESSION_COUNTDOWN, SESSION_MAX_OPEN, POINTS_REFRESH_DELAY: Go durations
//   - POINTS_REFRESH_ATTEMPTS: integer (default: 3)
func LoadFromEnv() Config {
	defaults := DefaultSessionTimings()

	gatewayURL := strings.TrimRight(strings.TrimSpace(os.Getenv("GATEWAY_URL")), "/")
	if gatewayURL == "" {
		gatewayURL = DefaultGatewayURL
	}

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5050"
	}

	return Config{
		Port:               port,
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		GatewayURL:         gatewayURL,
		GatewayTimeout:     durationEnv("GATEWAY_TIMEOUT", 10*time.Second),
		GatewayRPS:         floatEnv("GATEWAY_RPS", 20),
		ClerkWebhookSecret: strings.TrimSpace(os.Getenv("CLERK_WEBHOOK_SECRET")),
		ClerkJWTKey:        os.Getenv("CLERK_JWT_KEY"),
		ClerkIssuer:        strings.TrimSpace(os.Getenv("CLERK_ISSUER")),
		CORSOrigins:        listEnv("CORS_ORIGINS", []string{"http://localhost:3000"}),
		GoogleMapsAPIKey:   os.Getenv("GOOGLE_MAPS_API_KEY"),
		FrontendURL:        strings.TrimRight(strings.TrimSpace(os.Getenv("FRONTEND_URL")), "/"),
		OpenRatePerMinute:  intEnv("OPEN_RATE_PER_MINUTE", 6),
		Session: SessionTimings{
			PollInterval:    durationEnv("SESSION_POLL_INTERVAL", defaults.PollInterval),
			DisplayDelay:    durationEnv("SESSION_DISPLAY_DELAY", defaults.DisplayDelay),
			CloseDelay:      durationEnv("SESSION_CLOSE_DELAY", defaults.CloseDelay),
			Countdown:       durationEnv("SESSION_COUNTDOWN", defaults.Countdown),
			MaxOpen:         durationEnv("SESSION_MAX_OPEN", defaults.MaxOpen),
			RefreshAttempts: intEnv("POINTS_REFRESH_ATTEMPTS", defaults.RefreshAttempts),
			RefreshDelay:    durationEnv("POINTS_REFRESH_DELAY", defaults.RefreshDelay),
		},
	}
}

// Validate checks that the required settings are present and sane.
func (c Config) Validate() error {
	if c.GatewayURL == "" {
		return ErrMissingGatewayURL
	}
	if c.ClerkWebhookSecret == "" {
		return ErrMissingWebhookSecret
	}
	if c.ClerkJWTKey == "" {
		return ErrMissingJWTKey
	}
	if c.Session.PollInterval <= 0 {
		return fmt.Errorf("SESSION_POLL_INTERVAL must be positive, got %s", c.Session.PollInterval)
	}
	if c.Session.MaxOpen <= 0 {
		return fmt.Errorf("SESSION_MAX_OPEN must be positive, got %s", c.Session.MaxOpen)
	}
	for name, d := range map[string]time.Duration{
		"SESSION_DISPLAY_DELAY": c.Session.DisplayDelay,
		"SESSION_CLOSE_DELAY":   c.Session.CloseDelay,
		"SESSION_COUNTDOWN":     c.Session.Countdown,
		"POINTS_REFRESH_DELAY":  c.Session.RefreshDelay,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}
	if c.Session.RefreshAttempts < 1 {
		return fmt.Errorf("POINTS_REFRESH_ATTEMPTS must be at least 1, got %d", c.Session.RefreshAttempts)
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return "0.0.0.0:" + c.Port
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func intEnv(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func floatEnv(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func listEnv(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
