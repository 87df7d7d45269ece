// Command smartbin is an operator CLI for the SmartBin gateway and backend.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/SmartBin/SmartBin-Backend/internal/config"
	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type options struct {
	token string
	api   string
}

func main() {
	_ = godotenv.Load(".env.local")
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "smartbin",
		Short:         "Inspect bins, simulate detections and drive deposit sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("SMARTBIN_TOKEN"), "bearer token (default: env SMARTBIN_TOKEN)")
	root.PersistentFlags().StringVar(&opts.api, "api", envOr("SMARTBIN_API_URL", "http://localhost:5050"), "backend base URL for session commands")

	root.AddCommand(newBinsCmd(opts), newDetectCmd(opts), newSessionCmd(opts))
	return root
}

// gatewayClient builds a client from the same env the server reads.
func gatewayClient() *gateway.Client {
	cfg := config.LoadFromEnv()
	return gateway.NewClient(cfg.GatewayURL, cfg.GatewayTimeout, cfg.GatewayRPS)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

const requestTimeout = 30 * time.Second
