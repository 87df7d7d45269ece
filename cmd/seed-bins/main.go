package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/SmartBin/SmartBin-Backend/internal/config"
	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/SmartBin/SmartBin-Backend/internal/seeds"
	"github.com/joho/godotenv"
)

// CLI flags
var (
	file   = flag.String("file", seeds.DefaultInventoryPath, "YAML inventory of bins")
	token  = flag.String("token", os.Getenv("SMARTBIN_ADMIN_TOKEN"), "Admin bearer token for the gateway (default: env SMARTBIN_ADMIN_TOKEN)")
	dryRun = flag.Bool("dry-run", false, "Parse + check existing bins only; no writes")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()

	inv, err := seeds.LoadInventory(*file)
	if err != nil {
		fatalf("inventory error: %v", err)
	}
	fmt.Printf("Loaded %d bins from %s\n", len(inv.Bins), *file)

	cfg := config.LoadFromEnv()
	gw := gateway.NewClient(cfg.GatewayURL, cfg.GatewayTimeout, cfg.GatewayRPS)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = gateway.WithBearer(ctx, *token)

	res, err := seeds.SeedBins(ctx, gw, inv, *dryRun)
	if err != nil {
		fatalf("seeding failed: %v", err)
	}

	for _, qr := range res.Created {
		fmt.Printf("  + %s\n", qr)
	}
	for _, qr := range res.Skipped {
		fmt.Printf("  = %s (exists)\n", qr)
	}
	if *dryRun {
		fmt.Println("Dry run complete. No changes made.")
		return
	}
	fmt.Println("Seed complete ✅")
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
