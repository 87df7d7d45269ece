package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

// CLI flags
var (
	dsn         = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN (default: env DATABASE_URL)")
	days        = flag.Int("days", 90, "Delete session history older than this many days")
	dryRun      = flag.Bool("dry-run", false, "Count only; no deletes")
	advisoryKey = flag.Int64("advisory-lock", 0, "Optional Postgres advisory lock key. 0 = disabled")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}
	if *days < 1 {
		fatalf("--days must be at least 1")
	}
	cutoff := time.Now().AddDate(0, 0, -*days)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		fatalf("begin tx: %v", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op if already committed
	}()

	if *advisoryKey != 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, *advisoryKey); err != nil {
			fatalf("advisory lock: %v", err)
		}
	}

	var stale, deliveries int64
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM smartbin.bin_sessions WHERE closed_at < $1`, cutoff).Scan(&stale); err != nil {
		fatalf("count sessions: %v", err)
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM smartbin.webhook_deliveries WHERE received_at < $1`, cutoff).Scan(&deliveries); err != nil {
		fatalf("count deliveries: %v", err)
	}
	fmt.Printf("Older than %s: sessions=%d webhook_deliveries=%d\n", cutoff.Format(time.DateOnly), stale, deliveries)

	if *dryRun {
		fmt.Println("Dry run complete. No changes made.")
		return
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM smartbin.bin_sessions WHERE closed_at < $1`, cutoff)
	if err != nil {
		fatalf("delete sessions: %v", err)
	}
	deletedSessions, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM smartbin.webhook_deliveries WHERE received_at < $1`, cutoff)
	if err != nil {
		fatalf("delete deliveries: %v", err)
	}
	deletedDeliveries, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		fatalf("commit: %v", err)
	}
	fmt.Printf("Pruned sessions=%d webhook_deliveries=%d ✅\n", deletedSessions, deletedDeliveries)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
