package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"WagerHouse/internal/persistence"
	"WagerHouse/internal/projection"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <up|down|status|rebuild>")
		fmt.Println("  up      - apply all pending migrations")
		fmt.Println("  down    - roll back the last migration")
		fmt.Println("  status  - list applied migrations")
		fmt.Println("  rebuild - reconstruct projection tables from the event log")
		fmt.Println("            (run with the service stopped)")
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  WAGER_POSTGRES_DSN    - Postgres connection string")
		fmt.Println("  WAGER_MIGRATIONS_DIR  - path to migrations directory (default: migrations)")
		os.Exit(1)
	}

	pgURL := os.Getenv("WAGER_POSTGRES_DSN")
	if pgURL == "" {
		pgURL = "postgres://localhost:5432/wagerhouse?sslmode=disable"
	}

	migrationsDir := os.Getenv("WAGER_MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}

	db, err := sql.Open("postgres", pgURL)
	if err != nil {
		log.Fatalf("FATAL: open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, migrationsDir)

	switch os.Args[1] {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			log.Fatalf("FATAL: migrate up: %v", err)
		}
		log.Println("INFO: all migrations applied")

	case "down":
		if err := migrator.Down(ctx); err != nil {
			log.Fatalf("FATAL: migrate down: %v", err)
		}
		log.Println("INFO: last migration rolled back")

	case "status":
		applied, err := migrator.Status(ctx)
		if err != nil {
			log.Fatalf("FATAL: migrate status: %v", err)
		}
		if len(applied) == 0 {
			fmt.Println("no migrations applied")
			return
		}
		for _, m := range applied {
			fmt.Printf("%s  %s\n", m.Version, m.Filename)
		}

	case "rebuild":
		if err := projection.RebuildProjections(ctx, db); err != nil {
			log.Fatalf("FATAL: projection rebuild: %v", err)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s (use 'up', 'down', 'status', or 'rebuild')\n", os.Args[1])
		os.Exit(1)
	}
}
