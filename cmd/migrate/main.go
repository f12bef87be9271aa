package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cloudpico-station/internal/config"
	"cloudpico-station/internal/db"
	"cloudpico-station/internal/db/migrate"
	"cloudpico-station/internal/logging"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <command>\n  migrate  apply pending schema migrations\n", os.Args[0])
		os.Exit(1)
	}
	if os.Args[1] != "migrate" {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if !cfg.ArchiveEnabled() {
		fmt.Fprintln(os.Stderr, "SQLITE_PATH or DB_DSN must be set")
		os.Exit(1)
	}

	logger := logging.New(cfg, version, "cloudpico-migrate")
	slog.SetDefault(logger)

	conn, err := db.Open(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open: %v\n", err)
		os.Exit(1)
	}

	applied, err := migrate.Run(context.Background(), conn, logger)
	if closeErr := db.Close(conn); closeErr != nil {
		slog.Error("db close", "err", closeErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("migrations applied: %d\n", len(applied))
}
