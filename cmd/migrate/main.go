package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status, create")
		name    = flag.String("name", "", "Name for 'create' command")
	)
	flag.Parse()

	loadEnvFiles()
	dir := migrationsDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *command == "create" {
		if *name == "" {
			fatal(logger, "name is required for 'create' command")
		}
		if err := goose.Create(nil, dir, *name, "sql"); err != nil {
			fatal(logger, "failed to create migration", "error", err)
		}
		logger.Info("migration created", "name", *name, "dir", dir)
		return
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, databaseDSN())
	if err != nil {
		fatal(logger, "failed to connect to database", "error", err)
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		fatal(logger, "failed to set dialect", "error", err)
	}

	switch *command {
	case "up":
		if err := goose.UpContext(ctx, db, dir); err != nil {
			fatal(logger, "failed to run migrations", "error", err)
		}
		logger.Info("migrations applied", "dir", dir)
	case "down":
		if err := goose.DownContext(ctx, db, dir); err != nil {
			fatal(logger, "failed to roll back migration", "error", err)
		}
		logger.Info("migration rolled back", "dir", dir)
	case "status":
		if err := goose.StatusContext(ctx, db, dir); err != nil {
			fatal(logger, "failed to check migration status", "error", err)
		}
	default:
		fatal(logger, "unknown command, use: up, down, status, create", "command", *command)
	}
}

func fatal(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}
