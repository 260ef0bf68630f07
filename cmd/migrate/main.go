package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/brunoSandoval210/authorization-service/internal/migrate"
	"github.com/brunoSandoval210/authorization-service/internal/obs"
	"github.com/brunoSandoval210/authorization-service/internal/store/pg"
)

func main() {
	_ = godotenv.Load()
	var (
		dsn            = flag.String("dsn", os.Getenv("AUTHZ_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "ops/migrations/sql", "Path to SQL migrations")
		seedsPath      = flag.String("seeds", "ops/migrations/seeds", "Path to SQL seeds")
	)
	flag.Parse()

	logger, err := obs.NewLogger("development", "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	obs.SetLogger(logger)
	defer func() { _ = logger.Sync() }()

	if *dsn == "" {
		logger.Fatal("missing DSN: provide via -dsn or AUTHZ_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		logger.Fatal("usage: migrate [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer store.Close()

	mgr := migrate.NewManager(store.DB(), *migrationsPath, *seedsPath)

	cmd := flag.Arg(0)
	switch cmd {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		logger.Info("migrations applied", zap.Strings("files", applied))
	case "down":
		var name string
		name, err = mgr.Down(ctx)
		if err == nil {
			logger.Info("migration rolled back", zap.String("file", name))
		}
	case "seed":
		var applied []string
		applied, err = mgr.Seed(ctx)
		logger.Info("seeds applied", zap.Strings("files", applied))
	case "status":
		var entries []migrate.Entry
		entries, err = mgr.Status(ctx)
		for _, e := range entries {
			state := "pending"
			if e.Applied() {
				state = e.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%-40s %s\n", e.Name, state)
		}
	default:
		logger.Fatal("unknown command", zap.String("command", cmd))
	}
	if err != nil {
		logger.Fatal("migrate failed", zap.String("command", cmd), zap.Error(err))
	}
}
