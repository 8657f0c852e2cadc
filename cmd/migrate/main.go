package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/arjunmehta-dev/taskforge/internal/config"
	"github.com/arjunmehta-dev/taskforge/internal/migrate"
)

func main() {
	devAutoCreate := flag.Bool("dev-autocreate", false, "create the jobs table with CREATE TABLE IF NOT EXISTS instead of running goose migrations (local development only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *devAutoCreate {
		if cfg.Env != "local" {
			log.Fatalf("-dev-autocreate refused outside Env=local")
		}
		logger.Warn("running dev-autocreate, not goose migrations")
		if err := migrate.DevAutoCreate(ctx, cfg.DatabaseURL); err != nil {
			log.Fatalf("dev-autocreate: %v", err)
		}
		logger.Info("dev-autocreate complete")
		return
	}

	if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
		log.Fatalf("migrate up: %v", err)
	}
	logger.Info("migrations applied")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	if env == "local" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
