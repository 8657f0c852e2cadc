// Package migrate runs the jobs table schema forward with goose,
// adapted from rezkam-mono's embedded-migrations pattern: goose drives
// a plain database/sql connection opened with the pgx stdlib driver,
// side by side with the pgxpool connection the rest of the engine uses.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Up applies every pending migration against databaseURL.
func Up(ctx context.Context, databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping for migration: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// DevAutoCreate runs an idempotent CREATE TABLE IF NOT EXISTS against
// databaseURL, bypassing goose entirely. It exists only for local
// development when a developer wants a schema without running the
// migration tool — never invoked by cmd/server or cmd/worker.
func DevAutoCreate(ctx context.Context, databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open dev-autocreate connection: %w", err)
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL DEFAULT '',
			job_type     TEXT NOT NULL,
			priority     INTEGER NOT NULL DEFAULT 0,
			payload      JSONB NOT NULL DEFAULT '{}',
			status       TEXT NOT NULL DEFAULT 'pending',
			attempts     INTEGER NOT NULL DEFAULT 0,
			max_retries  INTEGER NOT NULL DEFAULT 5,
			scheduled_at TIMESTAMPTZ NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			started_at   TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			result       JSONB,
			error        TEXT,
			owner_id     TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs (status, priority DESC, scheduled_at ASC);
		CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status);
	`)
	if err != nil {
		return fmt.Errorf("dev-autocreate: %w", err)
	}
	return nil
}
