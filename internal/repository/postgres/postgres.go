// Package postgres implements repository.Store on a hosted PostgreSQL
// database through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sankalp/sankalp/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB holds the pool and implements every repository interface.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, verifies the connection and applies the
// schema.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing database URL: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	db := &DB{pool: pool}
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}
	return db, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

func (db *DB) migrate(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id                   TEXT PRIMARY KEY,
			name                 TEXT NOT NULL,
			email                TEXT NOT NULL UNIQUE,
			login_type           TEXT NOT NULL,
			google_id            TEXT UNIQUE,
			password_hash        TEXT NOT NULL DEFAULT '',
			email_verified       BOOLEAN NOT NULL DEFAULT FALSE,
			xp                   INTEGER NOT NULL DEFAULT 0,
			badges               TEXT[] NOT NULL DEFAULT '{}',
			current_streak       INTEGER NOT NULL DEFAULT 0,
			deposit_paid         BOOLEAN NOT NULL DEFAULT FALSE,
			email_notifications  BOOLEAN NOT NULL DEFAULT TRUE,
			reminder_time        TEXT NOT NULL DEFAULT '20:00',
			created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS habits (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name        TEXT NOT NULL,
			why         TEXT NOT NULL DEFAULT '',
			time        TEXT NOT NULL DEFAULT '09:00',
			category    TEXT NOT NULL DEFAULT '',
			difficulty  TEXT NOT NULL DEFAULT '',
			goal_value  INTEGER NOT NULL DEFAULT 0,
			goal_unit   TEXT NOT NULL DEFAULT '',
			position    INTEGER NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_habits_user_id ON habits(user_id, position);

		CREATE TABLE IF NOT EXISTS checkins (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			habit_id    TEXT NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
			date        DATE NOT NULL,
			completed   BOOLEAN NOT NULL DEFAULT FALSE,
			mood        INTEGER,
			note        TEXT NOT NULL DEFAULT '',
			time_spent  INTEGER,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, habit_id, date)
		);
		CREATE INDEX IF NOT EXISTS idx_checkins_user_date ON checkins(user_id, date);

		CREATE TABLE IF NOT EXISTS habit_streaks (
			user_id              TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			habit_id             TEXT NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
			current_streak       INTEGER NOT NULL DEFAULT 0,
			best_streak          INTEGER NOT NULL DEFAULT 0,
			last_completed_date  DATE,
			PRIMARY KEY (user_id, habit_id)
		);

		CREATE TABLE IF NOT EXISTS daily_logs (
			user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			date         DATE NOT NULL,
			sleep_hours  DOUBLE PRECISION,
			reflection   TEXT NOT NULL DEFAULT '',
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, date)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
