// Package sqlite implements repository.Store on an embedded SQLite file
// using the pure-Go modernc.org/sqlite driver (no CGo).
//
// Use ":memory:" as the path for a throwaway database in tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Also registers the "sqlite" driver with database/sql.
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sankalp/sankalp/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and implements every repository
// interface.
type DB struct {
	conn *sql.DB
}

// New opens (creating if needed) the database at dbPath and runs migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite serializes writers anyway. One connection also keeps PRAGMAs
	// and ":memory:" databases from being split across pool connections.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. Every statement is idempotent so it runs on
// each start; later columns are added with addColumnIfNotExists.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                  TEXT PRIMARY KEY,
			name                TEXT NOT NULL,
			email               TEXT NOT NULL UNIQUE,
			login_type          TEXT NOT NULL,
			google_id           TEXT UNIQUE,
			password_hash       TEXT NOT NULL DEFAULT '',
			email_verified      INTEGER NOT NULL DEFAULT 0,
			xp                  INTEGER NOT NULL DEFAULT 0,
			badges              TEXT NOT NULL DEFAULT '[]',
			current_streak      INTEGER NOT NULL DEFAULT 0,
			created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Settings added after the first release.
	userColumns := []struct{ name, def string }{
		{"deposit_paid", "INTEGER NOT NULL DEFAULT 0"},
		{"email_notifications", "INTEGER NOT NULL DEFAULT 1"},
		{"reminder_time", "TEXT NOT NULL DEFAULT '20:00'"},
	}
	for _, c := range userColumns {
		if err := db.addColumnIfNotExists("users", c.name, c.def); err != nil {
			return fmt.Errorf("adding %s to users: %w", c.name, err)
		}
	}

	_, err = db.conn.Exec(`
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
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_habits_user_id ON habits(user_id, position);

		CREATE TABLE IF NOT EXISTS checkins (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			habit_id    TEXT NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
			date        TEXT NOT NULL,
			completed   INTEGER NOT NULL DEFAULT 0,
			mood        INTEGER,
			note        TEXT NOT NULL DEFAULT '',
			time_spent  INTEGER,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, habit_id, date)
		);
		CREATE INDEX IF NOT EXISTS idx_checkins_user_date ON checkins(user_id, date);

		CREATE TABLE IF NOT EXISTS habit_streaks (
			user_id              TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			habit_id             TEXT NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
			current_streak       INTEGER NOT NULL DEFAULT 0,
			best_streak          INTEGER NOT NULL DEFAULT 0,
			last_completed_date  TEXT,
			PRIMARY KEY (user_id, habit_id)
		);

		CREATE TABLE IF NOT EXISTS daily_logs (
			user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			date         TEXT NOT NULL,
			sleep_hours  REAL,
			reflection   TEXT NOT NULL DEFAULT '',
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, date)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating habit tables: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already
// exist, which makes ALTER TABLE migrations safe to rerun.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func isForeignKeyViolation(err error) bool {
	var se *msqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}
