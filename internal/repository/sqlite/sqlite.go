// Package sqlite implements the repository interfaces on top of SQLite.
//
// The store is an embedded, pure-Go SQLite (modernc.org/sqlite, no CGo).
// Each document type gets its own table:
//
//	users             one row per GitHub account (external_id UNIQUE)
//	cards             one row per submission, user_id nullable
//	blacklist_config  a single row holding the moderation list as JSON
//
// TIMESTAMPS:
// Timestamps are stored as INTEGER unix nanoseconds. The rate limit compares
// posted_at against "now minus one minute" in SQL, and integer comparison is
// exact where text timestamps would depend on formatting and time zone.
//
// cards.url is indexed but deliberately NOT unique: duplicate detection is a
// read-then-write check in the submission pipeline, not a constraint.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sakif/repo-rater/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides every repository method.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/reporater.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests)
//
// The pool is capped at one connection. SQLite serialises writers anyway,
// and a ":memory:" database only exists on the connection that created it.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn, now: time.Now}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is still reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent,
// so it runs on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			external_id  TEXT NOT NULL UNIQUE,
			name         TEXT NOT NULL DEFAULT '',
			handle       TEXT NOT NULL DEFAULT '',
			image        TEXT NOT NULL DEFAULT '',
			blocked      INTEGER NOT NULL DEFAULT 0,
			block_reason TEXT NOT NULL DEFAULT '',
			created_at   INTEGER NOT NULL,
			updated_at   INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS cards (
			id        TEXT PRIMARY KEY,
			url       TEXT NOT NULL,
			user_id   TEXT REFERENCES users(id),
			comment   TEXT NOT NULL,
			rating    INTEGER NOT NULL,
			anonymous INTEGER NOT NULL DEFAULT 0,
			posted_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cards_url ON cards(url);
		CREATE INDEX IF NOT EXISTS idx_cards_posted_at ON cards(posted_at);
		CREATE INDEX IF NOT EXISTS idx_cards_user_posted_at ON cards(user_id, posted_at);
	`)
	if err != nil {
		return fmt.Errorf("creating cards table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS blacklist_config (
			id    TEXT PRIMARY KEY,
			words TEXT NOT NULL DEFAULT '[]'
		);
	`)
	if err != nil {
		return fmt.Errorf("creating blacklist_config table: %w", err)
	}

	return nil
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
