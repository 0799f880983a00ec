// Package store provides SQLite-backed persistence for known places, places and flares.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS known_places (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	lat        REAL NOT NULL,
	lon        REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS places (
	id        TEXT PRIMARY KEY,
	mapbox_id TEXT NOT NULL UNIQUE,
	name      TEXT NOT NULL,
	latitude  REAL NOT NULL,
	longitude REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS flares (
	id             TEXT PRIMARY KEY,
	latitude       REAL NOT NULL,
	longitude      REAL NOT NULL,
	note           TEXT NOT NULL,
	category       TEXT NOT NULL DEFAULT 'regular',
	place_id       TEXT REFERENCES places(id) ON DELETE SET NULL,
	known_place_id TEXT REFERENCES known_places(id) ON DELETE SET NULL,
	photo_path     TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_flares_latitude ON flares(latitude);
CREATE INDEX IF NOT EXISTS idx_flares_known_place ON flares(known_place_id);
CREATE INDEX IF NOT EXISTS idx_flares_created_at ON flares(created_at);
`

// DB wraps a sql.DB with flare-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
