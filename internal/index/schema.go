// Package index persists the last vault scan in SQLite, with optional FTS5
// full-text search over note bodies.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	path       TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	body       TEXT NOT NULL DEFAULT '',
	scanned_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS referenceables (
	path       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	level      INTEGER NOT NULL DEFAULT 0,
	text       TEXT NOT NULL DEFAULT '',
	identifier TEXT NOT NULL DEFAULT '',
	block_kind TEXT NOT NULL DEFAULT '',
	start_byte INTEGER NOT NULL DEFAULT 0,
	end_byte   INTEGER NOT NULL DEFAULT 0,
	ord        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS links (
	source       TEXT NOT NULL,
	start_byte   INTEGER NOT NULL,
	end_byte     INTEGER NOT NULL,
	dest         TEXT NOT NULL,
	ref_kind     TEXT NOT NULL,
	display      TEXT NOT NULL DEFAULT '',
	target_path  TEXT NOT NULL,
	target_kind  TEXT NOT NULL,
	target_label TEXT NOT NULL DEFAULT '',
	ord          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS unresolved (
	source     TEXT NOT NULL,
	start_byte INTEGER NOT NULL,
	end_byte   INTEGER NOT NULL,
	dest       TEXT NOT NULL,
	ref_kind   TEXT NOT NULL,
	display    TEXT NOT NULL DEFAULT '',
	ord        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_referenceables_path ON referenceables(path);
CREATE INDEX IF NOT EXISTS idx_links_source ON links(source);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_path);
CREATE INDEX IF NOT EXISTS idx_unresolved_source ON unresolved(source);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
