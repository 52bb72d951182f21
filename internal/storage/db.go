// Package storage persists the encoded registry blobs in SQLite and writes
// compressed point-in-time snapshot files for backup.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Blob kinds stored in the blobs table.
const (
	KindNations = "nations"
	KindUnits   = "units"
)

// DB wraps a SQLite connection holding the engine's persisted state.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS blobs (
		kind TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		saved_at_ms INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts_ms INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS engine_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts_ms);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveBlob stores an encoded registry blob under its kind (full replace).
func (db *DB) SaveBlob(kind, data string, savedAtMs int64) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO blobs (kind, data, saved_at_ms) VALUES (?, ?, ?)",
		kind, data, savedAtMs,
	)
	if err != nil {
		return fmt.Errorf("save blob %s: %w", kind, err)
	}
	return nil
}

// LoadBlob returns the stored blob for a kind. A missing blob reads as
// empty, which the codec treats as an empty registry.
func (db *DB) LoadBlob(kind string) (string, error) {
	var data string
	err := db.conn.Get(&data, "SELECT data FROM blobs WHERE kind = ?", kind)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load blob %s: %w", kind, err)
	}
	return data, nil
}

// SaveState stores both registry blobs in one transaction, so a restart
// never observes nations from one save and units from another.
func (db *DB) SaveState(nationsBlob, unitsBlob string, savedAtMs int64) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for kind, data := range map[string]string{KindNations: nationsBlob, KindUnits: unitsBlob} {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO blobs (kind, data, saved_at_ms) VALUES (?, ?, ?)",
			kind, data, savedAtMs,
		); err != nil {
			return fmt.Errorf("save blob %s: %w", kind, err)
		}
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO engine_meta (key, value) VALUES ('last_save_ms', ?)",
		fmt.Sprintf("%d", savedAtMs),
	); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("engine state saved", "nations_bytes", len(nationsBlob), "units_bytes", len(unitsBlob))
	return nil
}

// Event is a notable engine occurrence, recorded for operators.
type Event struct {
	TsMs        int64  `db:"ts_ms" json:"ts_ms"`
	Description string `db:"description" json:"description"`
	Category    string `db:"category" json:"category"`
}

// AppendEvent records an event. Failures are logged, not surfaced; the
// event log is advisory.
func (db *DB) AppendEvent(tsMs int64, description, category string) {
	_, err := db.conn.Exec(
		"INSERT INTO events (ts_ms, description, category) VALUES (?, ?, ?)",
		tsMs, description, category,
	)
	if err != nil {
		slog.Warn("failed to append event", "error", err)
	}
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]Event, error) {
	var events []Event
	err := db.conn.Select(&events,
		"SELECT ts_ms, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in engine metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO engine_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. Missing keys read as empty.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM engine_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}
