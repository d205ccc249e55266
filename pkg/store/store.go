// Package store persists the control-plane metadata in SQLite. The external
// daemons own the runtime truth; this store records the desired state and
// the lifecycle positions the selection core advances.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// SQLite driver, registered as "sqlite3".
	_ "github.com/mattn/go-sqlite3"
	"k8s.io/klog/v2"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS control_devices (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT NOT NULL CHECK (kind IN ('pdu', 'kvm')),
	name        TEXT NOT NULL UNIQUE,
	address     TEXT NOT NULL UNIQUE,
	mac_address TEXT UNIQUE,
	ports       INTEGER NOT NULL DEFAULT 0,
	model       TEXT NOT NULL DEFAULT '',
	serial      TEXT NOT NULL DEFAULT '',
	username    TEXT NOT NULL DEFAULT '',
	password    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS initiators (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	mac_address    TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL UNIQUE,
	mode           TEXT NOT NULL DEFAULT 'A' CHECK (mode IN ('A', 'M')),
	address        TEXT,
	pdu_id         INTEGER REFERENCES control_devices (id) ON DELETE SET NULL,
	pdu_port       INTEGER,
	kvm_id         INTEGER REFERENCES control_devices (id) ON DELETE SET NULL,
	kvm_port       INTEGER,
	last_initiated TIMESTAMP
);

CREATE TABLE IF NOT EXISTS targets (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL UNIQUE,
	boot         INTEGER NOT NULL DEFAULT 0,
	active       INTEGER NOT NULL DEFAULT 0,
	status       INTEGER NOT NULL DEFAULT 0,
	initiator_id INTEGER UNIQUE REFERENCES initiators (id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS logical_units (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL UNIQUE,
	vendor_id     TEXT NOT NULL DEFAULT '',
	product_id    TEXT NOT NULL DEFAULT '',
	product_rev   TEXT NOT NULL DEFAULT '',
	volume_group  TEXT NOT NULL,
	size_gib      REAL NOT NULL,
	use           INTEGER NOT NULL DEFAULT 0,
	status        INTEGER NOT NULL DEFAULT 0,
	boot_count    INTEGER NOT NULL DEFAULT 0 CHECK (boot_count >= 0),
	last_attached TIMESTAMP,
	target_id     INTEGER REFERENCES targets (id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL,
	size_gib        REAL NOT NULL,
	active          INTEGER NOT NULL DEFAULT 0,
	description     TEXT NOT NULL DEFAULT '',
	logical_unit_id INTEGER NOT NULL REFERENCES logical_units (id) ON DELETE CASCADE,
	UNIQUE (logical_unit_id, name)
);

CREATE UNIQUE INDEX IF NOT EXISTS snapshots_one_active
	ON snapshots (logical_unit_id) WHERE active = 1;
`

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (and creates, if needed) the database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	klog.V(4).Infof("Opened metadata store at %s", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// notFound normalizes sql.ErrNoRows into ErrNotFound with context.
func notFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return err
}
