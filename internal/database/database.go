// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	_ "modernc.org/sqlite"

	"github.com/tomtom215/diarykeeper/internal/config"
	"github.com/tomtom215/diarykeeper/internal/logging"
)

// ErrClosed is returned when the handle is closed, including the window in
// which a restore has swapped the database file.
var ErrClosed = errors.New("database is closed")

// ErrCheckpointBusy is returned when another connection kept the WAL from
// being fully folded into the main file.
var ErrCheckpointBusy = errors.New("wal checkpoint blocked by another connection")

// gateWeight is the capacity of the reader/writer gate. Shared callers take
// one unit, Exclusive callers take all of them.
const gateWeight = 1 << 20

// DB wraps the SQLite connection and the lock that serializes backup and
// restore against ordinary access.
type DB struct {
	path        string
	busyTimeout time.Duration

	gate *semaphore.Weighted

	connMu sync.RWMutex
	conn   *sql.DB
}

// New opens (creating if needed) the database at cfg.DatabasePath() and
// applies the schema.
func New(cfg config.StorageConfig) (*DB, error) {
	return Open(cfg.DatabasePath(), cfg.BusyTimeout)
}

// Open opens the database file at path and applies the schema.
func Open(path string, busyTimeout time.Duration) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db := &DB{
		path:        filepath.Clean(path),
		busyTimeout: busyTimeout,
		gate:        semaphore.NewWeighted(gateWeight),
	}

	if err := db.open(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) dsn() string {
	ms := db.busyTimeout.Milliseconds()
	if ms <= 0 {
		ms = 5000
	}
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		db.path, ms)
}

func (db *DB) open() error {
	// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301
	if err := os.MkdirAll(filepath.Dir(db.path), 0o750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", db.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite has a single writer, and a single connection
	// removes SQLITE_BUSY between our own goroutines.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		closeQuietly(conn)
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createSchema(conn); err != nil {
		closeQuietly(conn)
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	db.connMu.Lock()
	db.conn = conn
	db.connMu.Unlock()

	logging.Debug().Str("path", db.path).Msg("Database opened")
	return nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the connection. It is safe to call more than once.
func (db *DB) Close() error {
	db.connMu.Lock()
	defer db.connMu.Unlock()
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}

func (db *DB) handle() (*sql.DB, error) {
	db.connMu.RLock()
	defer db.connMu.RUnlock()
	if db.conn == nil {
		return nil, ErrClosed
	}
	return db.conn, nil
}

// Shared runs fn with the connection while holding a shared lock. Any number
// of Shared callers may run together; none run during Exclusive.
func (db *DB) Shared(ctx context.Context, fn func(conn *sql.DB) error) error {
	if err := db.gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire shared database lock: %w", err)
	}
	defer db.gate.Release(1)

	conn, err := db.handle()
	if err != nil {
		return err
	}
	return fn(conn)
}

// Exclusive runs fn while no other Shared or Exclusive caller holds the
// database. Backup and restore use it for their whole duration.
func (db *DB) Exclusive(ctx context.Context, fn func(x *Exclusive) error) error {
	if err := db.gate.Acquire(ctx, gateWeight); err != nil {
		return fmt.Errorf("acquire exclusive database lock: %w", err)
	}
	defer db.gate.Release(gateWeight)

	return fn(&Exclusive{db: db})
}

// Exclusive is the view of the database handed to Exclusive callers. Its
// methods do not lock; the caller already holds the gate.
type Exclusive struct {
	db *DB
}

// Path returns the live database file path.
func (x *Exclusive) Path() string {
	return x.db.path
}

// Checkpoint folds the WAL into the main database file so a plain file copy
// is a complete snapshot.
func (x *Exclusive) Checkpoint(ctx context.Context) error {
	conn, err := x.db.handle()
	if err != nil {
		return err
	}
	var busy, logFrames, checkpointed int
	err = conn.QueryRowContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &logFrames, &checkpointed)
	if err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	if busy != 0 {
		return fmt.Errorf("wal checkpoint: %d of %d frames copied: %w", checkpointed, logFrames, ErrCheckpointBusy)
	}
	return nil
}

// ListMediaReferences is DB.ListMediaReferences without the shared lock.
func (x *Exclusive) ListMediaReferences(ctx context.Context) ([]MediaRef, error) {
	conn, err := x.db.handle()
	if err != nil {
		return nil, err
	}
	return listMediaReferences(ctx, conn)
}

// Close closes the live handle so the file can be replaced.
func (x *Exclusive) Close() error {
	return x.db.Close()
}

// Reopen opens the database file again after it was replaced.
func (x *Exclusive) Reopen() error {
	if err := x.db.Close(); err != nil {
		logging.Warn().Err(err).Msg("Closing database before reopen failed")
	}
	return x.db.open()
}

// Checkpoint takes the exclusive lock and checkpoints the WAL.
func (db *DB) Checkpoint(ctx context.Context) error {
	return db.Exclusive(ctx, func(x *Exclusive) error {
		return x.Checkpoint(ctx)
	})
}

// closeQuietly closes a connection and logs any error.
func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database connection")
	}
}

// SidecarPaths returns the database path and its WAL and shared-memory files.
func SidecarPaths(path string) []string {
	return []string{path, path + "-wal", path + "-shm"}
}
