// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

/*
database_schema.go - Database Schema Management

The journal schema is the one the device app has always shipped, so archives
made by any release restore into any other:

  - child: profiles; photo_url holds a media reference (bucket "profiles")
  - diary_entry: entries owned by a child
  - diary_picture: photos attached to an entry; image_uri holds a media
    reference (bucket "images")
  - app_meta: key/value pairs, including the app_version migration marker

Every statement is idempotent and runs on each open.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Table names that carry media references or are required in a snapshot.
const (
	TableChild        = "child"
	TableDiaryEntry   = "diary_entry"
	TableDiaryPicture = "diary_picture"
	TableAppMeta      = "app_meta"
)

// RequiredTables must exist in any database accepted by restore.
var RequiredTables = []string{TableChild, TableDiaryPicture}

var schemaQueries = []string{
	`CREATE TABLE IF NOT EXISTS child (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		birth_date TEXT NOT NULL,
		photo_url TEXT,
		is_active INTEGER DEFAULT 1,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS diary_entry (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		child_id INTEGER,
		content TEXT NOT NULL,
		bookmark INTEGER DEFAULT 0,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (child_id) REFERENCES child (id)
	)`,
	`CREATE TABLE IF NOT EXISTS diary_picture (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		diary_entry_id INTEGER,
		image_uri TEXT NOT NULL,
		image_id TEXT NOT NULL,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (diary_entry_id) REFERENCES diary_entry (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS app_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_diary_picture_entry ON diary_picture (diary_entry_id)`,
	`CREATE INDEX IF NOT EXISTS idx_diary_entry_child ON diary_entry (child_id)`,
}

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// createSchema creates the journal tables and indexes.
func createSchema(conn *sql.DB) error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, q := range schemaQueries {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// missingTables returns the names absent from the sqlite_master catalog.
func missingTables(ctx context.Context, conn *sql.DB, names []string) ([]string, error) {
	var missing []string
	for _, name := range names {
		var found string
		err := conn.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&found)
		if err == sql.ErrNoRows {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("inspect table %s: %w", name, err)
		}
	}
	return missing, nil
}
