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
)

// MetaAppVersion is the app_meta key holding the last migrated app version.
const MetaAppVersion = "app_version"

// ErrUnknownColumn is returned when a MediaRef names a table/column pair that
// does not hold media references.
var ErrUnknownColumn = errors.New("not a media reference column")

// MediaRef is one stored media reference and the row that owns it.
type MediaRef struct {
	Table  string
	Column string
	RowID  int64
	// OwnerID is the child ID for profile photos and the diary entry ID for
	// pictures. Zero when the row has none.
	OwnerID int64
	Bucket  string
	Value   string
}

// referenceColumn describes a column that stores media references.
type referenceColumn struct {
	table  string
	column string
	owner  string
	bucket string
}

// referenceColumns is the fixed set of columns holding media references.
// Table and column names are only ever interpolated from this list.
var referenceColumns = []referenceColumn{
	{table: TableChild, column: "photo_url", owner: "id", bucket: "profiles"},
	{table: TableDiaryPicture, column: "image_uri", owner: "diary_entry_id", bucket: "images"},
}

func lookupColumn(table, column string) (referenceColumn, bool) {
	for _, rc := range referenceColumns {
		if rc.table == table && rc.column == column {
			return rc, true
		}
	}
	return referenceColumn{}, false
}

// ListMediaReferences returns every non-empty media reference, profile photos
// first, each table in row ID order.
func (db *DB) ListMediaReferences(ctx context.Context) ([]MediaRef, error) {
	var refs []MediaRef
	err := db.Shared(ctx, func(conn *sql.DB) error {
		var err error
		refs, err = listMediaReferences(ctx, conn)
		return err
	})
	return refs, err
}

func listMediaReferences(ctx context.Context, conn *sql.DB) ([]MediaRef, error) {
	var refs []MediaRef
	for _, rc := range referenceColumns {
		//nolint:gosec // G201: table and column names come from referenceColumns
		query := fmt.Sprintf(
			`SELECT id, COALESCE(%s, 0), %s FROM %s WHERE %s IS NOT NULL AND %s != '' ORDER BY id`,
			rc.owner, rc.column, rc.table, rc.column, rc.column)

		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("list %s.%s: %w", rc.table, rc.column, err)
		}
		for rows.Next() {
			ref := MediaRef{Table: rc.table, Column: rc.column, Bucket: rc.bucket}
			if err := rows.Scan(&ref.RowID, &ref.OwnerID, &ref.Value); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan %s.%s: %w", rc.table, rc.column, err)
			}
			refs = append(refs, ref)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("iterate %s.%s: %w", rc.table, rc.column, err)
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

// UpdateMediaReference replaces ref.Value with newValue on the owning row,
// only if the row still holds ref.Value. It reports whether a row changed.
func (db *DB) UpdateMediaReference(ctx context.Context, ref MediaRef, newValue string) (bool, error) {
	rc, ok := lookupColumn(ref.Table, ref.Column)
	if !ok {
		return false, fmt.Errorf("%s.%s: %w", ref.Table, ref.Column, ErrUnknownColumn)
	}

	var changed bool
	err := db.Shared(ctx, func(conn *sql.DB) error {
		//nolint:gosec // G201: table and column names come from referenceColumns
		query := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE id = ? AND %s = ?`, rc.table, rc.column, rc.column)
		res, err := conn.ExecContext(ctx, query, newValue, ref.RowID, ref.Value)
		if err != nil {
			return fmt.Errorf("update %s.%s #%d: %w", rc.table, rc.column, ref.RowID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		changed = n > 0
		return nil
	})
	return changed, err
}

// GetMeta returns the app_meta value for key and whether it exists.
func (db *DB) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := db.Shared(ctx, func(conn *sql.DB) error {
		err := conn.QueryRowContext(ctx, `SELECT value FROM app_meta WHERE key = ?`, key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read app_meta %s: %w", key, err)
		}
		found = true
		return nil
	})
	return value, found, err
}

// SetMeta upserts an app_meta value.
func (db *DB) SetMeta(ctx context.Context, key, value string) error {
	return db.Shared(ctx, func(conn *sql.DB) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO app_meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
		if err != nil {
			return fmt.Errorf("write app_meta %s: %w", key, err)
		}
		return nil
	})
}
