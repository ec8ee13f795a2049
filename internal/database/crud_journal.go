// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Child is a profile row.
type Child struct {
	ID        int64
	FirstName string
	LastName  string
	BirthDate string
	PhotoURL  string
}

// Entry is a diary entry row.
type Entry struct {
	ID       int64
	ChildID  int64
	Content  string
	Bookmark bool
}

// Picture is a photo attached to a diary entry.
type Picture struct {
	ID           int64
	DiaryEntryID int64
	ImageURI     string
	ImageID      string
}

// Counts holds row counts for the journal tables.
type Counts struct {
	Children int64
	Entries  int64
	Pictures int64
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullIfZero(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// InsertChild inserts a profile and returns its ID.
func (db *DB) InsertChild(ctx context.Context, c Child) (int64, error) {
	if strings.TrimSpace(c.FirstName) == "" || strings.TrimSpace(c.LastName) == "" {
		return 0, fmt.Errorf("child first and last name are required")
	}
	return db.insert(ctx,
		`INSERT INTO child (first_name, last_name, birth_date, photo_url) VALUES (?, ?, ?, ?)`,
		c.FirstName, c.LastName, c.BirthDate, nullIfEmpty(c.PhotoURL))
}

// InsertEntry inserts a diary entry and returns its ID.
func (db *DB) InsertEntry(ctx context.Context, e Entry) (int64, error) {
	bookmark := 0
	if e.Bookmark {
		bookmark = 1
	}
	return db.insert(ctx,
		`INSERT INTO diary_entry (child_id, content, bookmark) VALUES (?, ?, ?)`,
		nullIfZero(e.ChildID), e.Content, bookmark)
}

// InsertPicture attaches a photo reference to an entry and returns its ID.
func (db *DB) InsertPicture(ctx context.Context, p Picture) (int64, error) {
	if p.ImageURI == "" {
		return 0, fmt.Errorf("picture image_uri is required")
	}
	if p.ImageID == "" {
		p.ImageID = p.ImageURI
	}
	return db.insert(ctx,
		`INSERT INTO diary_picture (diary_entry_id, image_uri, image_id) VALUES (?, ?, ?)`,
		p.DiaryEntryID, p.ImageURI, p.ImageID)
}

// SetChildPhoto replaces a profile's photo reference. Empty clears it.
func (db *DB) SetChildPhoto(ctx context.Context, childID int64, ref string) error {
	return db.Shared(ctx, func(conn *sql.DB) error {
		res, err := conn.ExecContext(ctx, `UPDATE child SET photo_url = ? WHERE id = ?`, nullIfEmpty(ref), childID)
		if err != nil {
			return fmt.Errorf("update child %d photo: %w", childID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("child %d: %w", childID, sql.ErrNoRows)
		}
		return nil
	})
}

// GetPicture loads one picture row.
func (db *DB) GetPicture(ctx context.Context, id int64) (*Picture, error) {
	p := &Picture{}
	err := db.Shared(ctx, func(conn *sql.DB) error {
		return conn.QueryRowContext(ctx,
			`SELECT id, COALESCE(diary_entry_id, 0), image_uri, image_id FROM diary_picture WHERE id = ?`, id,
		).Scan(&p.ID, &p.DiaryEntryID, &p.ImageURI, &p.ImageID)
	})
	if err != nil {
		return nil, fmt.Errorf("get picture %d: %w", id, err)
	}
	return p, nil
}

// GetChild loads one profile row.
func (db *DB) GetChild(ctx context.Context, id int64) (*Child, error) {
	c := &Child{}
	var photo sql.NullString
	err := db.Shared(ctx, func(conn *sql.DB) error {
		return conn.QueryRowContext(ctx,
			`SELECT id, first_name, last_name, birth_date, photo_url FROM child WHERE id = ?`, id,
		).Scan(&c.ID, &c.FirstName, &c.LastName, &c.BirthDate, &photo)
	})
	if err != nil {
		return nil, fmt.Errorf("get child %d: %w", id, err)
	}
	c.PhotoURL = photo.String
	return c, nil
}

// RecordCounts returns the number of rows in the journal tables.
func (db *DB) RecordCounts(ctx context.Context) (Counts, error) {
	var c Counts
	err := db.Shared(ctx, func(conn *sql.DB) error {
		return conn.QueryRowContext(ctx, `SELECT
			(SELECT COUNT(*) FROM child),
			(SELECT COUNT(*) FROM diary_entry),
			(SELECT COUNT(*) FROM diary_picture)`).Scan(&c.Children, &c.Entries, &c.Pictures)
	})
	if err != nil {
		return Counts{}, fmt.Errorf("count records: %w", err)
	}
	return c, nil
}

func (db *DB) insert(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var id int64
	err := db.Shared(ctx, func(conn *sql.DB) error {
		res, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	return id, nil
}
