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
	"strings"
)

// ErrInvalidSnapshot is returned by VerifySnapshot for files that are not a
// usable journal database.
var ErrInvalidSnapshot = errors.New("invalid database snapshot")

// VerifySnapshot opens the database file at path query-only and checks that it
// is a SQLite database containing RequiredTables. The file is not modified.
func VerifySnapshot(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty or not a regular file", ErrInvalidSnapshot, path)
	}

	// Not mode=ro: a WAL-mode snapshot needs its -shm file created to be read.
	conn, err := sql.Open("sqlite", "file:"+path+"?_pragma=query_only(1)")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	defer closeQuietly(conn)

	var check string
	if err := conn.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&check); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if check != "ok" {
		return fmt.Errorf("%w: integrity check: %s", ErrInvalidSnapshot, check)
	}

	missing, err := missingTables(ctx, conn, RequiredTables)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing tables %s", ErrInvalidSnapshot, strings.Join(missing, ", "))
	}
	return nil
}
