// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

// Package fault defines the failure taxonomy shared by the media, migration,
// backup and channel packages.
//
// Every failure that crosses a package boundary is a *Error carrying one of
// four kinds. Callers branch on the kind with errors.Is against the sentinel
// values, never on message text:
//
//	if errors.Is(err, fault.ErrUnavailable) {
//	    // channel is down, nothing local was changed
//	}
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how callers must react to it.
type Kind string

const (
	// KindTransientIO is an item-level I/O failure (source vanished, one write failed).
	// Multi-item operations skip and record the item.
	KindTransientIO Kind = "transient_io"

	// KindStructural means an archive is missing its database or manifest,
	// or the snapshot inside it is unreadable. Fatal to a restore.
	KindStructural Kind = "structural"

	// KindUnavailable means the cloud channel is unreachable or rejected our credentials.
	KindUnavailable Kind = "unavailable"

	// KindMigrationRow means one legacy reference could not be migrated.
	KindMigrationRow Kind = "migration_row"
)

// Sentinels for errors.Is matching.
var (
	ErrTransientIO  = &Error{Kind: KindTransientIO}
	ErrStructural   = &Error{Kind: KindStructural}
	ErrUnavailable  = &Error{Kind: KindUnavailable}
	ErrMigrationRow = &Error{Kind: KindMigrationRow}
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// TransientIO wraps err as an item-level I/O failure.
func TransientIO(op, path string, err error) error {
	return &Error{Kind: KindTransientIO, Op: op, Path: path, Err: err}
}

// Structural wraps err as a structural archive failure.
func Structural(op, path string, err error) error {
	return &Error{Kind: KindStructural, Op: op, Path: path, Err: err}
}

// Unavailable wraps err as a channel availability failure.
func Unavailable(op string, err error) error {
	return &Error{Kind: KindUnavailable, Op: op, Err: err}
}

// MigrationRow wraps err as a single-row migration failure.
func MigrationRow(table string, rowID int64, err error) error {
	return &Error{Kind: KindMigrationRow, Op: fmt.Sprintf("migrate %s#%d", table, rowID), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
