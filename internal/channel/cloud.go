// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package channel

import (
	"context"
	"errors"
	"io"

	"github.com/tomtom215/diarykeeper/internal/backup"
)

// SlotName is the single cloud slot every backup is written to.
const SlotName = backup.DefaultArchiveName

var (
	// ErrSlotEmpty is returned by Download when nothing was ever uploaded.
	ErrSlotEmpty = errors.New("cloud slot is empty")

	// ErrUnauthorized is wrapped in a fault.Unavailable error when the
	// service rejects the configured token.
	ErrUnauthorized = errors.New("cloud credentials rejected")

	// ErrChecksumMismatch means downloaded or uploaded bytes differ from
	// what the service reports having stored.
	ErrChecksumMismatch = errors.New("slot checksum mismatch")
)

// Cloud is the transport for archive bytes to and from a single provider.
type Cloud interface {
	// Available returns a fault.Unavailable error when the provider cannot
	// be reached or rejects our credentials. An empty slot is available.
	Available(ctx context.Context) error

	// Upload replaces the named slot with size bytes read from r.
	Upload(ctx context.Context, name string, r io.Reader, size int64) error

	// Download writes the named slot to w.
	Download(ctx context.Context, name string, w io.Writer) error
}

// Builder produces a local archive.
type Builder interface {
	CreateBackup(ctx context.Context) (*backup.Result, error)
}

// Restorer restores the journal from a local archive.
type Restorer interface {
	Restore(ctx context.Context, archivePath string, opts backup.RestoreOptions) (*backup.RestoreReport, error)
}
