// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package backup

import (
	"errors"
	"time"
)

// Archive layout names.
const (
	DefaultArchiveName   = "diary_app_backup.zip"
	DefaultDatabaseEntry = "diaryapp.db"
	ManifestName         = "image_mapping.json"
	MediaDir             = "media"

	legacyDir           = "legacy"
	stagingPrefix       = "staging-"
	defaultMaxEntrySize = 1 << 30
)

var (
	// ErrNoDatabase means the archive has no database snapshot.
	ErrNoDatabase = errors.New("archive contains no database")

	// ErrNoManifest means the archive has no image mapping.
	ErrNoManifest = errors.New("archive contains no image mapping")

	// ErrInvalidManifest means the image mapping could not be parsed.
	ErrInvalidManifest = errors.New("invalid image mapping")

	// ErrUnknownFormat means the file is neither a ZIP nor a gzip'd tar.
	ErrUnknownFormat = errors.New("unrecognized archive format")

	// ErrUnsafePath means an archive entry or manifest value escapes staging.
	ErrUnsafePath = errors.New("unsafe path in archive")

	// ErrEntryTooLarge means an archive entry exceeds the size cap.
	ErrEntryTooLarge = errors.New("archive entry too large")
)

// Manifest maps each literal reference found in the database at backup time
// to the archive-relative POSIX path of its file.
type Manifest map[string]string

// Result describes a finished backup.
type Result struct {
	ID          string             `json:"id"`
	ArchivePath string             `json:"archive_path"`
	Size        int64              `json:"size"`
	Checksum    string             `json:"checksum"`
	Entries     int                `json:"entries"`
	Skipped     []SkippedReference `json:"skipped,omitempty"`
	Duration    time.Duration      `json:"duration"`
	CreatedAt   time.Time          `json:"created_at"`
}

// SkippedReference is a reference whose file was not archived.
type SkippedReference struct {
	Reference string `json:"reference"`
	Table     string `json:"table"`
	RowID     int64  `json:"row_id"`
	Reason    string `json:"reason"`
}

// Skip reasons.
const (
	SkipNotFound = "file not found"
	SkipInvalid  = "invalid reference"
)

// RestoreOptions tune a single restore.
type RestoreOptions struct {
	// RemoveSource deletes the archive file after the restore ran, whether it
	// succeeded or not. Channels set it for downloaded and imported copies.
	RemoveSource bool
}

// RestoreReport describes a finished restore.
type RestoreReport struct {
	ID               string        `json:"id"`
	DatabaseRestored bool          `json:"database_restored"`
	FilesRestored    int           `json:"files_restored"`
	Failures         []FileFailure `json:"failures,omitempty"`
	Warnings         []string      `json:"warnings,omitempty"`
	RestartRequired  bool          `json:"restart_required"`
	Duration         time.Duration `json:"duration"`
}

// FileFailure is one manifest entry that could not be restored.
type FileFailure struct {
	Reference   string `json:"reference"`
	ArchivePath string `json:"archive_path"`
	Target      string `json:"target,omitempty"`
	Err         error  `json:"-"`
}

func (f FileFailure) Error() string {
	return f.Reference + ": " + f.Err.Error()
}
