// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package backup

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tomtom215/diarykeeper/internal/config"
)

// Config holds the settings the archiver and restore engine need.
type Config struct {
	// WorkDir holds staging directories and the produced archive.
	WorkDir string

	// ArchiveName is the file name of the produced archive.
	ArchiveName string

	// DatabaseEntry is the database file name inside the archive.
	DatabaseEntry string

	// Workers bounds concurrent media copies (1 = sequential).
	Workers int

	// CompressionLevel is the deflate level (-1 default, 0 store, 1-9).
	CompressionLevel int

	// MaxEntrySize caps the uncompressed size of any archive entry on restore.
	MaxEntrySize int64
}

// ConfigFrom derives the backup settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		WorkDir:          cfg.Storage.WorkDir(),
		ArchiveName:      cfg.Backup.ArchiveName,
		DatabaseEntry:    cfg.Backup.DatabaseEntry,
		Workers:          cfg.Backup.Workers,
		CompressionLevel: cfg.Backup.CompressionLevel,
		MaxEntrySize:     cfg.Backup.MaxEntrySize,
	}
}

// withDefaults fills zero values so hand-built configs work in tests and
// embedders.
func (c Config) withDefaults() Config {
	if c.ArchiveName == "" {
		c.ArchiveName = DefaultArchiveName
	}
	if c.DatabaseEntry == "" {
		c.DatabaseEntry = DefaultDatabaseEntry
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.MaxEntrySize <= 0 {
		c.MaxEntrySize = defaultMaxEntrySize
	}
	return c
}

// ArchivePath returns where CreateBackup leaves the finished archive.
func (c Config) ArchivePath() string {
	return filepath.Join(c.WorkDir, c.ArchiveName)
}

// EnsureWorkDir creates the work directory if it doesn't exist.
func (c Config) EnsureWorkDir() error {
	if c.WorkDir == "" {
		return fmt.Errorf("backup work directory is not configured")
	}
	if err := os.MkdirAll(c.WorkDir, 0o750); err != nil {
		return fmt.Errorf("failed to create backup work directory %s: %w", c.WorkDir, err)
	}
	return nil
}
