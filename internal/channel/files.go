// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package channel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/tomtom215/diarykeeper/internal/backup"
	"github.com/tomtom215/diarykeeper/internal/fault"
	"github.com/tomtom215/diarykeeper/internal/logging"
	"github.com/tomtom215/diarykeeper/internal/media"
)

// Files is the file channel: archives leave and arrive as plain files the
// platform share and pick flows hand us.
type Files struct {
	builder  Builder
	restorer Restorer
	workDir  string
}

// NewFiles creates a file channel. Imports are staged in workDir.
func NewFiles(builder Builder, restorer Restorer, workDir string) *Files {
	return &Files{builder: builder, restorer: restorer, workDir: workDir}
}

// Export builds an archive and copies it to destPath. The archive in the
// work directory is removed afterwards.
func (f *Files) Export(ctx context.Context, destPath string) (*backup.Result, error) {
	result, err := f.builder.CreateBackup(ctx)
	if err != nil {
		return nil, err
	}
	defer removeArchive(ctx, result.ArchivePath)

	if err := copyArchive("export", result.ArchivePath, destPath); err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().Str("destination", destPath).Int64("size", result.Size).Msg("Exported archive")
	return result, nil
}

// Import copies the archive at srcPath into the work directory, checks that
// it is an archive and restores from the copy. srcPath is never modified.
func (f *Files) Import(ctx context.Context, srcPath string) (*backup.RestoreReport, error) {
	if _, err := os.Stat(srcPath); err != nil {
		return nil, fault.TransientIO("import", srcPath, err)
	}
	if err := os.MkdirAll(f.workDir, 0o750); err != nil {
		return nil, fault.TransientIO("import", f.workDir, err)
	}

	staged := filepath.Join(f.workDir, "import-"+uuid.NewString()+filepath.Ext(srcPath))
	if err := copyArchive("import", srcPath, staged); err != nil {
		return nil, err
	}
	if err := backup.CheckArchive(staged); err != nil {
		removeArchive(ctx, staged)
		return nil, fault.Structural("import", srcPath, err)
	}

	return f.restorer.Restore(ctx, staged, backup.RestoreOptions{RemoveSource: true})
}

// copyArchive copies src to dst, wrapping failures as transient I/O.
func copyArchive(op, src, dst string) error {
	if _, err := media.CopyFile(src, dst); err != nil {
		return fault.TransientIO(op, dst, fmt.Errorf("copy %s: %w", src, err))
	}
	return nil
}
