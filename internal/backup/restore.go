// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

/*
restore.go - Restore From Archive

Restore Process:
 1. Extract the archive into <workDir>/staging-<id> (ZIP, or tar.gz from
    older tooling) with traversal checks and a per-entry size cap
 2. Validate staging before any live change: database snapshot present and
    readable with the journal tables, image mapping present and parseable
 3. Under the exclusive lock: close the live handle, delete the live
    database and its -wal/-shm files, copy the snapshot in
 4. Copy each mapped file to the location its reference resolves to when
    written back (canonical -> bucket file, legacy -> exact absolute path)
 5. Reopen the database handle
 6. Remove staging and, if asked, the source archive

Failures in steps 1-2 are fault.Structural (or TransientIO for plain I/O)
and leave the live data untouched. Per-file failures in step 4 are
collected; the database swap is not rolled back.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"archive/tar"
	"archive/zip"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/diarykeeper/internal/database"
	"github.com/tomtom215/diarykeeper/internal/fault"
	"github.com/tomtom215/diarykeeper/internal/logging"
	"github.com/tomtom215/diarykeeper/internal/media"
	"github.com/tomtom215/diarykeeper/internal/metrics"
	"github.com/tomtom215/diarykeeper/internal/workpool"
)

// RestoreEngine replaces the live journal with the contents of an archive.
type RestoreEngine struct {
	db       *database.DB
	resolver *media.Resolver
	cfg      Config

	newID func() string
}

// NewRestoreEngine returns a restore engine for db that places media using
// resolver's roots.
func NewRestoreEngine(db *database.DB, resolver *media.Resolver, cfg Config) *RestoreEngine {
	return &RestoreEngine{
		db:       db,
		resolver: resolver,
		cfg:      cfg.withDefaults(),
		newID:    uuid.NewString,
	}
}

// manifestPair is one image mapping entry.
type manifestPair struct {
	reference   string
	archivePath string
}

// Restore restores the archive at archivePath. The returned report is
// non-nil even on error and says how far the restore got.
func (e *RestoreEngine) Restore(ctx context.Context, archivePath string, opts RestoreOptions) (*RestoreReport, error) {
	start := time.Now()
	report := &RestoreReport{ID: e.newID()}
	ctx = logging.ContextWithOperation(ctx, "restore", report.ID)
	log := logging.Ctx(ctx)

	log.Info().Str("archive", archivePath).Msg("Restore started")

	err := e.restore(ctx, archivePath, report)
	if opts.RemoveSource {
		if rerr := os.Remove(archivePath); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			report.Warnings = append(report.Warnings, fmt.Sprintf("failed to remove source archive: %v", rerr))
		}
	}
	report.Duration = time.Since(start)

	metrics.RecordRestore(report.Duration, report.FilesRestored, len(report.Failures), err)
	if err != nil {
		log.Error().Err(err).Bool("database_restored", report.DatabaseRestored).Msg("Restore failed")
		return report, err
	}

	log.Info().
		Int("files_restored", report.FilesRestored).
		Int("files_failed", len(report.Failures)).
		Dur("duration", report.Duration).
		Msg("Restore completed")
	return report, nil
}

func (e *RestoreEngine) restore(ctx context.Context, archivePath string, report *RestoreReport) error {
	if err := e.cfg.EnsureWorkDir(); err != nil {
		return fault.TransientIO("restore", e.cfg.WorkDir, err)
	}

	staging := filepath.Join(e.cfg.WorkDir, stagingPrefix+report.ID)
	if err := os.Mkdir(staging, 0o750); err != nil {
		return fault.TransientIO("create staging", staging, err)
	}
	defer removeStaging(ctx, staging)

	format, err := extractArchive(ctx, archivePath, staging, e.cfg.MaxEntrySize)
	if err != nil {
		if isCorruptArchive(err) {
			return fault.Structural("extract archive", archivePath, err)
		}
		return fault.TransientIO("extract archive", archivePath, err)
	}
	logging.Ctx(ctx).Debug().Stringer("format", format).Msg("Archive extracted")
	if format == formatTarGz {
		report.Warnings = append(report.Warnings, "archive is a legacy tar.gz backup")
	}

	stagedDB, pairs, err := e.validateStaging(ctx, staging, archivePath)
	if err != nil {
		return err
	}

	return e.db.Exclusive(ctx, func(x *database.Exclusive) error {
		if err := x.Close(); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("failed to close database: %v", err))
		}

		if err := replaceDatabase(stagedDB, x.Path()); err != nil {
			if rerr := x.Reopen(); rerr != nil {
				logging.Ctx(ctx).Error().Err(rerr).Msg("Reopening database after failed swap failed")
			}
			return fault.TransientIO("replace database", x.Path(), err)
		}
		report.DatabaseRestored = true

		report.FilesRestored, report.Failures = e.restoreFiles(ctx, staging, pairs)

		if err := x.Reopen(); err != nil {
			return fmt.Errorf("reopen restored database: %w", err)
		}
		report.RestartRequired = true
		return nil
	})
}

// validateStaging checks the extracted archive before anything live is
// touched and returns the snapshot path and the image mapping.
func (e *RestoreEngine) validateStaging(ctx context.Context, staging, archivePath string) (string, []manifestPair, error) {
	stagedDB := filepath.Join(staging, e.cfg.DatabaseEntry)
	if info, err := os.Stat(stagedDB); err != nil || !info.Mode().IsRegular() {
		return "", nil, fault.Structural("restore", archivePath, ErrNoDatabase)
	}

	//nolint:gosec // G304: path is inside the staging directory
	data, err := os.ReadFile(filepath.Join(staging, ManifestName))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil, fault.Structural("restore", archivePath, ErrNoManifest)
	}
	if err != nil {
		return "", nil, fault.TransientIO("read image mapping", archivePath, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return "", nil, fault.Structural("restore", archivePath, fmt.Errorf("%w: %v", ErrInvalidManifest, err))
	}

	if err := database.VerifySnapshot(ctx, stagedDB); err != nil {
		return "", nil, fault.Structural("restore", archivePath, err)
	}

	pairs := make([]manifestPair, 0, len(manifest))
	for ref, p := range manifest {
		pairs = append(pairs, manifestPair{reference: ref, archivePath: p})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].reference < pairs[j].reference })
	return stagedDB, pairs, nil
}

// replaceDatabase deletes the live database files and copies the snapshot in.
func replaceDatabase(snapshot, livePath string) error {
	for _, p := range database.SidecarPaths(livePath) {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	if _, err := media.CopyFile(snapshot, livePath); err != nil {
		return fmt.Errorf("copy snapshot: %w", err)
	}
	return nil
}

// restoreFiles copies each staged media file to its target and returns the
// number restored plus the per-file failures.
func (e *RestoreEngine) restoreFiles(ctx context.Context, staging string, pairs []manifestPair) (int, []FileFailure) {
	outcomes := workpool.Run(ctx, e.cfg.Workers, pairs, func(_ context.Context, p manifestPair) (string, error) {
		return e.restoreFile(staging, p)
	})

	var (
		restored int
		failures []FileFailure
	)
	for i, o := range outcomes {
		if o.Err == nil {
			restored++
			continue
		}
		f := FileFailure{Reference: pairs[i].reference, ArchivePath: pairs[i].archivePath, Target: o.Value, Err: o.Err}
		failures = append(failures, f)
		logging.Ctx(ctx).Warn().
			Err(o.Err).
			Str("reference", f.Reference).
			Str("archive_path", f.ArchivePath).
			Msg("Media file not restored")
	}
	return restored, failures
}

// restoreFile returns the target path it wrote (or tried to write).
func (e *RestoreEngine) restoreFile(staging string, p manifestPair) (string, error) {
	ref, err := media.ParseReference(p.reference)
	if err != nil {
		return "", err
	}
	src, err := validateAndBuildDestPath(staging, p.archivePath)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(src); err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s not in archive", media.ErrNotFound, p.archivePath)
	}

	target := e.resolver.TargetPath(ref)
	if _, err := media.CopyFile(src, target); err != nil {
		return target, fault.TransientIO("restore media", target, err)
	}
	return target, nil
}

// isCorruptArchive reports whether an extraction error means the archive
// itself is malformed rather than an I/O problem.
func isCorruptArchive(err error) bool {
	var corrupt flate.CorruptInputError
	switch {
	case errors.Is(err, ErrUnknownFormat),
		errors.Is(err, ErrUnsafePath),
		errors.Is(err, ErrEntryTooLarge),
		errors.Is(err, zip.ErrFormat),
		errors.Is(err, zip.ErrAlgorithm),
		errors.Is(err, zip.ErrChecksum),
		errors.Is(err, gzip.ErrHeader),
		errors.Is(err, gzip.ErrChecksum),
		errors.Is(err, tar.ErrHeader),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &corrupt):
		return true
	default:
		return false
	}
}
