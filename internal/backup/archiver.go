// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

/*
archiver.go - Backup Creation

Backup Process (under the database exclusive lock):
 1. Create a fresh staging directory <workDir>/staging-<id>
 2. Checkpoint the WAL and copy the database file into staging
 3. List every media reference, archiving each distinct value once
 4. Resolve and copy each file into staging/media with the worker pool;
    references whose file cannot be found are skipped and reported
 5. Write image_mapping.json (reference -> archive path)
 6. Zip staging to <archive>.tmp-<id>, then rename over <archive>
 7. Remove staging, always

Media Placement:
  - images/x.jpg        -> media/images/x.jpg
  - /abs/path/to/y.jpg  -> media/legacy/<n>_y.jpg
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
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

// Archiver builds backup archives.
type Archiver struct {
	db       *database.DB
	resolver *media.Resolver
	cfg      Config

	newID func() string
}

// NewArchiver returns an archiver for db whose media is found through resolver.
func NewArchiver(db *database.DB, resolver *media.Resolver, cfg Config) *Archiver {
	return &Archiver{
		db:       db,
		resolver: resolver,
		cfg:      cfg.withDefaults(),
		newID:    uuid.NewString,
	}
}

// archiveItem is one distinct reference to be archived.
type archiveItem struct {
	ref         database.MediaRef
	source      string
	archivePath string
}

// CreateBackup builds the archive and returns where it was written. An
// existing archive at the same path is replaced only once the new one is
// complete.
func (a *Archiver) CreateBackup(ctx context.Context) (*Result, error) {
	start := time.Now()
	id := a.newID()
	ctx = logging.ContextWithOperation(ctx, "backup", id)
	log := logging.Ctx(ctx)

	log.Info().Str("work_dir", a.cfg.WorkDir).Msg("Backup started")

	result := &Result{ID: id, CreatedAt: start.UTC()}
	err := a.cfg.EnsureWorkDir()
	if err != nil {
		err = fault.TransientIO("backup", a.cfg.WorkDir, err)
	} else {
		err = a.db.Exclusive(ctx, func(x *database.Exclusive) error {
			return a.build(ctx, x, result)
		})
	}
	result.Duration = time.Since(start)

	metrics.RecordBackup(result.Duration, result.Entries, len(result.Skipped), result.Size, err)
	if err != nil {
		log.Error().Err(err).Dur("duration", result.Duration).Msg("Backup failed")
		return nil, err
	}

	log.Info().
		Str("archive", result.ArchivePath).
		Int64("size", result.Size).
		Int("entries", result.Entries).
		Int("skipped", len(result.Skipped)).
		Dur("duration", result.Duration).
		Msg("Backup completed")
	return result, nil
}

func (a *Archiver) build(ctx context.Context, x *database.Exclusive, result *Result) error {
	staging := filepath.Join(a.cfg.WorkDir, stagingPrefix+result.ID)
	if err := os.Mkdir(staging, 0o750); err != nil {
		return fault.TransientIO("create staging", staging, err)
	}
	defer removeStaging(ctx, staging)

	if err := a.snapshotDatabase(ctx, x, staging); err != nil {
		return err
	}

	refs, err := x.ListMediaReferences(ctx)
	if err != nil {
		return fmt.Errorf("list media references: %w", err)
	}
	items, skipped := a.planItems(refs)
	result.Skipped = skipped

	outcomes := workpool.Run(ctx, a.cfg.Workers, items, func(_ context.Context, it archiveItem) (int64, error) {
		n, err := media.CopyFile(it.source, filepath.Join(staging, filepath.FromSlash(it.archivePath)))
		if err != nil {
			return n, fault.TransientIO("archive media", it.source, err)
		}
		return n, nil
	})
	if err := workpool.FirstError(outcomes); err != nil {
		return err
	}

	manifest := make(Manifest, len(items))
	for _, it := range items {
		manifest[it.ref.Value] = it.archivePath
	}
	if err := writeManifest(filepath.Join(staging, ManifestName), manifest); err != nil {
		return err
	}
	result.Entries = len(manifest)

	return a.compress(ctx, staging, result)
}

// snapshotDatabase checkpoints the WAL and copies the main database file.
func (a *Archiver) snapshotDatabase(ctx context.Context, x *database.Exclusive, staging string) error {
	if err := x.Checkpoint(ctx); err != nil {
		return fault.TransientIO("checkpoint database", x.Path(), err)
	}
	if _, err := media.CopyFile(x.Path(), filepath.Join(staging, a.cfg.DatabaseEntry)); err != nil {
		return fault.TransientIO("copy database", x.Path(), err)
	}
	return nil
}

// planItems resolves each distinct reference and assigns its archive path.
// References that cannot be parsed or found are returned as skipped.
func (a *Archiver) planItems(refs []database.MediaRef) ([]archiveItem, []SkippedReference) {
	var (
		items   []archiveItem
		skipped []SkippedReference
		seen    = make(map[string]bool, len(refs))
		legacyN int
	)
	for _, ref := range refs {
		if seen[ref.Value] {
			continue
		}
		seen[ref.Value] = true

		parsed, err := media.ParseReference(ref.Value)
		if err != nil {
			skipped = append(skipped, skip(ref, SkipInvalid))
			continue
		}
		source, err := a.resolver.Resolve(parsed)
		if err != nil {
			if !errors.Is(err, media.ErrNotFound) {
				logging.Warn().Err(err).Str("reference", ref.Value).Msg("Resolving media reference failed")
			}
			skipped = append(skipped, skip(ref, SkipNotFound))
			continue
		}

		var archivePath string
		switch v := parsed.(type) {
		case media.CanonicalRelative:
			archivePath = path.Join(MediaDir, string(v.Bucket), v.Filename)
		default:
			legacyN++
			archivePath = path.Join(MediaDir, legacyDir, fmt.Sprintf("%d_%s", legacyN, filepath.Base(source)))
		}
		items = append(items, archiveItem{ref: ref, source: source, archivePath: archivePath})
	}
	return items, skipped
}

func skip(ref database.MediaRef, reason string) SkippedReference {
	logging.Warn().
		Str("reference", ref.Value).
		Str("table", ref.Table).
		Int64("row_id", ref.RowID).
		Str("reason", reason).
		Msg("Media reference skipped in backup")
	return SkippedReference{Reference: ref.Value, Table: ref.Table, RowID: ref.RowID, Reason: reason}
}

// compress zips staging into a temporary file and renames it over the
// archive path.
func (a *Archiver) compress(ctx context.Context, staging string, result *Result) (err error) {
	final := a.cfg.ArchivePath()
	tmp := final + ".tmp-" + result.ID

	aw, err := setupArchiveWriters(tmp, a.cfg.CompressionLevel)
	if err != nil {
		return fault.TransientIO("create archive", tmp, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp) //nolint:errcheck // Best effort cleanup on error
		}
	}()

	if err := aw.addDirToArchive(ctx, staging); err != nil {
		_ = aw.Close()
		return fault.TransientIO("write archive", tmp, err)
	}
	if err := aw.Close(); err != nil {
		return fault.TransientIO("write archive", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fault.TransientIO("finalize archive", final, err)
	}

	result.ArchivePath = final
	result.Size = aw.Size()
	result.Checksum = aw.Checksum()
	return nil
}

func writeManifest(filePath string, manifest Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal image mapping: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o640); err != nil {
		return fault.TransientIO("write image mapping", filePath, err)
	}
	return nil
}

func removeStaging(ctx context.Context, staging string) {
	if err := os.RemoveAll(staging); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("path", staging).Msg("Failed to remove staging directory")
	}
}
