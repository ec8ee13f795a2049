// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

// Package backup builds and restores the single-file journal backup.
//
// # Archive Layout
//
// A backup is one ZIP file holding a database snapshot, every media file the
// database references and a manifest that maps each literal reference to its
// place inside the archive:
//
//	diary_app_backup.zip
//	├── diaryapp.db            (WAL-checkpointed copy of the live database)
//	├── image_mapping.json     ({"<reference>": "media/<path>", ...})
//	└── media/
//	    ├── images/<file>      (canonical references, bucket preserved)
//	    ├── profiles/<file>
//	    └── legacy/<n>_<file>  (absolute references, numbered to avoid clashes)
//
// # Components
//
//	Archiver      - CreateBackup: stage, snapshot, copy media, manifest, zip
//	RestoreEngine - Restore: extract, validate, swap database, place media
//	Scheduler     - optional periodic run of a backup function
//
// # Consistency
//
// Both Archiver and RestoreEngine hold the database exclusive lock for their
// whole run, so no reference can change while it is being archived or
// replaced. Work happens in a staging directory under the work directory that
// is always removed afterwards. The archive is written under a temporary name
// and renamed into place only when complete.
//
// # Failure Model
//
//   - A referenced file that cannot be found is skipped and reported in
//     Result.Skipped; the backup still succeeds.
//   - Any I/O failure while copying a file that was found aborts the backup.
//   - An archive without a database or manifest is a fault.Structural error
//     and nothing live is touched.
//   - After the database swap, per-file restore failures are reported in
//     RestoreReport.Failures. The swap is not rolled back.
//
// # Usage
//
//	archiver := backup.NewArchiver(db, resolver, backup.ConfigFrom(cfg))
//	result, err := archiver.CreateBackup(ctx)
//
//	engine := backup.NewRestoreEngine(db, resolver, backup.ConfigFrom(cfg))
//	report, err := engine.Restore(ctx, result.ArchivePath, backup.RestoreOptions{})
package backup
