// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package migration

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/diarykeeper/internal/database"
	"github.com/tomtom215/diarykeeper/internal/fault"
	"github.com/tomtom215/diarykeeper/internal/logging"
	"github.com/tomtom215/diarykeeper/internal/media"
	"github.com/tomtom215/diarykeeper/internal/metrics"
	"github.com/tomtom215/diarykeeper/internal/version"
	"github.com/tomtom215/diarykeeper/internal/workpool"
)

// Failure reasons recorded in RowFailure.Reason.
const (
	ReasonInvalidReference = "invalid reference"
	ReasonSourceMissing    = "source missing"
	ReasonCopyFailed       = "copy failed"
	ReasonUpdateFailed     = "update failed"
	ReasonRowChanged       = "row changed during migration"
)

// Row results recorded in metrics.
const (
	resultMigrated  = "migrated"
	resultUnchanged = "unchanged"
	resultFailed    = "failed"
)

// Database is the part of the database the runner needs.
type Database interface {
	ListMediaReferences(ctx context.Context) ([]database.MediaRef, error)
	UpdateMediaReference(ctx context.Context, ref database.MediaRef, newValue string) (bool, error)
	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
}

// Options tune a Runner.
type Options struct {
	// AppVersion is the running version. Empty means version.Version.
	AppVersion string
	// Force runs even when the stored marker equals AppVersion.
	Force bool
	// Workers bounds concurrent file copies.
	Workers int
}

// RowFailure is one reference that could not be migrated.
type RowFailure struct {
	Table     string
	RowID     int64
	Reference string
	Reason    string
	Err       error
}

// Report summarizes one Run.
type Report struct {
	Skipped     bool
	FromVersion string
	ToVersion   string
	Migrated    int
	Unchanged   int
	Failures    []RowFailure
	Duration    time.Duration
}

// Runner rewrites legacy absolute references into canonical bucket
// references once per app version.
type Runner struct {
	db       Database
	resolver *media.Resolver
	store    *media.Store
	opts     Options

	now       func() time.Time
	stampMu   sync.Mutex
	lastStamp int64
}

// NewRunner returns a runner.
func NewRunner(db Database, resolver *media.Resolver, store *media.Store, opts Options) *Runner {
	if opts.AppVersion == "" {
		opts.AppVersion = version.Version
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{db: db, resolver: resolver, store: store, opts: opts, now: time.Now}
}

// Run performs the migration. Row failures never stop the run and the
// version marker is written afterwards even when rows failed, so failed rows
// are not retried on every launch. An error is returned only when the marker
// or the reference list cannot be read or the marker cannot be written.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	ctx = logging.ContextWithOperation(ctx, "migration", logging.NewOperationID())
	log := logging.Ctx(ctx)

	from, _, err := r.db.GetMeta(ctx, database.MetaAppVersion)
	if err != nil {
		metrics.RecordMigrationRun("error")
		return nil, fmt.Errorf("read app version marker: %w", err)
	}

	report := &Report{FromVersion: from, ToVersion: r.opts.AppVersion}
	if from == r.opts.AppVersion && !r.opts.Force {
		report.Skipped = true
		metrics.RecordMigrationRun("skipped")
		log.Debug().Str("version", from).Msg("Reference migration already done for this version")
		return report, nil
	}

	log.Info().Str("from", from).Str("to", r.opts.AppVersion).Bool("force", r.opts.Force).Msg("Reference migration started")

	refs, err := r.db.ListMediaReferences(ctx)
	if err != nil {
		metrics.RecordMigrationRun("error")
		return nil, fmt.Errorf("list media references: %w", err)
	}

	var legacy []database.MediaRef
	for _, ref := range refs {
		parsed, err := media.ParseReference(ref.Value)
		switch {
		case err != nil:
			r.fail(ctx, report, ref, ReasonInvalidReference, err)
		case isLegacy(parsed):
			legacy = append(legacy, ref)
		default:
			report.Unchanged++
			metrics.RecordMigrationRow(ref.Table, resultUnchanged)
		}
	}

	outcomes := workpool.Run(ctx, r.opts.Workers, legacy, r.migrateRow)
	for i, o := range outcomes {
		if o.Err != nil {
			var rf *rowError
			if errors.As(o.Err, &rf) {
				r.fail(ctx, report, legacy[i], rf.reason, rf.err)
			} else {
				r.fail(ctx, report, legacy[i], ReasonCopyFailed, o.Err)
			}
			continue
		}
		report.Migrated++
		metrics.RecordMigrationRow(legacy[i].Table, resultMigrated)
	}

	if err := r.db.SetMeta(ctx, database.MetaAppVersion, r.opts.AppVersion); err != nil {
		metrics.RecordMigrationRun("error")
		return report, fmt.Errorf("write app version marker: %w", err)
	}

	report.Duration = time.Since(start)
	metrics.RecordMigrationRun("ran")
	log.Info().
		Int("migrated", report.Migrated).
		Int("unchanged", report.Unchanged).
		Int("failed", len(report.Failures)).
		Dur("duration", report.Duration).
		Msg("Reference migration finished")
	return report, nil
}

func isLegacy(ref media.Reference) bool {
	_, ok := ref.(media.LegacyAbsolute)
	return ok
}

// rowError carries the failure reason out of a worker.
type rowError struct {
	reason string
	err    error
}

func (e *rowError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *rowError) Unwrap() error { return e.err }

// migrateRow moves one legacy reference into its bucket and rewrites the row.
func (r *Runner) migrateRow(ctx context.Context, ref database.MediaRef) (string, error) {
	parsed, err := media.ParseReference(ref.Value)
	if err != nil {
		return "", &rowError{ReasonInvalidReference, err}
	}
	bucket, err := media.ParseBucket(ref.Bucket)
	if err != nil {
		return "", &rowError{ReasonInvalidReference, err}
	}

	src, err := r.resolver.Resolve(parsed)
	if err != nil {
		return "", &rowError{ReasonSourceMissing, err}
	}

	var canonical media.CanonicalRelative
	if r.resolver.InBucket(src, bucket) {
		// Already in durable storage under an absolute path; only the text changes.
		canonical, err = media.NewCanonical(bucket, filepath.Base(src))
		if err != nil {
			return "", &rowError{ReasonInvalidReference, err}
		}
	} else {
		canonical, err = r.store.Store(ctx, src, bucket, r.filename(ref, src))
		if err != nil {
			return "", &rowError{ReasonCopyFailed, err}
		}
	}

	changed, err := r.db.UpdateMediaReference(ctx, ref, canonical.String())
	if err != nil {
		return "", &rowError{ReasonUpdateFailed, err}
	}
	if !changed {
		return "", &rowError{ReasonRowChanged, fmt.Errorf("%s #%d no longer holds %q", ref.Table, ref.RowID, ref.Value)}
	}
	return canonical.String(), nil
}

// filename is diary_<entryID>_<millis><ext> for pictures and
// profile_<childID>_<millis><ext> for profiles.
func (r *Runner) filename(ref database.MediaRef, src string) string {
	ext := strings.ToLower(filepath.Ext(src))
	if ext == "" {
		ext = ".jpg"
	}
	prefix := "diary"
	if ref.Table == database.TableChild {
		prefix = "profile"
	}
	return fmt.Sprintf("%s_%d_%d%s", prefix, ref.OwnerID, r.stamp(), ext)
}

// stamp returns the current Unix millisecond, strictly increasing within a
// runner so two rows of one owner never share a filename.
func (r *Runner) stamp() int64 {
	r.stampMu.Lock()
	defer r.stampMu.Unlock()
	ms := r.now().UnixMilli()
	if ms <= r.lastStamp {
		ms = r.lastStamp + 1
	}
	r.lastStamp = ms
	return ms
}

func (r *Runner) fail(ctx context.Context, report *Report, ref database.MediaRef, reason string, cause error) {
	err := fault.MigrationRow(ref.Table, ref.RowID, fmt.Errorf("%s: %w", reason, cause))
	report.Failures = append(report.Failures, RowFailure{
		Table:     ref.Table,
		RowID:     ref.RowID,
		Reference: ref.Value,
		Reason:    reason,
		Err:       err,
	})
	metrics.RecordMigrationRow(ref.Table, resultFailed)
	logging.Ctx(ctx).Warn().
		Err(cause).
		Str("table", ref.Table).
		Int64("row_id", ref.RowID).
		Str("reference", ref.Value).
		Str("reason", reason).
		Msg("Reference migration failed for row")
}
