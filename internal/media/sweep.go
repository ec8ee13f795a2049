// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomtom215/diarykeeper/internal/database"
	"github.com/tomtom215/diarykeeper/internal/logging"
	"github.com/tomtom215/diarykeeper/internal/metrics"
)

// ReferenceLister lists every stored media reference.
type ReferenceLister interface {
	ListMediaReferences(ctx context.Context) ([]database.MediaRef, error)
}

// SweepReport describes one sweep.
type SweepReport struct {
	DryRun bool
	// Orphans are bucket files no reference points to.
	Orphans []string
	// Temps are abandoned in-progress store files.
	Temps []string
	// Kept counts referenced files and files inside the grace period.
	Kept int
	// Failed lists files that could not be removed.
	Failed []string
}

// Sweeper deletes bucket files that no reference points to. Files younger
// than the grace period are kept so a store whose reference is not yet
// committed is never lost.
//
// A file counts as referenced when any resolver candidate or the write-back
// target of a stored reference names it, so legacy rows that have not been
// migrated yet keep their files.
type Sweeper struct {
	store    *Store
	resolver *Resolver
	refs     ReferenceLister
	grace    time.Duration
	now      func() time.Time
}

// NewSweeper returns a sweeper over store's buckets.
func NewSweeper(store *Store, resolver *Resolver, refs ReferenceLister, grace time.Duration) *Sweeper {
	return &Sweeper{store: store, resolver: resolver, refs: refs, grace: grace, now: time.Now}
}

// Sweep removes orphaned and abandoned temp files. With dryRun it only
// reports what it would remove.
func (s *Sweeper) Sweep(ctx context.Context, dryRun bool) (*SweepReport, error) {
	refs, err := s.refs.ListMediaReferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("list media references: %w", err)
	}
	live := s.liveFiles(refs)

	report := &SweepReport{DryRun: dryRun}
	cutoff := s.now().Add(-s.grace)

	for _, b := range Buckets {
		dir := s.store.BucketDir(b)
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("read %s: %w", dir, err)
		}

		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if !e.Type().IsRegular() {
				continue
			}
			name := e.Name()
			path := filepath.Join(dir, name)

			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				report.Kept++
				continue
			}

			isTemp := isTempName(name)
			if !isTemp && live[path] {
				report.Kept++
				continue
			}

			if !dryRun {
				if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
					logging.Warn().Err(err).Str("path", path).Msg("Sweep failed to remove file")
					report.Failed = append(report.Failed, path)
					continue
				}
			}
			if isTemp {
				report.Temps = append(report.Temps, path)
			} else {
				report.Orphans = append(report.Orphans, path)
			}
		}
	}

	if !dryRun {
		metrics.RecordSweep(len(report.Orphans), len(report.Temps))
	}
	logging.Info().
		Bool("dry_run", dryRun).
		Int("orphans", len(report.Orphans)).
		Int("temps", len(report.Temps)).
		Int("kept", report.Kept).
		Int("failed", len(report.Failed)).
		Msg("Media sweep finished")
	return report, nil
}

// liveFiles returns the cleaned path of every file a reference could resolve
// to: each resolver candidate, whether or not it exists today, plus the
// reference's write-back target.
func (s *Sweeper) liveFiles(refs []database.MediaRef) map[string]bool {
	live := make(map[string]bool, 2*len(refs))
	for _, r := range refs {
		ref, err := ParseReference(r.Value)
		if err != nil {
			continue
		}
		for _, c := range s.resolver.Candidates(ref) {
			live[filepath.Clean(c.Path)] = true
		}
		if target := s.resolver.TargetPath(ref); target != "" {
			live[filepath.Clean(target)] = true
		}
	}
	return live
}

func isTempName(name string) bool {
	return strings.HasPrefix(name, ".store-") && strings.HasSuffix(name, ".tmp")
}
