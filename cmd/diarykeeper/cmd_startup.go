// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomtom215/diarykeeper/internal/media"
	"github.com/tomtom215/diarykeeper/internal/migration"
)

type migrationSummary struct {
	Skipped     bool   `json:"skipped"`
	FromVersion string `json:"from_version"`
	ToVersion   string `json:"to_version"`
	Migrated    int    `json:"migrated"`
	Unchanged   int    `json:"unchanged"`
	Failed      int    `json:"failed"`
}

func summarizeMigration(r *migration.Report) *migrationSummary {
	return &migrationSummary{
		Skipped:     r.Skipped,
		FromVersion: r.FromVersion,
		ToVersion:   r.ToVersion,
		Migrated:    r.Migrated,
		Unchanged:   r.Unchanged,
		Failed:      len(r.Failures),
	}
}

func (s *migrationSummary) write(w io.Writer) error {
	if s.Skipped {
		_, err := fmt.Fprintf(w, "migration: skipped (already at %s)\n", s.ToVersion)
		return err
	}
	// Row failures are logged by the runner; only the count is shown.
	_, err := fmt.Fprintf(w, "migration: %q -> %q migrated=%d unchanged=%d failed=%d\n",
		s.FromVersion, s.ToVersion, s.Migrated, s.Unchanged, s.Failed)
	return err
}

type sweepSummary struct {
	DryRun  bool     `json:"dry_run"`
	Orphans []string `json:"orphans"`
	Temps   []string `json:"temps"`
	Kept    int      `json:"kept"`
	Failed  []string `json:"failed,omitempty"`
}

func summarizeSweep(r *media.SweepReport) *sweepSummary {
	return &sweepSummary{
		DryRun:  r.DryRun,
		Orphans: r.Orphans,
		Temps:   r.Temps,
		Kept:    r.Kept,
		Failed:  r.Failed,
	}
}

func (s *sweepSummary) write(w io.Writer) error {
	verb := "removed"
	if s.DryRun {
		verb = "would remove"
	}
	if _, err := fmt.Fprintf(w, "sweep: %s orphans=%d temps=%d kept=%d failed=%d\n",
		verb, len(s.Orphans), len(s.Temps), s.Kept, len(s.Failed)); err != nil {
		return err
	}
	if s.DryRun {
		for _, p := range append(append([]string{}, s.Orphans...), s.Temps...) {
			if _, err := fmt.Fprintf(w, "  %s\n", p); err != nil {
				return err
			}
		}
	}
	return nil
}

func newStartupCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "startup",
		Short: "Initialize directories, migrate references and sweep orphans",
		Long: "Runs the launch sequence an app performs before anything else touches\n" +
			"the database: bucket directories are created, the version-gated reference\n" +
			"migration runs when migration.run_on_startup is set, and orphaned media is\n" +
			"swept when sweep.enabled is set.",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.withApp(func(a *app) error {
				report, err := a.startup(cmd.Context())
				if err != nil {
					return err
				}
				return deps.emit(report, func(w io.Writer) error {
					if !report.DirectoriesOK {
						if _, err := fmt.Fprintln(w, "directories: failed (see log)"); err != nil {
							return err
						}
					}
					if report.Migration != nil {
						if err := report.Migration.write(w); err != nil {
							return err
						}
					}
					if report.Sweep != nil {
						return report.Sweep.write(w)
					}
					return nil
				})
			})
		},
	}
}

func newMigrateCommand(deps commandDeps) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite legacy absolute media references into bucket references",
		Example: "  diarykeeper migrate\n" +
			"  diarykeeper migrate --force",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.withApp(func(a *app) error {
				report, err := a.migrationRunner(force).Run(cmd.Context())
				if err != nil {
					return err
				}
				summary := summarizeMigration(report)
				return deps.emit(summary, summary.write)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Run even when the stored version marker matches")
	return cmd
}

func newSweepCommand(deps commandDeps) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete media files no reference points to",
		Example: "  diarykeeper sweep --dry-run\n" +
			"  diarykeeper sweep",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.withApp(func(a *app) error {
				report, err := a.sweeper().Sweep(cmd.Context(), dryRun)
				if err != nil {
					return err
				}
				summary := summarizeSweep(report)
				return deps.emit(summary, summary.write)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be removed without deleting")
	return cmd
}
