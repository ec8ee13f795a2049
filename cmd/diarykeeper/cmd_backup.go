// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomtom215/diarykeeper/internal/backup"
)

// restartMessage is printed after every restore that swapped the database.
const restartMessage = "Restore complete. Restart DiaryKeeper so every screen reloads the restored journal."

func writeBackupResult(w io.Writer, r *backup.Result, dest string) error {
	path := r.ArchivePath
	if dest != "" {
		path = dest
	}
	if _, err := fmt.Fprintf(w, "archive=%s size=%d sha256=%s entries=%d skipped=%d\n",
		path, r.Size, r.Checksum, r.Entries, len(r.Skipped)); err != nil {
		return err
	}
	for _, s := range r.Skipped {
		if _, err := fmt.Fprintf(w, "  skipped %s#%d %q: %s\n", s.Table, s.RowID, s.Reference, s.Reason); err != nil {
			return err
		}
	}
	return nil
}

func writeRestoreReport(w io.Writer, r *backup.RestoreReport) error {
	if _, err := fmt.Fprintf(w, "database_restored=%t files_restored=%d failures=%d\n",
		r.DatabaseRestored, r.FilesRestored, len(r.Failures)); err != nil {
		return err
	}
	for _, f := range r.Failures {
		if _, err := fmt.Fprintf(w, "  failed %s\n", f.Error()); err != nil {
			return err
		}
	}
	for _, warning := range r.Warnings {
		if _, err := fmt.Fprintf(w, "  warning: %s\n", warning); err != nil {
			return err
		}
	}
	if r.RestartRequired {
		_, err := fmt.Fprintln(w, restartMessage)
		return err
	}
	return nil
}

// restoreOutput is the JSON form of a restore, with failures flattened to text.
type restoreOutput struct {
	*backup.RestoreReport
	FailureMessages []string `json:"failure_messages,omitempty"`
	Message         string   `json:"message,omitempty"`
}

func newRestoreOutput(r *backup.RestoreReport) restoreOutput {
	out := restoreOutput{RestoreReport: r}
	for _, f := range r.Failures {
		out.FailureMessages = append(out.FailureMessages, f.Error())
	}
	if r.RestartRequired {
		out.Message = restartMessage
	}
	return out
}

// emitRestore prints the report, which is partial when err is set.
func (d commandDeps) emitRestore(report *backup.RestoreReport, err error) error {
	if report != nil && report.DatabaseRestored {
		if emitErr := d.emit(newRestoreOutput(report), func(w io.Writer) error {
			return writeRestoreReport(w, report)
		}); emitErr != nil && err == nil {
			return emitErr
		}
	}
	return err
}

func newBackupCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a backup archive into the work directory",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.withApp(func(a *app) error {
				result, err := a.archiver.CreateBackup(cmd.Context())
				if err != nil {
					return err
				}
				return deps.emit(result, func(w io.Writer) error {
					return writeBackupResult(w, result, "")
				})
			})
		},
	}
}

func newRestoreCommand(deps commandDeps) *cobra.Command {
	var removeSource bool
	cmd := &cobra.Command{
		Use:   "restore <archive>",
		Short: "Replace the journal with the contents of a backup archive",
		Long: "Restores the database and media files from a ZIP archive (or a tar.gz\n" +
			"archive written by older releases). The archive is validated before any\n" +
			"live data is touched; a structural failure exits with code 3.",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.withApp(func(a *app) error {
				report, err := a.engine.Restore(cmd.Context(), args[0], backup.RestoreOptions{RemoveSource: removeSource})
				return deps.emitRestore(report, err)
			})
		},
	}
	cmd.Flags().BoolVar(&removeSource, "remove-source", false, "Delete the archive after restoring")
	return cmd
}

func newExportCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "export <destination>",
		Short:   "Back up and copy the archive to a chosen path",
		Example: "  diarykeeper export /mnt/usb/diary_app_backup.zip",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.withApp(func(a *app) error {
				result, err := a.files().Export(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return deps.emit(result, func(w io.Writer) error {
					return writeBackupResult(w, result, args[0])
				})
			})
		},
	}
}

func newImportCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "import <archive>",
		Short: "Restore from an archive at a chosen path",
		Long: "Copies the archive into the work directory, checks that it is a ZIP or\n" +
			"tar.gz file and restores from the copy. The original file is left alone.",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.withApp(func(a *app) error {
				report, err := a.files().Import(cmd.Context(), args[0])
				return deps.emitRestore(report, err)
			})
		},
	}
}
