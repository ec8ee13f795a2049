// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/diarykeeper/internal/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	ConfigPath string
	LogLevel   string
	JSON       bool
}

// commandDeps is passed to every command constructor.
type commandDeps struct {
	out     io.Writer
	errOut  io.Writer
	globals *globalOptions
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	deps := commandDeps{out: out, errOut: errOut, globals: &globalOptions{}}

	cmd := &cobra.Command{
		Use:           "diarykeeper",
		Short:         "Journal media storage, backup and restore",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := cmd.PersistentFlags()
	flags.StringVar(&deps.globals.ConfigPath, "config", "", "Path to a YAML config file")
	flags.StringVar(&deps.globals.LogLevel, "log-level", "", "Override the configured log level")
	flags.BoolVar(&deps.globals.JSON, "json", false, "Print results as JSON")

	cmd.AddCommand(
		newStartupCommand(deps),
		newMigrateCommand(deps),
		newSweepCommand(deps),
		newStoreCommand(deps),
		newResolveCommand(deps),
		newBackupCommand(deps),
		newRestoreCommand(deps),
		newExportCommand(deps),
		newImportCommand(deps),
		newCloudBackupCommand(deps),
		newCloudRestoreCommand(deps),
		newCloudStatusCommand(deps),
		newServeCommand(deps),
		newVersionCommand(deps),
	)
	return cmd
}

func newVersionCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.globals.JSON {
				return printJSON(deps.out, map[string]string{
					"version": version.Version,
					"commit":  version.Commit,
				})
			}
			_, err := fmt.Fprintf(deps.out, "version=%s commit=%s\n", version.Version, version.Commit)
			return err
		},
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit prints v as JSON with --json, otherwise runs text.
func (d commandDeps) emit(v any, text func(w io.Writer) error) error {
	if d.globals.JSON {
		return printJSON(d.out, v)
	}
	return text(d.out)
}
