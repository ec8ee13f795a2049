// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

// Package main is the diarykeeper command line.
//
// diarykeeper drives the journal's media storage and backup core against a
// local installation: the document root holding the profiles/ and images/
// buckets and the SQLite database, plus the volatile cache root.
//
// # Commands
//
//	startup        initialize directories, run the reference migration, sweep orphans
//	migrate        run the version-gated reference migration
//	sweep          delete media files no reference points to
//	store          copy a photo into a bucket and print its reference
//	resolve        print the file a stored reference points to
//	backup         write diary_app_backup.zip into the work directory
//	restore        replace the journal with the contents of an archive
//	export         back up and copy the archive to a chosen path
//	import         restore from an archive at a chosen path
//	cloud-backup   back up and upload to the cloud slot
//	cloud-restore  download the cloud slot and restore it
//	cloud-status   show the cloud slot and circuit breaker state
//	serve          run scheduled cloud backups and the metrics endpoint
//
// # Exit Codes
//
//	0  success
//	1  generic failure
//	2  usage or configuration error
//	3  structural archive failure (nothing was changed)
//	4  cloud slot unavailable (nothing was changed)
//
// # Configuration
//
// Settings come from built-in defaults, an optional YAML file
// (--config, DIARYKEEPER_CONFIG or ./diarykeeper.yaml) and DIARYKEEPER_*
// environment variables, in that order.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command line and returns the process exit code.
func run(args []string, out, errOut io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(out, errOut)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(errOut, "error: %v\n", err)
		return exitCode(err)
	}
	return ExitCodeSuccess
}
