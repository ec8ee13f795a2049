// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

/*
Package migration moves photos referenced by legacy absolute paths into the
durable bucket layout and rewrites the owning rows.

The pass is gated by the app_version row in app_meta: it runs once per app
version, before anything else touches the database. Each row is handled on
its own; a missing source, failed copy or failed update is recorded in the
Report and logged, and the remaining rows continue. The marker is written
after the pass whatever the row outcomes were.

	runner := migration.NewRunner(db, resolver, store, migration.Options{Workers: 4})
	report, err := runner.Run(ctx)
*/
package migration
