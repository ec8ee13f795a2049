// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

/*
Package services adapts blocking components to suture's context-aware
Serve pattern.

HTTPServerService wraps anything with the ListenAndServe/Shutdown pair of
*http.Server. Cancellation triggers Shutdown with a fresh timeout context,
and http.ErrServerClosed is not treated as a failure.

Return values decide what the supervisor does:

	nil         -> stopped cleanly, not restarted
	error       -> crashed, restarted with backoff
	ctx.Err()   -> shutdown requested
*/
package services
