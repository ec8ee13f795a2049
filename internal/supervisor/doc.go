// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

/*
Package supervisor runs the long-lived services of the DiaryKeeper daemons
under suture v4.

# Overview

Both daemons build the same two-layer tree:

	RootSupervisor ("diarykeeper" or "slotd")
	├── JobsSupervisor ("jobs-layer")
	│   └── backup.Scheduler (diarykeeper serve, when backup.schedule.enabled)
	└── APISupervisor ("api-layer")
	    ├── HTTPServerService "metrics" (diarykeeper serve, when metrics.enabled)
	    └── HTTPServerService "slot-api" (slotd serve)

A scheduled cloud backup that keeps failing is restarted and backed off
inside the jobs layer. The HTTP listeners keep running.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), "slotd", supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService("slot-api", server, cfg.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

# Configuration

Zero fields in TreeConfig take suture's defaults:
  - FailureThreshold: 5 failures
  - FailureDecay: 30 seconds
  - FailureBackoff: 15 seconds
  - ShutdownTimeout: 10 seconds

# Service Interface

Every supervised component implements suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Returning an error makes the supervisor restart the service. Returning
ctx.Err() after cancellation ends it normally.

# Logging

Supervisor events go through sutureslog into the slog adapter from the
logging package, so restarts and backoffs show up in the zerolog stream.

# See Also

  - internal/supervisor/services: HTTP server wrapper
  - internal/backup: Scheduler
*/
package supervisor
