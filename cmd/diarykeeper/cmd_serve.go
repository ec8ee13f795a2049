// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tomtom215/diarykeeper/internal/backup"
	"github.com/tomtom215/diarykeeper/internal/logging"
	"github.com/tomtom215/diarykeeper/internal/supervisor"
	"github.com/tomtom215/diarykeeper/internal/supervisor/services"
	"github.com/tomtom215/diarykeeper/internal/version"
)

func newServeCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled cloud backups and the metrics endpoint",
		Long: "Runs the startup sequence once, then supervises the periodic cloud backup\n" +
			"(backup.schedule.enabled) and the Prometheus endpoint (metrics.enabled)\n" +
			"until interrupted.",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.withApp(func(a *app) error {
				return a.serve(cmd.Context())
			})
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	if !a.cfg.Backup.Schedule.Enabled && !a.cfg.Metrics.Enabled {
		return usageErrorf("nothing to serve; enable backup.schedule or metrics")
	}

	if _, err := a.startup(ctx); err != nil {
		return err
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), "diarykeeper", supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}

	if a.cfg.Backup.Schedule.Enabled {
		cloud, _, err := a.cloud()
		if err != nil {
			return err
		}
		scheduler := backup.NewScheduler(a.cfg.Backup.Schedule, func(ctx context.Context) error {
			_, err := cloud.CloudBackup(ctx)
			return err
		})
		tree.AddJobService(scheduler)
		logging.Info().
			Dur("interval", a.cfg.Backup.Schedule.Interval).
			Int("preferred_hour", a.cfg.Backup.Schedule.PreferredHour).
			Msg("Scheduled cloud backups enabled")
	}

	if a.cfg.Metrics.Enabled {
		server := &http.Server{
			Addr:              a.cfg.Metrics.Listen,
			Handler:           metricsRouter(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService("metrics", server, 5*time.Second))
		logging.Info().Str("listen", a.cfg.Metrics.Listen).Msg("Metrics endpoint enabled")
	}

	logging.Info().Str("version", version.Version).Msg("DiaryKeeper serving")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("DiaryKeeper stopped")
	return nil
}

func metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}
