// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/diarykeeper/internal/backup"
	"github.com/tomtom215/diarykeeper/internal/channel"
	"github.com/tomtom215/diarykeeper/internal/config"
	"github.com/tomtom215/diarykeeper/internal/database"
	"github.com/tomtom215/diarykeeper/internal/logging"
	"github.com/tomtom215/diarykeeper/internal/media"
	"github.com/tomtom215/diarykeeper/internal/migration"
)

// app holds the components built from one configuration.
type app struct {
	cfg      *config.Config
	db       *database.DB
	resolver *media.Resolver
	store    *media.Store
	backup   backup.Config
	archiver *backup.Archiver
	engine   *backup.RestoreEngine
}

// loadConfig loads and validates the configuration and initializes logging.
// Every failure is a usage error.
func (d commandDeps) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if d.globals.ConfigPath != "" {
		cfg, err = config.LoadFile(d.globals.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, usageError(err)
	}

	if d.globals.LogLevel != "" {
		if !logging.ValidLevel(d.globals.LogLevel) {
			return nil, usageErrorf("invalid --log-level %q", d.globals.LogLevel)
		}
		cfg.Logging.Level = d.globals.LogLevel
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    d.errOut,
	})
	return cfg, nil
}

// openApp loads the configuration and opens the database.
func (d commandDeps) openApp() (*app, error) {
	cfg, err := d.loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := database.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	resolver := media.NewResolver(cfg.Storage.DocumentRoot, cfg.Storage.CacheRoot)
	bcfg := backup.ConfigFrom(cfg)
	return &app{
		cfg:      cfg,
		db:       db,
		resolver: resolver,
		store:    media.NewStore(cfg.Storage.DocumentRoot, cfg.Media.DefaultExtension),
		backup:   bcfg,
		archiver: backup.NewArchiver(db, resolver, bcfg),
		engine:   backup.NewRestoreEngine(db, resolver, bcfg),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing database")
	}
}

// withApp opens the app for the duration of fn.
func (d commandDeps) withApp(fn func(a *app) error) error {
	a, err := d.openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// startupReport is the outcome of the startup sequence.
type startupReport struct {
	DirectoriesOK bool              `json:"directories_ok"`
	Migration     *migrationSummary `json:"migration,omitempty"`
	Sweep         *sweepSummary     `json:"sweep,omitempty"`
}

// startup runs the launch sequence: initialize directories, migrate, sweep.
// Directory and sweep failures are logged and do not stop the sequence.
func (a *app) startup(ctx context.Context) (*startupReport, error) {
	report := &startupReport{DirectoriesOK: a.store.InitializeDirectories() == nil}

	if a.cfg.Migration.RunOnStartup {
		mr, err := a.migrationRunner(false).Run(ctx)
		if err != nil {
			return report, fmt.Errorf("migration: %w", err)
		}
		report.Migration = summarizeMigration(mr)
	}

	if a.cfg.Sweep.Enabled {
		sr, err := a.sweeper().Sweep(ctx, false)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Orphan sweep failed")
		} else {
			report.Sweep = summarizeSweep(sr)
		}
	}
	return report, nil
}

func (a *app) migrationRunner(force bool) *migration.Runner {
	return migration.NewRunner(a.db, a.resolver, a.store, migration.Options{
		AppVersion: a.cfg.Migration.AppVersion,
		Force:      force,
		Workers:    a.cfg.Backup.Workers,
	})
}

func (a *app) sweeper() *media.Sweeper {
	return media.NewSweeper(a.store, a.resolver, a.db, a.cfg.Sweep.GracePeriod)
}

func (a *app) files() *channel.Files {
	return channel.NewFiles(a.archiver, a.engine, a.backup.WorkDir)
}

// cloud builds the slot client and cloud channel. A disabled or
// misconfigured channel is a usage error.
func (a *app) cloud() (*channel.CloudChannel, *channel.SlotClient, error) {
	if !a.cfg.Cloud.Enabled {
		return nil, nil, usageErrorf("cloud channel is disabled; set DIARYKEEPER_CLOUD_ENABLED=true")
	}
	client, err := channel.NewSlotClient(a.cfg.Cloud)
	if err != nil {
		return nil, nil, usageError(err)
	}
	return channel.NewCloudChannel(client, a.archiver, a.engine, a.backup.WorkDir), client, nil
}
