// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

// Package config loads DiaryKeeper configuration.
//
// Loading order (highest priority last):
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (DIARYKEEPER_CONFIG, then DefaultConfigPaths)
//  3. Environment variables, mapped explicitly in envTransformFunc
//
// The result is validated with struct tags (go-playground/validator) and
// cross-field checks before it is returned. Config is immutable after Load.
package config

import (
	"path/filepath"
	"time"
)

// Config is the complete application configuration.
type Config struct {
	Storage    StorageConfig    `koanf:"storage"`
	Media      MediaConfig      `koanf:"media"`
	Migration  MigrationConfig  `koanf:"migration"`
	Sweep      SweepConfig      `koanf:"sweep"`
	Backup     BackupConfig     `koanf:"backup"`
	Cloud      CloudConfig      `koanf:"cloud"`
	SlotServer SlotServerConfig `koanf:"slot_server"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// StorageConfig locates the durable document root, the volatile cache root
// and the database file.
//
// Environment Variables:
//   - DIARYKEEPER_DOCUMENT_ROOT: durable app storage (profiles/, images/, SQLite/)
//   - DIARYKEEPER_CACHE_ROOT: volatile cache the OS may purge
//   - DIARYKEEPER_DATABASE_FILE: database path relative to the document root
type StorageConfig struct {
	DocumentRoot string        `koanf:"document_root" validate:"required"`
	CacheRoot    string        `koanf:"cache_root" validate:"required"`
	DatabaseFile string        `koanf:"database_file" validate:"required"`
	BusyTimeout  time.Duration `koanf:"busy_timeout" validate:"min=0"`
}

// DatabasePath returns the absolute database file path.
func (s StorageConfig) DatabasePath() string {
	if filepath.IsAbs(s.DatabaseFile) {
		return s.DatabaseFile
	}
	return filepath.Join(s.DocumentRoot, s.DatabaseFile)
}

// WorkDir is where staging directories and produced archives live.
func (s StorageConfig) WorkDir() string {
	return filepath.Join(s.DocumentRoot, "backup")
}

// MediaConfig tunes the media store.
type MediaConfig struct {
	// DefaultExtension is used for generated filenames when the source has none.
	DefaultExtension string `koanf:"default_extension" validate:"required,startswith=."`
}

// MigrationConfig controls the version-gated reference migration.
type MigrationConfig struct {
	// AppVersion overrides the build version for gating. Empty means version.Version.
	AppVersion string `koanf:"app_version"`
	// RunOnStartup runs the migration in the startup sequence.
	RunOnStartup bool `koanf:"run_on_startup"`
}

// SweepConfig controls the orphaned media sweep.
type SweepConfig struct {
	Enabled bool `koanf:"enabled"`
	// GracePeriod protects files younger than this from deletion, so a store
	// whose reference has not been committed yet is never swept.
	GracePeriod time.Duration `koanf:"grace_period" validate:"min=0"`
}

// BackupConfig controls archive creation and restore.
type BackupConfig struct {
	ArchiveName      string         `koanf:"archive_name" validate:"required,excludesall=/\\"`
	DatabaseEntry    string         `koanf:"database_entry" validate:"required,excludesall=/\\"`
	Workers          int            `koanf:"workers" validate:"min=1,max=64"`
	CompressionLevel int            `koanf:"compression_level" validate:"min=-1,max=9"`
	MaxEntrySize     int64          `koanf:"max_entry_size" validate:"min=1"`
	Schedule         ScheduleConfig `koanf:"schedule"`
}

// ScheduleConfig drives the optional periodic cloud backup in serve mode.
type ScheduleConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Interval      time.Duration `koanf:"interval"`
	PreferredHour int           `koanf:"preferred_hour" validate:"min=0,max=23"`
}

// CloudConfig configures the cloud slot channel.
//
// Environment Variables:
//   - DIARYKEEPER_CLOUD_ENABLED
//   - DIARYKEEPER_CLOUD_URL: slot service base URL
//   - DIARYKEEPER_CLOUD_TOKEN: bearer token issued by `slotd token`
type CloudConfig struct {
	Enabled    bool          `koanf:"enabled"`
	URL        string        `koanf:"url" validate:"required_if=Enabled true"`
	Token      string        `koanf:"token" validate:"required_if=Enabled true"`
	Timeout    time.Duration `koanf:"timeout" validate:"min=0"`
	MaxRetries int           `koanf:"max_retries" validate:"min=0,max=10"`
	// RetryRate is the number of retry attempts allowed per second.
	RetryRate float64 `koanf:"retry_rate" validate:"gt=0"`
}

// SlotServerConfig configures slotd, the self-hosted cloud slot service.
type SlotServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"min=1,max=65535"`
	DataDir           string        `koanf:"data_dir" validate:"required"`
	JWTSecret         string        `koanf:"jwt_secret"`
	TokenTTL          time.Duration `koanf:"token_ttl" validate:"min=0"`
	MaxUploadSize     int64         `koanf:"max_upload_size" validate:"min=1"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
}

// MetricsConfig controls the Prometheus endpoint exposed by `diarykeeper serve`.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Listen  string `koanf:"listen" validate:"required_if=Enabled true"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the defaults applied before file and environment layers.
func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DocumentRoot: "/data/documents",
			CacheRoot:    "/data/cache",
			DatabaseFile: filepath.Join("SQLite", "diaryapp.db"),
			BusyTimeout:  10 * time.Second,
		},
		Media: MediaConfig{
			DefaultExtension: ".jpg",
		},
		Migration: MigrationConfig{
			RunOnStartup: true,
		},
		Sweep: SweepConfig{
			Enabled:     true,
			GracePeriod: 24 * time.Hour,
		},
		Backup: BackupConfig{
			ArchiveName:      "diary_app_backup.zip",
			DatabaseEntry:    "diaryapp.db",
			Workers:          4,
			CompressionLevel: 6,
			MaxEntrySize:     1 << 30,
			Schedule: ScheduleConfig{
				Enabled:       false,
				Interval:      24 * time.Hour,
				PreferredHour: 2,
			},
		},
		Cloud: CloudConfig{
			Enabled:    false,
			Timeout:    2 * time.Minute,
			MaxRetries: 3,
			RetryRate:  1,
		},
		SlotServer: SlotServerConfig{
			Host:              "0.0.0.0",
			Port:              7420,
			DataDir:           "/data/slots",
			TokenTTL:          365 * 24 * time.Hour,
			MaxUploadSize:     2 << 30,
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
			ShutdownTimeout:   10 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
