// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Backup.ArchiveName != "diary_app_backup.zip" {
		t.Errorf("Backup.ArchiveName = %q, want diary_app_backup.zip", cfg.Backup.ArchiveName)
	}
	if cfg.Backup.DatabaseEntry != "diaryapp.db" {
		t.Errorf("Backup.DatabaseEntry = %q, want diaryapp.db", cfg.Backup.DatabaseEntry)
	}
	if got := cfg.Storage.DatabasePath(); got != "/data/documents/SQLite/diaryapp.db" {
		t.Errorf("DatabasePath() = %q", got)
	}
	if got := cfg.Storage.WorkDir(); got != "/data/documents/backup" {
		t.Errorf("WorkDir() = %q", got)
	}
	if cfg.Sweep.GracePeriod != 24*time.Hour {
		t.Errorf("Sweep.GracePeriod = %v, want 24h", cfg.Sweep.GracePeriod)
	}
	if cfg.Cloud.Enabled {
		t.Error("Cloud.Enabled should be false by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestDatabasePathAbsolute(t *testing.T) {
	s := StorageConfig{DocumentRoot: "/docs", DatabaseFile: "/elsewhere/app.db"}
	if got := s.DatabasePath(); got != "/elsewhere/app.db" {
		t.Errorf("DatabasePath() = %q, want /elsewhere/app.db", got)
	}
}

func TestLoadFileAndEnvLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diarykeeper.yaml")
	yaml := `
storage:
  document_root: /srv/docs
  cache_root: /srv/cache
backup:
  workers: 8
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DIARYKEEPER_BACKUP_WORKERS", "2")
	t.Setenv("DIARYKEEPER_CACHE_ROOT", "/tmp/cache")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Storage.DocumentRoot != "/srv/docs" {
		t.Errorf("DocumentRoot = %q, want value from file", cfg.Storage.DocumentRoot)
	}
	if cfg.Storage.CacheRoot != "/tmp/cache" {
		t.Errorf("CacheRoot = %q, env should override file", cfg.Storage.CacheRoot)
	}
	if cfg.Backup.Workers != 2 {
		t.Errorf("Workers = %d, env should override file", cfg.Backup.Workers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Backup.ArchiveName != "diary_app_backup.zip" {
		t.Errorf("ArchiveName = %q, default should survive", cfg.Backup.ArchiveName)
	}
}

func TestLoadFileDurationFromEnv(t *testing.T) {
	t.Setenv("DIARYKEEPER_SWEEP_GRACE_PERIOD", "90m")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Sweep.GracePeriod != 90*time.Minute {
		t.Errorf("GracePeriod = %v, want 90m", cfg.Sweep.GracePeriod)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"DIARYKEEPER_CLOUD_URL", "cloud.url"},
		{"DIARYKEEPER_BACKUP_INTERVAL", "backup.schedule.interval"},
		{"SLOTD_JWT_SECRET", "slot_server.jwt_secret"},
		{"LOG_LEVEL", "logging.level"},
		{"HOME", ""},
		{"PATH", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.key); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "cloud enabled without url",
			mutate:  func(c *Config) { c.Cloud.Enabled = true; c.Cloud.Token = "t" },
			wantErr: "Config.Cloud.URL is required",
		},
		{
			name: "cloud url with bad scheme",
			mutate: func(c *Config) {
				c.Cloud.Enabled = true
				c.Cloud.Token = "t"
				c.Cloud.URL = "ftp://slots.example.com"
			},
			wantErr: "DIARYKEEPER_CLOUD_URL is invalid",
		},
		{
			name: "valid cloud",
			mutate: func(c *Config) {
				c.Cloud.Enabled = true
				c.Cloud.Token = "t"
				c.Cloud.URL = "https://slots.example.com"
			},
		},
		{
			name:    "same roots",
			mutate:  func(c *Config) { c.Storage.CacheRoot = c.Storage.DocumentRoot },
			wantErr: "must differ",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Backup.Workers = 0 },
			wantErr: "Config.Backup.Workers must be at least 1",
		},
		{
			name:    "archive name with separator",
			mutate:  func(c *Config) { c.Backup.ArchiveName = "a/b.zip" },
			wantErr: "Config.Backup.ArchiveName must not contain",
		},
		{
			name:    "extension without dot",
			mutate:  func(c *Config) { c.Media.DefaultExtension = "jpg" },
			wantErr: "Config.Media.DefaultExtension must start with",
		},
		{
			name: "schedule too frequent",
			mutate: func(c *Config) {
				c.Cloud.Enabled = true
				c.Cloud.Token = "t"
				c.Cloud.URL = "https://slots.example.com"
				c.Backup.Schedule.Enabled = true
				c.Backup.Schedule.Interval = 10 * time.Minute
			},
			wantErr: "at least 1h",
		},
		{
			name: "schedule without cloud",
			mutate: func(c *Config) {
				c.Backup.Schedule.Enabled = true
			},
			wantErr: "DIARYKEEPER_CLOUD_ENABLED",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "Config.Logging.Format must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateSlotServer(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.ValidateSlotServer(); err == nil {
		t.Fatal("expected error for empty secret")
	}
	cfg.SlotServer.JWTSecret = strings.Repeat("s", MinJWTSecretLength)
	if err := cfg.ValidateSlotServer(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.SlotServer.Addr(); got != "0.0.0.0:7420" {
		t.Errorf("Addr() = %q", got)
	}
}
