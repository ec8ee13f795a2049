// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations searched in order.
var DefaultConfigPaths = []string{
	"diarykeeper.yaml",
	"diarykeeper.yml",
	"/etc/diarykeeper/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "DIARYKEEPER_CONFIG"

// Load builds the configuration from defaults, the optional config file and
// the environment, then validates it.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips the
// file layer.
func LoadFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment, e.g. DIARYKEEPER_CLOUD_URL -> cloud.url
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps lowercased environment variable names to koanf paths.
// Unmapped variables are ignored so unrelated environment never leaks in.
var envMappings = map[string]string{
	// Storage
	"diarykeeper_document_root": "storage.document_root",
	"diarykeeper_cache_root":    "storage.cache_root",
	"diarykeeper_database_file": "storage.database_file",
	"diarykeeper_busy_timeout":  "storage.busy_timeout",

	// Media
	"diarykeeper_default_extension": "media.default_extension",

	// Migration and sweep
	"diarykeeper_app_version":        "migration.app_version",
	"diarykeeper_migrate_on_startup": "migration.run_on_startup",
	"diarykeeper_sweep_enabled":      "sweep.enabled",
	"diarykeeper_sweep_grace_period": "sweep.grace_period",

	// Backup
	"diarykeeper_backup_archive_name":      "backup.archive_name",
	"diarykeeper_backup_workers":           "backup.workers",
	"diarykeeper_backup_compression_level": "backup.compression_level",
	"diarykeeper_backup_max_entry_size":    "backup.max_entry_size",
	"diarykeeper_backup_schedule_enabled":  "backup.schedule.enabled",
	"diarykeeper_backup_interval":          "backup.schedule.interval",
	"diarykeeper_backup_preferred_hour":    "backup.schedule.preferred_hour",

	// Cloud channel
	"diarykeeper_cloud_enabled":     "cloud.enabled",
	"diarykeeper_cloud_url":         "cloud.url",
	"diarykeeper_cloud_token":       "cloud.token",
	"diarykeeper_cloud_timeout":     "cloud.timeout",
	"diarykeeper_cloud_max_retries": "cloud.max_retries",
	"diarykeeper_cloud_retry_rate":  "cloud.retry_rate",

	// Slot server
	"slotd_host":                "slot_server.host",
	"slotd_port":                "slot_server.port",
	"slotd_data_dir":            "slot_server.data_dir",
	"slotd_jwt_secret":          "slot_server.jwt_secret",
	"slotd_token_ttl":           "slot_server.token_ttl",
	"slotd_max_upload_size":     "slot_server.max_upload_size",
	"slotd_rate_limit_requests": "slot_server.rate_limit_requests",
	"slotd_rate_limit_window":   "slot_server.rate_limit_window",

	// Observability
	"diarykeeper_metrics_enabled": "metrics.enabled",
	"diarykeeper_metrics_listen":  "metrics.listen",
	"log_level":                   "logging.level",
	"log_format":                  "logging.format",
	"log_caller":                  "logging.caller",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
