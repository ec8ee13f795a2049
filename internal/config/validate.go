// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/tomtom215/diarykeeper/internal/logging"
	"github.com/tomtom215/diarykeeper/internal/validation"
)

// MinJWTSecretLength is the shortest slot server signing secret accepted.
const MinJWTSecretLength = 32

// Validate checks struct tags first, then the rules that span fields.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.validateCloud(); err != nil {
		return err
	}

	if err := c.validateSchedule(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateStorage() error {
	if c.Storage.DocumentRoot == c.Storage.CacheRoot {
		return fmt.Errorf("DIARYKEEPER_CACHE_ROOT must differ from DIARYKEEPER_DOCUMENT_ROOT")
	}
	return nil
}

// validateCloud validates the slot channel (only if enabled)
func (c *Config) validateCloud() error {
	if !c.Cloud.Enabled {
		return nil
	}
	if err := validateHTTPURL(c.Cloud.URL); err != nil {
		return fmt.Errorf("DIARYKEEPER_CLOUD_URL is invalid: %w", err)
	}
	if c.Cloud.Timeout <= 0 {
		return fmt.Errorf("DIARYKEEPER_CLOUD_TIMEOUT must be positive when the cloud channel is enabled")
	}
	return nil
}

// validateSchedule validates the periodic backup schedule (only if enabled)
func (c *Config) validateSchedule() error {
	if !c.Backup.Schedule.Enabled {
		return nil
	}
	if c.Backup.Schedule.Interval < time.Hour {
		return fmt.Errorf("DIARYKEEPER_BACKUP_INTERVAL must be at least 1h, got %s", c.Backup.Schedule.Interval)
	}
	if !c.Cloud.Enabled {
		return fmt.Errorf("scheduled backups upload to the cloud slot; set DIARYKEEPER_CLOUD_ENABLED=true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	return nil
}

// ValidateSlotServer checks the settings only slotd needs. The journal CLI
// never calls it, so a missing secret does not block local use.
func (c *Config) ValidateSlotServer() error {
	if len(c.SlotServer.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("SLOTD_JWT_SECRET must be at least %d characters", MinJWTSecretLength)
	}
	if c.SlotServer.RateLimitWindow <= 0 {
		return fmt.Errorf("SLOTD_RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

// Addr returns the slot server listen address.
func (s SlotServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
