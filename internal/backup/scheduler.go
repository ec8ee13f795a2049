// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

/*
scheduler.go - Periodic Backups

Scheduler runs a backup function at a fixed interval. It implements the
suture Service interface and is added to the supervisor tree by the serve
command when backup.schedule.enabled is set.

Timer Logic:
  - For intervals >= 24h: run at the preferred hour, on the next occurrence
  - For shorter intervals: add the interval to the current time
  - The timer is reset after each run, successful or not
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/diarykeeper/internal/config"
	"github.com/tomtom215/diarykeeper/internal/logging"
)

// RunFunc performs one scheduled backup.
type RunFunc func(ctx context.Context) error

// Scheduler runs a RunFunc on the configured schedule.
type Scheduler struct {
	schedule config.ScheduleConfig
	run      RunFunc
	now      func() time.Time

	mu            sync.Mutex
	lastScheduled *time.Time
	nextScheduled *time.Time
	lastErr       error
}

// NewScheduler returns a scheduler for run.
func NewScheduler(schedule config.ScheduleConfig, run RunFunc) *Scheduler {
	if schedule.Interval <= 0 {
		schedule.Interval = 24 * time.Hour
	}
	return &Scheduler{schedule: schedule, run: run, now: time.Now}
}

// String implements fmt.Stringer for suture logging.
func (s *Scheduler) String() string {
	return "backup-scheduler"
}

// Serve implements suture.Service. It returns when ctx is done.
func (s *Scheduler) Serve(ctx context.Context) error {
	next := s.calculateNextBackupTime()
	s.setNext(next)
	logging.Info().Time("next_backup", next).Dur("interval", s.schedule.Interval).Msg("Backup scheduler started")

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Backup scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			err := s.run(ctx)
			if err != nil {
				logging.Error().Err(err).Msg("Scheduled backup failed")
			} else {
				logging.Info().Msg("Scheduled backup completed")
			}

			now := s.now()
			next = s.calculateNextBackupTime()
			s.mu.Lock()
			s.lastScheduled = &now
			s.nextScheduled = &next
			s.lastErr = err
			s.mu.Unlock()

			timer.Reset(time.Until(next))
		}
	}
}

// NextScheduled returns the time of the next scheduled backup, if known.
func (s *Scheduler) NextScheduled() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextScheduled
}

// LastScheduled returns when the last scheduled backup ran and its error.
func (s *Scheduler) LastScheduled() (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScheduled, s.lastErr
}

func (s *Scheduler) setNext(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextScheduled = &t
}

// calculateNextBackupTime determines when the next scheduled backup should run
func (s *Scheduler) calculateNextBackupTime() time.Time {
	now := s.now()
	interval := s.schedule.Interval

	if interval >= 24*time.Hour {
		// Daily or longer - use preferred hour
		next := time.Date(now.Year(), now.Month(), now.Day(),
			s.schedule.PreferredHour, 0, 0, 0, now.Location())

		// If we've already passed the preferred hour today, schedule for tomorrow
		if next.Before(now) {
			next = next.Add(24 * time.Hour)
		}

		// Add additional days if interval is more than 24h
		if interval > 24*time.Hour {
			days := int(interval.Hours() / 24)
			next = next.Add(time.Duration(days-1) * 24 * time.Hour)
		}

		return next
	}

	return now.Add(interval)
}
