// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

/*
Package metrics provides Prometheus metrics for DiaryKeeper.

Collectors are registered with promauto on the default registry and exposed
by `diarykeeper serve` (when metrics are enabled) and by slotd at /metrics.

# Available Metrics

Media store:
  - diarykeeper_media_store_total: Store calls (counter). Labels: bucket, result
  - diarykeeper_media_store_bytes_total: Bytes written (counter). Labels: bucket

Backup and restore:
  - diarykeeper_backup_duration_seconds, diarykeeper_restore_duration_seconds (histograms)
  - diarykeeper_backups_total, diarykeeper_restores_total. Labels: result, error_kind
  - diarykeeper_backup_files_total: archived vs skipped references
  - diarykeeper_restore_files_total: per-file restore outcomes

Migration and sweep:
  - diarykeeper_migration_rows_total. Labels: table, result
  - diarykeeper_migration_runs_total. Labels: result
  - diarykeeper_sweep_removed_total. Labels: kind

Cloud channel:
  - diarykeeper_cloud_requests_total, diarykeeper_cloud_request_duration_seconds
  - circuit_breaker_* gauges and counters for the slot client breaker

Slot server:
  - slotd_requests_total, slotd_request_duration_seconds, slotd_stored_bytes_total

The error_kind label carries the fault kind (transient_io, structural,
unavailable, migration_row) so alerting can separate a dead cloud from a
corrupt archive.
*/
package metrics
