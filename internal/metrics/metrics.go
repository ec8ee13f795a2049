// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/diarykeeper/internal/fault"
)

// Result label values shared by the counters below.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

var (
	// Media Store Metrics
	MediaStoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diarykeeper_media_store_total",
			Help: "Total number of media store operations",
		},
		[]string{"bucket", "result"},
	)

	MediaStoreBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diarykeeper_media_store_bytes_total",
			Help: "Total bytes written into the media store",
		},
		[]string{"bucket"},
	)

	// Backup and Restore Metrics
	BackupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "diarykeeper_backup_duration_seconds",
			Help:    "Duration of archive creation in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diarykeeper_backups_total",
			Help: "Total number of backups attempted",
		},
		[]string{"result", "error_kind"},
	)

	BackupFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diarykeeper_backup_files_total",
			Help: "Media files archived or skipped because they could not be resolved",
		},
		[]string{"result"}, // "archived", "skipped"
	)

	BackupSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "diarykeeper_backup_last_size_bytes",
			Help: "Size of the most recently created archive",
		},
	)

	BackupLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "diarykeeper_backup_last_success_timestamp",
			Help: "Unix time of the last successful backup",
		},
	)

	RestoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "diarykeeper_restore_duration_seconds",
			Help:    "Duration of restore in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diarykeeper_restores_total",
			Help: "Total number of restores attempted",
		},
		[]string{"result", "error_kind"},
	)

	RestoreFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diarykeeper_restore_files_total",
			Help: "Media files copied back during restore",
		},
		[]string{"result"},
	)

	// Migration Metrics
	MigrationRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diarykeeper_migration_rows_total",
			Help: "Rows visited by the reference migration",
		},
		[]string{"table", "result"}, // result: "migrated", "unchanged", "failed"
	)

	MigrationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diarykeeper_migration_runs_total",
			Help: "Reference migration runs by outcome",
		},
		[]string{"result"}, // "ran", "skipped", "error"
	)

	// Orphan Sweep Metrics
	SweepRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diarykeeper_sweep_removed_total",
			Help: "Files removed by the orphan sweep",
		},
		[]string{"kind"}, // "orphan", "temp"
	)

	// Cloud Channel Metrics
	CloudRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diarykeeper_cloud_requests_total",
			Help: "Requests made to the cloud slot service",
		},
		[]string{"method", "result"},
	)

	CloudRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "diarykeeper_cloud_request_duration_seconds",
			Help:    "Latency of cloud slot requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Slot Server Metrics
	SlotRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotd_requests_total",
			Help: "Slot server requests by method and status",
		},
		[]string{"method", "status"},
	)

	SlotRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotd_request_duration_seconds",
			Help:    "Slot server request latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		},
		[]string{"method"},
	)

	SlotStoredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slotd_stored_bytes_total",
			Help: "Bytes accepted into slots",
		},
	)
)

// errorKind labels a failure by its fault kind, or "other".
func errorKind(err error) string {
	if err == nil {
		return ""
	}
	if kind := fault.KindOf(err); kind != "" {
		return string(kind)
	}
	return "other"
}

func resultOf(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// RecordStore records one media store call.
func RecordStore(bucket string, bytes int64, err error) {
	MediaStoreOperations.WithLabelValues(bucket, resultOf(err)).Inc()
	if err == nil {
		MediaStoreBytes.WithLabelValues(bucket).Add(float64(bytes))
	}
}

// RecordBackup records a finished backup attempt.
func RecordBackup(duration time.Duration, archived, skipped int, size int64, err error) {
	BackupDuration.Observe(duration.Seconds())
	BackupsTotal.WithLabelValues(resultOf(err), errorKind(err)).Inc()
	if err != nil {
		return
	}
	BackupFiles.WithLabelValues("archived").Add(float64(archived))
	BackupFiles.WithLabelValues(ResultSkipped).Add(float64(skipped))
	BackupSizeBytes.Set(float64(size))
	BackupLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordRestore records a finished restore attempt.
func RecordRestore(duration time.Duration, restored, failed int, err error) {
	RestoreDuration.Observe(duration.Seconds())
	RestoresTotal.WithLabelValues(resultOf(err), errorKind(err)).Inc()
	RestoreFiles.WithLabelValues(ResultSuccess).Add(float64(restored))
	RestoreFiles.WithLabelValues(ResultFailure).Add(float64(failed))
}

// RecordMigrationRow records the outcome for one row.
func RecordMigrationRow(table, result string) {
	MigrationRows.WithLabelValues(table, result).Inc()
}

// RecordMigrationRun records whether the migration ran or was gated off.
func RecordMigrationRun(result string) {
	MigrationRuns.WithLabelValues(result).Inc()
}

// RecordSweep records files removed by one sweep.
func RecordSweep(orphans, temps int) {
	SweepRemoved.WithLabelValues("orphan").Add(float64(orphans))
	SweepRemoved.WithLabelValues("temp").Add(float64(temps))
}

// RecordCloudRequest records one request to the slot service.
func RecordCloudRequest(method string, duration time.Duration, err error) {
	CloudRequests.WithLabelValues(method, resultOf(err)).Inc()
	CloudRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordSlotRequest records one request handled by slotd.
func RecordSlotRequest(method, status string, duration time.Duration) {
	SlotRequests.WithLabelValues(method, status).Inc()
	SlotRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}
