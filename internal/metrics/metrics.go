// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for the recviewd transcode
// subsystem. No session_id or request_id labels: cardinality stays bounded.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var (
	// AdmissionAdmitTotal counts successful slot admissions.
	AdmissionAdmitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recviewd_admission_admit_total",
		Help: "Total number of admitted encode sessions.",
	})

	// AdmissionRejectTotal counts rejected admissions by reason.
	AdmissionRejectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recviewd_admission_reject_total",
		Help: "Total number of rejected session requests, by reason.",
	}, []string{"reason"})

	// EncodeSlotsInUse tracks currently held encode slots.
	EncodeSlotsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recviewd_encode_slots_in_use",
		Help: "Current number of encode slots in use.",
	})

	// ActiveSessions tracks live playback sessions by mode.
	ActiveSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "recviewd_active_sessions",
		Help: "Current number of active playback sessions, by mode.",
	}, []string{"mode"})

	// TranscodeSpawnTotal counts media process spawns by mode and cause.
	TranscodeSpawnTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recviewd_transcode_spawn_total",
		Help: "Total number of media process spawns, by mode and cause.",
	}, []string{"mode", "cause"})

	// TranscodeExitTotal counts media process exits by reason.
	TranscodeExitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recviewd_transcode_exit_total",
		Help: "Total number of media process exits, by reason.",
	}, []string{"reason"})

	// SegmentWaitTotal counts long-poll segment waits by outcome.
	SegmentWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recviewd_segment_wait_total",
		Help: "Total number of segment waits, by outcome (served/timeout/superseded).",
	}, []string{"outcome"})

	// SessionsReapedTotal counts idle sessions reclaimed by the reaper.
	SessionsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recviewd_sessions_reaped_total",
		Help: "Total number of sessions terminated by the idle reaper.",
	})

	// ProbeCacheTotal counts probe cache lookups by result.
	ProbeCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recviewd_probe_cache_total",
		Help: "Total number of probe cache lookups, by result (hit/miss/stale).",
	}, []string{"result"})
)

// RecordAdmit increments the admission counter.
func RecordAdmit() {
	AdmissionAdmitTotal.Inc()
}

// RecordReject increments the rejection counter.
func RecordReject(reason string) {
	AdmissionRejectTotal.WithLabelValues(reason).Inc()
}

// SetEncodeSlotsInUse sets the slot gauge.
func SetEncodeSlotsInUse(n float64) {
	EncodeSlotsInUse.Set(n)
}

// SetActiveSessions sets the session gauge for a mode.
func SetActiveSessions(mode string, n float64) {
	ActiveSessions.WithLabelValues(mode).Set(n)
}

// RecordSpawn increments the spawn counter.
// cause: "initial", "seek" or "crash_restart".
func RecordSpawn(mode, cause string) {
	TranscodeSpawnTotal.WithLabelValues(mode, cause).Inc()
}

// RecordExit increments the exit counter.
func RecordExit(reason string) {
	TranscodeExitTotal.WithLabelValues(reason).Inc()
}

// RecordSegmentWait increments the wait counter.
func RecordSegmentWait(outcome string) {
	SegmentWaitTotal.WithLabelValues(outcome).Inc()
}

// RecordReaped increments the reaper counter.
func RecordReaped() {
	SessionsReapedTotal.Inc()
}

// RecordProbeCache increments the probe cache counter.
func RecordProbeCache(result string) {
	ProbeCacheTotal.WithLabelValues(result).Inc()
}

// GetEncodeSlotsInUse returns the current gauge value (for testing).
func GetEncodeSlotsInUse() float64 {
	var m dto.Metric
	if err := EncodeSlotsInUse.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
