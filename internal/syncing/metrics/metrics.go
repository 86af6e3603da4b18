package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsSynced tracks records pushed to the remote per table and operation
	RecordsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsync_records_synced_total",
			Help: "Total number of records pushed to the remote",
		},
		[]string{"table", "op"},
	)

	// RecordsFailed tracks failed record pushes per table and reason
	RecordsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsync_records_failed_total",
			Help: "Total number of failed record pushes",
		},
		[]string{"table", "reason"},
	)

	// RecordsPurged tracks soft-deleted records removed without a remote call
	RecordsPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsync_records_purged_total",
			Help: "Total number of never-pushed deleted records purged locally",
		},
		[]string{"table"},
	)

	// CyclesTotal tracks flush cycles by outcome (completed, aborted, skipped_*)
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsync_cycles_total",
			Help: "Total number of flush cycles by outcome",
		},
		[]string{"outcome"},
	)

	// CycleDuration tracks the wall time of cycles that did work
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "teamsync_cycle_duration_seconds",
			Help:    "Flush cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// GateUntil exposes the global backoff deadline as a unix timestamp
	GateUntil = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "teamsync_backoff_gate_until_seconds",
			Help: "Unix time until which all sync attempts are paused",
		},
	)

	// PendingRecords tracks unsynced records per table and state (eligible, blocked, waiting)
	PendingRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "teamsync_pending_records",
			Help: "Unsynced records per table and state",
		},
		[]string{"table", "state"},
	)

	// RemoteRequestsTotal tracks remote API calls per method and status class
	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamsync_remote_requests_total",
			Help: "Total number of remote API requests",
		},
		[]string{"method", "status"},
	)

	// RemoteLatency tracks remote API latency
	RemoteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teamsync_remote_latency_seconds",
			Help:    "Remote API latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)
