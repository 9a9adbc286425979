// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Results recorded on SourceFetches.
const (
	ResultOK          = "ok"
	ResultFetchError  = "fetch_error"
	ResultDecodeError = "decode_error"
)

var (
	// CommandsDispatched counts commands routed to a registered handler.
	CommandsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commander_commands_total",
			Help: "Commands dispatched to a handler by command name",
		},
		[]string{"command"},
	)

	// SourceFetches counts listing fetches by source and outcome.
	SourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commander_source_fetch_total",
			Help: "Listing fetches by source and result",
		},
		[]string{"source", "result"},
	)

	// SourceFetchDuration tracks listing fetch latency in seconds.
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "commander_source_fetch_duration_seconds",
			Help:    "Listing fetch duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	// MessagesSent counts messages written to the chat transport.
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "commander_messages_sent_total",
			Help: "Messages sent to the chat room",
		},
	)

	// SnapshotsRecorded counts listing snapshots appended to the archive.
	SnapshotsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "commander_snapshots_recorded_total",
			Help: "Listing snapshots written to the archive",
		},
	)

	// UploadsTotal counts archive uploads by status.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commander_archive_uploads_total",
			Help: "Archive file uploads by status",
		},
		[]string{"status"},
	)
)
