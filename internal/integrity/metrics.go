package integrity

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openmined/fimsync/internal/metrics"
)

const subsystem = "sync"

var (
	roundsTotal = metrics.NewCounter(
		"rounds_total",
		subsystem,
		"Number of global digest rounds started",
		[]string{},
	).WithLabelValues()

	messagesSent = metrics.NewCounter(
		"messages_sent_total",
		subsystem,
		"Outbound sync messages by type",
		[]string{"type"},
	)

	sendErrors = metrics.NewCounter(
		"send_errors_total",
		subsystem,
		"Outbound sync messages the transport refused",
		[]string{},
	).WithLabelValues()

	commandsTotal = metrics.NewCounter(
		"commands_total",
		subsystem,
		"Inbound manager commands by name and outcome",
		[]string{"command", "result"},
	)

	queueDropped = metrics.NewCounter(
		"queue_dropped_total",
		subsystem,
		"Inbound payloads dropped before reaching the queue",
		[]string{},
	).WithLabelValues()

	roundID = metrics.NewGauge(
		"round_id",
		subsystem,
		"Current logical round id",
		[]string{},
	).WithLabelValues()

	splitSize = metrics.NewHistogramWithBuckets(
		"split_range_size",
		subsystem,
		"Number of entries covered by a checksum_fail range",
		[]string{},
		prometheus.ExponentialBuckets(1, 4, 10),
	).WithLabelValues()
)

const (
	resultProcessed = "processed"
	resultRebased   = "rebased"
	resultStale     = "stale"
	resultInvalid   = "invalid"
	resultUnknown   = "unknown"
)
