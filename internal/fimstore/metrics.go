package fimstore

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openmined/fimsync/internal/metrics"
)

var (
	scanChanges = metrics.NewCounter(
		"changes_total",
		"scan",
		"Files seen by scans and realtime rescans, by outcome",
		[]string{"change"},
	)

	scanDuration = metrics.NewHistogramWithBuckets(
		"duration_seconds",
		"scan",
		"Duration of full scans",
		[]string{},
		prometheus.ExponentialBuckets(0.01, 4, 10),
	).WithLabelValues()
)
