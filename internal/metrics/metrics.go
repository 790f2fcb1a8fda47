package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RefreshCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettwin_refresh_cycles_total",
		Help: "Total number of completed refresh cycles.",
	})

	TwinsBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettwin_twins_built_total",
		Help: "Total number of digital twin records built.",
	})

	VehiclesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettwin_vehicles_skipped_total",
		Help: "Vehicles dropped from a cycle because their details fetch failed.",
	})

	AlertsRaised = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettwin_alerts_raised_total",
		Help: "Total number of twins that ended a cycle in alert state.",
	})

	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleettwin_fetch_failures_total",
		Help: "Upstream fetch failures by endpoint.",
	}, []string{"endpoint"})

	UpstreamRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleettwin_upstream_request_duration_seconds",
		Help:    "Latency of upstream telematics API requests.",
		Buckets: prometheus.DefBuckets,
	})

	SnapshotWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettwin_snapshot_write_failures_total",
		Help: "Failed twin snapshot writes to Postgres.",
	})
)
