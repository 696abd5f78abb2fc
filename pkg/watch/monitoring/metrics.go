package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWatchers is the number of live timeout watchers.
	ActiveWatchers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watch_active_watchers",
			Help: "Number of live timeout watchers",
		},
	)

	// TimeoutResolutions is the total number of timeout-triggered claim
	// resolutions, by delinquent party.
	TimeoutResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watch_timeout_resolutions",
			Help: "Total number of timeout-triggered claim resolutions",
		},
		[]string{"party"},
	)
)
