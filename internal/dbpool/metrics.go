package dbpool

import "github.com/prometheus/client_golang/prometheus"

var (
	connectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "connkeeper",
		Subsystem: "pool",
		Name:      "connects_total",
		Help:      "Completed pool connect attempts by result.",
	}, []string{"result"})

	resetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "connkeeper",
		Subsystem: "pool",
		Name:      "resets_total",
		Help:      "Pools discarded by the manager, by reason.",
	}, []string{"reason"})

	connectDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "connkeeper",
		Subsystem: "pool",
		Name:      "connect_duration_seconds",
		Help:      "Time spent opening a new pool.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})
)

func init() {
	prometheus.MustRegister(connectsTotal, resetsTotal, connectDuration)
}
