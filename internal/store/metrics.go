package store

import "github.com/prometheus/client_golang/prometheus"

var (
	attemptsHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "connkeeper",
		Subsystem: "query",
		Name:      "attempts",
		Help:      "Attempts made per Execute call.",
		Buckets:   []float64{1, 2, 3, 5, 10},
	})

	queryErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "connkeeper",
		Subsystem: "query",
		Name:      "errors_total",
		Help:      "Execute calls that failed, by error class.",
	}, []string{"class"})

	transactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "connkeeper",
		Subsystem: "tx",
		Name:      "completed_total",
		Help:      "Finished transactions by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(attemptsHistogram, queryErrorsTotal, transactionsTotal)
}
