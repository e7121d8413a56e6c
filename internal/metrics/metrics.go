// Package metrics holds the Prometheus collectors of the feature index.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Queries counts search operations by op and by result (ok, rejected,
// cancelled or error).
var Queries = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "featureindex",
	Subsystem: "search",
	Name:      "queries_total",
	Help:      "Queries served, by operation and result.",
}, []string{"op", "result"})

// QueryDuration is the latency of each search operation.
var QueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "featureindex",
	Subsystem: "search",
	Name:      "query_duration_seconds",
	Help:      "Search operation latency in seconds, by operation.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
}, []string{"op"})

// StoresSkipped counts stores left out of a query because they timed out or
// were not in the index.
var StoresSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "featureindex",
	Subsystem: "search",
	Name:      "stores_skipped_total",
	Help:      "Per-store evaluations dropped from a multi-file query.",
}, []string{"reason"})

// Builds counts store builds by result (ok or malformed).
var Builds = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "featureindex",
	Subsystem: "index",
	Name:      "builds_total",
	Help:      "Store builds, by result.",
}, []string{"result"})

// IndexedEntries is the number of entries held by committed stores.
var IndexedEntries = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "featureindex",
	Subsystem: "index",
	Name:      "entries",
	Help:      "Entries across all committed stores.",
})

// IndexedFiles is the number of files with a committed store.
var IndexedFiles = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "featureindex",
	Subsystem: "index",
	Name:      "files",
	Help:      "Files with a committed store.",
})

// Register adds every collector to reg. Collectors already registered with
// reg are left in place.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		Queries, QueryDuration, StoresSkipped, Builds, IndexedEntries, IndexedFiles,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
