// Package metrics exposes Prometheus counters and gauges over the engine's
// transaction and garbage-collection activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric snapdb exposes. Each Collector owns a
// private registry so multiple engines in the same binary (or in tests)
// never collide on metric registration.
type Collector struct {
	registry *prometheus.Registry

	TxnsBegun     prometheus.Counter
	TxnsCommitted prometheus.Counter
	TxnsAborted   prometheus.Counter
	Conflicts     prometheus.Counter
	GCVersions    prometheus.Counter
	ActiveTxns    prometheus.Gauge
	RowVersions   prometheus.Gauge
}

// NewCollector registers and returns a fresh set of snapdb metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		TxnsBegun: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "snapdb",
			Name:      "transactions_begun_total",
			Help:      "Total number of transactions begun.",
		}),
		TxnsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "snapdb",
			Name:      "transactions_committed_total",
			Help:      "Total number of transactions committed.",
		}),
		TxnsAborted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "snapdb",
			Name:      "transactions_aborted_total",
			Help:      "Total number of transactions aborted, including conflict auto-aborts.",
		}),
		Conflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "snapdb",
			Name:      "write_write_conflicts_total",
			Help:      "Total number of write-write conflicts detected at commit.",
		}),
		GCVersions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "snapdb",
			Name:      "gc_versions_collected_total",
			Help:      "Total number of row versions reclaimed by garbage collection.",
		}),
		ActiveTxns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "snapdb",
			Name:      "active_transactions",
			Help:      "Number of transactions currently in progress.",
		}),
		RowVersions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "snapdb",
			Name:      "row_versions",
			Help:      "Total number of row versions currently held by the store.",
		}),
	}
}

// Handler returns the HTTP handler that exposes these metrics in the
// Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
