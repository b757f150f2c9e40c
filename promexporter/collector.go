// Package promexporter exposes the statistics of a redis.Client as
// Prometheus metrics.
//
// Metrics are read from the client on every scrape: nothing is recorded
// on the request path.
//
//	registry := prometheus.NewRegistry()
//	registry.MustRegister(promexporter.NewCollector(client, "cache"))
package promexporter

import (
	"github.com/pior/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

const namespace = "redis"

// StatsSource is the part of redis.Client the collector reads.
type StatsSource interface {
	Stats() redis.ClientStats
	PoolStats() redis.PoolStats
	CircuitBreakerState() gobreaker.State
}

var _ StatsSource = (*redis.Client)(nil)

// Collector implements prometheus.Collector over a StatsSource.
type Collector struct {
	source StatsSource

	operations     *prometheus.Desc
	txRetries      *prometheus.Desc
	errors         *prometheus.Desc
	rejected       *prometheus.Desc
	circuitState   *prometheus.Desc
	connections    *prometheus.Desc
	acquires       *prometheus.Desc
	acquireWaits   *prometheus.Desc
	acquireWaitSec *prometheus.Desc
	acquireErrors  *prometheus.Desc
	created        *prometheus.Desc
	destroyed      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for source. name is attached to every
// metric as the "client" label, to tell several clients apart.
func NewCollector(source StatsSource, name string) *Collector {
	labels := prometheus.Labels{"client": name}
	desc := func(metric, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", metric), help, variable, labels)
	}

	return &Collector{
		source: source,

		operations:   desc("operations_total", "Operations sent by the client.", "type"),
		txRetries:    desc("transaction_retries_total", "Transaction attempts aborted by a watched key change."),
		errors:       desc("errors_total", "Operations that returned an error."),
		rejected:     desc("circuit_breaker_rejected_total", "Operations refused by the open circuit breaker."),
		circuitState: desc("circuit_breaker_state", "Circuit breaker state (0=closed, 1=half-open, 2=open)."),

		connections:    desc("pool_connections", "Connections in the pool.", "state"),
		acquires:       desc("pool_acquires_total", "Connection acquire attempts."),
		acquireWaits:   desc("pool_acquire_waits_total", "Acquires that had to wait for a connection."),
		acquireWaitSec: desc("pool_acquire_wait_seconds_total", "Time spent waiting for a connection."),
		acquireErrors:  desc("pool_acquire_errors_total", "Failed acquire attempts."),
		created:        desc("pool_connections_created_total", "Connections created."),
		destroyed:      desc("pool_connections_destroyed_total", "Connections destroyed."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.operations
	ch <- c.txRetries
	ch <- c.errors
	ch <- c.rejected
	ch <- c.circuitState
	ch <- c.connections
	ch <- c.acquires
	ch <- c.acquireWaits
	ch <- c.acquireWaitSec
	ch <- c.acquireErrors
	ch <- c.created
	ch <- c.destroyed
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	pool := c.source.PoolStats()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	counter(c.operations, stats.Commands, "command")
	counter(c.operations, stats.Pipelines, "pipeline")
	counter(c.operations, stats.Transactions, "transaction")
	counter(c.txRetries, stats.TxRetries)
	counter(c.errors, stats.Errors)
	counter(c.rejected, stats.Rejected)
	gauge(c.circuitState, float64(c.source.CircuitBreakerState()))

	gauge(c.connections, float64(pool.TotalConns), "total")
	gauge(c.connections, float64(pool.IdleConns), "idle")
	gauge(c.connections, float64(pool.ActiveConns), "active")
	counter(c.acquires, pool.AcquireCount)
	counter(c.acquireWaits, pool.AcquireWaitCount)
	ch <- prometheus.MustNewConstMetric(c.acquireWaitSec, prometheus.CounterValue, float64(pool.AcquireWaitTimeNs)/1e9)
	counter(c.acquireErrors, pool.AcquireErrors)
	counter(c.created, pool.CreatedConns)
	counter(c.destroyed, pool.DestroyedConns)
}
