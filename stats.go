package redis

import (
	"sync/atomic"
	"time"
)

// PoolStats contains statistics about a connection pool.
//
// For Prometheus integration, expose these as:
//   - Gauges: TotalConns, IdleConns, ActiveConns
//   - Counters: AcquireCount, AcquireWaitCount, CreatedConns, DestroyedConns, AcquireErrors
//   - Counter: AcquireWaitTimeNs (seconds spent waiting, once scaled)
//
// The promexporter package does exactly that.
type PoolStats struct {
	// Lifetime counters
	AcquireCount      uint64 // Total acquire attempts
	AcquireWaitCount  uint64 // Acquires that had to wait
	CreatedConns      uint64 // Total connections created
	DestroyedConns    uint64 // Total connections destroyed
	AcquireErrors     uint64 // Failed acquire attempts
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	// Current state gauges
	TotalConns  int32 // Total connections in pool (active + idle)
	IdleConns   int32 // Idle connections available
	ActiveConns int32 // Connections currently in use
}

// ClientStats contains statistics about client operations.
type ClientStats struct {
	Commands     uint64 // Single commands sent with Do
	Pipelines    uint64 // Pipelines sent with Exec
	Transactions uint64 // Committed or abandoned optimistic transactions
	TxRetries    uint64 // Transaction attempts aborted by a watched key change
	Errors       uint64 // Operations that returned an error
	Rejected     uint64 // Operations refused by the open circuit breaker
}

// poolStatsCollector provides internal methods for updating pool stats.
// Not exported - pools update their own stats.
type poolStatsCollector struct {
	acquireCount      atomic.Uint64
	acquireWaitCount  atomic.Uint64
	createdConns      atomic.Uint64
	destroyedConns    atomic.Uint64
	acquireErrors     atomic.Uint64
	acquireWaitTimeNs atomic.Uint64

	totalConns  atomic.Int32
	idleConns   atomic.Int32
	activeConns atomic.Int32
}

func (c *poolStatsCollector) recordAcquire() {
	c.acquireCount.Add(1)
}

func (c *poolStatsCollector) recordAcquireWait(duration time.Duration) {
	c.acquireWaitCount.Add(1)
	c.acquireWaitTimeNs.Add(uint64(duration.Nanoseconds()))
}

func (c *poolStatsCollector) recordCreate() {
	c.createdConns.Add(1)
	c.totalConns.Add(1)
}

// recordDestroy accounts for a connection closed while idle or while checked out.
func (c *poolStatsCollector) recordDestroy(idle bool) {
	c.destroyedConns.Add(1)
	c.totalConns.Add(-1)
	if idle {
		c.idleConns.Add(-1)
	} else {
		c.activeConns.Add(-1)
	}
}

func (c *poolStatsCollector) recordAcquireError() {
	c.acquireErrors.Add(1)
}

func (c *poolStatsCollector) recordAcquireFromIdle() {
	c.idleConns.Add(-1)
	c.activeConns.Add(1)
}

func (c *poolStatsCollector) recordActivate() {
	c.activeConns.Add(1)
}

func (c *poolStatsCollector) recordRelease() {
	c.idleConns.Add(1)
	c.activeConns.Add(-1)
}

func (c *poolStatsCollector) snapshot() PoolStats {
	return PoolStats{
		TotalConns:        c.totalConns.Load(),
		IdleConns:         c.idleConns.Load(),
		ActiveConns:       c.activeConns.Load(),
		AcquireCount:      c.acquireCount.Load(),
		AcquireWaitCount:  c.acquireWaitCount.Load(),
		CreatedConns:      c.createdConns.Load(),
		DestroyedConns:    c.destroyedConns.Load(),
		AcquireErrors:     c.acquireErrors.Load(),
		AcquireWaitTimeNs: c.acquireWaitTimeNs.Load(),
	}
}

// clientStatsCollector provides internal methods for updating client stats.
// Not exported - client updates its own stats.
type clientStatsCollector struct {
	commands     atomic.Uint64
	pipelines    atomic.Uint64
	transactions atomic.Uint64
	txRetries    atomic.Uint64
	errors       atomic.Uint64
	rejected     atomic.Uint64
}

func (c *clientStatsCollector) recordCommand()     { c.commands.Add(1) }
func (c *clientStatsCollector) recordPipeline()    { c.pipelines.Add(1) }
func (c *clientStatsCollector) recordTransaction() { c.transactions.Add(1) }
func (c *clientStatsCollector) recordTxRetry()     { c.txRetries.Add(1) }
func (c *clientStatsCollector) recordError()       { c.errors.Add(1) }
func (c *clientStatsCollector) recordRejected()    { c.rejected.Add(1) }

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Commands:     c.commands.Load(),
		Pipelines:    c.pipelines.Load(),
		Transactions: c.transactions.Load(),
		TxRetries:    c.txRetries.Load(),
		Errors:       c.errors.Load(),
		Rejected:     c.rejected.Load(),
	}
}
