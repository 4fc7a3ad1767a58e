// Package metrics exposes the buffer pool and lock manager counters named
// in SPEC_FULL.md's DOMAIN STACK: page cache hit/miss/evict counts and
// lock wait/deadlock counts. Grounded on sushant-115-gojodb's telemetry
// wiring (pkg/telemetry/telemetry.go) but scoped down to bare
// github.com/prometheus/client_golang primitives -- this core has no
// tracing surface to justify pulling in the OpenTelemetry SDK the way
// gojodb's full telemetry stack does, only counters and a histogram.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every metric one running engine instance publishes.
// Created fresh per dbcontext.Context so tests can spin up multiple
// instances without colliding on the default global registry.
type Registry struct {
	reg *prometheus.Registry

	PageCacheHits    prometheus.Counter
	PageCacheMisses  prometheus.Counter
	PageEvictions    prometheus.Counter
	PagesFlushed     prometheus.Counter
	LockWaits        prometheus.Counter
	LockWaitSeconds  prometheus.Histogram
	Deadlocks        prometheus.Counter
	TransactionsDone *prometheus.CounterVec
	TxPagesRead      prometheus.Counter
	TxPagesWritten   prometheus.Counter
}

// New creates and registers a fresh metric set, namespaced under
// "ledgerdb".
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		PageCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerdb",
			Subsystem: "bufferpool",
			Name:      "page_cache_hits_total",
			Help:      "Page requests served from the buffer pool's resident cache.",
		}),
		PageCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerdb",
			Subsystem: "bufferpool",
			Name:      "page_cache_misses_total",
			Help:      "Page requests that required a read through the page store.",
		}),
		PageEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerdb",
			Subsystem: "bufferpool",
			Name:      "page_evictions_total",
			Help:      "Clean pages evicted from the buffer pool to make room for a miss.",
		}),
		PagesFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerdb",
			Subsystem: "bufferpool",
			Name:      "pages_flushed_total",
			Help:      "Dirty pages written through the page store.",
		}),
		LockWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerdb",
			Subsystem: "lock",
			Name:      "waits_total",
			Help:      "Lock acquisitions that blocked before being granted.",
		}),
		LockWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledgerdb",
			Subsystem: "lock",
			Name:      "wait_seconds",
			Help:      "Time spent blocked in a lock acquire call.",
			Buckets:   prometheus.DefBuckets,
		}),
		Deadlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerdb",
			Subsystem: "lock",
			Name:      "deadlocks_total",
			Help:      "Acquire calls that aborted the requester to break a wait-for cycle.",
		}),
		TransactionsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgerdb",
			Subsystem: "txn",
			Name:      "completed_total",
			Help:      "Transactions completed, labeled by outcome (commit/abort).",
		}, []string{"outcome"}),
		TxPagesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerdb",
			Subsystem: "txn",
			Name:      "pages_read_total",
			Help:      "Pages recorded as read by completed transactions (txn.Context.Stats).",
		}),
		TxPagesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerdb",
			Subsystem: "txn",
			Name:      "pages_written_total",
			Help:      "Pages recorded as dirtied by completed transactions (txn.Context.Stats).",
		}),
	}

	reg.MustRegister(
		r.PageCacheHits, r.PageCacheMisses, r.PageEvictions, r.PagesFlushed,
		r.LockWaits, r.LockWaitSeconds, r.Deadlocks, r.TransactionsDone,
		r.TxPagesRead, r.TxPagesWritten,
	)
	return r
}

// Gatherer exposes the underlying registry for an HTTP /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }
