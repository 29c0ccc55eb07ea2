// Package metrics holds the prometheus collectors of the query processor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the collectors of one processor.
type Metrics struct {
	// CacheLookups counts prepared statement lookups by result (hit, miss).
	CacheLookups *prometheus.CounterVec
	// CacheEvictions counts statements dropped to make room.
	CacheEvictions prometheus.Counter
	// CacheInvalidations counts statements dropped after a schema change.
	CacheInvalidations prometheus.Counter
	// CachedStatements is the current number of cached statements.
	CachedStatements prometheus.Gauge
	// Prepares counts preparations by outcome (ok, error).
	Prepares *prometheus.CounterVec
	// Executions counts executions by outcome (ok, bind_error,
	// execution_error).
	Executions *prometheus.CounterVec
	// ExecutionDuration is the latency of an execution in seconds.
	ExecutionDuration prometheus.Histogram
	// StageDuration is the time spent reaching each execution stage.
	StageDuration *prometheus.HistogramVec
	// RowsReturned is the number of rows emitted per execution.
	RowsReturned prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is how disabled metrics are handled.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "statement_cache_lookups_total",
				Help:      "Prepared statement cache lookups",
			},
			[]string{"result"},
		),
		CacheEvictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statement_cache_evictions_total",
			Help:      "Prepared statements evicted from the cache",
		}),
		CacheInvalidations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statement_cache_invalidations_total",
			Help:      "Prepared statements dropped after a schema change",
		}),
		CachedStatements: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "statement_cache_size",
			Help:      "Number of cached prepared statements",
		}),
		Prepares: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prepares_total",
				Help:      "Statement preparations by outcome",
			},
			[]string{"outcome"},
		),
		Executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Statement executions by outcome",
			},
			[]string{"outcome"},
		),
		ExecutionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Statement execution latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_stage_duration_seconds",
				Help:      "Time from the start of an execution to each stage",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"stage"},
		),
		RowsReturned: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rows_returned",
			Help:      "Rows emitted per execution",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}
}

// Nop returns unregistered collectors.
func Nop() *Metrics {
	return New(nil, "")
}
