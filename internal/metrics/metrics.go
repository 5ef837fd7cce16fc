// Package metrics provides Prometheus metrics for RPC traffic, feed scans
// and connection health.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Mohsinsiddi/w3scan/internal/connection"
)

const namespace = "w3scan"

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCErrors      *prometheus.CounterVec

	// Feed metrics
	BlocksFetched prometheus.Counter
	FeedDuration  prometheus.Histogram
	FeedEntries   prometheus.Histogram

	// Connection metrics
	HeadBlock prometheus.Gauge
	Connected prometheus.Gauge
}

// New creates Metrics registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "JSON-RPC call latency by method",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15},
		}, []string{"method"}),
		RPCErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "errors_total",
			Help:      "Failed JSON-RPC calls by method",
		}, []string{"method"}),

		BlocksFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "blocks_fetched_total",
			Help:      "Blocks fetched by the transaction feed",
		}),
		FeedDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "assemble_duration_seconds",
			Help:      "Time to assemble one transaction feed",
			Buckets:   prometheus.DefBuckets,
		}),
		FeedEntries: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "entries",
			Help:      "Transactions returned per feed",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),

		HeadBlock: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "head_block",
			Help:      "Latest block number seen on the endpoint",
		}),
		Connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "up",
			Help:      "1 when the last poll of the endpoint succeeded",
		}),
	}
}

// ObserveRPC records one JSON-RPC call.
func (m *Metrics) ObserveRPC(method string, took time.Duration, err error) {
	m.RPCCallLatency.WithLabelValues(method).Observe(took.Seconds())
	if err != nil {
		m.RPCErrors.WithLabelValues(method).Inc()
	}
}

// ConnectionChanged mirrors a connection state into the gauges.
func (m *Metrics) ConnectionChanged(s connection.State) {
	if s.Connected() {
		m.Connected.Set(1)
		m.HeadBlock.Set(float64(s.BlockNumber))
		return
	}
	m.Connected.Set(0)
}

// FeedRecorder adapts Metrics to the feed assembler's recorder hooks.
func (m *Metrics) FeedRecorder() *FeedRecorder { return &FeedRecorder{m: m} }

// FeedRecorder records feed statistics.
type FeedRecorder struct{ m *Metrics }

func (r *FeedRecorder) BlocksFetched(n int) { r.m.BlocksFetched.Add(float64(n)) }

func (r *FeedRecorder) FeedAssembled(took time.Duration, entries int) {
	r.m.FeedDuration.Observe(took.Seconds())
	r.m.FeedEntries.Observe(float64(entries))
}
