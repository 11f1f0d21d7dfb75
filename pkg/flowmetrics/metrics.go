// Package flowmetrics registers flowdb's prometheus series the way the
// teacher's pkg/metrics registers warren_* series: package-level
// prometheus.Collector variables built in the package var block, and a
// Register() the CLI calls once at startup (kept separate from package
// initialization so tests can construct flowmetrics values without side-effecting the
// default registry).
package flowmetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EpochLatency times how long one epoch's barrier pass takes to
	// drain through every node in the graph.
	EpochLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowdb_epoch_latency_seconds",
			Help:    "Time taken for one epoch barrier to drain through the pipeline",
			Buckets: prometheus.DefBuckets,
		},
	)

	// EpochsCommitted counts completed epochs across the pipeline's
	// lifetime.
	EpochsCommitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flowdb_epochs_committed_total",
			Help: "Total number of epochs committed",
		},
	)

	// ChannelQueueDepth reports the current buffered message count on
	// one edge, labeled by the producing node and output port.
	ChannelQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowdb_channel_queue_depth",
			Help: "Current number of buffered envelopes on a channel edge",
		},
		[]string{"node", "port"},
	)

	// OperationsProcessedTotal counts operations a node has processed,
	// labeled by node and operation kind (insert/delete/update).
	OperationsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowdb_operations_processed_total",
			Help: "Total number of operations processed by a node",
		},
		[]string{"node", "kind"},
	)

	// AggregationGroupsTotal reports the live group count an aggregation
	// operator is currently holding state for.
	AggregationGroupsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowdb_aggregation_groups_total",
			Help: "Number of distinct groups an aggregation operator currently holds state for",
		},
		[]string{"node"},
	)

	// CheckpointLagSeqNo reports how far a source's last-committed SeqNo
	// lags its most recently emitted one, so a large value flags a stuck
	// checkpoint writer.
	CheckpointLagSeqNo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowdb_checkpoint_lag_seqno",
			Help: "Difference between a source's emitted and checkpointed sequence numbers",
		},
		[]string{"node"},
	)

	// RestartRecoveryDuration times how long replaying from the last
	// checkpoint took after a restart.
	RestartRecoveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowdb_restart_recovery_duration_seconds",
			Help:    "Time taken to replay from the last checkpoint after a restart",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register adds every flowdb series to the default Prometheus registry.
// The CLI calls this once during startup, mirroring the teacher's
// metrics.init() registration block but kept as an explicit call so tests
// can exercise flowmetrics without touching the global registry.
func Register() {
	prometheus.MustRegister(EpochLatency)
	prometheus.MustRegister(EpochsCommitted)
	prometheus.MustRegister(ChannelQueueDepth)
	prometheus.MustRegister(OperationsProcessedTotal)
	prometheus.MustRegister(AggregationGroupsTotal)
	prometheus.MustRegister(CheckpointLagSeqNo)
	prometheus.MustRegister(RestartRecoveryDuration)
}

// Handler returns the Prometheus HTTP handler serving every registered
// series.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times one operation and reports its duration to a histogram,
// matching the teacher's metrics.Timer helper.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer { return &Timer{start: time.Now()} }

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration { return time.Since(t.start) }
