package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector backed by Prometheus.
type PrometheusCollector struct {
	accepted       prometheus.Counter
	rejected       *prometheus.CounterVec
	released       *prometheus.CounterVec
	sweepDuration  prometheus.Histogram
	sweepScanned   prometheus.Counter
	sweepReclaimed prometheus.Counter
	sweepFailed    prometheus.Counter
}

// Compile-time assertion that PrometheusCollector implements Collector.
var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus creates and registers the collector's metrics.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: metrics namespace (defaults to "eckvideo" if empty)
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "eckvideo"
	}

	p := &PrometheusCollector{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "accepted_total",
			Help:      "Total orders successfully claimed by a worker.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "rejected_total",
			Help:      "Total rejected claims by reason.",
		}, []string{"reason"}),
		released: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "released_total",
			Help:      "Total orders returned to unclaimed by kind (unassign, reclaim, manual_reset).",
		}, []string{"kind"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reclamation",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of reclamation sweeps in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}),
		sweepScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reclamation",
			Name:      "scanned_total",
			Help:      "Total expired orders examined by sweeps.",
		}),
		sweepReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reclamation",
			Name:      "reclaimed_total",
			Help:      "Total orders reset to unclaimed by sweeps.",
		}),
		sweepFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reclamation",
			Name:      "failed_total",
			Help:      "Total per-order reset failures during sweeps.",
		}),
	}

	reg.MustRegister(p.accepted, p.rejected, p.released, p.sweepDuration, p.sweepScanned, p.sweepReclaimed, p.sweepFailed)
	return p
}

// AssignmentAccepted increments the accepted claims counter.
func (p *PrometheusCollector) AssignmentAccepted() {
	p.accepted.Inc()
}

// AssignmentRejected increments the rejected claims counter for reason.
func (p *PrometheusCollector) AssignmentRejected(reason string) {
	p.rejected.WithLabelValues(reason).Inc()
}

// OrderReleased increments the released orders counter for kind.
func (p *PrometheusCollector) OrderReleased(kind string) {
	p.released.WithLabelValues(kind).Inc()
}

// SweepCompleted records the outcome of one sweep.
func (p *PrometheusCollector) SweepCompleted(seconds float64, scanned, reclaimed, failed int) {
	p.sweepDuration.Observe(seconds)
	p.sweepScanned.Add(float64(scanned))
	p.sweepReclaimed.Add(float64(reclaimed))
	p.sweepFailed.Add(float64(failed))
}
