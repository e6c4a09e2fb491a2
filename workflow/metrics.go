package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for engine execution.
//
// All metrics are namespaced "caflow_engine_":
//   - active_runs (gauge): runs currently executing.
//   - runs_total (counter): runs started.
//   - step_latency_ms (histogram, labels node/status): handler duration.
//   - loop_aborts_total (counter, label node): LOOP_BOUND_EXCEEDED aborts.
//
// Register on a caller-supplied registry and expose via promhttp:
//
//	reg := prometheus.NewRegistry()
//	m := workflow.NewMetrics(reg)
//	eng := workflow.New(workflow.WithMetrics(m))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
type Metrics struct {
	activeRuns  prometheus.Gauge
	runsTotal   prometheus.Counter
	stepLatency *prometheus.HistogramVec
	loopAborts  *prometheus.CounterVec
}

// NewMetrics creates and registers engine metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "caflow",
			Subsystem: "engine",
			Name:      "active_runs",
			Help:      "Number of workflow runs currently executing.",
		}),
		runsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "caflow",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Total workflow runs started.",
		}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "caflow",
			Subsystem: "engine",
			Name:      "step_latency_ms",
			Help:      "Step handler duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"node", "status"}),
		loopAborts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caflow",
			Subsystem: "engine",
			Name:      "loop_aborts_total",
			Help:      "Runs aborted by the loop-iteration bound.",
		}, []string{"node"}),
	}
}

func (m *Metrics) runStarted() {
	m.runsTotal.Inc()
	m.activeRuns.Inc()
}

func (m *Metrics) runFinished() {
	m.activeRuns.Dec()
}

func (m *Metrics) stepObserved(node, status string, d time.Duration) {
	m.stepLatency.WithLabelValues(node, status).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) loopAbort(node string) {
	m.loopAborts.WithLabelValues(node).Inc()
}
