package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder observes scheduler activity. The zero-cost NoopMetrics
// implementation is used unless Config.EnableMetrics selects the
// Prometheus-backed one, mirroring how the teacher's registry
// (pkg/metrics/registry.go in the retrieved corpus) is opt-in rather than
// always wired into the hot path.
type MetricsRecorder interface {
	// IdleContext is called when a Context's Run exhausts its steal
	// budget and reports Idle.
	IdleContext()
	// ActiveContext is called once per dispatched task (Context.dispatch),
	// balancing IdleContext so a gauge-backed implementation's "currently
	// active" count never drifts negative.
	ActiveContext()
	StealAttempt()
	StealSuccess()
	TaskDispatched()
	QueueDepth(contextID string, depth int64)
}

// NoopMetrics discards every observation. Used when metrics are disabled
// so the scheduler's call sites never need a nil check.
type NoopMetrics struct{}

func (NoopMetrics) IdleContext()                 {}
func (NoopMetrics) ActiveContext()               {}
func (NoopMetrics) StealAttempt()                {}
func (NoopMetrics) StealSuccess()                {}
func (NoopMetrics) TaskDispatched()              {}
func (NoopMetrics) QueueDepth(_ string, _ int64) {}

// PrometheusMetrics records scheduler activity into a caller-supplied
// prometheus.Registerer, the way the corpus's registry.go wires its own
// gauges/counters into an injected registry rather than the global
// default one.
type PrometheusMetrics struct {
	idleContexts    prometheus.Gauge
	activeContexts  prometheus.Gauge
	stealAttempts   prometheus.Counter
	stealSuccesses  prometheus.Counter
	tasksDispatched prometheus.Counter
	queueDepth      *prometheus.GaugeVec
}

// NewPrometheusMetrics registers the scheduler's metric family on reg and
// returns a MetricsRecorder backed by it.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		idleContexts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskscheduler",
			Name:      "idle_contexts",
			Help:      "Number of worker contexts currently reporting idle.",
		}),
		activeContexts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskscheduler",
			Name:      "active_contexts",
			Help:      "Number of worker contexts currently dispatching tasks.",
		}),
		stealAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskscheduler",
			Name:      "steal_attempts_total",
			Help:      "Total steal attempts that found the victim's deque empty.",
		}),
		stealSuccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskscheduler",
			Name:      "steal_successes_total",
			Help:      "Total steal attempts that returned a task.",
		}),
		tasksDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskscheduler",
			Name:      "tasks_dispatched_total",
			Help:      "Total tasks whose dispatch function has run to completion.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "taskscheduler",
			Name:      "context_queue_depth",
			Help:      "Approximate number of tasks queued on a context's deque.",
		}, []string{"context_id"}),
	}
	reg.MustRegister(
		m.idleContexts,
		m.activeContexts,
		m.stealAttempts,
		m.stealSuccesses,
		m.tasksDispatched,
		m.queueDepth,
	)
	return m
}

func (m *PrometheusMetrics) IdleContext() {
	m.idleContexts.Inc()
	m.activeContexts.Dec()
}

func (m *PrometheusMetrics) ActiveContext() {
	m.activeContexts.Inc()
}

func (m *PrometheusMetrics) StealAttempt()   { m.stealAttempts.Inc() }
func (m *PrometheusMetrics) StealSuccess()   { m.stealSuccesses.Inc() }
func (m *PrometheusMetrics) TaskDispatched() { m.tasksDispatched.Inc() }

func (m *PrometheusMetrics) QueueDepth(contextID string, depth int64) {
	m.queueDepth.WithLabelValues(contextID).Set(float64(depth))
}
