package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/engine"
)

// Metrics: Prometheus-метрики выполнения графов.
type Metrics struct {
	nodeEvents   *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	runs         prometheus.Counter
	runDuration  prometheus.Histogram
}

// NewMetrics регистрирует метрики в reg.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		nodeEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowrunner_node_events_total",
			Help: "Engine events by event class and node type",
		}, []string{"event", "type"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowrunner_http_requests_total",
			Help: "http_request node outcomes",
		}, []string{"outcome"}),
		runs: f.NewCounter(prometheus.CounterOpts{
			Name: "flowrunner_runs_total",
			Help: "Completed graph runs",
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowrunner_run_duration_seconds",
			Help:    "Graph run duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Observer возвращает наблюдатель движка, считающий события.
func (m *Metrics) Observer() engine.Handler {
	return func(ev engine.Event) {
		if ev.IsStart() {
			m.nodeEvents.WithLabelValues("start", string(ev.Node.Type)).Inc()
			return
		}

		m.nodeEvents.WithLabelValues("dispatched", string(ev.Node.Type)).Inc()

		if ev.Node.Type == domain.NodeTypeHTTPRequest {
			outcome := string(ev.Result.Outcome)
			if outcome == "" {
				outcome = "none"
			}
			m.httpRequests.WithLabelValues(outcome).Inc()
		}
	}
}

// RunFinished фиксирует завершённый запуск.
func (m *Metrics) RunFinished(d time.Duration) {
	m.runs.Inc()
	m.runDuration.Observe(d.Seconds())
}
