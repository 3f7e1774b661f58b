package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signal-sync/signal-sync/internal/signal"
)

// Metrics records session lifecycle counters. It implements signal.Observer.
type Metrics struct {
	registry *prometheus.Registry

	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Counter
	messagesSent   prometheus.Counter
	sendDuration   prometheus.Histogram
	terminations   *prometheus.CounterVec
	rejected       *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sync sessions currently pushing state",
		}),

		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of sync sessions started",
		}),

		messagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of state messages delivered to peers",
		}),

		sendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Time spent writing one state message",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .05, .1},
		}),

		terminations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_terminations_total",
			Help:      "Sync sessions ended, by cause",
		}, []string{"cause"}),

		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "WebSocket connections refused before a session started",
		}, []string{"reason"}),
	}
}

func (m *Metrics) SessionStarted(string) {
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}

func (m *Metrics) MessageSent(_ string, _ uint64, elapsed time.Duration) {
	m.messagesSent.Inc()
	m.sendDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SessionEnded(_ string, t signal.Termination) {
	m.sessionsActive.Dec()
	m.terminations.WithLabelValues(t.Cause.String()).Inc()
}

// Rejected counts a connection refused for reason (unauthorized, limit, upgrade).
func (m *Metrics) Rejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
