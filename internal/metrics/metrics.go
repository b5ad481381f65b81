package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pyguide"

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	scoringRuns      *prometheus.CounterVec
	pointsAwarded    prometheus.Counter
	progressRetries  prometheus.Counter
	leaderboardLoads *prometheus.CounterVec
	practiceSessions *prometheus.CounterVec
	attempts         *prometheus.CounterVec
	wsClients        prometheus.Gauge
}

// New builds a private registry with the process and Go collectors plus the service metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		scoringRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_runs_total",
			Help:      "Completed session scorings by outcome (passed, failed, practice).",
		}, []string{"outcome"}),
		pointsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Sum of deltas added to user totals.",
		}),
		progressRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_cas_retries_total",
			Help:      "Subject progress writes retried after a version conflict.",
		}),
		leaderboardLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaderboard_loads_total",
			Help:      "Leaderboard loads by scope and result.",
		}, []string{"scope", "result"}),
		practiceSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "practice_sessions_total",
			Help:      "Practice sessions started by mode.",
		}, []string{"mode"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Recorded attempts by kind (correct, incorrect, timeout).",
		}, []string{"kind"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected realtime clients.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestDuration,
		m.scoringRuns,
		m.pointsAwarded,
		m.progressRetries,
		m.leaderboardLoads,
		m.practiceSessions,
		m.attempts,
		m.wsClients,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// GinMiddleware records request latency keyed by the matched route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) ScoringRun(outcome string) {
	if m == nil {
		return
	}
	m.scoringRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PointsAwarded(delta int) {
	if m == nil || delta <= 0 {
		return
	}
	m.pointsAwarded.Add(float64(delta))
}

func (m *Metrics) ProgressRetry() {
	if m == nil {
		return
	}
	m.progressRetries.Inc()
}

func (m *Metrics) LeaderboardLoad(scope string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.leaderboardLoads.WithLabelValues(scope, result).Inc()
}

func (m *Metrics) PracticeSession(mode string) {
	if m == nil {
		return
	}
	m.practiceSessions.WithLabelValues(mode).Inc()
}

func (m *Metrics) Attempt(kind string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(kind).Inc()
}

func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.wsClients.Inc()
}

func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.wsClients.Dec()
}
