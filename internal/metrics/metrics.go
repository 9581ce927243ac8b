// Package metrics holds the Prometheus collectors of the match runtime.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trivia_duel"

// Collector groups every runtime metric. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	questionLoads  *prometheus.CounterVec
	matchmaking    *prometheus.CounterVec
	roomsCompleted *prometheus.CounterVec
	answers        *prometheus.CounterVec
	activeSessions prometheus.Gauge
	loadDuration   *prometheus.HistogramVec
}

// New registers all collectors on a private registry together with the Go and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		questionLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "question_loads_total",
			Help:      "Question loads by source (cache, upstream, fallback) and mode.",
		}, []string{"mode", "source"}),
		matchmaking: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matchmaking_outcomes_total",
			Help:      "Matchmaking attempts by outcome.",
		}, []string{"outcome"}),
		roomsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_completed_total",
			Help:      "Rooms finalized by this process, by result.",
		}, []string{"result"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answer submissions by mode and outcome.",
		}, []string{"mode", "outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Open presentation sessions.",
		}),
		loadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "question_load_duration_seconds",
			Help:      "Time spent loading a question set.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.questionLoads,
		c.matchmaking,
		c.roomsCompleted,
		c.answers,
		c.activeSessions,
		c.loadDuration,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) QuestionLoad(mode, source string, seconds float64) {
	if c == nil {
		return
	}
	c.questionLoads.WithLabelValues(mode, source).Inc()
	c.loadDuration.WithLabelValues(mode).Observe(seconds)
}

// Matchmaking outcomes: hosted, joined, matched, timeout, cancelled, error.
func (c *Collector) Matchmaking(outcome string) {
	if c == nil {
		return
	}
	c.matchmaking.WithLabelValues(outcome).Inc()
}

func (c *Collector) RoomCompleted(result string) {
	if c == nil {
		return
	}
	c.roomsCompleted.WithLabelValues(result).Inc()
}

func (c *Collector) Answer(mode, outcome string) {
	if c == nil {
		return
	}
	c.answers.WithLabelValues(mode, outcome).Inc()
}

func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.activeSessions.Inc()
}

func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.activeSessions.Dec()
}
