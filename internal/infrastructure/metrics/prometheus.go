// ABOUTME: Prometheus metrics for the player session
// ABOUTME: Implements session.Recorder and exposes a scrape handler
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harper/radio-player/internal/domain/session"
)

var phases = []session.Phase{
	session.PhaseIdle,
	session.PhaseLoading,
	session.PhaseBuffering,
	session.PhasePlaying,
	session.PhaseError,
}

// Metrics contains all Prometheus metrics for the player
type Metrics struct {
	registry *prometheus.Registry

	Phase            *prometheus.GaugeVec
	PhaseTransitions *prometheus.CounterVec
	ActiveHandles    prometheus.Gauge
	HandlesOpened    prometheus.Counter
	HandlesReleased  prometheus.Counter
	EngineCallErrors *prometheus.CounterVec
	SwitchesIgnored  prometheus.Counter
}

// New creates the player metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Phase: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radioplayer_session_phase",
			Help: "1 for the current session phase, 0 otherwise",
		}, []string{"phase"}),
		PhaseTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "radioplayer_phase_transitions_total",
			Help: "Total number of transitions into each session phase",
		}, []string{"phase"}),
		ActiveHandles: f.NewGauge(prometheus.GaugeOpts{
			Name: "radioplayer_active_handles",
			Help: "Current number of loaded engine sounds",
		}),
		HandlesOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "radioplayer_handles_opened_total",
			Help: "Total number of engine sounds created",
		}),
		HandlesReleased: f.NewCounter(prometheus.CounterOpts{
			Name: "radioplayer_handles_released_total",
			Help: "Total number of engine sounds released",
		}),
		EngineCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "radioplayer_engine_call_errors_total",
			Help: "Total number of failed engine calls by call site and severity",
		}, []string{"call", "severity"}),
		SwitchesIgnored: f.NewCounter(prometheus.CounterOpts{
			Name: "radioplayer_switches_ignored_total",
			Help: "Total number of stream switches dropped because one was in progress",
		}),
	}
}

func (m *Metrics) PhaseChanged(p session.Phase) {
	for _, ph := range phases {
		v := 0.0
		if ph == p {
			v = 1
		}
		m.Phase.WithLabelValues(ph.String()).Set(v)
	}
	m.PhaseTransitions.WithLabelValues(p.String()).Inc()
}

func (m *Metrics) HandleOpened() {
	m.HandlesOpened.Inc()
	m.ActiveHandles.Inc()
}

func (m *Metrics) HandleReleased() {
	m.HandlesReleased.Inc()
	m.ActiveHandles.Dec()
}

func (m *Metrics) EngineCallFailed(site string, fatal bool) {
	severity := "logged"
	if fatal {
		severity = "fatal"
	}
	m.EngineCallErrors.WithLabelValues(site, severity).Inc()
}

func (m *Metrics) SwitchIgnored() {
	m.SwitchesIgnored.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
