// Package telemetry exports heartbeat and state machine metrics to Prometheus.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/heartlink/pkg/wire"
)

const namespace = "heartlink"

// Metrics implements heartlink.Recorder on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	heartbeats       *prometheus.CounterVec
	routeFailures    *prometheus.CounterVec
	malformedFrames  *prometheus.CounterVec
	linkTransitions  *prometheus.CounterVec
	peerUp           *prometheus.GaugeVec
	stateTransitions *prometheus.CounterVec
	currentState     *prometheus.GaugeVec
	buildInfo        *prometheus.GaugeVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		heartbeats: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "heartbeats_total",
				Help:      "Heartbeat frames by direction and tag.",
			},
			[]string{"direction", "tag"},
		),
		routeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "route_failures_total",
				Help:      "Frames that could not be routed to a peer.",
			},
			[]string{"peer"},
		),
		malformedFrames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "malformed_frames_total",
				Help:      "Empty or unknown heartbeat payloads dropped.",
			},
			[]string{"peer"},
		),
		linkTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "link_transitions_total",
				Help:      "LinkUp and LinkDown transitions per peer.",
			},
			[]string{"peer", "direction"},
		),
		peerUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "peer_up",
				Help:      "1 while the peer link is up.",
			},
			[]string{"peer"},
		),
		stateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_entries_total",
				Help:      "State machine entries by role and state.",
			},
			[]string{"role", "state"},
		),
		currentState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state",
				Help:      "1 for the current state of each role.",
			},
			[]string{"role", "state"},
		),
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "build_info",
				Help:      "Build info (constant 1, labeled by version).",
			},
			[]string{"version"},
		),
	}

	startTime := time.Now()
	uptime := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)

	m.Registry.MustRegister(
		m.heartbeats, m.routeFailures, m.malformedFrames, m.linkTransitions,
		m.peerUp, m.stateTransitions, m.currentState, m.buildInfo, uptime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry. Mount it with mux.Handle("/metrics", m.Handler()).
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup.
func (m *Metrics) SetBuildInfo(version string) {
	m.buildInfo.WithLabelValues(version).Set(1)
}

// WatchQueue exports the event queue depth, sampled on scrape.
func (m *Metrics) WatchQueue(depth func() int) {
	m.Registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_queue_depth",
			Help:      "Events waiting for the state loop.",
		},
		func() float64 { return float64(depth()) },
	))
}

// WatchLogDrops exports the number of log lines the async sink dropped,
// sampled on scrape.
func (m *Metrics) WatchLogDrops(missed func() int64) {
	m.Registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_lines_dropped_total",
			Help:      "Log lines dropped by the async log buffer.",
		},
		func() float64 { return float64(missed()) },
	))
}

// HeartbeatSent implements heartbeat.Recorder.
func (m *Metrics) HeartbeatSent(_ string, tag wire.Tag) {
	m.heartbeats.WithLabelValues("out", tag.String()).Inc()
}

// HeartbeatReceived implements heartbeat.Recorder.
func (m *Metrics) HeartbeatReceived(_ string, tag wire.Tag) {
	m.heartbeats.WithLabelValues("in", tag.String()).Inc()
}

// RouteFailed implements heartbeat.Recorder.
func (m *Metrics) RouteFailed(peer string) {
	m.routeFailures.WithLabelValues(peer).Inc()
}

// MalformedFrame implements heartbeat.Recorder.
func (m *Metrics) MalformedFrame(peer string) {
	m.malformedFrames.WithLabelValues(peer).Inc()
}

// LinkChanged implements heartbeat.Recorder.
func (m *Metrics) LinkChanged(peer string, up bool) {
	dir, v := "down", 0.0
	if up {
		dir, v = "up", 1.0
	}
	m.linkTransitions.WithLabelValues(peer, dir).Inc()
	m.peerUp.WithLabelValues(peer).Set(v)
}

// StateEntered implements machine.Recorder.
func (m *Metrics) StateEntered(role, state string) {
	m.stateTransitions.WithLabelValues(role, state).Inc()
	// the heartbeat machines only have two states
	for _, s := range []string{"Startup", "Online"} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.currentState.WithLabelValues(role, s).Set(v)
	}
}
