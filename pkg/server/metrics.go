package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the server's operational gauges and counters.
type Metrics struct {
	RoomsOpen        prometheus.Gauge
	SessionsActive   prometheus.Gauge
	ConnectionsOpen  prometheus.Gauge
	MessagesReceived prometheus.Counter
	MessagesSent     prometheus.Counter
	FramesDropped    prometheus.Counter
	MatchesStarted   prometheus.Counter
	MatchesFinished  prometheus.Counter
	RoomsSwept       prometheus.Counter
}

// NewMetrics creates and registers the metric set. A nil registerer skips
// registration, which keeps tests independent of the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RoomsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "heatracer_rooms_open",
			Help: "Number of open rooms.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "heatracer_sessions_active",
			Help: "Number of live sessions.",
		}),
		ConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "heatracer_connections_open",
			Help: "Number of open websocket connections.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heatracer_messages_received_total",
			Help: "Inbound messages decoded.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heatracer_messages_sent_total",
			Help: "Outbound messages queued.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heatracer_frames_dropped_total",
			Help: "Frames dropped for rate or queue overflow.",
		}),
		MatchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heatracer_matches_started_total",
			Help: "Matches started.",
		}),
		MatchesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heatracer_matches_finished_total",
			Help: "Matches finished.",
		}),
		RoomsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heatracer_rooms_swept_total",
			Help: "Stale rooms removed by the periodic sweep.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.RoomsOpen, m.SessionsActive, m.ConnectionsOpen,
			m.MessagesReceived, m.MessagesSent, m.FramesDropped,
			m.MatchesStarted, m.MatchesFinished, m.RoomsSwept,
		)
	}
	return m
}
