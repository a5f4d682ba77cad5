package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks open sockets by kind (race/leaderboard).
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_active_connections",
			Help: "Currently open websocket connections by kind",
		},
		[]string{"kind"},
	)

	// InboundMessages counts parsed client messages by kind and type.
	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_inbound_messages_total",
			Help: "Inbound websocket messages by kind and message type",
		},
		[]string{"kind", "type"},
	)

	// BroadcastSends counts leaderboard fan-out sends by tier.
	BroadcastSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_broadcast_sends_total",
			Help: "Leaderboard updates sent, by subscriber tier",
		},
		[]string{"tier"},
	)

	// RacesStarted counts countdown -> racing transitions.
	RacesStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_races_started_total",
			Help: "Races that reached the racing status",
		},
	)

	// RacesFinished counts racing -> finished transitions.
	RacesFinished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_races_finished_total",
			Help: "Races that reached the finished status",
		},
	)
)
