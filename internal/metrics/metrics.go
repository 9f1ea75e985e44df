// Package metrics holds the Prometheus collectors for the messaging core.
// Collectors are package-level and registered once at init; the handler is
// mounted at /metrics by the server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backstage_ws_active_sessions",
		Help: "Number of live websocket sessions.",
	})

	OpenRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backstage_ws_open_rooms",
		Help: "Number of conversation rooms with at least one joined session.",
	})

	BroadcastsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backstage_ws_broadcasts_total",
		Help: "Room broadcasts issued.",
	})

	DroppedEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backstage_ws_dropped_events_total",
		Help: "Events dropped because a session's send buffer was full.",
	})

	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backstage_messages_sent_total",
		Help: "Messages persisted and broadcast.",
	})

	PersistTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backstage_persist_timeouts_total",
		Help: "Writes that failed closed on the persistence timeout.",
	})

	FanoutDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backstage_fanout_delivered_total",
		Help: "Fan-out events delivered to live sessions.",
	})

	FanoutOffline = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backstage_fanout_offline_total",
		Help: "Fan-out recipients with no live session, handed to push.",
	})
)

func init() {
	prometheus.MustRegister(
		ActiveSessions,
		OpenRooms,
		BroadcastsTotal,
		DroppedEvents,
		MessagesSent,
		PersistTimeouts,
		FanoutDelivered,
		FanoutOffline,
	)
}
