package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Collector struct {
	ActiveConnections prometheus.Gauge
	RoomsCreated      prometheus.Counter
	RoomsDeleted      prometheus.Counter
	ChatMessages      prometheus.Counter
	BroadcastEvents   prometheus.Counter
	MeshSignals       prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "watchroom_active_connections",
			Help: "Number of live websocket connections",
		}),
		RoomsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchroom_rooms_created_total",
			Help: "Total number of rooms created",
		}),
		RoomsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchroom_rooms_deleted_total",
			Help: "Total number of rooms explicitly deleted",
		}),
		ChatMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchroom_chat_messages_total",
			Help: "Total number of chat messages sequenced",
		}),
		BroadcastEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchroom_broadcast_events_total",
			Help: "Total number of events fanned out to room members",
		}),
		MeshSignals: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchroom_mesh_signals_total",
			Help: "Total number of relayed mesh signaling payloads",
		}),
	}
}
