package ws

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RoomsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "game_rooms_active",
			Help: "Number of live game rooms",
		},
	)
	ConnectionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "game_connections_active",
			Help: "Attached websocket connections by role",
		},
		[]string{"role"},
	)
	MovesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_moves_total",
			Help: "Accepted gameplay moves",
		},
		[]string{"variant", "result"},
	)
	RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_rejections_total",
			Help: "Moves rejected by rule validation",
		},
		[]string{"code"},
	)
	PersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "game_trials_persist_failures_total",
			Help: "Trial/summary writes that failed (gameplay is unaffected)",
		},
	)
	ConnectionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_connections_rejected_total",
			Help: "Websocket attaches refused with a policy close code",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(RoomsActive)
	prometheus.MustRegister(ConnectionsActive)
	prometheus.MustRegister(MovesTotal)
	prometheus.MustRegister(RejectionsTotal)
	prometheus.MustRegister(PersistFailures)
	prometheus.MustRegister(ConnectionsRejected)
}
