package ws

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	connectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Currently open websocket connections",
		},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_frames_received_total",
			Help: "Frames received from clients, by frame type",
		},
		[]string{"type"},
	)
	commitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_commits_total",
			Help: "Writes committed through websocket actions",
		},
	)
	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_rejections_total",
			Help: "Writes refused through websocket actions, by reason",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(connectionsActive)
	prometheus.MustRegister(framesReceived)
	prometheus.MustRegister(commitsTotal)
	prometheus.MustRegister(rejectionsTotal)
}
