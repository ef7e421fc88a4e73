package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

var rpcRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dungeon_rpc_requests_total",
		Help: "Total number of RPCs by method and status code",
	},
	[]string{"method", "code"},
)

var rpcDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "dungeon_rpc_duration_seconds",
		Help:    "RPC handling duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method"},
)

var websocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "dungeon_websocket_clients",
	Help: "Number of connected WebSocket clients",
})

// RegisterMetrics registers server metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(rpcRequests)
	reg.MustRegister(rpcDuration)
	reg.MustRegister(websocketClients)
}
