package gateway

import "github.com/prometheus/client_golang/prometheus"

var (
	activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_connections",
		Help: "Active websocket connections",
	})
	emissions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ws_emissions_total",
		Help: "Broadcast emissions pushed through the hub",
	})
)

func init() {
	prometheus.MustRegister(activeConnections, emissions)
}
