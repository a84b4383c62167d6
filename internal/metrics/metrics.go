// Package metrics holds the relay's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatverso_relay_connections",
		Help: "Websocket connections held by this relay instance.",
	})

	EventsIn = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatverso_relay_events_in_total",
		Help: "Inbound client events by type.",
	}, []string{"type"})

	Broadcasts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatverso_relay_broadcasts_total",
		Help: "Events published to the bus by type.",
	}, []string{"type"})

	Dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatverso_relay_dropped_total",
		Help: "Frames dropped or connections closed, by reason.",
	}, []string{"reason"})
)

// Register adds the relay collectors to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{Connections, EventsIn, Broadcasts, Dropped} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}
