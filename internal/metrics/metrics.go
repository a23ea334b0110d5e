// Package metrics holds the Prometheus instruments for the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Registrations     prometheus.Counter
	Logins            prometheus.Counter
	CallsOriginated   prometheus.Counter
	CallsConnected    prometheus.Counter
	CallsEnded        prometheus.Counter
	MediaFailures     prometheus.Counter
	AssetLoadFailures prometheus.Counter
	RecordsWritten    prometheus.Counter
	ConnectedClients  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.Registrations = counter(m.registry, "ayursetu_user_registrations_total", "Successful user signups.")
	m.Logins = counter(m.registry, "ayursetu_logins_total", "Successful logins.")
	m.CallsOriginated = counter(m.registry, "ayursetu_calls_originated_total", "Calls placed.")
	m.CallsConnected = counter(m.registry, "ayursetu_calls_connected_total", "Calls that reached the connected state.")
	m.CallsEnded = counter(m.registry, "ayursetu_calls_ended_total", "Calls torn down.")
	m.MediaFailures = counter(m.registry, "ayursetu_media_failures_total", "Denied or failed media acquisitions.")
	m.AssetLoadFailures = counter(m.registry, "ayursetu_asset_load_failures_total", "3D assets that failed to load.")
	m.RecordsWritten = counter(m.registry, "ayursetu_records_written_total", "Clinical records appended.")
	m.ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ayursetu_connected_clients",
		Help: "Currently connected signaling clients.",
	})
	m.registry.MustRegister(m.ConnectedClients)
	return m
}

func counter(reg *prometheus.Registry, name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	reg.MustRegister(c)
	return c
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
