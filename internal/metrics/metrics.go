// Package metrics exposes the server's Prometheus counters and gauges,
// grounded on the pack's own metrics package rather than the global
// promauto registry: an explicit *prometheus.Registry keeps every
// exported series scoped to this process and easy to unit test.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every counter/gauge the scheduler and admin surface
// update. Fields are exported so the scheduler can call .Inc()/.Add()
// directly without a layer of wrapper methods per metric.
type Registry struct {
	registry *prometheus.Registry

	ClientsConnected prometheus.Gauge
	VideoBytesSent   prometheus.Counter
	AudioBytesSent   prometheus.Counter
	FramesDropped    prometheus.Counter
}

// New creates and registers the server's metrics.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		registry: reg,
		ClientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamcast_clients_connected",
			Help: "Number of currently connected clients.",
		}),
		VideoBytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamcast_video_bytes_sent_total",
			Help: "Total video payload bytes sent to clients.",
		}),
		AudioBytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamcast_audio_bytes_sent_total",
			Help: "Total audio payload bytes sent to clients.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamcast_frames_dropped_total",
			Help: "Total frames dropped due to a full carrier queue.",
		}),
	}

	reg.MustRegister(m.ClientsConnected, m.VideoBytesSent, m.AudioBytesSent, m.FramesDropped)
	return m
}

// Handler returns the HTTP handler that serves this registry's series.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
