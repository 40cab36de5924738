// Package metrics exposes Prometheus instrumentation for the capture,
// streaming and recording paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StreamClients tracks currently connected MJPEG clients.
	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camnode",
		Subsystem: "stream",
		Name:      "clients",
		Help:      "Number of connected MJPEG stream clients",
	})

	// StreamFrames counts produced frames by source (live or fallback).
	StreamFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camnode",
		Subsystem: "stream",
		Name:      "frames_total",
		Help:      "Frames written to stream clients",
	}, []string{"source"})

	// DeviceSwitches counts capture source switches by result.
	DeviceSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camnode",
		Subsystem: "capture",
		Name:      "switches_total",
		Help:      "Capture device switch attempts",
	}, []string{"result"})

	// RecordingActive is 1 while a recording session is active.
	RecordingActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camnode",
		Subsystem: "recording",
		Name:      "active",
		Help:      "Whether a recording session is currently active",
	})

	// RecordingsTotal counts finished recording sessions by result.
	RecordingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camnode",
		Subsystem: "recording",
		Name:      "sessions_total",
		Help:      "Completed recording sessions",
	}, []string{"result"})

	// AudioRelayRestarts counts audio relay subprocess restarts.
	AudioRelayRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camnode",
		Subsystem: "audio",
		Name:      "relay_restarts_total",
		Help:      "Audio relay subprocess restarts",
	})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
