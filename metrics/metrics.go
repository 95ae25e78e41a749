package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Transcripts    *prometheus.CounterVec
	Restarts       prometheus.Counter
	ReplayedChunks prometheus.Counter
	Anchor         prometheus.Gauge
}

// New registers every metric on a fresh registry. clients reports the
// number of connected display pages.
func New(clients func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "subtitles_clients",
		Help: "Connected caption pages",
	}, clients)

	return &Metrics{
		registry: reg,
		Transcripts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subtitles_transcripts_total",
			Help: "Transcripts received from the recognizer",
		}, []string{"final"}),
		Restarts: factory.NewCounter(prometheus.CounterOpts{
			Name: "subtitles_session_restarts_total",
			Help: "Recognition sessions rotated",
		}),
		ReplayedChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "subtitles_replayed_chunks_total",
			Help: "Audio chunks replayed into a new session",
		}),
		Anchor: factory.NewGauge(prometheus.GaugeOpts{
			Name: "subtitles_anchor",
			Help: "Current caption anchor (0 bottom, 1 top)",
		}),
	}
}

func (m *Metrics) Transcript(final bool) {
	label := "false"
	if final {
		label = "true"
	}
	m.Transcripts.WithLabelValues(label).Inc()
}

func (m *Metrics) Restart(replayed int) {
	m.Restarts.Inc()
	m.ReplayedChunks.Add(float64(replayed))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
