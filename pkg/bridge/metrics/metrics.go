// Package metrics exposes Prometheus instrumentation for the bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bridge's Prometheus collectors.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	SessionsTotal   prometheus.Counter
	Utterances      prometheus.Counter
	StageFailures   *prometheus.CounterVec
	FramesSent      prometheus.Counter
	BargeIns        prometheus.Counter
	PipelineSeconds prometheus.Histogram
}

// New registers the collectors with reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicebridge_active_sessions",
			Help: "Number of media streams currently connected.",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_sessions_total",
			Help: "Total media streams handled.",
		}),
		Utterances: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_utterances_total",
			Help: "Total caller utterances segmented and sent to the pipeline.",
		}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_pipeline_stage_failures_total",
			Help: "Pipeline failures by stage.",
		}, []string{"stage"}),
		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_audio_frames_sent_total",
			Help: "Outbound audio frames written to media streams.",
		}),
		BargeIns: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_barge_ins_total",
			Help: "Times a caller interrupted synthesized playback.",
		}),
		PipelineSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebridge_pipeline_duration_seconds",
			Help:    "End-to-end utterance pipeline latency.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
	}
}
