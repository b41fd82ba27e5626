// Package observability exposes protocol activity as Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sifilabs/sifi-bridge-go/internal/protocol"
)

// Metrics implements protocol.Observer on Prometheus instruments.
//
// All instruments are registered on the registerer handed to New, so
// several bridges in one process can keep separate registries.
type Metrics struct {
	commands       *prometheus.CounterVec
	commandLatency *prometheus.HistogramVec
	frames         *prometheus.CounterVec
	samples        *prometheus.CounterVec
	bufferDepth    prometheus.Gauge
	tapDropped     prometheus.Counter
	events         *prometheus.CounterVec
	eventsDropped  prometheus.Counter
	malformed      prometheus.Counter
	staleReplies   prometheus.Counter
}

var _ protocol.Observer = (*Metrics)(nil)

// New creates the bridge metric set and registers it on reg.
//
// Registering the same metric names twice on one registerer panics, so
// callers sharing a registry across bridges must create one Metrics and
// share it.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sifi_commands_total",
			Help: "Commands issued to the bridge, by verb and terminal status.",
		}, []string{"verb", "status"}),
		commandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sifi_command_latency_seconds",
			Help:    "Latency from command write to terminal reply.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"verb"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sifi_frames_routed_total",
			Help: "Data frames routed to the frame buffer, by channel.",
		}, []string{"channel"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sifi_frame_samples_total",
			Help: "Individual samples carried by routed frames, by channel.",
		}, []string{"channel"}),
		bufferDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sifi_frame_buffer_depth",
			Help: "Current number of frames waiting in the poll buffer.",
		}),
		tapDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sifi_frame_tap_dropped_total",
			Help: "Frames dropped for sink delivery because the tap was full.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sifi_events_total",
			Help: "Unsolicited bridge events delivered, by kind.",
		}, []string{"kind"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sifi_events_dropped_total",
			Help: "Events discarded because the event channel was full.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sifi_malformed_lines_total",
			Help: "Bridge output lines the decoder could not classify.",
		}),
		staleReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sifi_stale_replies_total",
			Help: "Terminal replies discarded with no matching command.",
		}),
	}

	reg.MustRegister(
		m.commands,
		m.commandLatency,
		m.frames,
		m.samples,
		m.bufferDepth,
		m.tapDropped,
		m.events,
		m.eventsDropped,
		m.malformed,
		m.staleReplies,
	)

	return m
}

func (m *Metrics) CommandSent(string) {}

func (m *Metrics) CommandResolved(verb, status string, elapsed time.Duration) {
	m.commands.WithLabelValues(verb, status).Inc()
	m.commandLatency.WithLabelValues(verb).Observe(elapsed.Seconds())
}

func (m *Metrics) FrameRouted(channelID string, sampleCount int) {
	m.frames.WithLabelValues(channelID).Inc()
	m.samples.WithLabelValues(channelID).Add(float64(sampleCount))
}

func (m *Metrics) FrameTapDropped() {
	m.tapDropped.Inc()
}

func (m *Metrics) EventRouted(kind string) {
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) EventDropped(string) {
	m.eventsDropped.Inc()
}

func (m *Metrics) MalformedLine() {
	m.malformed.Inc()
}

func (m *Metrics) StaleReply(string) {
	m.staleReplies.Inc()
}

func (m *Metrics) BufferDepth(depth int) {
	m.bufferDepth.Set(float64(depth))
}
