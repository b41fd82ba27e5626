package sifibridge

import (
	"log/slog"

	"github.com/sifilabs/sifi-bridge-go/internal/recorder"
)

// Re-export recording sinks from internal/recorder.

// FrameSink receives streamed data frames teed off the polling path.
// Register sinks with WithFrameSink.
type FrameSink = recorder.FrameSink

// InfluxConfig configures the InfluxDB v2 sink.
type InfluxConfig = recorder.InfluxConfig

// MQTTConfig configures the MQTT sink.
type MQTTConfig = recorder.MQTTConfig

// InfluxSink writes frames to InfluxDB v2 using the non-blocking batched
// write API.
type InfluxSink = recorder.InfluxSink

// MQTTSink publishes each frame as JSON on a per-channel topic.
type MQTTSink = recorder.MQTTSink

// JSONLSink appends one JSON object per frame to a file.
type JSONLSink = recorder.JSONLSink

// NewInfluxSink connects to InfluxDB and returns a batching sink.
// A nil logger disables the sink's own logging.
func NewInfluxSink(log *slog.Logger, cfg InfluxConfig) (*InfluxSink, error) {
	if log == nil {
		log = NopLogger()
	}

	return recorder.NewInfluxSink(log, cfg)
}

// NewMQTTSink connects to the broker and returns a publishing sink.
func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	return recorder.NewMQTTSink(cfg)
}

// NewJSONLSink creates or truncates path and returns a file sink.
func NewJSONLSink(path string) (*JSONLSink, error) {
	return recorder.NewJSONLSink(path)
}
