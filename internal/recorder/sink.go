// Package recorder provides egress sinks for streamed data frames.
//
// A FrameSink consumes frames after the demultiplexer has buffered them for
// the caller; sinks never sit on the protocol read path. The package ships
// sinks for InfluxDB v2 (batched, non-blocking), MQTT (per-channel topics),
// and newline-delimited JSON files.
package recorder

import (
	"errors"

	"github.com/sifilabs/sifi-bridge-go/internal/record"
)

// FrameSink receives data frames teed off the streaming path.
//
// WriteFrame is invoked from a single goroutine owned by the client; a sink
// that falls behind causes frames to be dropped for sinks only, never for the
// polling caller. Close flushes buffered output and releases resources.
type FrameSink interface {
	WriteFrame(frame *record.DataFrame) error
	Close() error
}

// Sentinel errors shared by the sink implementations.
var (
	// ErrNotConnected indicates an operation on a closed or unconnected sink.
	ErrNotConnected = errors.New("recorder: sink not connected")

	// ErrConnectFailed indicates the initial connection attempt failed.
	ErrConnectFailed = errors.New("recorder: connection failed")

	// ErrWriteFailed indicates a frame could not be written.
	ErrWriteFailed = errors.New("recorder: write failed")
)

// MultiSink fans one frame out to several sinks. Write errors are collected
// with errors.Join so one failing sink does not starve the others.
type MultiSink struct {
	sinks []FrameSink
}

// NewMultiSink combines sinks into one FrameSink.
func NewMultiSink(sinks ...FrameSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// WriteFrame implements FrameSink.
func (m *MultiSink) WriteFrame(frame *record.DataFrame) error {
	var errs []error

	for _, s := range m.sinks {
		if err := s.WriteFrame(frame); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Close implements FrameSink. Every sink is closed even if an earlier one
// fails.
func (m *MultiSink) Close() error {
	var errs []error

	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
