package sifibridge

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures Options using the functional options pattern.
// This is the primary option type for configuring bridge sessions.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithExecutable sets the explicit path to the sifi_bridge executable.
// If not set, the executable is searched in $SIFI_BRIDGE_PATH, $PATH, and
// common install directories.
func WithExecutable(path string) Option {
	return func(o *Options) {
		o.ExecPath = path
	}
}

// WithArgs appends extra arguments to the bridge invocation.
func WithArgs(args ...string) Option {
	return func(o *Options) {
		o.Args = args
	}
}

// WithCwd sets the working directory for the bridge process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithEnv provides additional environment variables for the bridge process.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// ===== Timing =====

// WithCommandTimeout bounds each command's reply wait.
// The default is 5 seconds.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.CommandTimeout = timeout
	}
}

// WithQuitGrace bounds the graceful-shutdown wait between sending quit and
// killing the process. The default is 2 seconds.
func WithQuitGrace(grace time.Duration) Option {
	return func(o *Options) {
		o.QuitGrace = grace
	}
}

// ===== Process Plumbing =====

// WithoutVersionCheck disables the pre-spawn --version handshake.
// The wire grammar is a versioned contract; skip at your own risk.
func WithoutVersionCheck() Option {
	return func(o *Options) {
		o.SkipVersionCheck = true
	}
}

// WithMaxBufferSize sets the maximum bytes for one bridge stdout line.
func WithMaxBufferSize(size int) Option {
	return func(o *Options) {
		o.MaxBufferSize = &size
	}
}

// WithStderr sets a callback for handling bridge stderr lines.
// Stderr is diagnostic only and is never parsed for protocol meaning.
func WithStderr(handler func(string)) Option {
	return func(o *Options) {
		o.Stderr = handler
	}
}

// WithTransport injects a custom transport implementation.
// The transport must implement the Transport interface.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}

// ===== Events =====

// WithOnEvent sets a callback invoked for each unsolicited event before it
// is queued on the Events channel. It runs on the reader path and must not
// block.
func WithOnEvent(callback func(*Event)) Option {
	return func(o *Options) {
		o.OnEvent = callback
	}
}

// WithEventBuffer sets the capacity of the Events channel. When it fills,
// the oldest event is dropped so a late consumer sees the newest state.
// The default is 64.
func WithEventBuffer(size int) Option {
	return func(o *Options) {
		o.EventBuffer = size
	}
}

// ===== Recording =====

// WithFrameSink adds sinks that receive every streamed frame after it is
// buffered for the polling path. Sink errors are logged and never fail the
// session. A slow sink drops frames for sinks only, never for PollData.
func WithFrameSink(sinks ...FrameSink) Option {
	return func(o *Options) {
		o.Sinks = append(o.Sinks, sinks...)
	}
}

// ===== Observability =====

// WithMetrics registers the session's Prometheus instruments on reg.
// Metric names are fixed, so give each session its own registry.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.Metrics = reg
	}
}
