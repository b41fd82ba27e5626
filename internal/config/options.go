package config

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sifilabs/sifi-bridge-go/internal/record"
	"github.com/sifilabs/sifi-bridge-go/internal/recorder"
)

// Defaults applied by the client when the corresponding option is zero.
const (
	// DefaultCommandTimeout bounds the wait for a command's terminal reply.
	DefaultCommandTimeout = 5 * time.Second

	// DefaultQuitGrace bounds the wait for the bridge to exit after the
	// quit command before the process is killed.
	DefaultQuitGrace = 2 * time.Second

	// DefaultEventBuffer is the capacity of the unsolicited-event channel.
	// When it fills, the oldest event is dropped with a warning.
	DefaultEventBuffer = 64
)

// Options configures a bridge session.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// ExecPath is the explicit path to the sifi_bridge executable.
	// If empty, the executable is searched in $SIFI_BRIDGE_PATH, $PATH, and
	// common install directories.
	ExecPath string

	// Args are extra arguments appended to the bridge invocation.
	Args []string

	// Cwd sets the working directory for the bridge process.
	Cwd string

	// Env provides additional environment variables for the bridge process.
	Env map[string]string

	// CommandTimeout bounds each command's reply wait.
	// Zero means DefaultCommandTimeout.
	CommandTimeout time.Duration

	// QuitGrace bounds the graceful-shutdown wait between sending quit and
	// killing the process. Zero means DefaultQuitGrace.
	QuitGrace time.Duration

	// SkipVersionCheck disables the pre-spawn --version handshake.
	// The wire grammar is a versioned contract; skip at your own risk.
	SkipVersionCheck bool

	// MaxBufferSize sets the maximum bytes for one stdout line.
	// If nil, uses the transport default.
	MaxBufferSize *int

	// Stderr is a callback invoked with each stderr line from the bridge.
	// Stderr is diagnostic only and never parsed for protocol meaning.
	Stderr func(string)

	// OnEvent is invoked from the reader path for each unsolicited event,
	// before the event is queued on the Events channel. It must not block.
	OnEvent func(*record.Event)

	// EventBuffer is the capacity of the Events channel.
	// Zero means DefaultEventBuffer.
	EventBuffer int

	// Sinks receive every data frame after it is buffered. Sink errors are
	// logged and never fail the session.
	Sinks []recorder.FrameSink

	// Metrics registers the session's Prometheus instruments when set.
	// Metric names are fixed, so two sessions sharing one registerer will
	// collide; give each its own registry.
	Metrics prometheus.Registerer

	// Transport allows injecting a custom transport implementation.
	// If nil, the default subprocess transport is created automatically.
	Transport Transport
}
