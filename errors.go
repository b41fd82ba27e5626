package sifibridge

import "github.com/sifilabs/sifi-bridge-go/internal/errors"

// Re-export error types from internal package

// SpawnError indicates the sifi_bridge executable was not found or could
// not be started.
type SpawnError = errors.SpawnError

// ConnectionLostError indicates the bridge process exited while the session
// was still in use. It carries the exit code and captured stderr.
type ConnectionLostError = errors.ConnectionLostError

// TimeoutError indicates a command's reply did not arrive within the
// configured bound.
type TimeoutError = errors.TimeoutError

// ProtocolError carries an explicit error reply from the bridge.
type ProtocolError = errors.ProtocolError

// ParseError indicates a bridge output line did not match the wire grammar.
type ParseError = errors.ParseError

// ChannelClosedError indicates a write after the pipe closed or the process
// exited.
type ChannelClosedError = errors.ChannelClosedError

// BridgeError is the base interface for all errors raised by this layer.
type BridgeError = errors.BridgeError

// IsBridgeError reports whether err (or anything it wraps) originated in
// this layer.
func IsBridgeError(err error) bool {
	return errors.IsBridgeError(err)
}

// Re-export sentinel errors from internal package.
var (
	// ErrNotStarted indicates the bridge session has not been started.
	ErrNotStarted = errors.ErrNotStarted

	// ErrAlreadyStarted indicates Start was called twice on one session.
	ErrAlreadyStarted = errors.ErrAlreadyStarted

	// ErrBridgeClosed indicates the session has been closed and cannot be
	// reused.
	ErrBridgeClosed = errors.ErrBridgeClosed

	// ErrCommandInFlight indicates a command was issued while another was
	// still awaiting its reply.
	ErrCommandInFlight = errors.ErrCommandInFlight

	// ErrCommandTimeout indicates a command reply did not arrive in time.
	ErrCommandTimeout = errors.ErrCommandTimeout
)
