package errors

import (
	"errors"
	"fmt"
	"time"
)

// BridgeError is the base interface for all errors raised by this layer.
type BridgeError interface {
	error
	IsBridgeError() bool
}

// Compile-time verification that all error types implement BridgeError.
var (
	_ BridgeError = (*SpawnError)(nil)
	_ BridgeError = (*ChannelClosedError)(nil)
	_ BridgeError = (*ParseError)(nil)
	_ BridgeError = (*ConnectionLostError)(nil)
	_ BridgeError = (*TimeoutError)(nil)
	_ BridgeError = (*ProtocolError)(nil)
)

// IsBridgeError reports whether err (or anything it wraps) originated in
// this layer.
func IsBridgeError(err error) bool {
	var be BridgeError

	return errors.As(err, &be)
}

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotStarted indicates the bridge session has not been started.
	ErrNotStarted = errors.New("bridge not started")

	// ErrAlreadyStarted indicates Start was called twice on one session.
	ErrAlreadyStarted = errors.New("bridge already started")

	// ErrBridgeClosed indicates the session has been closed and cannot be
	// reused. Open a new session with New().
	ErrBridgeClosed = errors.New("bridge closed: sessions are single-use, open a new one with New()")

	// ErrCommandInFlight indicates a command was issued while another was
	// still awaiting its reply. Replies carry no request IDs, so overlapping
	// commands would corrupt correlation.
	ErrCommandInFlight = errors.New("command already in flight")

	// ErrCommandTimeout indicates a command reply did not arrive in time.
	ErrCommandTimeout = errors.New("command timeout")

	// ErrCorrelatorStopped indicates the response correlator has stopped.
	ErrCorrelatorStopped = errors.New("correlator stopped")

	// ErrStdinClosed indicates stdin was closed due to context cancellation.
	ErrStdinClosed = errors.New("stdin closed")
)

// SpawnError indicates the bridge executable could not be located or started.
type SpawnError struct {
	// SearchedPaths lists the locations probed during discovery. Empty when
	// the failure happened after discovery (exec, pipes, version handshake).
	SearchedPaths []string
	Err           error
}

func (e *SpawnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to spawn sifi_bridge: %v", e.Err)
	}

	return fmt.Sprintf("sifi_bridge executable not found in: %v", e.SearchedPaths)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *SpawnError) IsBridgeError() bool { return true }

// ChannelClosedError indicates a write after the pipe closed or the process
// exited.
type ChannelClosedError struct {
	Err error
}

func (e *ChannelClosedError) Error() string {
	return fmt.Sprintf("bridge channel closed: %v", e.Err)
}

func (e *ChannelClosedError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *ChannelClosedError) IsBridgeError() bool { return true }

// ParseError indicates a line from the bridge did not match the wire grammar.
// This error preserves the offending raw line. It is isolated to the single
// record: the reader logs it and continues.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse bridge output %q: %s", e.Line, e.Reason)
}

// IsBridgeError implements BridgeError.
func (e *ParseError) IsBridgeError() bool { return true }

// ConnectionLostError indicates the bridge process exited while the session
// was still in use. All pending and subsequent commands on the session fail
// with this error.
type ConnectionLostError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ConnectionLostError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bridge connection lost (exit %d): %v", e.ExitCode, e.Err)
	}

	if e.Stderr != "" {
		return fmt.Sprintf("bridge connection lost (exit %d): %s", e.ExitCode, e.Stderr)
	}

	return fmt.Sprintf("bridge connection lost (exit %d)", e.ExitCode)
}

func (e *ConnectionLostError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *ConnectionLostError) IsBridgeError() bool { return true }

// TimeoutError indicates a command's reply did not arrive within the
// configured bound. The command may still complete on the bridge; its late
// reply is discarded by the correlator.
type TimeoutError struct {
	Verb    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no reply to %q within %v", e.Verb, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return ErrCommandTimeout
}

// IsBridgeError implements BridgeError.
func (e *TimeoutError) IsBridgeError() bool { return true }

// ProtocolError carries an explicit ERR record returned by the bridge. The
// code and message are the bridge's own; nothing is retried automatically.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("bridge error %s: %s", e.Code, e.Message)
}

// IsBridgeError implements BridgeError.
func (e *ProtocolError) IsBridgeError() bool { return true }
