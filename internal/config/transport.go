// Package config provides configuration types for the bridge layer.
package config

import "context"

// Transport defines the interface for bridge communication: a line-oriented,
// bidirectional byte channel. Implement this to provide custom transports for
// testing, mocking, or alternative channels.
//
// The default implementation is subprocess.PipeTransport which spawns the
// sifi_bridge executable. Custom transports can be injected via
// Options.Transport.
type Transport interface {
	// Start initializes the transport and prepares it for communication.
	// This is called before any lines are written or read.
	Start(ctx context.Context) error

	// ReadLines returns channels for receiving output lines and errors.
	// The line channel yields one value per newline-terminated line, in the
	// exact order the process emitted them. Both channels are closed at
	// end-of-stream; a clean process exit closes them without an error.
	ReadLines(ctx context.Context) (<-chan string, <-chan error)

	// WriteLine appends a line terminator, writes the line, and flushes.
	// This method must be safe for concurrent use.
	WriteLine(ctx context.Context, line string) error

	// Close terminates the transport and releases the process handle.
	// It's safe to call Close multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool

	// Alive is a non-blocking liveness check of the underlying process.
	// Transports without a process report their ready state.
	Alive() bool

	// EndInput signals that no more input will be sent.
	// For process-based transports, this closes stdin.
	EndInput() error
}
