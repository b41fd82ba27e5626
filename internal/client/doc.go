// Package client implements the stateful Client that owns one bridge session.
//
// The client package provides the orchestration layer over a spawned
// sifi_bridge process. It wires the subprocess transport to the protocol
// correlator and exposes the session as typed operations:
//   - Device discovery, connection, and managed-device bookkeeping
//   - Acquisition configuration (channels, sample rates, filters, radio)
//   - Streaming control with a polling data path and recording sinks
//   - Graceful shutdown with a bounded quit-then-kill ladder
//
// The Client uses the protocol package for reply correlation and stream
// demultiplexing and manages its own goroutine for feeding recording sinks.
package client
