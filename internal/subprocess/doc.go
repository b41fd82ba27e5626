// Package subprocess provides the pipe-based transport for the sifi_bridge
// process.
//
// This package implements the Transport interface by spawning sifi_bridge as
// a child process and exchanging newline-terminated text lines over
// stdin/stdout. It owns the process lifecycle: spawn, liveness, line
// framing in both directions, stderr capture, and termination.
package subprocess
