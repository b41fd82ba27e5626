// Package protocol correlates bridge replies with issued commands and
// demultiplexes the interleaved record stream.
//
// The Correlator owns the reader side of the transport: it decodes every
// line, resolves the single pending command with its terminal Ack or
// ErrorRecord, routes DataFrames to the frame buffer and the optional
// frame tap, and delivers Events on a bounded channel. The wire protocol
// carries no request IDs, so correlation is strict FIFO with at most one
// command awaiting its reply at a time.
package protocol
