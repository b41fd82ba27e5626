package protocol

import "time"

// Observer receives protocol activity signals for metrics collection.
//
// The reader loop calls these methods inline, so implementations must be
// cheap and safe for concurrent use.
type Observer interface {
	// CommandSent is called when a command line is handed to the transport.
	CommandSent(verb string)

	// CommandResolved is called when a command receives its terminal reply
	// or fails. Status is the ack status, the error code, or "timeout".
	CommandResolved(verb, status string, elapsed time.Duration)

	// FrameRouted is called for every data frame routed to the buffer.
	FrameRouted(channelID string, sampleCount int)

	// FrameTapDropped is called when the frame tap is full and a frame is
	// dropped for sink delivery. The polling path is unaffected.
	FrameTapDropped()

	// EventRouted is called for every event delivered to the event channel.
	EventRouted(kind string)

	// EventDropped is called when the event channel is full and the oldest
	// event is discarded.
	EventDropped(kind string)

	// MalformedLine is called for every line the decoder could not classify.
	MalformedLine()

	// StaleReply is called when a terminal reply arrives with no matching
	// command awaiting it.
	StaleReply(verb string)

	// BufferDepth reports the frame buffer depth after a push.
	BufferDepth(depth int)
}

// NopObserver is an Observer that discards all signals.
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) CommandSent(string)                            {}
func (NopObserver) CommandResolved(string, string, time.Duration) {}
func (NopObserver) FrameRouted(string, int)                       {}
func (NopObserver) FrameTapDropped()                              {}
func (NopObserver) EventRouted(string)                            {}
func (NopObserver) EventDropped(string)                           {}
func (NopObserver) MalformedLine()                                {}
func (NopObserver) StaleReply(string)                             {}
func (NopObserver) BufferDepth(int)                               {}
