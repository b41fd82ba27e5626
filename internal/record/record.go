package record

import (
	"github.com/sifilabs/sifi-bridge-go/internal/errors"
)

// Record represents any decoded line from the bridge.
// Use type assertion or type switch to determine the concrete type.
type Record interface {
	RecordType() string
}

// Compile-time verification that all record types implement Record.
var (
	_ Record = (*Ack)(nil)
	_ Record = (*ErrorRecord)(nil)
	_ Record = (*DataFrame)(nil)
	_ Record = (*Event)(nil)
	_ Record = (*Malformed)(nil)
)

// Ack is the bridge's terminal reply to a successful command.
type Ack struct {
	// Verb echoes the command the reply belongs to. Replies carry no request
	// IDs; the correlator matches on this under the FIFO convention.
	Verb    string
	Status  string
	Payload []string
}

// RecordType implements the Record interface.
func (r *Ack) RecordType() string { return "ack" }

// StatusOK is the status token the bridge uses for accepted commands.
const StatusOK = "ok"

// OK reports whether the bridge accepted the command.
func (r *Ack) OK() bool { return r.Status == StatusOK }

// ErrorRecord is the bridge's terminal reply for a rejected command or a
// device fault. Code and Message are the bridge's own.
type ErrorRecord struct {
	Code    string
	Message string
}

// RecordType implements the Record interface.
func (r *ErrorRecord) RecordType() string { return "error" }

// Err converts the record into the error surfaced to callers.
func (r *ErrorRecord) Err() *errors.ProtocolError {
	return &errors.ProtocolError{Code: r.Code, Message: r.Message}
}

// DataFrame is one packet of streamed sensor samples.
type DataFrame struct {
	ChannelID string
	// Timestamp is the bridge's own clock for the first sample in the frame.
	Timestamp int64
	Samples   []float64
}

// RecordType implements the Record interface.
func (r *DataFrame) RecordType() string { return "data" }

// Event is an unsolicited notification from the bridge, such as a device
// disconnect, a battery report, or memory download progress.
type Event struct {
	Kind    string
	Payload []string
}

// RecordType implements the Record interface.
func (r *Event) RecordType() string { return "event" }

// Event kinds observed from the bridge.
const (
	EventDisconnected = "disconnected"
	EventBattery      = "battery"
	EventMemory       = "memory"
	EventStatus       = "status"
)

// Malformed is produced when a line does not match the wire grammar. The
// reader loop logs it and continues; a single corrupt line never aborts the
// session.
type Malformed struct {
	Line string
	Err  *errors.ParseError
}

// RecordType implements the Record interface.
func (r *Malformed) RecordType() string { return "malformed" }
