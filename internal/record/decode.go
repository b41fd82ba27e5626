package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sifilabs/sifi-bridge-go/internal/errors"
)

// Record prefixes on the wire. Any other leading token is an unrecognized
// record: the protocol version is a fixed contract, so unknown prefixes are
// surfaced as Malformed rather than guessed at.
const (
	PrefixAck   = "ACK"
	PrefixError = "ERR"
	PrefixData  = "DATA"
	PrefixEvent = "EVT"
)

// Decode classifies one raw line by its leading token and parses the
// remainder into a typed Record. Decode is total: malformed input yields a
// *Malformed carrying a ParseError, never a panic or an error return, so the
// reader loop can log and continue.
func Decode(line string) Record {
	trimmed := strings.TrimRight(line, "\r")
	if strings.TrimSpace(trimmed) == "" {
		return malformed(line, "empty line")
	}

	prefix, rest, _ := strings.Cut(trimmed, " ")

	switch prefix {
	case PrefixAck:
		return decodeAck(line, rest)
	case PrefixError:
		return decodeError(line, rest)
	case PrefixData:
		return decodeData(line, rest)
	case PrefixEvent:
		return decodeEvent(line, rest)
	default:
		return malformed(line, fmt.Sprintf("unrecognized record prefix %q", prefix))
	}
}

// decodeAck parses `ACK <verb> <status> [payload...]`.
func decodeAck(line, rest string) Record {
	verb, rest, _ := strings.Cut(rest, " ")
	if verb == "" {
		return malformed(line, "truncated ack: missing verb")
	}

	status, payload, _ := strings.Cut(rest, " ")
	if status == "" {
		return malformed(line, "truncated ack: missing status")
	}

	return &Ack{
		Verb:    verb,
		Status:  status,
		Payload: payloadFields(payload),
	}
}

// decodeError parses `ERR <code> <message...>`.
func decodeError(line, rest string) Record {
	code, message, _ := strings.Cut(rest, " ")
	if code == "" {
		return malformed(line, "truncated error: missing code")
	}

	return &ErrorRecord{
		Code:    code,
		Message: strings.TrimSpace(message),
	}
}

// decodeData parses `DATA <channel> <timestamp> <v1,v2,...>`. Samples are
// comma-joined decimal floats with no embedded spaces.
func decodeData(line, rest string) Record {
	fields := strings.Fields(rest)
	if len(fields) < 3 {
		return malformed(line, "truncated data frame")
	}

	if len(fields) > 3 {
		return malformed(line, "trailing fields after samples")
	}

	timestamp, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return malformed(line, fmt.Sprintf("bad timestamp %q", fields[1]))
	}

	raw := strings.Split(fields[2], ",")
	samples := make([]float64, 0, len(raw))

	for _, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return malformed(line, fmt.Sprintf("bad sample %q", s))
		}

		samples = append(samples, v)
	}

	return &DataFrame{
		ChannelID: fields[0],
		Timestamp: timestamp,
		Samples:   samples,
	}
}

// decodeEvent parses `EVT <kind> [payload...]`.
func decodeEvent(line, rest string) Record {
	kind, payload, _ := strings.Cut(rest, " ")
	if kind == "" {
		return malformed(line, "truncated event: missing kind")
	}

	return &Event{
		Kind:    kind,
		Payload: payloadFields(payload),
	}
}

// payloadFields splits an optional trailing payload, nil when absent.
func payloadFields(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}

	return fields
}

func malformed(line, reason string) *Malformed {
	return &Malformed{
		Line: line,
		Err:  &errors.ParseError{Line: line, Reason: reason},
	}
}
