package protocol

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Session identifies one bridge run.
//
// The wire protocol has no session concept of its own; the ID exists so
// logs, metrics, and recorded frames from different runs of the same host
// process can be told apart. IDs are ULIDs, so they sort by start time.
type Session struct {
	// ID is the unique session identifier.
	ID string

	// ExecPath is the resolved bridge executable this session spawned.
	ExecPath string

	// Args are the arguments the bridge was spawned with.
	Args []string

	// StartedAt is when the subprocess was spawned.
	StartedAt time.Time
}

// NewSession mints a session for a freshly spawned bridge.
func NewSession(execPath string, args []string) *Session {
	return &Session{
		ID:        ulid.Make().String(),
		ExecPath:  execPath,
		Args:      args,
		StartedAt: time.Now(),
	}
}

// Uptime reports how long the session has been running.
func (s *Session) Uptime() time.Duration {
	return time.Since(s.StartedAt)
}
