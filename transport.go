package sifibridge

import "github.com/sifilabs/sifi-bridge-go/internal/config"

// Transport defines the interface for bridge communication: a line-oriented,
// bidirectional byte channel. Implement this to provide custom transports
// for testing, mocking, or alternative channels (e.g., remote bridges).
//
// The default implementation spawns the sifi_bridge executable and speaks to
// it over stdin/stdout pipes. Custom transports can be injected via
// WithTransport.
type Transport = config.Transport
