package cli

import (
	"fmt"
	"os"

	"github.com/sifilabs/sifi-bridge-go/internal/config"
)

// Command represents the bridge invocation to execute.
type Command struct {
	// Args are the command line arguments.
	Args []string

	// Env are the environment variables.
	Env []string
}

// BuildArgs constructs the bridge's command line arguments. The bridge is
// driven entirely over stdin, so the list is normally empty; Options.Args
// passes extra flags through verbatim.
func BuildArgs(options *config.Options) []string {
	args := make([]string, 0, len(options.Args))

	return append(args, options.Args...)
}

// BuildEnvironment constructs the environment for the bridge process.
func BuildEnvironment(options *config.Options) []string {
	// Start with current environment
	env := os.Environ()

	env = append(env, "SIFI_BRIDGE_ENTRYPOINT=sdk-go")

	// Add or override with user-provided environment variables
	for key, value := range options.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	return env
}
