package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sifilabs/sifi-bridge-go/internal/errors"
)

const (
	// ExecutableName is the bridge binary searched for in PATH and the
	// common install directories.
	ExecutableName = "sifi_bridge"

	// CompatibleVersion is the bridge major.minor this layer speaks. The
	// wire grammar is a versioned contract; any other major.minor fails the
	// handshake.
	CompatibleVersion = "1.2"

	// VersionCheckTimeout is the timeout for the --version handshake.
	VersionCheckTimeout = 2 * time.Second
)

// Config holds configuration for bridge discovery.
type Config struct {
	// ExecPath is an explicit executable path that skips the search.
	ExecPath string

	// SkipVersionCheck skips the --version handshake during discovery.
	// Can also be set via the SIFI_BRIDGE_SKIP_VERSION_CHECK env var.
	SkipVersionCheck bool

	// Logger is an optional logger for discovery operations.
	// If nil, a default no-op logger is used.
	Logger *slog.Logger
}

// Discoverer locates and validates the sifi_bridge executable.
type Discoverer interface {
	// Discover locates the bridge executable and verifies its protocol
	// version. Returns the path to the executable or a *errors.SpawnError.
	Discover(ctx context.Context) (string, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new bridge discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	}

	return &discoverer{
		cfg: cfg,
		log: log,
	}
}

// Discover locates the bridge executable and verifies its protocol version.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	d.log.Debug("Discovering sifi_bridge executable")

	execPath, err := d.findExecutable()
	if err != nil {
		d.log.Error("Failed to find sifi_bridge", "error", err)

		return "", err
	}

	d.log.Debug("Found sifi_bridge executable", "exec_path", execPath)

	if err := d.checkVersion(ctx, execPath); err != nil {
		return "", err
	}

	return execPath, nil
}

// findExecutable locates the bridge binary.
func (d *discoverer) findExecutable() (string, error) {
	// If explicit path provided, use it and only it
	if d.cfg.ExecPath != "" {
		d.log.Debug("Using explicit executable path", "exec_path", d.cfg.ExecPath)

		if _, err := os.Stat(d.cfg.ExecPath); err == nil {
			return d.cfg.ExecPath, nil
		}

		d.log.Debug("Explicit executable path not found", "exec_path", d.cfg.ExecPath)

		return "", &errors.SpawnError{SearchedPaths: []string{d.cfg.ExecPath}}
	}

	searchedPaths := make([]string, 0, 6)

	// Env var override
	if envPath := os.Getenv("SIFI_BRIDGE_PATH"); envPath != "" {
		searchedPaths = append(searchedPaths, envPath)
		d.log.Debug("Checking $SIFI_BRIDGE_PATH", "path", envPath)

		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	// Search in PATH
	d.log.Debug("Searching for executable in PATH", "name", ExecutableName)

	if path, err := exec.LookPath(ExecutableName); err == nil {
		d.log.Debug("Found executable in PATH", "path", path)

		return path, nil
	}

	searchedPaths = append(searchedPaths, "$PATH")

	// Check common locations
	commonPaths := []string{
		"/usr/local/bin/" + ExecutableName,
		"/usr/bin/" + ExecutableName,
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		commonPaths = append(commonPaths,
			filepath.Join(homeDir, ".local/bin", ExecutableName),
			filepath.Join(homeDir, ".cargo/bin", ExecutableName),
		)
	}

	for _, path := range commonPaths {
		searchedPaths = append(searchedPaths, path)
		d.log.Debug("Checking common path", "path", path)

		if _, err := os.Stat(path); err == nil {
			d.log.Debug("Found executable at common path", "path", path)

			return path, nil
		}
	}

	d.log.Warn("sifi_bridge not found in any searched paths", "searched_paths", searchedPaths)

	return "", &errors.SpawnError{SearchedPaths: searchedPaths}
}

var versionPattern = regexp.MustCompile(`([0-9]+\.[0-9]+)\.[0-9]+`)

// checkVersion runs the executable's --version and fails unless its
// major.minor matches CompatibleVersion. Unlike a minimum-version policy, an
// exact line match is required: the bridge grammar changes between minor
// releases and replies for unknown records would otherwise be guessed at.
func (d *discoverer) checkVersion(ctx context.Context, execPath string) error {
	// Skip if configured
	if d.cfg.SkipVersionCheck {
		d.log.Debug("Skipping version handshake (configured)")

		return nil
	}

	// Skip if env var is set
	if os.Getenv("SIFI_BRIDGE_SKIP_VERSION_CHECK") != "" {
		d.log.Debug("Skipping version handshake (SIFI_BRIDGE_SKIP_VERSION_CHECK set)")

		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, VersionCheckTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, execPath, "--version")

	output, err := cmd.Output()
	if err != nil {
		d.log.Error("Version handshake failed", "exec_path", execPath, "error", err)

		return &errors.SpawnError{Err: fmt.Errorf("version handshake: %w", err)}
	}

	versionStr := strings.TrimSpace(string(output))

	match := versionPattern.FindStringSubmatch(versionStr)
	if match == nil {
		d.log.Error("Could not parse bridge version", "output", versionStr)

		return &errors.SpawnError{Err: fmt.Errorf("version handshake: unparseable output %q", versionStr)}
	}

	if match[1] != CompatibleVersion {
		d.log.Error("Bridge protocol version mismatch",
			"version", match[0],
			"compatible", CompatibleVersion,
		)

		return &errors.SpawnError{Err: fmt.Errorf(
			"bridge version %s is incompatible: this layer speaks the %s.x protocol",
			match[0], CompatibleVersion,
		)}
	}

	d.log.Debug("Version handshake passed", "version", match[0])

	return nil
}
