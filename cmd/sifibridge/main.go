// Command sifibridge records biosignal data from SiFi Labs devices through
// a sifi_bridge process, writing frames to the configured sinks.
package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	sifibridge "github.com/sifilabs/sifi-bridge-go"
	"github.com/sifilabs/sifi-bridge-go/internal/hostconfig"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// CLI is the top-level Kong struct.
type CLI struct {
	Config  string `short:"c" help:"Path to the YAML run configuration." type:"path"`
	Verbose bool   `short:"v" help:"Force debug logging."`

	List    ListCmd    `cmd:"" help:"List devices visible to the bridge."`
	Run     RunCmd     `cmd:"" help:"Record from a device into the configured sinks."`
	Version VersionCmd `cmd:"" help:"Print version."`
}

func main() {
	var cli CLI

	k, err := kong.New(&cli,
		kong.Name("sifibridge"),
		kong.Description("Host-side recorder for SiFi biosignal devices"),
		kong.UsageOnError(),
	)
	if err != nil {
		panic(err)
	}

	ctx, err := k.Parse(os.Args[1:])
	k.FatalIfErrorf(err)
	k.FatalIfErrorf(ctx.Run(&cli))
}

// loadConfig resolves the run configuration: the file named by --config, or
// bare defaults when none is given.
func (c *CLI) loadConfig() (*hostconfig.Config, error) {
	if c.Config == "" {
		return hostconfig.Default(), nil
	}

	return hostconfig.Load(c.Config)
}

// buildLogger constructs the logger the run configuration asks for.
func (c *CLI) buildLogger(cfg *hostconfig.Config) *slog.Logger {
	level := slog.LevelInfo

	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if c.Verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// bridgeOptions translates the run configuration into bridge options.
func bridgeOptions(cfg *hostconfig.Config, log *slog.Logger) []sifibridge.Option {
	opts := []sifibridge.Option{sifibridge.WithLogger(log)}

	if cfg.Bridge.ExecPath != "" {
		opts = append(opts, sifibridge.WithExecutable(cfg.Bridge.ExecPath))
	}

	if len(cfg.Bridge.Args) > 0 {
		opts = append(opts, sifibridge.WithArgs(cfg.Bridge.Args...))
	}

	if cfg.Bridge.CommandTimeout > 0 {
		opts = append(opts, sifibridge.WithCommandTimeout(cfg.Bridge.CommandTimeout))
	}

	if cfg.Bridge.QuitGrace > 0 {
		opts = append(opts, sifibridge.WithQuitGrace(cfg.Bridge.QuitGrace))
	}

	return opts
}
