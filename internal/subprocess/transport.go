package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sifilabs/sifi-bridge-go/internal/cli"
	"github.com/sifilabs/sifi-bridge-go/internal/config"
	"github.com/sifilabs/sifi-bridge-go/internal/errors"
)

const (
	// defaultMaxLineSize is the maximum buffer size for one bridge output
	// line. A frame with a few thousand samples fits comfortably.
	defaultMaxLineSize = 1024 * 1024 // 1MB
	// maxStderrBufferSize is the maximum size for the stderr buffer.
	// Stderr reading continues indefinitely (callback receives all lines),
	// but the buffer stops growing after this limit to prevent unbounded
	// memory usage.
	maxStderrBufferSize = 10 * 1024 * 1024 // 10MB
)

// PipeTransport implements Transport by spawning a sifi_bridge subprocess
// and speaking newline-terminated text over its standard pipes.
type PipeTransport struct {
	log            *slog.Logger
	options        *config.Options
	execPath       string
	args           []string
	env            []string
	cwd            string
	cmd            *exec.Cmd
	stdin          io.WriteCloser
	stdout         io.ReadCloser
	stderr         io.ReadCloser
	stderrCallback func(string) // Callback for streaming stderr output
	mu             sync.Mutex   // Protects stdin writes and lifecycle flags
	closing        bool         // Whether Close() has been called (intentional shutdown)
	stdinClosed    bool         // Whether stdin was closed (EndInput or context cancellation)
	exited         bool         // Whether the process has been reaped
}

// Compile-time verification that PipeTransport implements the Transport interface.
var _ config.Transport = (*PipeTransport)(nil)

// NewPipeTransport creates a new subprocess transport.
//
// The logger receives debug, info, warn, and error messages during transport
// operations.
//
// Executable discovery is deferred to Start(), which searches for the bridge
// binary in the following order:
//  1. The explicit path in options.ExecPath (if provided)
//  2. $SIFI_BRIDGE_PATH
//  3. The system PATH
//  4. Common installation directories (/usr/local/bin, /usr/bin,
//     ~/.local/bin, ~/.cargo/bin)
//
// Start() returns a SpawnError if the executable cannot be located or its
// protocol version does not match.
func NewPipeTransport(log *slog.Logger, options *config.Options) *PipeTransport {
	return &PipeTransport{
		log:            log.With("component", "pipe_transport"),
		options:        options,
		stderrCallback: options.Stderr,
	}
}

// Start spawns the bridge subprocess.
//
// This method discovers the bridge executable, performs the version
// handshake, and spawns the process with stdin, stdout, and stderr pipes.
//
// Returns a *errors.SpawnError if the executable cannot be located,
// fails the handshake, or fails to start.
func (t *PipeTransport) Start(ctx context.Context) error {
	t.log.Info("Starting sifi_bridge subprocess")

	discoverer := cli.NewDiscoverer(&cli.Config{
		ExecPath:         t.options.ExecPath,
		SkipVersionCheck: t.options.SkipVersionCheck,
		Logger:           t.log,
	})

	execPath, err := discoverer.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover bridge: %w", err)
	}

	t.execPath = execPath

	t.args = cli.BuildArgs(t.options)
	t.log.Debug("Built command arguments", "args", t.args)

	t.env = cli.BuildEnvironment(t.options)

	t.cwd = t.options.Cwd
	if t.cwd == "" {
		t.cwd, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	t.log.Debug("Set working directory", "cwd", t.cwd)

	//nolint:gosec // G204: Subprocess launching with a discovered path is the point of this package
	cmd := exec.CommandContext(ctx, t.execPath, t.args...)
	cmd.Dir = t.cwd
	cmd.Env = t.env

	// Set up stdin pipe for sending commands
	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.log.Error("Failed to create stdin pipe", "error", err)

		return &errors.SpawnError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	t.stdin = stdin

	// Set up stdout pipe
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.log.Error("Failed to create stdout pipe", "error", err)

		return &errors.SpawnError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	t.stdout = stdout

	// Set up stderr pipe for diagnostics (never parsed for protocol meaning)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.log.Error("Failed to create stderr pipe", "error", err)

		return &errors.SpawnError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	t.stderr = stderr

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start bridge process", "error", err)

		return &errors.SpawnError{Err: fmt.Errorf("start process: %w", err)}
	}

	t.cmd = cmd
	t.log.Info("Bridge subprocess started", "pid", cmd.Process.Pid, "exec_path", t.execPath)

	return nil
}

// ReadLines reads newline-terminated lines from the bridge stdout.
//
// This method starts a goroutine that scans the process stdout and delivers
// each line on the returned channel, in the exact order the process wrote
// them. The goroutine exits when:
//   - The bridge process terminates
//   - The context is cancelled
//   - An unrecoverable scanner error occurs
//
// Both channels are closed when reading completes. A clean exit closes them
// without an error; an unexpected nonzero exit sends a
// *errors.ConnectionLostError carrying the exit code and captured stderr.
func (t *PipeTransport) ReadLines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string)
	errs := make(chan error, 1)

	// Always buffer stderr for crash reporting (must complete reads before Wait())
	// See: https://pkg.go.dev/os/exec#Cmd.StderrPipe
	var stderrWg sync.WaitGroup

	var stderrBuffer strings.Builder

	var stderrMu sync.Mutex

	stderrWg.Go(func() {
		// Simple scanner loop - relies on process kill to close pipes and
		// unblock Scan().
		scanner := bufio.NewScanner(t.stderr)
		for scanner.Scan() {
			// Check context between lines for cooperative cancellation
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Text()

			// Buffer stderr for crash reporting (capped at maxStderrBufferSize)
			stderrMu.Lock()

			if stderrBuffer.Len() < maxStderrBufferSize {
				if stderrBuffer.Len() > 0 {
					stderrBuffer.WriteString("\n")
				}

				stderrBuffer.WriteString(line)
			}

			stderrMu.Unlock()

			if t.stderrCallback != nil {
				t.stderrCallback(line)
			}
		}

		// Log scanner errors (don't fail - process may have exited)
		if err := scanner.Err(); err != nil {
			t.log.Debug("Stderr scanner error", "error", err)
		}
	})

	go func() {
		defer close(lines)
		defer close(errs)
		defer t.log.Debug("ReadLines goroutine stopped")

		scanner := bufio.NewScanner(t.stdout)
		buf := make([]byte, t.maxLineSize())
		scanner.Buffer(buf, t.maxLineSize())

		lineCount := 0

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				t.log.Debug("Context cancelled during scan", "error", ctx.Err())

				errs <- ctx.Err()

				return
			default:
			}

			lineCount++

			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				t.log.Debug("Context cancelled during line send", "error", ctx.Err())

				errs <- ctx.Err()

				return
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Error("Scanner error while reading bridge output", "error", err)

			errs <- fmt.Errorf("scanner error: %w", err)
		}

		t.log.Debug("Bridge output stream ended", "line_count", lineCount)

		// Wait for stderr goroutine before process wait
		stderrWg.Wait()

		t.log.Debug("Waiting for bridge process to exit")

		err := t.cmd.Wait()

		t.mu.Lock()
		t.exited = true
		isClosing := t.closing
		t.mu.Unlock()

		if err == nil {
			t.log.Info("Bridge process exited cleanly")

			return
		}

		// Check if this is an intentional shutdown
		if isClosing {
			t.log.Debug("Bridge process terminated during shutdown")

			return
		}

		stderrMu.Lock()
		stderrOutput := stderrBuffer.String()
		stderrMu.Unlock()

		exitCode := 0

		if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
			exitCode = exitErr.ExitCode()
		}

		t.log.Error("Bridge process died", "exit_code", exitCode, "stderr", stderrOutput)

		errs <- &errors.ConnectionLostError{
			ExitCode: exitCode,
			Stderr:   stderrOutput,
			Err:      err,
		}
	}()

	return lines, errs
}

// WriteLine writes one command line to the bridge stdin.
//
// A line terminator is appended and the write is flushed; the pipe is
// unbuffered on this side. This method is safe for concurrent use and
// respects context cancellation even during blocking writes.
//
// If the context is cancelled during a blocked write, stdin is closed to
// unblock the goroutine (safe since Go 1.9+). Subsequent calls fail with a
// ChannelClosedError.
func (t *PipeTransport) WriteLine(ctx context.Context, line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdinClosed || t.exited {
		return &errors.ChannelClosedError{Err: errors.ErrStdinClosed}
	}

	if t.stdin == nil {
		return errors.ErrNotStarted
	}

	// Check context before starting
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.log.Debug("Writing line to bridge", "line", line)

	data := []byte(line + "\n")

	// Write in goroutine to respect context cancellation
	done := make(chan error, 1)

	go func() {
		_, err := t.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write line to bridge", "error", err)

			return &errors.ChannelClosedError{Err: err}
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")
		// Close stdin to unblock the blocked Write (safe since Go 1.9+)
		if t.stdin != nil {
			_ = t.stdin.Close()
			t.stdinClosed = true
		}
		// Wait for goroutine to exit with timeout to prevent leak
		select {
		case <-done:
			// Write goroutine exited cleanly
		case <-time.After(1 * time.Second):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// IsReady checks if the transport is ready for communication.
//
// Returns true if the bridge process is running and stdin is open.
func (t *PipeTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.cmd.Process != nil && t.stdin != nil && !t.stdinClosed && !t.exited
}

// Alive is a non-blocking liveness check of the bridge process.
func (t *PipeTransport) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.cmd.Process != nil && !t.exited && !t.closing
}

// EndInput ends the input stream by closing stdin.
//
// This signals to the bridge that no more commands will be sent. The bridge
// finishes any pending work and exits normally.
func (t *PipeTransport) EndInput() error {
	return t.CloseStdin()
}

// CloseStdin closes the stdin pipe to signal end of input.
func (t *PipeTransport) CloseStdin() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin != nil && !t.stdinClosed {
		t.log.Debug("Closing stdin pipe")

		err := t.stdin.Close()
		t.stdinClosed = true
		t.stdin = nil

		return err
	}

	return nil
}

// Close terminates the bridge process.
//
// This forcefully kills the process. Graceful shutdown (the quit command and
// its grace period) is the client's job; by the time Close runs the process
// has had its chance to exit. It's safe to call Close multiple times or on
// an already-terminated process.
func (t *PipeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closing = true
	t.stdinClosed = true

	if t.cmd != nil && t.cmd.Process != nil && !t.exited {
		t.log.Debug("Killing bridge process", "pid", t.cmd.Process.Pid)

		if err := t.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("kill bridge process (pid %d): %w", t.cmd.Process.Pid, err)
		}
	}

	return nil
}

// ExecPath returns the resolved bridge executable path. Empty before Start.
func (t *PipeTransport) ExecPath() string {
	return t.execPath
}

// maxLineSize returns the stdout scanner buffer cap.
func (t *PipeTransport) maxLineSize() int {
	if t.options != nil && t.options.MaxBufferSize != nil && *t.options.MaxBufferSize > 0 {
		return *t.options.MaxBufferSize
	}

	return defaultMaxLineSize
}
