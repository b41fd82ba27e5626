package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sifilabs/sifi-bridge-go/internal/config"
	"github.com/sifilabs/sifi-bridge-go/internal/errors"
)

// writeFakeBridge writes a shell script standing in for the sifi_bridge
// binary and returns its path. Tests that use it are skipped on Windows.
func writeFakeBridge(t *testing.T, script string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake bridge scripts require a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "sifi_bridge")

	err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755)
	require.NoError(t, err)

	return path
}

// newTestTransport builds a transport pointed at a fake bridge script.
func newTestTransport(t *testing.T, script string, options *config.Options) *PipeTransport {
	t.Helper()

	if options == nil {
		options = &config.Options{}
	}

	options.ExecPath = writeFakeBridge(t, script)
	options.SkipVersionCheck = true

	return NewPipeTransport(slog.Default(), options)
}

func TestStart_BridgeNotFound(t *testing.T) {
	transport := NewPipeTransport(slog.Default(), &config.Options{
		ExecPath: "/nonexistent/path/to/sifi_bridge",
	})

	err := transport.Start(context.Background())
	require.Error(t, err)

	spawnErr, ok := stderrors.AsType[*errors.SpawnError](err)
	require.True(t, ok, "expected SpawnError, got %T", err)
	require.Contains(t, spawnErr.SearchedPaths, "/nonexistent/path/to/sifi_bridge")
}

func TestStart_WithNonexistentCwd(t *testing.T) {
	transport := newTestTransport(t, `echo ready`, &config.Options{
		Cwd: "/nonexistent/path/that/does/not/exist",
	})

	err := transport.Start(context.Background())
	require.Error(t, err)

	_, ok := stderrors.AsType[*errors.SpawnError](err)
	require.True(t, ok, "expected SpawnError, got %T", err)
}

// TestLifecycle_EchoUntilEOF drives a full session against a fake bridge
// that acknowledges every command until stdin closes, then exits cleanly.
func TestLifecycle_EchoUntilEOF(t *testing.T) {
	transport := newTestTransport(t, `while read line; do echo "ACK $line ok"; done`, nil)

	ctx := context.Background()

	require.False(t, transport.IsReady())
	require.False(t, transport.Alive())

	err := transport.Start(ctx)
	require.NoError(t, err)

	require.True(t, transport.IsReady())
	require.True(t, transport.Alive())

	lines, errs := transport.ReadLines(ctx)

	err = transport.WriteLine(ctx, "echo hello")
	require.NoError(t, err)

	select {
	case line := <-lines:
		require.Equal(t, "ACK echo hello ok", line)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for bridge reply")
	}

	// End of input makes the fake bridge exit with status 0
	err = transport.EndInput()
	require.NoError(t, err)

	for range lines {
	}

	for err := range errs {
		t.Errorf("unexpected error on clean exit: %v", err)
	}

	require.False(t, transport.Alive())
	require.False(t, transport.IsReady())
}

// TestReadLines_PreservesOrder verifies lines arrive in the order the
// bridge wrote them.
func TestReadLines_PreservesOrder(t *testing.T) {
	transport := newTestTransport(t, `i=0
while [ $i -lt 20 ]; do
  echo "DATA ch0 $i 0.5"
  i=$((i+1))
done`, nil)

	ctx := context.Background()

	require.NoError(t, transport.Start(ctx))

	lines, errs := transport.ReadLines(ctx)

	var got []string
	for line := range lines {
		got = append(got, line)
	}

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	require.Len(t, got, 20)

	for i, line := range got {
		require.Equal(t, "DATA ch0 "+strconv.Itoa(i)+" 0.5", line)
	}
}

// TestReadLines_ProcessDeath verifies an unexpected nonzero exit surfaces
// as a ConnectionLostError carrying the exit code and captured stderr.
func TestReadLines_ProcessDeath(t *testing.T) {
	transport := newTestTransport(t, `echo "firmware fault: watchdog reset" >&2
exit 3`, nil)

	ctx := context.Background()

	require.NoError(t, transport.Start(ctx))

	lines, errs := transport.ReadLines(ctx)

	for range lines {
	}

	var lost *errors.ConnectionLostError

	for err := range errs {
		if l, ok := stderrors.AsType[*errors.ConnectionLostError](err); ok {
			lost = l
		}
	}

	require.NotNil(t, lost, "expected a ConnectionLostError")
	require.Equal(t, 3, lost.ExitCode)
	require.Contains(t, lost.Stderr, "firmware fault: watchdog reset")
	require.False(t, transport.Alive())
}

// TestReadLines_CloseSuppressesExitError verifies that killing the process
// through Close is not reported as a connection loss.
func TestReadLines_CloseSuppressesExitError(t *testing.T) {
	transport := newTestTransport(t, `sleep 30`, nil)

	ctx := context.Background()

	require.NoError(t, transport.Start(ctx))

	lines, errs := transport.ReadLines(ctx)

	// Give the reader goroutine a moment to block on the pipe
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, transport.Close())

	for range lines {
	}

	for err := range errs {
		t.Errorf("unexpected error after intentional close: %v", err)
	}
}

// TestReadLines_StderrCallback verifies diagnostic stderr lines reach the
// configured callback without appearing on the line channel.
func TestReadLines_StderrCallback(t *testing.T) {
	var mu sync.Mutex

	var captured []string

	transport := newTestTransport(t, `echo "diag: radio init" >&2
echo "diag: scanning" >&2
echo "ACK list ok"`, &config.Options{
		Stderr: func(line string) {
			mu.Lock()
			captured = append(captured, line)
			mu.Unlock()
		},
	})

	ctx := context.Background()

	require.NoError(t, transport.Start(ctx))

	lines, errs := transport.ReadLines(ctx)

	var got []string
	for line := range lines {
		got = append(got, line)
	}

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	require.Equal(t, []string{"ACK list ok"}, got)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"diag: radio init", "diag: scanning"}, captured)
}

func TestWriteLine_BeforeStart(t *testing.T) {
	transport := &PipeTransport{log: slog.Default()}

	err := transport.WriteLine(context.Background(), "connect dev-1")
	require.ErrorIs(t, err, errors.ErrNotStarted)
}

func TestWriteLine_AfterEndInput(t *testing.T) {
	transport := newTestTransport(t, `while read line; do :; done`, nil)

	ctx := context.Background()

	require.NoError(t, transport.Start(ctx))

	lines, errs := transport.ReadLines(ctx)

	require.NoError(t, transport.EndInput())

	err := transport.WriteLine(ctx, "echo late")
	require.ErrorIs(t, err, errors.ErrStdinClosed)

	_, ok := stderrors.AsType[*errors.ChannelClosedError](err)
	require.True(t, ok, "expected ChannelClosedError, got %T", err)

	for range lines {
	}

	for range errs {
	}
}

func TestWriteLine_AppendsNewline(t *testing.T) {
	reader, writer := io.Pipe()
	defer reader.Close()
	defer writer.Close()

	transport := &PipeTransport{
		log:   slog.Default(),
		stdin: writer,
	}

	got := make(chan string, 1)

	go func() {
		line, err := bufio.NewReader(reader).ReadString('\n')
		if err != nil {
			got <- "read error: " + err.Error()

			return
		}

		got <- line
	}()

	err := transport.WriteLine(context.Background(), "connect dev-1")
	require.NoError(t, err)

	select {
	case line := <-got:
		require.Equal(t, "connect dev-1\n", line)
	case <-time.After(1 * time.Second):
		t.Fatal("line never reached the pipe")
	}
}

// TestConcurrentWrites_AreSerialized tests that concurrent writes are
// serialized via the mutex: every line must arrive intact, never
// interleaved with another writer's bytes.
func TestConcurrentWrites_AreSerialized(t *testing.T) {
	reader, writer := io.Pipe()
	defer reader.Close()
	defer writer.Close()

	transport := &PipeTransport{
		log:   slog.Default(),
		stdin: writer,
	}

	ctx := context.Background()

	const numWriters = 10

	collected := make(chan []string, 1)

	go func() {
		scanner := bufio.NewScanner(reader)

		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())

			if len(lines) == numWriters {
				break
			}
		}

		collected <- lines
	}()

	done := make(chan struct{}, numWriters)

	for i := range numWriters {
		go func(id int) {
			defer func() { done <- struct{}{} }()

			_ = transport.WriteLine(ctx, "echo "+strconv.Itoa(id))
		}(i)
	}

	for range numWriters {
		<-done
	}

	select {
	case lines := <-collected:
		require.Len(t, lines, numWriters)

		wellFormed := regexp.MustCompile(`^echo [0-9]$`)
		for _, line := range lines {
			require.Regexp(t, wellFormed, line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader never collected all lines")
	}
}

func TestWriteLine_ContextAlreadyCancelled(t *testing.T) {
	reader, writer := io.Pipe()
	defer reader.Close()
	defer writer.Close()

	transport := &PipeTransport{
		log:   slog.Default(),
		stdin: writer,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := transport.WriteLine(ctx, "echo never")
	require.ErrorIs(t, err, context.Canceled)
}

// TestWriteLine_CancellationDuringWrite tests that WriteLine respects
// context cancellation even when blocked on a write operation.
func TestWriteLine_CancellationDuringWrite(t *testing.T) {
	// A pipe with no reader blocks every write
	reader, writer := io.Pipe()
	defer reader.Close()
	defer writer.Close()

	transport := &PipeTransport{
		log:   slog.Default(),
		stdin: writer,
	}

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)

	go func() {
		errCh <- transport.WriteLine(ctx, "start")
	}()

	// Give the write time to start and block
	time.Sleep(10 * time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(1 * time.Second):
		t.Fatal("WriteLine did not respect context cancellation")
	}

	// Stdin is sacrificed to unblock the write; later calls must fail fast
	err := transport.WriteLine(context.Background(), "stop")
	require.ErrorIs(t, err, errors.ErrStdinClosed)
}

// TestWriteLine_ConcurrentWithClose verifies concurrent writes against a
// closing pipe fail without panics or deadlocks.
func TestWriteLine_ConcurrentWithClose(t *testing.T) {
	reader, writer := io.Pipe()
	defer reader.Close()

	transport := &PipeTransport{
		log:   slog.Default(),
		stdin: writer,
	}

	ctx := context.Background()

	go func() {
		buf := make([]byte, 1024)

		for {
			if _, err := reader.Read(buf); err != nil {
				return
			}
		}
	}()

	const senders = 10

	var wg sync.WaitGroup

	for range senders {
		wg.Go(func() {
			for range 10 {
				_ = transport.WriteLine(ctx, "echo ping")

				time.Sleep(time.Millisecond)
			}
		})
	}

	time.Sleep(10 * time.Millisecond)
	writer.Close()

	done := make(chan struct{})

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writers did not complete after pipe close")
	}
}

func TestClose_SafeBeforeStart(t *testing.T) {
	transport := &PipeTransport{log: slog.Default()}

	require.NoError(t, transport.Close())
}

func TestClose_Idempotent(t *testing.T) {
	transport := newTestTransport(t, `sleep 30`, nil)

	ctx := context.Background()

	require.NoError(t, transport.Start(ctx))

	lines, errs := transport.ReadLines(ctx)

	require.NoError(t, transport.Close())

	// Drain so the process is reaped before the second call
	for range lines {
	}

	for range errs {
	}

	require.NoError(t, transport.Close())
}

func TestEndInput_SafeBeforeStart(t *testing.T) {
	transport := &PipeTransport{log: slog.Default()}

	require.NoError(t, transport.EndInput())
}

func TestMaxLineSize_Default(t *testing.T) {
	transport := &PipeTransport{log: slog.Default()}

	require.Equal(t, defaultMaxLineSize, transport.maxLineSize())
}

func TestMaxLineSize_FromOptions(t *testing.T) {
	size := 4096

	transport := NewPipeTransport(slog.Default(), &config.Options{
		MaxBufferSize: &size,
	})

	require.Equal(t, 4096, transport.maxLineSize())
}
