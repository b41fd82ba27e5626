package client

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sifilabs/sifi-bridge-go/internal/config"
	"github.com/sifilabs/sifi-bridge-go/internal/device"
	"github.com/sifilabs/sifi-bridge-go/internal/errors"
	"github.com/sifilabs/sifi-bridge-go/internal/record"
	"github.com/sifilabs/sifi-bridge-go/internal/recorder"
)

// fakeTransport is a scripted in-memory transport. Each written line is
// recorded and handed to the script, which can push reply lines or end the
// stream like a real bridge process would.
type fakeTransport struct {
	mu      sync.Mutex
	lines   chan string
	errs    chan error
	written []string
	started bool
	closed  bool
	alive   bool
	dead    bool
	script  func(f *fakeTransport, line string)
}

func newFakeTransport(script func(f *fakeTransport, line string)) *fakeTransport {
	return &fakeTransport{
		lines:  make(chan string, 64),
		errs:   make(chan error, 1),
		alive:  true,
		script: script,
	}
}

// ackAll replies "ACK <verb> ok" to every command except quit, which ends
// the stream like a bridge exiting.
func ackAll(f *fakeTransport, line string) {
	verb := strings.Fields(line)[0]
	if verb == string(record.VerbQuit) {
		f.exit()

		return
	}

	f.reply("ACK " + verb + " ok")
}

func (f *fakeTransport) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.started = true

	return nil
}

func (f *fakeTransport) ReadLines(_ context.Context) (<-chan string, <-chan error) {
	return f.lines, f.errs
}

func (f *fakeTransport) WriteLine(_ context.Context, line string) error {
	f.mu.Lock()

	if !f.alive {
		f.mu.Unlock()

		return &errors.ChannelClosedError{Err: errors.ErrStdinClosed}
	}

	f.written = append(f.written, line)
	script := f.script
	f.mu.Unlock()

	if script != nil {
		script(f, line)
	}

	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.alive = false

	return nil
}

func (f *fakeTransport) IsReady() bool { return f.isAlive() }

func (f *fakeTransport) Alive() bool { return f.isAlive() }

func (f *fakeTransport) EndInput() error { return nil }

// reply queues a line for the reader.
func (f *fakeTransport) reply(lines ...string) {
	for _, line := range lines {
		f.lines <- line
	}
}

// exit simulates a clean process exit: both channels close, nothing buffered.
func (f *fakeTransport) exit() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dead {
		return
	}

	f.dead = true
	f.alive = false
	close(f.lines)
	close(f.errs)
}

// die simulates a crash: the exit error is buffered, then both channels
// close.
func (f *fakeTransport) die(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dead {
		return
	}

	f.dead = true
	f.alive = false
	f.errs <- err
	close(f.lines)
	close(f.errs)
}

func (f *fakeTransport) isAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.alive
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

func (f *fakeTransport) writtenLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.written...)
}

// startClient wires a client to the fake transport and registers cleanup.
func startClient(t *testing.T, fake *fakeTransport, mutate func(*config.Options)) *Client {
	t.Helper()

	options := &config.Options{
		Transport:      fake,
		CommandTimeout: 2 * time.Second,
		QuitGrace:      200 * time.Millisecond,
	}
	if mutate != nil {
		mutate(options)
	}

	c := New()
	require.NoError(t, c.Start(context.Background(), options))

	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestStart_WithInjectedTransport(t *testing.T) {
	fake := newFakeTransport(ackAll)
	c := startClient(t, fake, nil)

	assert.True(t, fake.started)
	assert.True(t, c.Alive())
	assert.Len(t, c.SessionID(), 26)

	session := c.Session()
	require.NotNil(t, session)
	assert.Equal(t, c.SessionID(), session.ID)
	assert.Empty(t, session.ExecPath)
}

func TestStart_SecondCallRejected(t *testing.T) {
	fake := newFakeTransport(ackAll)
	c := startClient(t, fake, nil)

	err := c.Start(context.Background(), &config.Options{Transport: fake})
	require.ErrorIs(t, err, errors.ErrAlreadyStarted)
}

func TestStart_AfterCloseRejected(t *testing.T) {
	fake := newFakeTransport(ackAll)
	c := startClient(t, fake, nil)

	require.NoError(t, c.Close())

	err := c.Start(context.Background(), &config.Options{Transport: fake})
	require.ErrorIs(t, err, errors.ErrBridgeClosed)
}

func TestStart_SpawnFailureSurfaces(t *testing.T) {
	c := New()

	err := c.Start(context.Background(), &config.Options{
		ExecPath:         "/nonexistent/sifi_bridge",
		SkipVersionCheck: true,
	})
	require.Error(t, err)

	_, ok := stderrors.AsType[*errors.SpawnError](err)
	assert.True(t, ok)
	assert.False(t, c.Alive())
}

func TestConnect_WritesCommand(t *testing.T) {
	fake := newFakeTransport(ackAll)
	c := startClient(t, fake, nil)

	require.NoError(t, c.Connect(context.Background(), "BioPoint_v1_3"))
	assert.Equal(t, []string{"connect BioPoint_v1_3"}, fake.writtenLines())
}

func TestConnect_RejectsBadHandlesLocally(t *testing.T) {
	fake := newFakeTransport(ackAll)
	c := startClient(t, fake, nil)

	require.Error(t, c.Connect(context.Background(), ""))
	require.Error(t, c.Connect(context.Background(), "Bio Point"))
	assert.Empty(t, fake.writtenLines())
}

func TestCommands_WireForms(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		call func(c *Client) error
		want string
	}{
		{"disconnect", func(c *Client) error { return c.Disconnect(ctx) }, "disconnect"},
		{"start streaming", func(c *Client) error { return c.StartStreaming(ctx) }, "start"},
		{"stop streaming", func(c *Client) error { return c.StopStreaming(ctx) }, "stop"},
		{"select device", func(c *Client) error { return c.SelectDevice(ctx, "left-arm") }, "select left-arm"},
		{"create device", func(c *Client) error { return c.CreateDevice(ctx, "left-arm") }, "create left-arm"},
		{"delete device", func(c *Client) error { return c.DeleteDevice(ctx) }, "delete"},
		{
			"channels",
			func(c *Client) error {
				return c.ConfigureChannels(ctx, device.ChannelMask{ECG: true, EMG: true})
			},
			"configure channels on on off off off",
		},
		{
			"sample rates",
			func(c *Client) error {
				return c.ConfigureSampleRates(ctx, device.DefaultSampleRates())
			},
			"configure sampling-rates 500 2000 40 50 50",
		},
		{
			"ble power",
			func(c *Client) error { return c.ConfigureBLEPower(ctx, device.BLEPowerHigh) },
			"configure ble-power high",
		},
		{
			"memory mode",
			func(c *Client) error { return c.ConfigureMemoryMode(ctx, device.MemoryModeBoth) },
			"configure memory both",
		},
		{
			"filtering off",
			func(c *Client) error { return c.ConfigureFiltering(ctx, false) },
			"configure filtering off",
		},
		{
			"streaming mode on",
			func(c *Client) error { return c.ConfigureStreaming(ctx, true) },
			"configure streaming-mode on",
		},
		{
			"ppg",
			func(c *Client) error {
				return c.ConfigurePPG(ctx, 6, 10, 10, 10, device.PPGSensitivityMedium)
			},
			"configure ppg 6 10 10 10 medium",
		},
		{
			"raw configure",
			func(c *Client) error { return c.SetConfig(ctx, "ble-name", "lab-rig") },
			"configure ble-name lab-rig",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeTransport(ackAll)
			c := startClient(t, fake, nil)

			require.NoError(t, tt.call(c))

			written := fake.writtenLines()
			require.NotEmpty(t, written)
			assert.Equal(t, tt.want, written[len(written)-1])
		})
	}
}

func TestConfigureEMG_EnablesFilteringFirst(t *testing.T) {
	fake := newFakeTransport(ackAll)
	c := startClient(t, fake, nil)

	require.NoError(t, c.ConfigureEMG(context.Background(), 20, 450, 60))
	assert.Equal(t, []string{
		"configure filtering on",
		"configure emg 20 450 60",
	}, fake.writtenLines())
}

func TestConfigure_RejectsInvalidValuesLocally(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		call func(c *Client) error
	}{
		{"ble power", func(c *Client) error { return c.ConfigureBLEPower(ctx, "turbo") }},
		{"memory mode", func(c *Client) error { return c.ConfigureMemoryMode(ctx, "cloud") }},
		{"ppg sensitivity", func(c *Client) error { return c.ConfigurePPG(ctx, 6, 10, 10, 10, "ultra") }},
		{
			"zero sample rate",
			func(c *Client) error {
				return c.ConfigureSampleRates(ctx, device.SampleRates{EMG: 2000})
			},
		},
		{"inverted emg band", func(c *Client) error { return c.ConfigureEMG(ctx, 450, 20, 60) }},
		{"zero ecg band", func(c *Client) error { return c.ConfigureECG(ctx, 0, 35) }},
		{"inverted eda band", func(c *Client) error { return c.ConfigureEDA(ctx, 8, 4, 120) }},
		{"empty option", func(c *Client) error { return c.SetConfig(ctx, "") }},
		{
			"list source",
			func(c *Client) error {
				_, err := c.ListDevices(ctx, "cloud")

				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeTransport(ackAll)
			c := startClient(t, fake, nil)

			require.Error(t, tt.call(c))
			assert.Empty(t, fake.writtenLines())
		})
	}
}

func TestListDevices_ReturnsPayload(t *testing.T) {
	fake := newFakeTransport(func(f *fakeTransport, line string) {
		require.Equal(t, "list ble", line)
		f.reply("ACK list ok BioPoint_v1_3_A41C BioArmband_0B77")
	})
	c := startClient(t, fake, nil)

	devices, err := c.ListDevices(context.Background(), device.ListSourceBLE)
	require.NoError(t, err)
	assert.Equal(t, []string{"BioPoint_v1_3_A41C", "BioArmband_0B77"}, devices)
}

func TestShow_ParsesKeyValuePairs(t *testing.T) {
	fake := newFakeTransport(func(f *fakeTransport, line string) {
		f.reply("ACK show ok ble-power=medium memory=host stray")
	})
	c := startClient(t, fake, nil)

	status, err := c.Show(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"ble-power": "medium",
		"memory":    "host",
	}, status)
}

func TestEcho_RoundTrips(t *testing.T) {
	fake := newFakeTransport(func(f *fakeTransport, line string) {
		f.reply("ACK echo ok hello bridge")
	})
	c := startClient(t, fake, nil)

	got, err := c.Echo(context.Background(), "hello   bridge")
	require.NoError(t, err)
	assert.Equal(t, "hello bridge", got)
	assert.Equal(t, []string{"echo hello bridge"}, fake.writtenLines())
}

func TestDownloadMemory_ReportsAnnouncedSize(t *testing.T) {
	fake := newFakeTransport(func(f *fakeTransport, line string) {
		require.Equal(t, "download memory", line)
		f.reply("ACK download ok 2048")
	})
	c := startClient(t, fake, nil)

	kb, err := c.DownloadMemory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2048, kb)
}

func TestDownloadMemory_SizeOptional(t *testing.T) {
	fake := newFakeTransport(func(f *fakeTransport, line string) {
		f.reply("ACK download ok")
	})
	c := startClient(t, fake, nil)

	kb, err := c.DownloadMemory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, kb)
}

func TestCommand_BridgeRejectionSurfacesProtocolError(t *testing.T) {
	fake := newFakeTransport(func(f *fakeTransport, line string) {
		f.reply("ERR no-device no device is connected")
	})
	c := startClient(t, fake, nil)

	err := c.StartStreaming(context.Background())
	require.Error(t, err)

	protoErr, ok := stderrors.AsType[*errors.ProtocolError](err)
	require.True(t, ok)
	assert.Equal(t, "no-device", protoErr.Code)
	assert.Equal(t, "no device is connected", protoErr.Message)
}

func TestDataPath_PollAndWait(t *testing.T) {
	fake := newFakeTransport(ackAll)
	c := startClient(t, fake, nil)

	fake.reply(
		"DATA emg0 1700000100 0.5,1.5",
		"DATA emg0 1700000101 2.5,3.5",
	)

	frame, err := c.WaitData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "emg0", frame.ChannelID)
	assert.Equal(t, int64(1700000100), frame.Timestamp)
	assert.Equal(t, []float64{0.5, 1.5}, frame.Samples)

	require.Eventually(t, func() bool { return c.BufferedFrames() == 1 },
		time.Second, 5*time.Millisecond)

	second := c.PollData()
	require.NotNil(t, second)
	assert.Equal(t, int64(1700000101), second.Timestamp)

	assert.Nil(t, c.PollData())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = c.WaitData(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitData_DrainsBufferThenReportsDeath(t *testing.T) {
	fake := newFakeTransport(ackAll)
	c := startClient(t, fake, nil)

	fake.reply("DATA ecg0 1700000200 1.0")
	require.Eventually(t, func() bool { return c.BufferedFrames() == 1 },
		time.Second, 5*time.Millisecond)

	fake.die(&errors.ConnectionLostError{ExitCode: 3, Stderr: "firmware fault"})

	frame, err := c.WaitData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ecg0", frame.ChannelID)

	_, err = c.WaitData(context.Background())
	require.Error(t, err)

	lost, ok := stderrors.AsType[*errors.ConnectionLostError](err)
	require.True(t, ok)
	assert.Equal(t, 3, lost.ExitCode)

	err = c.Connect(context.Background(), "BioPoint_v1_3")
	_, ok = stderrors.AsType[*errors.ConnectionLostError](err)
	assert.True(t, ok)
}

func TestEvents_Delivered(t *testing.T) {
	fake := newFakeTransport(ackAll)
	c := startClient(t, fake, nil)

	fake.reply("EVT battery 87")

	select {
	case event := <-c.Events():
		assert.Equal(t, "battery", event.Kind)
		assert.Equal(t, []string{"87"}, event.Payload)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

// captureSink records frames handed to it by the sink pump.
type captureSink struct {
	mu     sync.Mutex
	frames []*record.DataFrame
	closed bool
}

func (s *captureSink) WriteFrame(frame *record.DataFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = append(s.frames, frame)

	return nil
}

func (s *captureSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.frames)
}

func (s *captureSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

func TestSinks_ReceiveStreamedFrames(t *testing.T) {
	sink := &captureSink{}
	fake := newFakeTransport(ackAll)
	c := startClient(t, fake, func(o *config.Options) {
		o.Sinks = []recorder.FrameSink{sink}
	})

	fake.reply(
		"DATA emg0 1700000300 1.0",
		"DATA emg0 1700000301 2.0",
		"DATA emg0 1700000302 3.0",
	)

	require.Eventually(t, func() bool { return sink.count() == 3 },
		time.Second, 5*time.Millisecond)

	// The tap copies frames; the polling path keeps its own.
	assert.Equal(t, 3, c.BufferedFrames())

	require.NoError(t, c.Close())
	assert.True(t, sink.isClosed())
}

func TestClose_QuitLadderGraceful(t *testing.T) {
	fake := newFakeTransport(func(f *fakeTransport, line string) {
		if strings.Fields(line)[0] == string(record.VerbQuit) {
			f.reply("ACK quit ok")
			f.exit()

			return
		}

		ackAll(f, line)
	})
	c := startClient(t, fake, nil)

	fake.reply("DATA emg0 1700000400 9.0")
	require.Eventually(t, func() bool { return c.BufferedFrames() == 1 },
		time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())

	written := fake.writtenLines()
	assert.Equal(t, "quit", written[len(written)-1])
	assert.True(t, fake.isClosed())
	assert.False(t, c.Alive())

	// Buffered frames survive the close and are still pollable.
	frame := c.PollData()
	require.NotNil(t, frame)
	assert.Equal(t, int64(1700000400), frame.Timestamp)

	// A clean close is not a connection loss.
	_, err := c.WaitData(context.Background())
	require.ErrorIs(t, err, errors.ErrBridgeClosed)

	require.ErrorIs(t, c.Connect(context.Background(), "x"), errors.ErrBridgeClosed)
	require.NoError(t, c.Close())
}

func TestClose_KillsWhenQuitIgnored(t *testing.T) {
	fake := newFakeTransport(func(f *fakeTransport, line string) {
		if strings.Fields(line)[0] == string(record.VerbQuit) {
			return // never acks, never exits
		}

		ackAll(f, line)
	})
	c := startClient(t, fake, func(o *config.Options) {
		o.QuitGrace = 80 * time.Millisecond
	})

	start := time.Now()
	require.NoError(t, c.Close())

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, fake.isClosed())
}

func TestClose_WithoutStart(t *testing.T) {
	c := New()
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
