package sifibridge

import (
	"context"
)

// Bridge provides a stateful interface to one sifi_bridge process.
//
// A Bridge owns the process for its whole life: Start spawns it, commands
// run strictly one at a time over its stdin/stdout pipes, and Close shuts it
// down gracefully before killing it as a last resort.
//
// Lifecycle: Bridges are single-use. After Close(), create a new bridge with
// New().
//
// Example usage:
//
//	bridge := New()
//	defer bridge.Close()
//
//	err := bridge.Start(ctx,
//	    WithLogger(slog.Default()),
//	    WithCommandTimeout(5*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := bridge.Connect(ctx, "BioPoint_v1_3"); err != nil {
//	    log.Fatal(err)
//	}
//
//	err = bridge.ConfigureChannels(ctx, ChannelMask{ECG: true, EMG: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := bridge.StartStreaming(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Poll frames without blocking
//	if frame := bridge.PollData(); frame != nil {
//	    fmt.Println(frame.ChannelID, frame.Samples)
//	}
//
//	// Or block until the next frame arrives
//	frame, err := bridge.WaitData(ctx)
type Bridge interface {
	// Start spawns the sifi_bridge process and opens the session.
	// Must be called before any other method. The context bounds
	// initialization only; the session lives until Close.
	// Returns a *SpawnError when the executable cannot be found or started.
	Start(ctx context.Context, opts ...Option) error

	// Connect establishes a connection to the device named by handle: a MAC
	// address ("a1:b2:c3:d4:e5:f6") or a device name such as
	// "BioPoint_v1_3".
	Connect(ctx context.Context, handle string) error

	// Disconnect releases the active device's connection. The device stays
	// managed; Connect can re-establish the link.
	Disconnect(ctx context.Context) error

	// StartStreaming begins acquisition on the connected device. Frames
	// arrive on PollData/WaitData and on any configured sinks.
	StartStreaming(ctx context.Context) error

	// StopStreaming halts acquisition. Frames already emitted remain
	// buffered and can still be polled.
	StopStreaming(ctx context.Context) error

	// ConfigureChannels selects which biosignal channels to acquire.
	ConfigureChannels(ctx context.Context, mask ChannelMask) error

	// ConfigureSampleRates sets the per-channel acquisition rates in hertz.
	ConfigureSampleRates(ctx context.Context, rates SampleRates) error

	// ConfigureBLEPower sets the radio transmit power.
	ConfigureBLEPower(ctx context.Context, power BLEPower) error

	// ConfigureMemoryMode selects where acquired data lands: streamed to
	// the host, recorded to device flash, or both.
	ConfigureMemoryMode(ctx context.Context, mode MemoryMode) error

	// ConfigureFiltering toggles the device's onboard signal filters.
	ConfigureFiltering(ctx context.Context, on bool) error

	// ConfigureStreaming toggles live streaming output from the device.
	ConfigureStreaming(ctx context.Context, on bool) error

	// ConfigureEMG sets the EMG bandpass corners and mains notch frequency
	// in hertz. Onboard filtering is switched on first.
	ConfigureEMG(ctx context.Context, bandLow, bandHigh, notch int) error

	// ConfigureECG sets the ECG bandpass corners in hertz. Onboard
	// filtering is switched on first.
	ConfigureECG(ctx context.Context, bandLow, bandHigh int) error

	// ConfigureEDA sets the EDA bandpass corners and excitation signal
	// frequency in hertz. Onboard filtering is switched on first.
	ConfigureEDA(ctx context.Context, bandLow, bandHigh, signalFreq int) error

	// ConfigurePPG sets the four LED currents in milliamps and the
	// photodiode sensitivity.
	ConfigurePPG(ctx context.Context, ir, red, green, blue int, sensitivity PPGSensitivity) error

	// SetConfig issues a raw configure command for options this layer does
	// not model. The typed Configure methods are preferred.
	SetConfig(ctx context.Context, option string, values ...string) error

	// ListDevices enumerates devices visible from the given source. The
	// returned names are usable as Connect handles.
	ListDevices(ctx context.Context, source ListSource) ([]string, error)

	// SelectDevice switches the bridge's active managed device.
	SelectDevice(ctx context.Context, uid string) error

	// CreateDevice registers a named managed device and makes it active.
	CreateDevice(ctx context.Context, uid string) error

	// DeleteDevice removes the active managed device.
	DeleteDevice(ctx context.Context) error

	// Show reports the active device's configuration as key/value pairs.
	Show(ctx context.Context) (map[string]string, error)

	// DownloadMemory starts offloading recordings from device flash. It
	// returns the announced size in kilobytes, or -1 when the bridge does
	// not report one. The recordings arrive as frames on the data path.
	DownloadMemory(ctx context.Context) (int, error)

	// Echo round-trips text through the bridge. Useful as a liveness probe.
	Echo(ctx context.Context, text string) (string, error)

	// PollData returns the oldest buffered data frame, or nil when the
	// buffer is empty. It never blocks and never drops: every frame the
	// bridge emitted is returned exactly once, in emission order.
	PollData() *DataFrame

	// WaitData blocks until a frame is available, the session ends, or ctx
	// is done. After the process dies, frames buffered before the death are
	// still drained in order before the loss is reported.
	WaitData(ctx context.Context) (*DataFrame, error)

	// BufferedFrames reports how many frames are waiting to be polled.
	BufferedFrames() int

	// Events returns the channel of unsolicited bridge events such as
	// battery levels and disconnect notices. The channel is closed when the
	// session ends. Returns nil before Start.
	Events() <-chan *Event

	// Alive reports whether the bridge process is currently running.
	Alive() bool

	// SessionID returns the unique identifier of this session, or "" before
	// Start.
	SessionID() string

	// Close terminates the session: quit, a bounded grace wait, then kill.
	// After Close(), the bridge cannot be reused. Safe to call multiple
	// times.
	Close() error
}

// New creates a new bridge.
//
// Call Start() with options to spawn the process and begin a session:
//
//	bridge := New()
//	err := bridge.Start(ctx,
//	    WithLogger(slog.Default()),
//	    WithExecutable("/usr/local/bin/sifi_bridge"),
//	)
func New() Bridge {
	return newBridgeImpl()
}
