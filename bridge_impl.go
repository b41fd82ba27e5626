package sifibridge

import (
	"context"

	"github.com/sifilabs/sifi-bridge-go/internal/client"
)

// bridgeWrapper adapts the internal client to the public interface.
type bridgeWrapper struct {
	impl *client.Client
}

// Compile-time check that *bridgeWrapper implements the Bridge interface.
var _ Bridge = (*bridgeWrapper)(nil)

// newBridgeImpl creates the internal client implementation.
func newBridgeImpl() Bridge {
	return &bridgeWrapper{impl: client.New()}
}

// Start spawns the sifi_bridge process and opens the session.
// Options is an alias of config.Options, so the applied options pass
// straight through.
func (b *bridgeWrapper) Start(ctx context.Context, opts ...Option) error {
	return b.impl.Start(ctx, applyOptions(opts))
}

// Connect establishes a connection to the device named by handle.
func (b *bridgeWrapper) Connect(ctx context.Context, handle string) error {
	return b.impl.Connect(ctx, handle)
}

// Disconnect releases the active device's connection.
func (b *bridgeWrapper) Disconnect(ctx context.Context) error {
	return b.impl.Disconnect(ctx)
}

// StartStreaming begins acquisition on the connected device.
func (b *bridgeWrapper) StartStreaming(ctx context.Context) error {
	return b.impl.StartStreaming(ctx)
}

// StopStreaming halts acquisition.
func (b *bridgeWrapper) StopStreaming(ctx context.Context) error {
	return b.impl.StopStreaming(ctx)
}

// ConfigureChannels selects which biosignal channels to acquire.
func (b *bridgeWrapper) ConfigureChannels(ctx context.Context, mask ChannelMask) error {
	return b.impl.ConfigureChannels(ctx, mask)
}

// ConfigureSampleRates sets the per-channel acquisition rates in hertz.
func (b *bridgeWrapper) ConfigureSampleRates(ctx context.Context, rates SampleRates) error {
	return b.impl.ConfigureSampleRates(ctx, rates)
}

// ConfigureBLEPower sets the radio transmit power.
func (b *bridgeWrapper) ConfigureBLEPower(ctx context.Context, power BLEPower) error {
	return b.impl.ConfigureBLEPower(ctx, power)
}

// ConfigureMemoryMode selects where acquired data lands.
func (b *bridgeWrapper) ConfigureMemoryMode(ctx context.Context, mode MemoryMode) error {
	return b.impl.ConfigureMemoryMode(ctx, mode)
}

// ConfigureFiltering toggles the device's onboard signal filters.
func (b *bridgeWrapper) ConfigureFiltering(ctx context.Context, on bool) error {
	return b.impl.ConfigureFiltering(ctx, on)
}

// ConfigureStreaming toggles live streaming output from the device.
func (b *bridgeWrapper) ConfigureStreaming(ctx context.Context, on bool) error {
	return b.impl.ConfigureStreaming(ctx, on)
}

// ConfigureEMG sets the EMG bandpass corners and mains notch frequency.
func (b *bridgeWrapper) ConfigureEMG(ctx context.Context, bandLow, bandHigh, notch int) error {
	return b.impl.ConfigureEMG(ctx, bandLow, bandHigh, notch)
}

// ConfigureECG sets the ECG bandpass corners.
func (b *bridgeWrapper) ConfigureECG(ctx context.Context, bandLow, bandHigh int) error {
	return b.impl.ConfigureECG(ctx, bandLow, bandHigh)
}

// ConfigureEDA sets the EDA bandpass corners and excitation frequency.
func (b *bridgeWrapper) ConfigureEDA(ctx context.Context, bandLow, bandHigh, signalFreq int) error {
	return b.impl.ConfigureEDA(ctx, bandLow, bandHigh, signalFreq)
}

// ConfigurePPG sets the LED currents and photodiode sensitivity.
func (b *bridgeWrapper) ConfigurePPG(
	ctx context.Context,
	ir, red, green, blue int,
	sensitivity PPGSensitivity,
) error {
	return b.impl.ConfigurePPG(ctx, ir, red, green, blue, sensitivity)
}

// SetConfig issues a raw configure command.
func (b *bridgeWrapper) SetConfig(ctx context.Context, option string, values ...string) error {
	return b.impl.SetConfig(ctx, option, values...)
}

// ListDevices enumerates devices visible from the given source.
func (b *bridgeWrapper) ListDevices(ctx context.Context, source ListSource) ([]string, error) {
	return b.impl.ListDevices(ctx, source)
}

// SelectDevice switches the bridge's active managed device.
func (b *bridgeWrapper) SelectDevice(ctx context.Context, uid string) error {
	return b.impl.SelectDevice(ctx, uid)
}

// CreateDevice registers a named managed device and makes it active.
func (b *bridgeWrapper) CreateDevice(ctx context.Context, uid string) error {
	return b.impl.CreateDevice(ctx, uid)
}

// DeleteDevice removes the active managed device.
func (b *bridgeWrapper) DeleteDevice(ctx context.Context) error {
	return b.impl.DeleteDevice(ctx)
}

// Show reports the active device's configuration as key/value pairs.
func (b *bridgeWrapper) Show(ctx context.Context) (map[string]string, error) {
	return b.impl.Show(ctx)
}

// DownloadMemory starts offloading recordings from device flash.
func (b *bridgeWrapper) DownloadMemory(ctx context.Context) (int, error) {
	return b.impl.DownloadMemory(ctx)
}

// Echo round-trips text through the bridge.
func (b *bridgeWrapper) Echo(ctx context.Context, text string) (string, error) {
	return b.impl.Echo(ctx, text)
}

// PollData returns the oldest buffered data frame without blocking.
func (b *bridgeWrapper) PollData() *DataFrame {
	return b.impl.PollData()
}

// WaitData blocks until a frame is available, the session ends, or ctx is
// done.
func (b *bridgeWrapper) WaitData(ctx context.Context) (*DataFrame, error) {
	return b.impl.WaitData(ctx)
}

// BufferedFrames reports how many frames are waiting to be polled.
func (b *bridgeWrapper) BufferedFrames() int {
	return b.impl.BufferedFrames()
}

// Events returns the channel of unsolicited bridge events.
func (b *bridgeWrapper) Events() <-chan *Event {
	return b.impl.Events()
}

// Alive reports whether the bridge process is currently running.
func (b *bridgeWrapper) Alive() bool {
	return b.impl.Alive()
}

// SessionID returns the unique identifier of this session.
func (b *bridgeWrapper) SessionID() string {
	return b.impl.SessionID()
}

// Close terminates the session and releases the process.
func (b *bridgeWrapper) Close() error {
	return b.impl.Close()
}
