package client

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sifilabs/sifi-bridge-go/internal/config"
	"github.com/sifilabs/sifi-bridge-go/internal/device"
	"github.com/sifilabs/sifi-bridge-go/internal/errors"
	"github.com/sifilabs/sifi-bridge-go/internal/observability"
	"github.com/sifilabs/sifi-bridge-go/internal/protocol"
	"github.com/sifilabs/sifi-bridge-go/internal/record"
	"github.com/sifilabs/sifi-bridge-go/internal/recorder"
	"github.com/sifilabs/sifi-bridge-go/internal/subprocess"
)

// sinkQueueSize is the capacity of the tap between the protocol reader and
// the sink pump. When the pump falls behind, frames are dropped for sinks
// only; the polling path keeps every frame.
const sinkQueueSize = 256

// Client manages one sifi_bridge process and the command protocol on top of
// it.
//
// The Client maintains session state across commands:
//   - Spawns and supervises the bridge process via the subprocess transport
//   - Correlates command replies and demultiplexes frames and events
//   - Feeds recording sinks from a tap off the streaming path
//   - Tears the session down with quit, a bounded grace wait, then kill
//
// A Client is single-use: create with New, connect with Start, release with
// Close. After Close every command fails with ErrBridgeClosed.
type Client struct {
	log     *slog.Logger
	options *config.Options

	transport  config.Transport
	correlator *protocol.Correlator
	session    *protocol.Session

	// sessionCtx outlives the Start context. A deadline on the caller's
	// context bounds initialization only; it must not tear down the spawned
	// process once the session is up.
	sessionCtx    context.Context
	sessionCancel context.CancelFunc

	eg   *errgroup.Group
	tap  chan *record.DataFrame
	sink recorder.FrameSink

	mu        sync.Mutex
	connected bool
	closed    bool

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New creates a new client. Call Start to spawn the bridge and open the
// session.
func New() *Client {
	return &Client{
		done: make(chan struct{}),
	}
}

// Start spawns the bridge process and brings the session up.
//
// The context bounds initialization; the session itself lives until Close.
// A nil options value gets defaults: executable discovery on the standard
// paths, silent logging, and no sinks.
func (c *Client) Start(ctx context.Context, options *config.Options) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return errors.ErrBridgeClosed
	}

	if c.connected {
		c.mu.Unlock()

		return errors.ErrAlreadyStarted
	}
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if options == nil {
		options = &config.Options{}
	}

	c.options = options

	c.log = options.Logger
	if c.log == nil {
		c.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c.sessionCtx, c.sessionCancel = context.WithCancel(context.Background())

	if err := c.initializeCore(); err != nil {
		c.sessionCancel()

		return err
	}

	c.eg, _ = errgroup.WithContext(c.sessionCtx)

	if c.sink != nil {
		c.eg.Go(func() error {
			c.pumpFrames()

			return nil
		})
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.log.Info("Bridge session started",
		"session_id", c.session.ID,
		"exec_path", c.session.ExecPath)

	return nil
}

// initializeCore spawns the transport and wires the correlator, observer,
// sinks, and session identity.
func (c *Client) initializeCore() error {
	transport := c.options.Transport
	if transport == nil {
		transport = subprocess.NewPipeTransport(c.log, c.options)
	}

	c.transport = transport

	if err := transport.Start(c.sessionCtx); err != nil {
		return fmt.Errorf("failed to start transport: %w", err)
	}

	c.correlator = protocol.NewCorrelator(c.log, transport, c.options)

	if c.options.Metrics != nil {
		c.correlator.SetObserver(observability.New(c.options.Metrics))
	}

	if len(c.options.Sinks) > 0 {
		c.sink = recorder.NewMultiSink(c.options.Sinks...)
		c.tap = make(chan *record.DataFrame, sinkQueueSize)
		c.correlator.TapFrames(c.tap)
	}

	if err := c.correlator.Start(c.sessionCtx); err != nil {
		if closeErr := transport.Close(); closeErr != nil {
			c.log.Warn("Failed to close transport after correlator start error", "error", closeErr)
		}

		return fmt.Errorf("failed to start correlator: %w", err)
	}

	execPath := ""
	if p, ok := transport.(interface{ ExecPath() string }); ok {
		execPath = p.ExecPath()
	}

	c.session = protocol.NewSession(execPath, c.options.Args)

	return nil
}

// pumpFrames drains the frame tap into the configured sinks. Sink errors
// are logged and never fail the session. On shutdown the remaining queued
// frames are flushed before the sinks close.
func (c *Client) pumpFrames() {
	defer func() {
		if err := c.sink.Close(); err != nil {
			c.log.Warn("Failed to close frame sinks", "error", err)
		}
	}()

	for {
		select {
		case frame := <-c.tap:
			c.writeSink(frame)

		case <-c.done:
			for {
				select {
				case frame := <-c.tap:
					c.writeSink(frame)
				default:
					return
				}
			}
		}
	}
}

func (c *Client) writeSink(frame *record.DataFrame) {
	if err := c.sink.WriteFrame(frame); err != nil {
		c.log.Warn("Frame sink write failed", "channel", frame.ChannelID, "error", err)
	}
}

// send issues one command and waits for its terminal reply.
func (c *Client) send(ctx context.Context, cmd record.Command) (*record.Ack, error) {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return nil, errors.ErrBridgeClosed
	}

	if !c.connected {
		c.mu.Unlock()

		return nil, errors.ErrNotStarted
	}
	c.mu.Unlock()

	return c.correlator.Send(ctx, cmd, c.commandTimeout())
}

func (c *Client) commandTimeout() time.Duration {
	if c.options != nil && c.options.CommandTimeout > 0 {
		return c.options.CommandTimeout
	}

	return config.DefaultCommandTimeout
}

func (c *Client) quitGrace() time.Duration {
	if c.options != nil && c.options.QuitGrace > 0 {
		return c.options.QuitGrace
	}

	return config.DefaultQuitGrace
}

// Connect establishes a connection to the device named by handle: a MAC
// address ("a1:b2:c3:d4:e5:f6") or a device name such as "BioPoint_v1_3".
func (c *Client) Connect(ctx context.Context, handle string) error {
	if err := validateHandle(handle); err != nil {
		return err
	}

	_, err := c.send(ctx, record.NewCommand(record.VerbConnect, handle))

	return err
}

// Disconnect releases the active device's connection. The device itself
// stays managed; Connect can re-establish the link.
func (c *Client) Disconnect(ctx context.Context) error {
	_, err := c.send(ctx, record.NewCommand(record.VerbDisconnect))

	return err
}

// StartStreaming begins acquisition on the connected device. Frames arrive
// on the data path (PollData, WaitData) and on any configured sinks.
func (c *Client) StartStreaming(ctx context.Context) error {
	_, err := c.send(ctx, record.NewCommand(record.VerbStart))

	return err
}

// StopStreaming halts acquisition. Frames already emitted by the device
// remain buffered and can still be polled.
func (c *Client) StopStreaming(ctx context.Context) error {
	_, err := c.send(ctx, record.NewCommand(record.VerbStop))

	return err
}

// SetConfig issues a raw configure command. The typed Configure helpers are
// preferred; SetConfig is the escape hatch for options this layer does not
// model.
func (c *Client) SetConfig(ctx context.Context, option string, values ...string) error {
	if option == "" {
		return fmt.Errorf("configure option is empty")
	}

	args := append([]string{option}, values...)
	_, err := c.send(ctx, record.NewCommand(record.VerbConfigure, args...))

	return err
}

// ConfigureChannels selects which biosignal channels the device acquires.
func (c *Client) ConfigureChannels(ctx context.Context, mask device.ChannelMask) error {
	return c.SetConfig(ctx, "channels", mask.Flags()...)
}

// ConfigureSampleRates sets the per-channel acquisition rates in hertz.
func (c *Client) ConfigureSampleRates(ctx context.Context, rates device.SampleRates) error {
	if err := rates.Validate(); err != nil {
		return err
	}

	return c.SetConfig(ctx, "sampling-rates", rates.Args()...)
}

// ConfigureBLEPower sets the radio transmit power.
func (c *Client) ConfigureBLEPower(ctx context.Context, power device.BLEPower) error {
	if !power.Valid() {
		return fmt.Errorf("invalid BLE power %q", power)
	}

	return c.SetConfig(ctx, "ble-power", string(power))
}

// ConfigureMemoryMode selects where acquired data lands: streamed to the
// host, recorded to device flash, or both.
func (c *Client) ConfigureMemoryMode(ctx context.Context, mode device.MemoryMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid memory mode %q", mode)
	}

	return c.SetConfig(ctx, "memory", string(mode))
}

// ConfigureFiltering toggles the device's onboard signal filters.
func (c *Client) ConfigureFiltering(ctx context.Context, on bool) error {
	return c.SetConfig(ctx, "filtering", onOff(on))
}

// ConfigureStreaming toggles live streaming output from the device.
func (c *Client) ConfigureStreaming(ctx context.Context, on bool) error {
	return c.SetConfig(ctx, "streaming-mode", onOff(on))
}

// ConfigureEMG sets the EMG bandpass corners and mains notch frequency, all
// in hertz. Onboard filtering is switched on first.
func (c *Client) ConfigureEMG(ctx context.Context, bandLow, bandHigh, notch int) error {
	if err := validateBand(bandLow, bandHigh); err != nil {
		return fmt.Errorf("EMG: %w", err)
	}

	if err := c.ConfigureFiltering(ctx, true); err != nil {
		return err
	}

	return c.SetConfig(ctx, "emg",
		strconv.Itoa(bandLow), strconv.Itoa(bandHigh), strconv.Itoa(notch))
}

// ConfigureECG sets the ECG bandpass corners in hertz. Onboard filtering is
// switched on first.
func (c *Client) ConfigureECG(ctx context.Context, bandLow, bandHigh int) error {
	if err := validateBand(bandLow, bandHigh); err != nil {
		return fmt.Errorf("ECG: %w", err)
	}

	if err := c.ConfigureFiltering(ctx, true); err != nil {
		return err
	}

	return c.SetConfig(ctx, "ecg", strconv.Itoa(bandLow), strconv.Itoa(bandHigh))
}

// ConfigureEDA sets the EDA bandpass corners and excitation signal
// frequency, all in hertz. Onboard filtering is switched on first.
func (c *Client) ConfigureEDA(ctx context.Context, bandLow, bandHigh, signalFreq int) error {
	if err := validateBand(bandLow, bandHigh); err != nil {
		return fmt.Errorf("EDA: %w", err)
	}

	if err := c.ConfigureFiltering(ctx, true); err != nil {
		return err
	}

	return c.SetConfig(ctx, "eda",
		strconv.Itoa(bandLow), strconv.Itoa(bandHigh), strconv.Itoa(signalFreq))
}

// ConfigurePPG sets the four LED currents in milliamps and the photodiode
// sensitivity.
func (c *Client) ConfigurePPG(
	ctx context.Context,
	ir, red, green, blue int,
	sensitivity device.PPGSensitivity,
) error {
	if !sensitivity.Valid() {
		return fmt.Errorf("invalid PPG sensitivity %q", sensitivity)
	}

	return c.SetConfig(ctx, "ppg",
		strconv.Itoa(ir), strconv.Itoa(red), strconv.Itoa(green), strconv.Itoa(blue),
		string(sensitivity))
}

// ListDevices asks the bridge to enumerate devices from the given source.
// The returned names are usable as Connect handles.
func (c *Client) ListDevices(ctx context.Context, source device.ListSource) ([]string, error) {
	if !source.Valid() {
		return nil, fmt.Errorf("invalid list source %q", source)
	}

	ack, err := c.send(ctx, record.NewCommand(record.VerbList, string(source)))
	if err != nil {
		return nil, err
	}

	return ack.Payload, nil
}

// SelectDevice switches the bridge's active managed device.
func (c *Client) SelectDevice(ctx context.Context, uid string) error {
	if err := validateHandle(uid); err != nil {
		return err
	}

	_, err := c.send(ctx, record.NewCommand(record.VerbSelect, uid))

	return err
}

// CreateDevice registers a named managed device with the bridge and makes
// it the active one.
func (c *Client) CreateDevice(ctx context.Context, uid string) error {
	if err := validateHandle(uid); err != nil {
		return err
	}

	_, err := c.send(ctx, record.NewCommand(record.VerbCreate, uid))

	return err
}

// DeleteDevice removes the active managed device.
func (c *Client) DeleteDevice(ctx context.Context) error {
	_, err := c.send(ctx, record.NewCommand(record.VerbDelete))

	return err
}

// Show reports the active device's configuration as key/value pairs.
// Payload tokens that are not in key=value form are skipped.
func (c *Client) Show(ctx context.Context) (map[string]string, error) {
	ack, err := c.send(ctx, record.NewCommand(record.VerbShow))
	if err != nil {
		return nil, err
	}

	status := make(map[string]string, len(ack.Payload))

	for _, token := range ack.Payload {
		key, value, found := strings.Cut(token, "=")
		if !found {
			c.log.Debug("Skipping show token without key=value form", "token", token)

			continue
		}

		status[key] = value
	}

	return status, nil
}

// DownloadMemory starts offloading recordings from device flash. It returns
// the announced payload size in kilobytes, or -1 when the bridge does not
// report one. The recordings themselves arrive as frames on the data path.
func (c *Client) DownloadMemory(ctx context.Context) (int, error) {
	ack, err := c.send(ctx, record.NewCommand(record.VerbDownload, "memory"))
	if err != nil {
		return 0, err
	}

	if len(ack.Payload) == 0 {
		return -1, nil
	}

	kb, err := strconv.Atoi(ack.Payload[0])
	if err != nil {
		return -1, nil //nolint:nilerr // size is advisory; an unparseable one is treated as absent
	}

	return kb, nil
}

// Echo round-trips text through the bridge. Useful as a liveness probe.
func (c *Client) Echo(ctx context.Context, text string) (string, error) {
	ack, err := c.send(ctx, record.NewCommand(record.VerbEcho, strings.Fields(text)...))
	if err != nil {
		return "", err
	}

	return strings.Join(ack.Payload, " "), nil
}

// PollData returns the oldest buffered data frame, or nil when the buffer
// is empty. It never blocks and never drops: every frame the bridge emitted
// is returned exactly once, in emission order.
func (c *Client) PollData() *record.DataFrame {
	correlator := c.getCorrelator()
	if correlator == nil {
		return nil
	}

	return correlator.Frames().Poll()
}

// WaitData blocks until a data frame is available, the session ends, or ctx
// is done. When the bridge process dies, frames buffered before the death
// are still drained in order before the loss is reported.
func (c *Client) WaitData(ctx context.Context) (*record.DataFrame, error) {
	correlator := c.getCorrelator()
	if correlator == nil {
		return nil, errors.ErrNotStarted
	}

	frame, err := correlator.Frames().Wait(ctx)
	if err != nil {
		if stderrors.Is(err, errors.ErrBridgeClosed) {
			if fatal := correlator.FatalError(); fatal != nil {
				return nil, fatal
			}
		}

		return nil, err
	}

	return frame, nil
}

// BufferedFrames reports how many data frames are waiting to be polled.
func (c *Client) BufferedFrames() int {
	correlator := c.getCorrelator()
	if correlator == nil {
		return 0
	}

	return correlator.Frames().Len()
}

// Events returns the channel of unsolicited bridge events. The channel is
// closed when the session ends. Returns nil before Start.
func (c *Client) Events() <-chan *record.Event {
	correlator := c.getCorrelator()
	if correlator == nil {
		return nil
	}

	return correlator.Events()
}

// Alive reports whether the bridge process is currently running.
func (c *Client) Alive() bool {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()

	if transport == nil {
		return false
	}

	return transport.Alive()
}

// SessionID returns the unique identifier of this session, or "" before
// Start.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return ""
	}

	return c.session.ID
}

// Session returns the session descriptor, or nil before Start.
func (c *Client) Session() *protocol.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session
}

// FatalError returns the sticky error that ended the session, or nil while
// the session is healthy or after a clean Close.
func (c *Client) FatalError() error {
	correlator := c.getCorrelator()
	if correlator == nil {
		return nil
	}

	return correlator.FatalError()
}

func (c *Client) getCorrelator() *protocol.Correlator {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.correlator
}

// Close ends the session. It asks the bridge to quit, waits up to QuitGrace
// for a clean exit, then kills the process if it lingers. Close is
// idempotent and safe to call concurrently; later calls return the first
// result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		wasConnected := c.connected
		c.connected = false
		c.mu.Unlock()

		close(c.done)

		if !wasConnected {
			if c.sessionCancel != nil {
				c.sessionCancel()
			}

			return
		}

		c.log.Info("Closing bridge session", "session_id", c.SessionID())

		c.closeErr = c.shutdownTransport()

		c.correlator.Stop()
		c.sessionCancel()

		if err := c.eg.Wait(); err != nil {
			c.log.Warn("Background task failed during close", "error", err)
		}

		c.log.Debug("Bridge session closed")
	})

	return c.closeErr
}

// shutdownTransport runs the quit, grace wait, kill ladder.
//
// The quit command goes through the correlator so its ack is consumed and
// the resulting end-of-stream is observed; ExpectClose keeps that exit from
// being classified as a connection loss. Only after the grace period is the
// process killed.
func (c *Client) shutdownTransport() error {
	deadline := time.Now().Add(c.quitGrace())

	c.correlator.ExpectClose()

	quitCtx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	if _, err := c.correlator.Send(quitCtx, record.NewCommand(record.VerbQuit), c.quitGrace()); err != nil {
		c.log.Debug("Quit command not acknowledged", "error", err)
	}

	select {
	case <-c.correlator.Done():
		c.log.Debug("Bridge exited on quit")
	case <-time.After(time.Until(deadline)):
		c.log.Warn("Bridge ignored quit; killing process", "grace", c.quitGrace())
	}

	return c.transport.Close()
}

// validateHandle rejects device handles the line grammar cannot carry.
func validateHandle(handle string) error {
	if handle == "" {
		return fmt.Errorf("device handle is empty")
	}

	if strings.ContainsAny(handle, " \t") {
		return fmt.Errorf("device handle %q contains whitespace", handle)
	}

	return nil
}

// validateBand rejects bandpass corners the device would refuse.
func validateBand(low, high int) error {
	if low <= 0 || high <= low {
		return fmt.Errorf("invalid bandpass %d-%d Hz", low, high)
	}

	return nil
}

// onOff renders a boolean in the bridge's switch grammar.
func onOff(on bool) string {
	if on {
		return "on"
	}

	return "off"
}
