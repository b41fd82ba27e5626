package protocol

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sifilabs/sifi-bridge-go/internal/config"
	"github.com/sifilabs/sifi-bridge-go/internal/errors"
	"github.com/sifilabs/sifi-bridge-go/internal/record"
)

// Transport defines the minimal interface needed for correlator operations.
//
// This interface is satisfied by the subprocess PipeTransport but allows for
// testing with fake transports.
type Transport interface {
	ReadLines(ctx context.Context) (<-chan string, <-chan error)
	WriteLine(ctx context.Context, line string) error
}

// Correlator matches bridge replies to issued commands and demultiplexes
// data frames and events out of the shared line stream.
//
// The Correlator handles:
//   - Sending encoded commands and holding the single pending slot
//   - Resolving the pending command with its terminal Ack or ErrorRecord
//   - Routing DataFrames to the frame buffer and the optional frame tap
//   - Delivering Events on a bounded channel with a drop-oldest policy
//   - Command timeout enforcement and stale reply discard
//
// The bridge grammar carries no request IDs: replies correlate to commands
// purely by order. The Correlator therefore admits at most one command at a
// time; a second send while one is awaiting its reply fails fast with
// ErrCommandInFlight instead of silently interleaving.
//
// The Correlator must be started with Start() before use and manages its own
// goroutine for reading and routing records.
type Correlator struct {
	log       *slog.Logger
	transport Transport
	observer  Observer

	// Single-slot pending command tracking
	pendingMu sync.Mutex
	pending   *pendingCommand

	// Data path
	frames *FrameBuffer
	tap    chan<- *record.DataFrame

	// Event delivery
	events  chan *record.Event
	onEvent func(*record.Event)

	// Fatal error handling - stores error and broadcasts via done channel
	errMu    sync.RWMutex
	fatalErr error
	closing  bool

	// Lifecycle management
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// pendingCommand tracks the one outgoing command awaiting its reply.
type pendingCommand struct {
	verb   record.Verb
	reply  chan record.Record
	sentAt time.Time
}

// NewCorrelator creates a new correlator.
//
// The logger receives debug, info, warn, and error messages during protocol
// operations. The transport must be started before calling Start. Event
// buffering and the event callback come from options; nil options get
// defaults.
func NewCorrelator(log *slog.Logger, transport Transport, options *config.Options) *Correlator {
	eventBuffer := config.DefaultEventBuffer

	var onEvent func(*record.Event)

	if options != nil {
		if options.EventBuffer > 0 {
			eventBuffer = options.EventBuffer
		}

		onEvent = options.OnEvent
	}

	return &Correlator{
		log:       log.With("component", "correlator"),
		transport: transport,
		observer:  NopObserver{},
		frames:    NewFrameBuffer(),
		events:    make(chan *record.Event, eventBuffer),
		onEvent:   onEvent,
		done:      make(chan struct{}),
	}
}

// SetObserver installs a metrics observer. Must be called before Start.
func (c *Correlator) SetObserver(observer Observer) {
	if observer != nil {
		c.observer = observer
	}
}

// TapFrames installs a channel that receives a copy of every routed frame.
//
// The tap feeds recording sinks. Sends are non-blocking: when the tap is
// full the frame is dropped for the tap only and counted, so a slow sink can
// never stall the reader loop or starve the polling path. Must be called
// before Start.
func (c *Correlator) TapFrames(tap chan<- *record.DataFrame) {
	c.tap = tap
}

// closeDone safely closes the done channel exactly once.
func (c *Correlator) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SetFatalError stores a fatal error and broadcasts to all waiters by closing done.
func (c *Correlator) SetFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// FatalError returns the fatal error if one occurred.
func (c *Correlator) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the correlator stops.
func (c *Correlator) Done() <-chan struct{} {
	return c.done
}

// Frames returns the buffer holding routed data frames.
func (c *Correlator) Frames() *FrameBuffer {
	return c.frames
}

// Events returns the channel delivering unsolicited bridge events.
//
// The channel is bounded; when it fills, the oldest event is dropped so the
// newest state (battery level, disconnect) is the one a late consumer sees.
// The channel is closed when the correlator stops.
func (c *Correlator) Events() <-chan *record.Event {
	return c.events
}

// Start begins reading lines from the transport and routing records.
//
// This method spawns a goroutine that reads from the transport, decodes
// every line, and routes the resulting records. The goroutine stops when
// the context is cancelled or the transport stream ends.
//
// Start must be called before Send.
func (c *Correlator) Start(ctx context.Context) error {
	c.log.Debug("Starting correlator")

	lines, errs := c.transport.ReadLines(ctx)

	c.wg.Add(1)

	go c.readLoop(ctx, lines, errs)

	c.log.Info("Correlator started")

	return nil
}

// ExpectClose marks an imminent intentional shutdown. The next end of the
// line stream is then treated as a clean exit rather than a connection loss,
// which keeps a quit-induced process exit out of FatalError.
func (c *Correlator) ExpectClose() {
	c.errMu.Lock()
	c.closing = true
	c.errMu.Unlock()
}

func (c *Correlator) isClosing() bool {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.closing
}

// Stop shuts down the correlator.
//
// This method signals the read loop to stop, fails the pending command if
// any, and waits for completion. It's safe to call Stop multiple times.
func (c *Correlator) Stop() {
	c.log.Debug("Stopping correlator")

	c.closeDone()
	c.wg.Wait()
	c.frames.Close()
	c.log.Info("Correlator stopped")
}

// Send issues one command and waits for its terminal reply.
//
// The command is validated, encoded, and written to the transport; Send then
// blocks until the matching Ack arrives, an ErrorRecord rejects the command,
// the timeout expires, or the session dies.
//
// An Ack with a status other than "ok" and every ErrorRecord resolve to a
// *errors.ProtocolError. A timeout resolves to a *errors.TimeoutError and
// frees the pending slot; the eventual late reply is discarded by the
// routing guard.
//
// At most one command may be in flight: concurrent calls fail with
// ErrCommandInFlight.
func (c *Correlator) Send(
	ctx context.Context,
	cmd record.Command,
	timeout time.Duration,
) (*record.Ack, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	pending, err := c.claimSlot(cmd.Verb)
	if err != nil {
		return nil, err
	}

	c.log.Debug("Sending command", "verb", cmd.Verb, "args", cmd.Args)
	c.observer.CommandSent(string(cmd.Verb))

	if err := c.transport.WriteLine(ctx, cmd.Encode()); err != nil {
		c.releaseSlot(pending)
		c.log.Error("Failed to write command", "verb", cmd.Verb, "error", err)

		return nil, fmt.Errorf("send %s: %w", cmd.Verb, err)
	}

	c.log.Debug("Command sent, awaiting reply", "verb", cmd.Verb)

	select {
	case rec := <-pending.reply:
		return c.resolve(cmd.Verb, rec, pending.sentAt)

	case <-c.done:
		// Correlator stopped (possibly due to transport error) - fail fast
		c.releaseSlot(pending)

		if err := c.FatalError(); err != nil {
			c.log.Warn("Session died during command", "verb", cmd.Verb, "error", err)

			return nil, err
		}

		c.log.Debug("Correlator stopped during command", "verb", cmd.Verb)

		return nil, errors.ErrCorrelatorStopped

	case <-time.After(timeout):
		c.releaseSlot(pending)

		c.log.Warn("Command timed out", "verb", cmd.Verb, "timeout", timeout)
		c.observer.CommandResolved(string(cmd.Verb), "timeout", time.Since(pending.sentAt))

		return nil, &errors.TimeoutError{Verb: string(cmd.Verb), Timeout: timeout}

	case <-ctx.Done():
		c.releaseSlot(pending)

		c.log.Debug("Command cancelled", "verb", cmd.Verb)

		return nil, ctx.Err()
	}
}

// claimSlot takes the single pending slot or reports why it cannot.
func (c *Correlator) claimSlot(verb record.Verb) (*pendingCommand, error) {
	select {
	case <-c.done:
		if err := c.FatalError(); err != nil {
			return nil, err
		}

		return nil, errors.ErrCorrelatorStopped
	default:
	}

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if c.pending != nil {
		return nil, fmt.Errorf("%w: %s is awaiting its reply",
			errors.ErrCommandInFlight, c.pending.verb)
	}

	pending := &pendingCommand{
		verb:   verb,
		reply:  make(chan record.Record, 1),
		sentAt: time.Now(),
	}
	c.pending = pending

	return pending, nil
}

// releaseSlot frees the pending slot if this command still owns it.
//
// The routing side may have claimed the slot concurrently; in that case the
// reply sits in the abandoned command's buffered channel and is collected
// with it.
func (c *Correlator) releaseSlot(pending *pendingCommand) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if c.pending == pending {
		c.pending = nil
	}
}

// resolve converts the terminal record into the Send result.
func (c *Correlator) resolve(verb record.Verb, rec record.Record, sentAt time.Time) (*record.Ack, error) {
	switch r := rec.(type) {
	case *record.Ack:
		c.observer.CommandResolved(string(verb), r.Status, time.Since(sentAt))

		if !r.OK() {
			c.log.Warn("Command rejected", "verb", verb, "status", r.Status)

			return nil, &errors.ProtocolError{Code: r.Status, Message: strings.Join(r.Payload, " ")}
		}

		c.log.Debug("Command acknowledged", "verb", verb)

		return r, nil

	case *record.ErrorRecord:
		c.observer.CommandResolved(string(verb), r.Code, time.Since(sentAt))
		c.log.Warn("Command failed", "verb", verb, "code", r.Code, "message", r.Message)

		return nil, r.Err()

	default:
		// Routing guarantees only terminal records reach the reply channel
		return nil, fmt.Errorf("unexpected terminal record %q for %s", rec.RecordType(), verb)
	}
}

// readLoop reads lines from the transport, decodes them, and routes records.
func (c *Correlator) readLoop(ctx context.Context, lines <-chan string, errs <-chan error) {
	defer c.wg.Done()
	defer close(c.events)
	// Closing the buffer lets blocked Wait callers drain and observe the
	// end instead of hanging after the stream dies.
	defer c.frames.Close()
	defer c.log.Debug("Correlator read loop stopped")

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				c.log.Debug("Line channel closed")
				c.handleStreamEnd(errs)

				return
			}

			c.route(record.Decode(line))

		case err, ok := <-errs:
			if !ok {
				c.log.Debug("Error channel closed")

				return
			}

			if err != nil {
				c.log.Debug("Transport error in correlator", "error", err)
				c.failPending(err)

				return
			}

		case <-c.done:
			c.log.Debug("Correlator stop signal received")

			return

		case <-ctx.Done():
			c.log.Debug("Context cancelled in correlator read loop")

			return
		}
	}
}

// handleStreamEnd classifies the end of the line stream.
//
// During an intentional shutdown the end is expected and only completes the
// done broadcast. Otherwise the transport closes both channels together and
// an exit error may still sit buffered in errs, so it is harvested before
// deciding. A stream end without an intentional stop means the bridge went
// away; the pending and all subsequent commands must fail with the
// connection loss.
func (c *Correlator) handleStreamEnd(errs <-chan error) {
	if c.isClosing() {
		c.log.Debug("Stream ended during shutdown")
		c.closeDone()

		return
	}

	select {
	case err, ok := <-errs:
		if ok && err != nil {
			c.failPending(err)

			return
		}
	default:
	}

	select {
	case <-c.done:
		// Intentional stop already in progress
	default:
		c.failPending(&errors.ConnectionLostError{Err: io.EOF})
	}
}

// failPending records the fatal error and broadcasts it to the pending
// command and all future sends.
func (c *Correlator) failPending(err error) {
	c.SetFatalError(err)
}

// route dispatches one decoded record to its destination.
func (c *Correlator) route(rec record.Record) {
	switch r := rec.(type) {
	case *record.Ack, *record.ErrorRecord:
		c.routeReply(rec)

	case *record.DataFrame:
		c.routeFrame(r)

	case *record.Event:
		c.routeEvent(r)

	case *record.Malformed:
		c.observer.MalformedLine()
		c.log.Warn("Discarding malformed bridge line", "line", r.Line, "error", r.Err)
	}
}

// routeReply resolves the pending command with a terminal record.
//
// A reply with nothing awaiting it, or an ack whose verb does not match the
// pending command, is a late reply to an already timed-out command: logged
// and discarded without touching the pending slot.
func (c *Correlator) routeReply(rec record.Record) {
	ack, isAck := rec.(*record.Ack)

	c.pendingMu.Lock()

	pending := c.pending

	if pending == nil {
		c.pendingMu.Unlock()

		verb := ""
		if isAck {
			verb = ack.Verb
		}

		c.observer.StaleReply(verb)
		c.log.Warn("Discarding reply with no command awaiting", "record", rec.RecordType(), "verb", verb)

		return
	}

	if isAck && ack.Verb != string(pending.verb) {
		c.pendingMu.Unlock()

		c.observer.StaleReply(ack.Verb)
		c.log.Warn("Discarding stale reply",
			"reply_verb", ack.Verb,
			"awaiting_verb", pending.verb,
		)

		return
	}

	c.pending = nil
	c.pendingMu.Unlock()

	// Send to waiting goroutine (we own it now, blocking is safe since channel is buffered)
	pending.reply <- rec
}

// routeFrame delivers a data frame to the buffer and the optional tap.
func (c *Correlator) routeFrame(frame *record.DataFrame) {
	c.frames.Push(frame)
	c.observer.FrameRouted(frame.ChannelID, len(frame.Samples))
	c.observer.BufferDepth(c.frames.Len())

	if c.tap == nil {
		return
	}

	select {
	case c.tap <- frame:
	default:
		c.observer.FrameTapDropped()
	}
}

// routeEvent delivers an event to the callback and the bounded channel.
//
// When the channel is full the oldest event is dropped so consumers always
// see the most recent device state.
func (c *Correlator) routeEvent(event *record.Event) {
	if event.Kind == record.EventDisconnected {
		c.log.Warn("Bridge reported device disconnect", "payload", event.Payload)
	}

	if c.onEvent != nil {
		c.onEvent(event)
	}

	select {
	case c.events <- event:
		c.observer.EventRouted(event.Kind)

		return
	default:
	}

	select {
	case dropped := <-c.events:
		c.observer.EventDropped(dropped.Kind)
		c.log.Warn("Event channel full, dropping oldest", "dropped_kind", dropped.Kind)
	default:
	}

	select {
	case c.events <- event:
		c.observer.EventRouted(event.Kind)
	default:
	}
}
