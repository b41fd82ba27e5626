package sifibridge

import (
	"context"
	"errors"
	"iter"
	"time"
)

// Acquire runs a complete acquisition as a single call: it spawns the
// bridge, connects to the device named by handle, enables the masked
// channels, streams for the given duration, then stops streaming,
// disconnects, and shuts the process down.
//
// Frames are yielded in emission order as they arrive. A zero or negative
// duration streams until the consumer breaks from the loop or ctx ends.
// Frames already emitted when the duration elapses are drained before the
// iterator finishes, so nothing the device sent is lost.
//
// An empty mask leaves the device's current channel selection untouched.
//
// Errors during setup or streaming are yielded as the final pair, then the
// iterator stops. The bridge process is always cleaned up, however the
// iteration ends.
//
// Example:
//
//	mask := sifibridge.ChannelMask{EMG: true}
//	for frame, err := range sifibridge.Acquire(ctx, "BioPoint_v1_3", mask, 10*time.Second) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    process(frame)
//	}
func Acquire(
	ctx context.Context,
	handle string,
	mask ChannelMask,
	duration time.Duration,
	opts ...Option,
) iter.Seq2[*DataFrame, error] {
	return func(yield func(*DataFrame, error) bool) {
		options := applyOptions(opts)

		log := options.Logger
		if log == nil {
			log = NopLogger()
		}

		log = log.With("component", "acquire")
		log.Debug("Starting acquisition", "handle", handle, "duration", duration)

		bridge := New()

		defer func() {
			if err := bridge.Close(); err != nil {
				log.Warn("Failed to close bridge", "error", err)
			}
		}()

		if err := bridge.Start(ctx, opts...); err != nil {
			yield(nil, err)

			return
		}

		if err := bridge.Connect(ctx, handle); err != nil {
			yield(nil, err)

			return
		}

		if !mask.Empty() {
			if err := bridge.ConfigureChannels(ctx, mask); err != nil {
				yield(nil, err)

				return
			}
		}

		if err := bridge.StartStreaming(ctx); err != nil {
			yield(nil, err)

			return
		}

		streamCtx := ctx

		if duration > 0 {
			var cancel context.CancelFunc

			streamCtx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}

		stopped := false

		for {
			frame, err := bridge.WaitData(streamCtx)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
					log.Debug("Acquisition window elapsed")

					break
				}

				if errors.Is(err, ErrBridgeClosed) {
					break
				}

				yield(nil, err)

				return
			}

			if !yield(frame, nil) {
				stopped = true

				break
			}
		}

		// Best effort: the device should not keep acquiring after we leave.
		if err := bridge.StopStreaming(ctx); err != nil {
			log.Debug("Failed to stop streaming during teardown", "error", err)
		}

		if !stopped {
			for _, frame := range DrainFrames(bridge) {
				if !yield(frame, nil) {
					break
				}
			}
		}

		if err := bridge.Disconnect(ctx); err != nil {
			log.Debug("Failed to disconnect during teardown", "error", err)
		}
	}
}
