package sifibridge

import (
	"context"
	"fmt"
)

// WithBridge manages bridge lifecycle with automatic cleanup.
//
// This helper creates a bridge, starts it with the provided options,
// executes the callback function, and ensures proper cleanup via Close()
// when done.
//
// The callback receives a fully initialized Bridge that is ready for use.
// If the callback returns an error, it is returned to the caller.
// If Close() fails, a warning is logged but does not override the
// callback's error.
//
// Example usage:
//
//	err := sifibridge.WithBridge(ctx, func(b sifibridge.Bridge) error {
//	    if err := b.Connect(ctx, "BioPoint_v1_3"); err != nil {
//	        return err
//	    }
//	    if err := b.StartStreaming(ctx); err != nil {
//	        return err
//	    }
//	    frame, err := b.WaitData(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(frame.ChannelID, frame.Samples)
//	    return b.StopStreaming(ctx)
//	},
//	    sifibridge.WithLogger(log),
//	)
func WithBridge(ctx context.Context, fn func(Bridge) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	bridge := New()
	if err := bridge.Start(ctx, opts...); err != nil {
		return fmt.Errorf("failed to start bridge: %w", err)
	}

	defer func() {
		if closeErr := bridge.Close(); closeErr != nil {
			log.Warn("failed to close bridge", "error", closeErr)
		}
	}()

	return fn(bridge)
}
