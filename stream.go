package sifibridge

import (
	"context"
	"errors"
	"iter"
)

// Frames returns an iterator over the bridge's streamed data frames.
//
// Frames are yielded in emission order as they arrive. Iteration ends
// cleanly when the session is closed; any other failure (process death,
// context cancellation) is yielded as the final error. Callers can stop
// early by breaking from the loop.
//
// Example:
//
//	for frame, err := range sifibridge.Frames(ctx, bridge) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    process(frame)
//	}
func Frames(ctx context.Context, b Bridge) iter.Seq2[*DataFrame, error] {
	return func(yield func(*DataFrame, error) bool) {
		for {
			frame, err := b.WaitData(ctx)
			if err != nil {
				if errors.Is(err, ErrBridgeClosed) {
					return
				}

				yield(nil, err)

				return
			}

			if !yield(frame, nil) {
				return
			}
		}
	}
}

// CollectFrames gathers up to n frames from the bridge.
//
// It returns early with the frames gathered so far when the session ends
// cleanly; any other failure is returned alongside them.
func CollectFrames(ctx context.Context, b Bridge, n int) ([]*DataFrame, error) {
	frames := make([]*DataFrame, 0, n)

	for range n {
		frame, err := b.WaitData(ctx)
		if err != nil {
			if errors.Is(err, ErrBridgeClosed) {
				return frames, nil
			}

			return frames, err
		}

		frames = append(frames, frame)
	}

	return frames, nil
}

// DrainFrames removes and returns every frame currently buffered, without
// blocking.
func DrainFrames(b Bridge) []*DataFrame {
	var frames []*DataFrame

	for {
		frame := b.PollData()
		if frame == nil {
			return frames
		}

		frames = append(frames, frame)
	}
}
