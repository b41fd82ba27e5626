package protocol

import (
	"context"
	"sync"

	"github.com/sifilabs/sifi-bridge-go/internal/errors"
	"github.com/sifilabs/sifi-bridge-go/internal/record"
)

// FrameBuffer is an unbounded FIFO of data frames shared between the reader
// loop (sole producer) and the consuming caller.
//
// Frames are never dropped and are handed out in the exact order the bridge
// emitted them. The buffer grows without bound; the caller keeps it small by
// draining, which is the documented streaming contract.
type FrameBuffer struct {
	mu     sync.Mutex
	frames []*record.DataFrame

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewFrameBuffer creates an empty frame buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push appends a frame and wakes a blocked Wait call.
//
// Push after Close is a no-op; late frames from a dying reader are dropped
// rather than handed to a caller that already shut down.
func (b *FrameBuffer) Push(frame *record.DataFrame) {
	select {
	case <-b.done:
		return
	default:
	}

	b.mu.Lock()
	b.frames = append(b.frames, frame)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Poll removes and returns the oldest buffered frame without blocking.
//
// Returns nil when the buffer is empty.
func (b *FrameBuffer) Poll() *record.DataFrame {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.frames) == 0 {
		return nil
	}

	frame := b.frames[0]
	b.frames = b.frames[1:]

	return frame
}

// Wait blocks until a frame is available, the context ends, or the buffer
// closes.
//
// Buffered frames are drained before the closed state is reported, so a
// consumer never loses frames that arrived ahead of shutdown. After the
// final frame, Wait returns errors.ErrBridgeClosed.
func (b *FrameBuffer) Wait(ctx context.Context) (*record.DataFrame, error) {
	for {
		if frame := b.Poll(); frame != nil {
			return frame, nil
		}

		select {
		case <-b.notify:
		case <-b.done:
			if frame := b.Poll(); frame != nil {
				return frame, nil
			}

			return nil, errors.ErrBridgeClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len reports how many frames are currently buffered.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.frames)
}

// Close marks the buffer closed and wakes all blocked Wait calls.
//
// Safe to call multiple times.
func (b *FrameBuffer) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
}
