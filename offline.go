package webaudio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"pipelined.dev/webaudio/audio"
)

// OfflineContext renders the graph into a buffer as fast as possible.
type OfflineContext struct {
	*Context
	length  int
	started atomic.Bool

	mu        sync.Mutex
	suspends  map[int64]chan struct{}
	suspended bool
	resume    chan struct{}
}

// NewOfflineContext creates context that renders length frames.
func NewOfflineContext(length int, options ...Option) (*OfflineContext, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidArgument, length)
	}
	c, err := NewContext(options...)
	if err != nil {
		return nil, err
	}
	return &OfflineContext{
		Context:  c,
		length:   length,
		suspends: make(map[int64]chan struct{}),
		resume:   make(chan struct{}, 1),
	}, nil
}

// Length returns number of frames to render.
func (c *OfflineContext) Length() int {
	return c.length
}

// StartRendering renders the graph and returns the result. It can be
// called only once. Rendering is interrupted if ctx is done.
func (c *OfflineContext) StartRendering(ctx context.Context) (*audio.Buffer, error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: rendering is already started", ErrInvalidState)
	}
	result := audio.NewBuffer(c.channels, c.length, c.sampleRate)
	bus := audio.NewBus(c.channels, c.quantumSize)
	for frame := 0; frame < c.length; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.suspendAt(ctx, int64(frame)); err != nil {
			return nil, err
		}
		n := min(c.quantumSize, c.length-frame)
		c.Render(bus, n)
		result.WriteBus(bus, frame, n)
		frame += n
	}
	return result, nil
}

// Suspend schedules suspension of rendering at time t. Time is rounded
// up to the quantum boundary. Returned channel is closed when rendering
// is suspended, Resume must be called to continue.
func (c *OfflineContext) Suspend(t float64) (<-chan struct{}, error) {
	if err := validWhen(t); err != nil {
		return nil, err
	}
	q := float64(c.quantumSize)
	frame := int64(math.Ceil(float64(c.frameOf(t))/q) * q)
	if frame >= int64(c.length) {
		return nil, fmt.Errorf("%w: suspend time %v beyond length", ErrInvalidArgument, t)
	}
	if frame < c.CurrentFrame() || (c.started.Load() && frame == c.CurrentFrame()) {
		return nil, fmt.Errorf("%w: suspend time %v is already rendered", ErrInvalidState, t)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.suspends[frame]; ok {
		return nil, fmt.Errorf("%w: suspend at frame %d is already scheduled", ErrInvalidState, frame)
	}
	done := make(chan struct{})
	c.suspends[frame] = done
	return done, nil
}

// Resume continues suspended rendering.
func (c *OfflineContext) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.suspended {
		return fmt.Errorf("%w: rendering is not suspended", ErrInvalidState)
	}
	c.suspended = false
	c.resume <- struct{}{}
	return nil
}

func (c *OfflineContext) suspendAt(ctx context.Context, frame int64) error {
	c.mu.Lock()
	done, ok := c.suspends[frame]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.suspends, frame)
	c.suspended = true
	close(done)
	c.mu.Unlock()
	select {
	case <-c.resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
