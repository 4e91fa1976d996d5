package webaudio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"pipelined.dev/webaudio/device"
)

// State of real-time context.
type State int32

const (
	// Suspended context doesn't render.
	Suspended State = iota
	// Running context is rendered by device.
	Running
	// Closed context released all its resources.
	Closed
)

func (s State) String() string {
	switch s {
	case Suspended:
		return "suspended"
	case Running:
		return "running"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// AudioContext renders the graph to the output device.
type AudioContext struct {
	*Context
	sink  device.Sink
	mu    sync.Mutex // only for state transitions.
	state atomic.Int32
}

// NewAudioContext creates context that is rendered by the sink. Context
// is created in suspended state.
func NewAudioContext(sink device.Sink, options ...Option) (*AudioContext, error) {
	if sink == nil {
		return nil, fmt.Errorf("%w: nil sink", ErrInvalidArgument)
	}
	c, err := NewContext(options...)
	if err != nil {
		return nil, err
	}
	if c.sampleRate < minSampleRate || c.sampleRate > maxSampleRate {
		c.Close()
		return nil, fmt.Errorf("%w: sample rate %v out of [%d, %d]", ErrInvalidArgument, c.sampleRate, minSampleRate, maxSampleRate)
	}
	return &AudioContext{
		Context: c,
		sink:    sink,
	}, nil
}

// State returns current state.
func (c *AudioContext) State() State {
	return State(c.state.Load())
}

// Resume starts rendering by device.
func (c *AudioContext) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.State() {
	case Closed:
		return fmt.Errorf("%w: context is closed", ErrInvalidState)
	case Running:
		return nil
	}
	if err := c.sink.Start(c.Render); err != nil {
		return fmt.Errorf("start device: %w", err)
	}
	c.state.Store(int32(Running))
	return nil
}

// Suspend stops rendering by device. Current time doesn't advance while
// context is suspended.
func (c *AudioContext) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.State() {
	case Closed:
		return fmt.Errorf("%w: context is closed", ErrInvalidState)
	case Suspended:
		return nil
	}
	if err := c.sink.Stop(); err != nil {
		return fmt.Errorf("stop device: %w", err)
	}
	c.state.Store(int32(Suspended))
	return nil
}

// Close stops the device and releases context resources. Consequent
// calls are no-op.
func (c *AudioContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() == Closed {
		return nil
	}
	c.state.Store(int32(Closed))
	var errs closeErrors
	if err := c.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close device: %w", err))
	}
	if err := c.Context.Close(); err != nil {
		errs = append(errs, err)
	}
	return errs.ret()
}
