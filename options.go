package webaudio

import (
	"fmt"
	"math"

	"pipelined.dev/webaudio/log"
	"pipelined.dev/webaudio/threadpool"
	"pipelined.dev/webaudio/worklet"
)

const (
	minSampleRate = 8000
	maxSampleRate = 96000

	// DefaultSampleRate is used if no sample rate option is provided.
	DefaultSampleRate = 44100
	// DefaultQuantumSize is the number of frames rendered at once.
	DefaultQuantumSize = 128
	// DefaultChannels is the channel count of destination.
	DefaultChannels = 2

	defaultEventQueueSize = 64
)

// Option provides a way to set functional parameters to context.
type Option func(c *Context) error

// WithSampleRate sets sample rate of the context. Real-time contexts
// additionally require the rate to be supported by devices.
func WithSampleRate(sampleRate float64) Option {
	return func(c *Context) error {
		if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
			return fmt.Errorf("%w: sample rate %v", ErrInvalidArgument, sampleRate)
		}
		c.sampleRate = sampleRate
		return nil
	}
}

// WithQuantumSize sets the number of frames rendered at once.
func WithQuantumSize(size int) Option {
	return func(c *Context) error {
		if size <= 0 {
			return fmt.Errorf("%w: quantum size %d", ErrInvalidArgument, size)
		}
		c.quantumSize = size
		return nil
	}
}

// WithChannels sets channel count of destination.
func WithChannels(channels int) Option {
	return func(c *Context) error {
		if channels <= 0 {
			return fmt.Errorf("%w: channels %d", ErrInvalidArgument, channels)
		}
		c.channels = channels
		return nil
	}
}

// WithLogger sets logger to context. If this option is not provided,
// log.GetLogger is used.
func WithLogger(logger log.Logger) Option {
	return func(c *Context) error {
		c.log = logger
		return nil
	}
}

// WithThreadPool sets the size of thread pool that runs event handlers
// and decoding.
func WithThreadPool(cfg threadpool.Config) Option {
	return func(c *Context) error {
		c.poolConfig = cfg
		return nil
	}
}

// WithWorkletEngine sets the runtime for worklet nodes. Context doesn't
// own the engine and only keeps a weak reference to it.
func WithWorkletEngine(e *worklet.Engine) Option {
	return func(c *Context) error {
		c.runner = worklet.NewRunner(e)
		return nil
	}
}

// WithEventHandler sets the handler of render events. Handler is
// executed on thread pool and Close waits for it to return, so the
// handler must not call Close directly. Start Close on another goroutine
// instead.
func WithEventHandler(h EventHandler) Option {
	return func(c *Context) error {
		c.handler = h
		return nil
	}
}

// WithEventQueueSize sets capacity of the channel between render
// goroutine and event loop.
func WithEventQueueSize(size int) Option {
	return func(c *Context) error {
		if size <= 0 {
			return fmt.Errorf("%w: event queue size %d", ErrInvalidArgument, size)
		}
		c.eventQueueSize = size
		return nil
	}
}

// WithMetrics enables expvar metrics for every node of the context.
func WithMetrics() Option {
	return func(c *Context) error {
		c.metrics = true
		return nil
	}
}
