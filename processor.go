package webaudio

import (
	"fmt"

	"pipelined.dev/webaudio/audio"
)

type (
	// Processor transforms the bus in place. Bus holds the sum of node
	// inputs. Process is called on render goroutine and must not block.
	Processor interface {
		Process(bus *audio.Bus, frames int)
	}

	// Initializer is implemented by processors that need to allocate
	// resources before rendering.
	Initializer interface {
		Initialize(sampleRate float64, quantumSize, channels int) error
	}

	// ProcessorFunc is an adapter to use ordinary functions as
	// processors.
	ProcessorFunc func(bus *audio.Bus, frames int)

	// ProcessorNode runs custom Go processor.
	ProcessorNode struct {
		node
		processor Processor
	}
)

// Process calls f(bus, frames).
func (f ProcessorFunc) Process(bus *audio.Bus, frames int) {
	f(bus, frames)
}

// NewProcessor creates node with one input and one output. If processor
// implements Initializer, the node is initialized only after the hook
// succeeds. If the hook fails, the node is returned together with the
// error and renders silence until Initialize succeeds.
func (c *Context) NewProcessor(p Processor, channels int) (*ProcessorNode, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil processor", ErrInvalidArgument)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channels %d", ErrInvalidArgument, channels)
	}
	n := &ProcessorNode{processor: p}
	n.init(c, 1, 1, channels, p.Process)
	n.meter(p)
	if _, ok := p.(Initializer); ok {
		n.initialized.Store(false)
		return n, n.Initialize()
	}
	return n, nil
}

// Initialize runs initializer hook of processor. It's a no-op for
// initialized nodes.
func (n *ProcessorNode) Initialize() error {
	if n.initialized.Load() {
		return nil
	}
	i, ok := n.processor.(Initializer)
	if ok {
		if err := i.Initialize(n.ctx.sampleRate, n.ctx.quantumSize, n.channelCount); err != nil {
			return fmt.Errorf("initialize node %s: %w", n.id, err)
		}
	}
	n.initialized.Store(true)
	return nil
}

// Initialized returns true if node can be rendered.
func (n *ProcessorNode) Initialized() bool {
	return n.initialized.Load()
}

// Processor returns wrapped processor.
func (n *ProcessorNode) Processor() Processor {
	return n.processor
}
