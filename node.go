package webaudio

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"pipelined.dev/webaudio/audio"
	"pipelined.dev/webaudio/metric"
	"pipelined.dev/webaudio/param"
)

// Node is a vertex of audio graph.
type Node interface {
	ID() string
	Context() *Context
	Connect(dst Node) error
	ConnectParam(p *param.Param) error
	Disconnect(dst Node) error
	DisconnectParam(p *param.Param) error
	DisconnectAll()
	NumberOfInputs() int
	NumberOfOutputs() int
	ChannelCount() int
	Enable()
	Disable()
	Enabled() bool
	base() *node
}

// processFunc transforms the bus that holds the sum of inputs.
type processFunc func(bus *audio.Bus, frames int)

// node implements the pull protocol. Concrete node types embed it and
// provide process function.
type node struct {
	id              string
	ctx             *Context
	numberOfInputs  int
	numberOfOutputs int
	channelCount    int
	process         processFunc
	ownParams       []*param.Param
	metered         *metric.Meter

	initialized atomic.Bool
	released    atomic.Bool
	enabledFlag atomic.Bool

	// control side, guarded by context mutex.
	outputs      map[*node]struct{}
	sources      map[*node]struct{}
	paramOutputs map[*param.Param]struct{}

	// render side.
	renderInputs  []*node
	renderOutputs []*node
	enabled       bool
	lastQuantum   uint64
	faulted       bool
	bus           *audio.Bus
	buses         []*audio.Bus
}

// init sets up the node and registers it in context. Node is initialized
// unless explicitly stated.
func (n *node) init(c *Context, inputs, outputs, channels int, process processFunc) {
	n.id = xid.New().String()
	n.ctx = c
	n.numberOfInputs = inputs
	n.numberOfOutputs = outputs
	n.channelCount = channels
	n.process = process
	n.outputs = make(map[*node]struct{})
	n.sources = make(map[*node]struct{})
	n.paramOutputs = make(map[*param.Param]struct{})
	n.enabled = true
	n.enabledFlag.Store(true)
	n.initialized.Store(true)
	n.bus = n.newBus(channels)
	c.mu.Lock()
	c.nodes[n.id] = n
	c.mu.Unlock()
}

// meter enables metrics for node if context is configured so.
func (n *node) meter(concrete interface{}) {
	if n.ctx.metrics {
		n.metered = metric.For(concrete)
	}
}

// newBus takes the bus from pool. It is returned back on release.
func (n *node) newBus(channels int) *audio.Bus {
	b := audio.GetPool(channels, n.ctx.quantumSize).Get()
	n.buses = append(n.buses, b)
	return b
}

func (n *node) base() *node {
	return n
}

// ID returns unique node identifier.
func (n *node) ID() string {
	return n.id
}

// Context returns the context that owns the node.
func (n *node) Context() *Context {
	return n.ctx
}

// NumberOfInputs returns number of node inputs.
func (n *node) NumberOfInputs() int {
	return n.numberOfInputs
}

// NumberOfOutputs returns number of node outputs.
func (n *node) NumberOfOutputs() int {
	return n.numberOfOutputs
}

// ChannelCount returns number of channels in node output.
func (n *node) ChannelCount() int {
	return n.channelCount
}

// Enabled returns true if node is processing audio.
func (n *node) Enabled() bool {
	return n.enabledFlag.Load()
}

// Enable resumes processing at the next quantum.
func (n *node) Enable() {
	n.setEnabled(true)
}

// Disable makes node output silent from the next quantum.
func (n *node) Disable() {
	n.setEnabled(false)
}

func (n *node) setEnabled(enabled bool) {
	n.enabledFlag.Store(enabled)
	n.ctx.mutations.Stage(func() {
		n.enabled = enabled
	})
}

// Connect routes the output of node to dst input.
func (n *node) Connect(dst Node) error {
	if dst == nil {
		return fmt.Errorf("%w: nil destination", ErrInvalidArgument)
	}
	d := dst.base()
	if err := n.validate(d.ctx); err != nil {
		return err
	}
	if d.released.Load() {
		return fmt.Errorf("%w: node %s is released", ErrInvalidState, d.id)
	}
	switch {
	case d == n:
		return fmt.Errorf("%w: node %s connected to itself", ErrInvalidArgument, n.id)
	case n.numberOfOutputs == 0:
		return fmt.Errorf("%w: node %s has no outputs", ErrInvalidArgument, n.id)
	case d.numberOfInputs == 0:
		return fmt.Errorf("%w: node %s has no inputs", ErrInvalidArgument, d.id)
	}
	c := n.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	// Release marks the node before taking the lock.
	if err := n.checkReleased(d); err != nil {
		return err
	}
	if _, ok := n.outputs[d]; ok {
		return nil
	}
	n.outputs[d] = struct{}{}
	d.sources[n] = struct{}{}
	c.mutations.Stage(func() {
		n.renderOutputs = append(n.renderOutputs, d)
		d.renderInputs = append(d.renderInputs, n)
	})
	return nil
}

// ConnectParam routes the output of node to param. Node signal is mixed
// down to mono and added to param automation at audio rate.
func (n *node) ConnectParam(p *param.Param) error {
	if p == nil {
		return fmt.Errorf("%w: nil param", ErrInvalidArgument)
	}
	if err := n.validate(n.ctx); err != nil {
		return err
	}
	if n.numberOfOutputs == 0 {
		return fmt.Errorf("%w: node %s has no outputs", ErrInvalidArgument, n.id)
	}
	c := n.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := n.checkReleased(); err != nil {
		return err
	}
	if _, ok := c.params[p]; !ok {
		return fmt.Errorf("%w: param belongs to another context", ErrInvalidArgument)
	}
	if _, ok := n.paramOutputs[p]; ok {
		return nil
	}
	n.paramOutputs[p] = struct{}{}
	c.mutations.Stage(func() {
		c.modulators[p] = append(c.modulators[p], n)
	})
	return nil
}

// Disconnect removes connection to dst.
func (n *node) Disconnect(dst Node) error {
	if dst == nil {
		return fmt.Errorf("%w: nil destination", ErrInvalidArgument)
	}
	d := dst.base()
	c := n.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := n.outputs[d]; !ok {
		return fmt.Errorf("%w: node %s is not connected to %s", ErrInvalidArgument, n.id, d.id)
	}
	delete(n.outputs, d)
	delete(d.sources, n)
	c.mutations.Stage(func() {
		n.renderOutputs = removeNode(n.renderOutputs, d)
		d.renderInputs = removeNode(d.renderInputs, n)
	})
	return nil
}

// DisconnectParam removes connection to param.
func (n *node) DisconnectParam(p *param.Param) error {
	c := n.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := n.paramOutputs[p]; !ok {
		return fmt.Errorf("%w: node %s is not connected to param", ErrInvalidArgument, n.id)
	}
	delete(n.paramOutputs, p)
	c.mutations.Stage(func() {
		c.modulators[p] = removeNode(c.modulators[p], n)
	})
	return nil
}

// DisconnectAll removes all outgoing connections.
func (n *node) DisconnectAll() {
	c := n.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	for d := range n.outputs {
		delete(d.sources, n)
	}
	clear(n.outputs)
	params := make([]*param.Param, 0, len(n.paramOutputs))
	for p := range n.paramOutputs {
		params = append(params, p)
	}
	clear(n.paramOutputs)
	c.mutations.Stage(func() {
		for _, d := range n.renderOutputs {
			d.renderInputs = removeNode(d.renderInputs, n)
		}
		clear(n.renderOutputs)
		n.renderOutputs = n.renderOutputs[:0]
		for _, p := range params {
			c.modulators[p] = removeNode(c.modulators[p], n)
		}
	})
}

func (n *node) validate(c *Context) error {
	if c != n.ctx {
		return fmt.Errorf("%w: nodes belong to different contexts", ErrInvalidArgument)
	}
	return n.checkReleased()
}

// checkReleased returns ErrInvalidState if node or any of others is
// released.
func (n *node) checkReleased(others ...*node) error {
	if n.released.Load() {
		return fmt.Errorf("%w: node %s is released", ErrInvalidState, n.id)
	}
	for _, o := range others {
		if o.released.Load() {
			return fmt.Errorf("%w: node %s is released", ErrInvalidState, o.id)
		}
	}
	return nil
}

func (n *node) owns(p *param.Param) bool {
	for _, own := range n.ownParams {
		if own == p {
			return true
		}
	}
	return false
}

// pull renders the node for quantum q. Every node is processed once per
// quantum, consequent pulls return the same bus. It also guarantees that
// cycles terminate.
func (n *node) pull(q uint64, frames int) *audio.Bus {
	if n.lastQuantum == q {
		return n.bus
	}
	n.lastQuantum = q
	n.bus.Zero()
	if !n.initialized.Load() {
		if !n.faulted {
			n.faulted = true
			n.ctx.fault(n, ErrNotInitialized)
		}
		return n.bus
	}
	if !n.enabled {
		return n.bus
	}
	for _, in := range n.renderInputs {
		n.bus.Sum(in.pull(q, frames))
	}
	if n.metered == nil {
		n.process(n.bus, frames)
		return n.bus
	}
	start := time.Now()
	n.process(n.bus, frames)
	n.metered.Measure(frames, n.ctx.sampleRate, time.Since(start))
	return n.bus
}

// removeNode deletes node from slice in place.
func removeNode(nodes []*node, n *node) []*node {
	for i := range nodes {
		if nodes[i] == n {
			copy(nodes[i:], nodes[i+1:])
			nodes[len(nodes)-1] = nil
			return nodes[:len(nodes)-1]
		}
	}
	return nodes
}
