package webaudio

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"pipelined.dev/webaudio/audio"
	"pipelined.dev/webaudio/internal/spsc"
	"pipelined.dev/webaudio/log"
	"pipelined.dev/webaudio/metric"
	"pipelined.dev/webaudio/mp3"
	"pipelined.dev/webaudio/mutable"
	"pipelined.dev/webaudio/param"
	"pipelined.dev/webaudio/threadpool"
	"pipelined.dev/webaudio/wav"
	"pipelined.dev/webaudio/worklet"
)

type (
	// Context owns the nodes of audio graph and renders them. It is an
	// equivalent of BaseAudioContext.
	//
	// Control methods can be called from any goroutine. Render must be
	// called from a single goroutine, usually by device sink.
	Context struct {
		id             string
		sampleRate     float64
		quantumSize    int
		channels       int
		eventQueueSize int
		metrics        bool
		meter          *metric.Meter

		log        log.Logger
		handler    EventHandler
		runner     *worklet.Runner
		poolConfig threadpool.Config
		pool       *threadpool.Pool
		mutations  *mutable.Queue

		destination *Destination

		// control side registry.
		mu     sync.Mutex
		nodes  map[string]*node
		params map[*param.Param]*node

		frame   atomic.Int64
		faults  atomic.Uint64
		dropped atomic.Uint64

		// render side state.
		quantum    uint64
		renderTime float64
		renderFrm  int64
		modulators map[*param.Param][]*node
		events     *spsc.Sender[Event]
		pending    []Event

		decode chan decodeRequest
		stop   chan struct{}
		done   chan struct{}
		closed atomic.Bool
	}

	// DecodeResult is the result of DecodeAudioData.
	DecodeResult struct {
		Buffer *audio.Buffer
		Err    error
	}

	decodeRequest struct {
		path   string
		result chan DecodeResult
	}
)

// NewContext creates a context and starts its event loop. Context must
// be closed to release goroutines.
func NewContext(options ...Option) (*Context, error) {
	c := &Context{
		id:             xid.New().String(),
		sampleRate:     DefaultSampleRate,
		quantumSize:    DefaultQuantumSize,
		channels:       DefaultChannels,
		eventQueueSize: defaultEventQueueSize,
		log:            log.GetLogger(),
		runner:         worklet.NewRunner(nil),
		poolConfig:     threadpool.DefaultConfig(),
		mutations:      mutable.NewQueue(),
		nodes:          make(map[string]*node),
		params:         make(map[*param.Param]*node),
		modulators:     make(map[*param.Param][]*node),
		decode:         make(chan decodeRequest),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}
	pool, err := threadpool.New(c.poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	c.pool = pool
	sender, receiver := spsc.New[Event](c.eventQueueSize, spsc.Park)
	c.events = sender
	c.pending = make([]Event, 0, c.eventQueueSize)
	if c.metrics {
		c.meter = metric.For(c)
	}
	c.destination = newDestination(c)
	go c.loop(receiver)
	return c, nil
}

// ID returns unique context identifier.
func (c *Context) ID() string {
	return c.id
}

// SampleRate returns the sample rate of the context.
func (c *Context) SampleRate() float64 {
	return c.sampleRate
}

// QuantumSize returns the maximum number of frames rendered at once.
func (c *Context) QuantumSize() int {
	return c.quantumSize
}

// Channels returns channel count of destination.
func (c *Context) Channels() int {
	return c.channels
}

// CurrentFrame returns the number of rendered frames.
func (c *Context) CurrentFrame() int64 {
	return c.frame.Load()
}

// CurrentTime returns the time of rendered frames in seconds.
func (c *Context) CurrentTime() float64 {
	return float64(c.frame.Load()) / c.sampleRate
}

// Destination returns the rendering root.
func (c *Context) Destination() *Destination {
	return c.destination
}

// Faults returns number of errors swallowed by render goroutine.
func (c *Context) Faults() uint64 {
	return c.faults.Load()
}

// Render fills out with frames of audio. Frames are processed in
// quantum-sized chunks. Mutations staged by control calls are applied at
// the boundary of every chunk. Render doesn't allocate once graph
// topology is stable.
func (c *Context) Render(out *audio.Bus, frames int) {
	offset := 0
	for offset < frames {
		n := min(c.quantumSize, frames-offset)
		c.mutations.Apply()
		c.flushEvents()
		c.quantum++
		c.renderFrm = c.frame.Load()
		c.renderTime = float64(c.renderFrm) / c.sampleRate
		var start time.Time
		if c.meter != nil {
			start = time.Now()
		}
		bus := c.destination.pull(c.quantum, n)
		if c.meter != nil {
			c.meter.Measure(n, c.sampleRate, time.Since(start))
		}
		out.CopyRange(bus, 0, offset, n)
		c.frame.Add(int64(n))
		offset += n
	}
}

// DecodeAudioData loads wav or mp3 file and resamples it to the context
// sample rate. Decoding is executed on thread pool, the result is sent to
// returned channel.
func (c *Context) DecodeAudioData(path string) <-chan DecodeResult {
	result := make(chan DecodeResult, 1)
	if c.closed.Load() {
		result <- DecodeResult{Err: fmt.Errorf("%w: context is closed", ErrInvalidState)}
		return result
	}
	select {
	case c.decode <- decodeRequest{path: path, result: result}:
	case <-c.done:
		result <- DecodeResult{Err: fmt.Errorf("%w: context is closed", ErrInvalidState)}
	}
	return result
}

// Release removes node from the graph and returns its buses to the
// pool. Released node cannot be used anymore.
func (c *Context) Release(n Node) error {
	b := n.base()
	if b.ctx != c {
		return fmt.Errorf("%w: node %s belongs to another context", ErrInvalidArgument, b.id)
	}
	if b == &c.destination.node {
		return fmt.Errorf("%w: destination cannot be released", ErrInvalidArgument)
	}
	if !b.released.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: node %s is already released", ErrInvalidState, b.id)
	}
	c.mu.Lock()
	delete(c.nodes, b.id)
	for _, p := range b.ownParams {
		delete(c.params, p)
	}
	for dst := range b.outputs {
		delete(dst.sources, b)
	}
	for src := range b.sources {
		delete(src.outputs, b)
	}
	for _, other := range c.nodes {
		for _, p := range b.ownParams {
			delete(other.paramOutputs, p)
		}
	}
	b.outputs = nil
	b.sources = nil
	b.paramOutputs = nil
	c.mu.Unlock()
	c.mutations.Stage(func() {
		for _, out := range b.renderOutputs {
			out.renderInputs = removeNode(out.renderInputs, b)
		}
		for _, in := range b.renderInputs {
			in.renderOutputs = removeNode(in.renderOutputs, b)
		}
		for p, mods := range c.modulators {
			if b.owns(p) {
				delete(c.modulators, p)
				continue
			}
			c.modulators[p] = removeNode(mods, b)
		}
		b.renderInputs, b.renderOutputs = nil, nil
		b.enabled = false
		for _, bus := range b.buses {
			audio.GetPool(bus.NumChannels(), bus.Len()).Put(bus)
		}
		b.buses = nil
	})
	return nil
}

// Close stops event loop and thread pool. Render can still be called
// after Close, but events are not delivered anymore. Close waits for
// running event handlers and must not be called from one of them.
func (c *Context) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.stop)
	<-c.done
	c.pool.Close()
	if dropped := c.dropped.Load(); dropped > 0 {
		c.log.Warn(fmt.Sprintf("context %s dropped %d events", c.id, dropped))
	}
	return nil
}

// loop delivers render events and decode requests to thread pool. It's
// the only goroutine that schedules tasks on the pool.
func (c *Context) loop(events *spsc.Receiver[Event]) {
	defer close(c.done)
	for {
		select {
		case <-events.Ready():
			c.drain(events)
		case req := <-c.decode:
			c.schedule(func() {
				buf, err := load(req.path)
				if err != nil {
					req.result <- DecodeResult{Err: fmt.Errorf("decode %s: %w", req.path, err)}
					return
				}
				req.result <- DecodeResult{Buffer: buf.Resample(c.sampleRate)}
			})
		case <-c.stop:
			c.drain(events)
			return
		}
	}
}

func (c *Context) drain(events *spsc.Receiver[Event]) {
	for {
		e, ok := events.TryReceive()
		if !ok {
			return
		}
		if e.Type == EventFault {
			c.log.Error(fmt.Sprintf("node %s: %v", e.NodeID, e.Err))
		} else {
			c.log.Debug(fmt.Sprintf("node %s: %v", e.NodeID, e.Type))
		}
		if c.handler != nil {
			h := c.handler
			c.schedule(func() {
				h(e)
			})
		}
	}
}

func (c *Context) schedule(task func()) {
	if err := c.pool.Schedule(task); err != nil {
		c.log.Error(fmt.Sprintf("schedule task: %v", err))
	}
}

// load decodes file according to its extension.
func load(path string) (*audio.Buffer, error) {
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		return mp3.Load(path)
	}
	return wav.Load(path)
}

// frameOf converts time into frame index. Times that are within a
// microsecond of frame boundary snap to that frame.
func (c *Context) frameOf(t float64) int64 {
	return int64(math.Ceil(t*c.sampleRate - 1e-6))
}

func (c *Context) newParam(owner *node, defaultValue, minValue, maxValue float32) *param.Param {
	p := param.New(defaultValue, minValue, maxValue,
		param.WithSampleRate(c.sampleRate),
		param.WithQuantumSize(c.quantumSize),
		param.WithStager(c.mutations),
		param.WithClock(c.CurrentTime),
	)
	owner.ownParams = append(owner.ownParams, p)
	c.mu.Lock()
	c.params[p] = owner
	c.mu.Unlock()
	return p
}

// evaluate computes param values for current quantum, adding the signal
// of connected nodes. Returned slice is owned by param.
func (c *Context) evaluate(p *param.Param, frames int) []float32 {
	values := p.Evaluate(frames, c.renderTime).Data(0)[:frames]
	mods := c.modulators[p]
	if len(mods) == 0 {
		return values
	}
	for _, m := range mods {
		bus := m.pull(c.quantum, frames)
		scale := 1 / float32(bus.NumChannels())
		for ch := 0; ch < bus.NumChannels(); ch++ {
			for i, v := range bus.Data(ch)[:frames] {
				values[i] += v * scale
			}
		}
	}
	for i := range values {
		values[i] = p.Clamp(values[i])
	}
	return values
}
