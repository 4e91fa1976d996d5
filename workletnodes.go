package webaudio

import (
	"fmt"

	"pipelined.dev/webaudio/audio"
	"pipelined.dev/webaudio/worklet"
)

// maxWorkletChannels is the channel limit of worklet processing node.
const maxWorkletChannels = 2

type (
	// WorkletSourceNode generates audio with worklet. The worklet is
	// called once per quantum as
	//
	//	worklet(outputs, frames, time, offset)
	//
	// and must fill frames samples of every output starting after offset.
	WorkletSourceNode struct {
		node
		ScheduledSource
		outputs []*worklet.Buffer
		call    *worklet.Call
	}

	// WorkletProcessingNode transforms its input with worklet. The worklet
	// is called once per quantum as
	//
	//	worklet(inputs, outputs, frames, time)
	WorkletProcessingNode struct {
		node
		out     *audio.Bus
		inputs  []*worklet.Buffer
		outputs []*worklet.Buffer
		call    *worklet.Call
	}

	// WorkletNode passes audio through and hands it to worklet in blocks
	// of fixed length:
	//
	//	worklet(buffers, length)
	WorkletNode struct {
		node
		bufferLength int
		buffers      []*worklet.Buffer
		call         *worklet.Call

		// render side.
		filled int
	}
)

// NewWorkletSource creates worklet source with provided channel count.
func (c *Context) NewWorkletSource(h worklet.Handle, channels int) (*WorkletSourceNode, error) {
	if err := validWorklet(h, channels, 0); err != nil {
		return nil, err
	}
	n := &WorkletSourceNode{}
	n.init(c, 0, 1, channels, n.process)
	n.setup(&n.node)
	n.outputs = wrapChannels(n.bus)
	n.call = worklet.NewCall(h, n.outputs, 0, 0.0, 0)
	n.meter(n)
	return n, nil
}

func (n *WorkletSourceNode) process(bus *audio.Bus, frames int) {
	offset, nonSilent := n.playback(bus, frames)
	if nonSilent > 0 {
		n.call.Set(1, float64(nonSilent))
		n.call.Set(2, n.ctx.renderTime)
		n.call.Set(3, float64(offset))
		if _, ok := n.ctx.runner.Execute(n.call); !ok {
			bus.Zero()
		}
	}
	n.ended()
}

// NewWorkletProcessing creates node that processes up to two channels.
func (c *Context) NewWorkletProcessing(h worklet.Handle, channels int) (*WorkletProcessingNode, error) {
	if err := validWorklet(h, channels, maxWorkletChannels); err != nil {
		return nil, err
	}
	n := &WorkletProcessingNode{}
	n.init(c, 1, 1, channels, n.process)
	n.out = n.newBus(channels)
	n.inputs = wrapChannels(n.bus)
	n.outputs = wrapChannels(n.out)
	n.call = worklet.NewCall(h, n.inputs, n.outputs, 0, 0.0)
	n.meter(n)
	return n, nil
}

func (n *WorkletProcessingNode) process(bus *audio.Bus, frames int) {
	n.out.Zero()
	n.call.Set(2, float64(frames))
	n.call.Set(3, n.ctx.renderTime)
	if _, ok := n.ctx.runner.Execute(n.call); !ok {
		bus.Zero()
		return
	}
	bus.Copy(n.out)
}

// NewWorklet creates node that collects bufferLength frames per channel
// before calling the worklet.
func (c *Context) NewWorklet(h worklet.Handle, bufferLength, channels int) (*WorkletNode, error) {
	if err := validWorklet(h, channels, 0); err != nil {
		return nil, err
	}
	if bufferLength <= 0 {
		return nil, fmt.Errorf("%w: buffer length %d", ErrInvalidArgument, bufferLength)
	}
	n := &WorkletNode{
		bufferLength: bufferLength,
		buffers:      make([]*worklet.Buffer, channels),
	}
	for i := range n.buffers {
		n.buffers[i] = worklet.NewBuffer(bufferLength)
	}
	n.call = worklet.NewCall(h, n.buffers, bufferLength)
	n.init(c, 1, 1, channels, n.process)
	n.meter(n)
	return n, nil
}

// BufferLength returns number of frames passed to worklet at once.
func (n *WorkletNode) BufferLength() int {
	return n.bufferLength
}

func (n *WorkletNode) process(bus *audio.Bus, frames int) {
	processed := 0
	for processed < frames {
		k := min(frames-processed, n.bufferLength-n.filled)
		for ch, b := range n.buffers {
			copy(b.Data()[n.filled:n.filled+k], bus.Data(ch)[processed:processed+k])
		}
		n.filled += k
		processed += k
		if n.filled == n.bufferLength {
			// the block is lost if runtime is unavailable.
			n.ctx.runner.Execute(n.call)
			n.filled = 0
		}
	}
}

func validWorklet(h worklet.Handle, channels, maxChannels int) error {
	if !h.Valid() {
		return fmt.Errorf("%w: worklet handle is not registered", ErrInvalidArgument)
	}
	if channels <= 0 || (maxChannels > 0 && channels > maxChannels) {
		return fmt.Errorf("%w: channels %d", ErrInvalidArgument, channels)
	}
	return nil
}

func wrapChannels(bus *audio.Bus) []*worklet.Buffer {
	buffers := make([]*worklet.Buffer, bus.NumChannels())
	for i := range buffers {
		buffers[i] = worklet.Wrap(bus.Data(i))
	}
	return buffers
}
