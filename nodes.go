package webaudio

import (
	"math"

	"pipelined.dev/webaudio/audio"
	"pipelined.dev/webaudio/param"
)

type (
	// Destination is the rendering root of context.
	Destination struct {
		node
	}

	// GainNode multiplies its input by gain param.
	GainNode struct {
		node
		gain *param.Param
	}

	// ConstantSourceNode outputs the value of offset param.
	ConstantSourceNode struct {
		node
		ScheduledSource
		offset *param.Param
	}
)

func newDestination(c *Context) *Destination {
	d := &Destination{}
	d.init(c, 1, 0, c.channels, func(*audio.Bus, int) {})
	return d
}

// NewGain creates gain node with default gain 1.
func (c *Context) NewGain() *GainNode {
	n := &GainNode{}
	n.init(c, 1, 1, c.channels, n.process)
	n.gain = c.newParam(&n.node, 1, -math.MaxFloat32, math.MaxFloat32)
	n.meter(n)
	return n
}

// Gain returns a-rate gain param.
func (n *GainNode) Gain() *param.Param {
	return n.gain
}

func (n *GainNode) process(bus *audio.Bus, frames int) {
	gain := n.ctx.evaluate(n.gain, frames)
	for ch := 0; ch < bus.NumChannels(); ch++ {
		data := bus.Data(ch)[:frames]
		for i := range data {
			data[i] *= gain[i]
		}
	}
}

// NewConstantSource creates mono source with default offset 1.
func (c *Context) NewConstantSource() *ConstantSourceNode {
	n := &ConstantSourceNode{}
	n.init(c, 0, 1, 1, n.process)
	n.setup(&n.node)
	n.offset = c.newParam(&n.node, 1, -math.MaxFloat32, math.MaxFloat32)
	n.meter(n)
	return n
}

// Offset returns a-rate offset param.
func (n *ConstantSourceNode) Offset() *param.Param {
	return n.offset
}

func (n *ConstantSourceNode) process(bus *audio.Bus, frames int) {
	offset, nonSilent := n.playback(bus, frames)
	if nonSilent > 0 {
		values := n.ctx.evaluate(n.offset, frames)
		for ch := 0; ch < bus.NumChannels(); ch++ {
			copy(bus.Data(ch)[offset:offset+nonSilent], values[offset:offset+nonSilent])
		}
	}
	n.ended()
}
