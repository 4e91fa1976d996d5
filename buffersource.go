package webaudio

import (
	"fmt"
	"math"

	"pipelined.dev/webaudio/audio"
	"pipelined.dev/webaudio/param"
)

// BufferSourceNode plays audio.Buffer, optionally looping a region.
type BufferSourceNode struct {
	node
	ScheduledSource
	playbackRate *param.Param

	// render side.
	channels  [][]float32
	position  float64
	loop      bool
	loopStart float64
	loopEnd   float64
}

// NewBufferSource creates buffer source with destination channel count.
func (c *Context) NewBufferSource() *BufferSourceNode {
	n := &BufferSourceNode{}
	n.init(c, 0, 1, c.channels, n.process)
	n.setup(&n.node)
	n.playbackRate = c.newParam(&n.node, 1, -math.MaxFloat32, math.MaxFloat32)
	n.meter(n)
	return n
}

// PlaybackRate returns k-rate playback speed param.
func (n *BufferSourceNode) PlaybackRate() *param.Param {
	return n.playbackRate
}

// SetBuffer sets the buffer to play. Buffer is resampled to the context
// sample rate if needed.
func (n *BufferSourceNode) SetBuffer(b *audio.Buffer) error {
	if b == nil || b.NumChannels() == 0 {
		return fmt.Errorf("%w: empty buffer", ErrInvalidArgument)
	}
	b = b.Resample(n.ctx.sampleRate)
	channels := make([][]float32, n.channelCount)
	for i := range channels {
		// mono and narrow buffers repeat their last channel.
		src, err := b.Channel(min(i, b.NumChannels()-1))
		if err != nil {
			return err
		}
		channels[i] = src
	}
	n.ctx.mutations.Stage(func() {
		n.channels = channels
		n.position = 0
	})
	return nil
}

// SetLoop enables looping of region [start, end) in seconds. Zero end
// means the end of buffer.
func (n *BufferSourceNode) SetLoop(loop bool, start, end float64) error {
	if err := validWhen(start); err != nil {
		return err
	}
	if err := validWhen(end); err != nil {
		return err
	}
	if end != 0 && end <= start {
		return fmt.Errorf("%w: loop end %v before start %v", ErrInvalidArgument, end, start)
	}
	startFrame, endFrame := start*n.ctx.sampleRate, end*n.ctx.sampleRate
	n.ctx.mutations.Stage(func() {
		n.loop, n.loopStart, n.loopEnd = loop, startFrame, endFrame
	})
	return nil
}

func (n *BufferSourceNode) process(bus *audio.Bus, frames int) {
	offset, nonSilent := n.playback(bus, frames)
	if nonSilent > 0 {
		if len(n.channels) == 0 {
			bus.Zero()
		} else {
			n.render(bus, offset, nonSilent)
		}
	}
	n.ended()
}

func (n *BufferSourceNode) render(bus *audio.Bus, offset, nonSilent int) {
	length := float64(len(n.channels[0]))
	start, end := 0.0, length
	if n.loop {
		start = min(n.loopStart, length)
		if n.loopEnd > 0 {
			end = min(n.loopEnd, length)
		}
	}
	rate := float64(n.playbackRate.KRate(n.ctx.renderTime))
	for i := offset; i < offset+nonSilent; i++ {
		if n.loop && end > start {
			for n.position >= end {
				n.position -= end - start
			}
			for n.position < 0 {
				n.position += end - start
			}
		} else if n.position >= length || n.position < 0 {
			bus.ZeroRange(i, offset+nonSilent-i)
			n.finish()
			return
		}
		idx := int(n.position)
		frac := float32(n.position - float64(idx))
		next := idx + 1
		if next >= len(n.channels[0]) {
			next = idx
		}
		for ch, src := range n.channels {
			bus.Data(ch)[i] = src[idx] + (src[next]-src[idx])*frac
		}
		n.position += rate
	}
}
