package audio

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned when channel or sample index is beyond bounds.
var ErrOutOfRange = errors.New("out of range")

// Bus is an ordered set of equal-length channels. Number of channels is
// fixed at construction.
type Bus struct {
	length   int
	channels []*Array
}

// NewBus allocates a bus with numChannels channels of length samples.
func NewBus(numChannels, length int) *Bus {
	b := &Bus{
		length:   length,
		channels: make([]*Array, numChannels),
	}
	for i := range b.channels {
		b.channels[i] = NewArray(length)
	}
	return b
}

// NumChannels returns number of channels.
func (b *Bus) NumChannels() int {
	return len(b.channels)
}

// Len returns the number of samples per channel.
func (b *Bus) Len() int {
	return b.length
}

// Channel returns the array of channel i.
func (b *Bus) Channel(i int) (*Array, error) {
	if i < 0 || i >= len(b.channels) {
		return nil, fmt.Errorf("%w: channel %d of %d", ErrOutOfRange, i, len(b.channels))
	}
	return b.channels[i], nil
}

// Data returns samples of channel i. It panics if i is out of range and
// should only be used after NumChannels check.
func (b *Bus) Data(i int) []float32 {
	return b.channels[i].data
}

// Zero silences every channel.
func (b *Bus) Zero() {
	for _, c := range b.channels {
		c.Zero()
	}
}

// ZeroRange silences n frames starting at offset in every channel.
func (b *Bus) ZeroRange(offset, n int) {
	for _, c := range b.channels {
		c.ZeroRange(offset, n)
	}
}

// Scale multiplies every channel by gain.
func (b *Bus) Scale(gain float32) {
	for _, c := range b.channels {
		c.Scale(gain)
	}
}

// Copy replaces content of the bus with src, mixing channels when counts
// differ.
func (b *Bus) Copy(src *Bus) {
	if b == src {
		return
	}
	if len(b.channels) == len(src.channels) {
		for i, c := range b.channels {
			c.Copy(src.channels[i])
		}
		return
	}
	b.Zero()
	b.Sum(src)
}

// CopyRange replaces n frames of the bus starting at dstOffset with
// frames of src starting at srcOffset. Channels are mixed with the same
// rules as Sum, channels without a source are silenced.
func (b *Bus) CopyRange(src *Bus, srcOffset, dstOffset, n int) {
	dst, in := len(b.channels), len(src.channels)
	switch {
	case dst == in:
		for i, c := range b.channels {
			copy(c.data[dstOffset:dstOffset+n], src.channels[i].data[srcOffset:srcOffset+n])
		}
	case in == 1:
		for _, c := range b.channels {
			copy(c.data[dstOffset:dstOffset+n], src.channels[0].data[srcOffset:srcOffset+n])
		}
	case dst == 1:
		out := b.channels[0].data[dstOffset : dstOffset+n]
		clear(out)
		scale := 1 / float32(in)
		for _, c := range src.channels {
			for i, v := range c.data[srcOffset : srcOffset+n] {
				out[i] += v * scale
			}
		}
	default:
		b.ZeroRange(dstOffset, n)
		for i := 0; i < min(dst, in); i++ {
			copy(b.channels[i].data[dstOffset:dstOffset+n], src.channels[i].data[srcOffset:srcOffset+n])
		}
	}
}

// Sum mixes src into the bus. Channel mapping follows speaker rules:
// equal layouts add per channel, mono is added to every channel, many
// channels are averaged into mono, other layouts add their common
// channels.
func (b *Bus) Sum(src *Bus) {
	dst, in := len(b.channels), len(src.channels)
	switch {
	case dst == in:
		for i, c := range b.channels {
			c.Sum(src.channels[i])
		}
	case in == 1:
		for _, c := range b.channels {
			c.Sum(src.channels[0])
		}
	case dst == 1:
		out := b.channels[0].data
		scale := 1 / float32(in)
		for _, c := range src.channels {
			n := min(len(out), len(c.data))
			for i := 0; i < n; i++ {
				out[i] += c.data[i] * scale
			}
		}
	default:
		for i := 0; i < min(dst, in); i++ {
			b.channels[i].Sum(src.channels[i])
		}
	}
}
