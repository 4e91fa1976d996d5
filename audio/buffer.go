package audio

import (
	"fmt"
	"time"

	"github.com/oov/audio/resampler"
)

// resampleQuality is a quality level of resampler, 0..10.
const resampleQuality = 10

// Buffer is an in-memory asset of arbitrary length, usually decoded from
// a file. Unlike Bus it is not bound to render quantum.
type Buffer struct {
	sampleRate float64
	channels   [][]float32
}

// NewBuffer allocates a silent buffer.
func NewBuffer(numChannels, length int, sampleRate float64) *Buffer {
	b := Buffer{
		sampleRate: sampleRate,
		channels:   make([][]float32, numChannels),
	}
	for i := range b.channels {
		b.channels[i] = make([]float32, length)
	}
	return &b
}

// BufferOf wraps provided channels. All channels must have equal length.
func BufferOf(sampleRate float64, channels ...[]float32) *Buffer {
	return &Buffer{
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// SampleRate of the buffer.
func (b *Buffer) SampleRate() float64 {
	return b.sampleRate
}

// NumChannels of the buffer.
func (b *Buffer) NumChannels() int {
	return len(b.channels)
}

// Len returns number of frames.
func (b *Buffer) Len() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

// Duration of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.sampleRate == 0 {
		return 0
	}
	return time.Duration(float64(b.Len()) / b.sampleRate * float64(time.Second))
}

// Channel returns samples of channel i.
func (b *Buffer) Channel(i int) ([]float32, error) {
	if i < 0 || i >= len(b.channels) {
		return nil, fmt.Errorf("%w: channel %d of %d", ErrOutOfRange, i, len(b.channels))
	}
	return b.channels[i], nil
}

// WriteBus copies n frames of bus into the buffer at offset.
func (b *Buffer) WriteBus(bus *Bus, offset, n int) {
	for i := 0; i < min(len(b.channels), bus.NumChannels()); i++ {
		copy(b.channels[i][offset:offset+n], bus.Data(i)[:n])
	}
}

// Resample returns a copy of the buffer converted to provided sample rate.
// The same buffer is returned if rates are already equal.
func (b *Buffer) Resample(sampleRate float64) *Buffer {
	if sampleRate == b.sampleRate || b.Len() == 0 {
		return b
	}
	in, out := int(b.sampleRate), int(sampleRate)
	rs := resampler.New(len(b.channels), in, out, resampleQuality)
	length := int(float64(b.Len())*sampleRate/b.sampleRate) + 1
	result := &Buffer{
		sampleRate: sampleRate,
		channels:   make([][]float32, len(b.channels)),
	}
	for ch, src := range b.channels {
		dst := make([]float32, length)
		var read, written int
		for read < len(src) && written < len(dst) {
			r, w := rs.ProcessFloat32(ch, src[read:], dst[written:])
			if r == 0 && w == 0 {
				break
			}
			read += r
			written += w
		}
		result.channels[ch] = dst[:written]
	}
	// channels may differ by a frame, align them.
	n := length
	for _, c := range result.channels {
		n = min(n, len(c))
	}
	for i := range result.channels {
		result.channels[i] = result.channels[i][:n]
	}
	return result
}
