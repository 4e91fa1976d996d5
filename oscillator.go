package webaudio

import (
	"fmt"
	"math"
	"sync/atomic"

	"pipelined.dev/webaudio/audio"
	"pipelined.dev/webaudio/param"
)

// Waveform of oscillator.
type Waveform int32

const (
	// Sine wave.
	Sine Waveform = iota
	// Square wave.
	Square
	// Sawtooth wave.
	Sawtooth
	// Triangle wave.
	Triangle
)

func (w Waveform) String() string {
	switch w {
	case Sine:
		return "sine"
	case Square:
		return "square"
	case Sawtooth:
		return "sawtooth"
	case Triangle:
		return "triangle"
	}
	return "unknown"
}

// maxDetune is the detune range in cents.
const maxDetune = 153600

// OscillatorNode is a mono periodic waveform source.
type OscillatorNode struct {
	node
	ScheduledSource
	frequency *param.Param
	detune    *param.Param
	waveform  atomic.Int32

	// render side.
	phase float64
}

// NewOscillator creates sine oscillator with frequency 440 Hz.
func (c *Context) NewOscillator() *OscillatorNode {
	n := &OscillatorNode{}
	n.init(c, 0, 1, 1, n.process)
	n.setup(&n.node)
	nyquist := float32(c.sampleRate / 2)
	n.frequency = c.newParam(&n.node, 440, -nyquist, nyquist)
	n.detune = c.newParam(&n.node, 0, -maxDetune, maxDetune)
	n.meter(n)
	return n
}

// Frequency returns a-rate frequency param in Hz.
func (n *OscillatorNode) Frequency() *param.Param {
	return n.frequency
}

// Detune returns a-rate detune param in cents.
func (n *OscillatorNode) Detune() *param.Param {
	return n.detune
}

// Waveform returns current waveform.
func (n *OscillatorNode) Waveform() Waveform {
	return Waveform(n.waveform.Load())
}

// SetWaveform changes the waveform. Render picks it up on the next
// quantum.
func (n *OscillatorNode) SetWaveform(w Waveform) error {
	if w < Sine || w > Triangle {
		return fmt.Errorf("%w: waveform %d", ErrInvalidArgument, w)
	}
	n.waveform.Store(int32(w))
	return nil
}

func (n *OscillatorNode) process(bus *audio.Bus, frames int) {
	offset, nonSilent := n.playback(bus, frames)
	if nonSilent > 0 {
		frequency := n.ctx.evaluate(n.frequency, frames)
		detune := n.ctx.evaluate(n.detune, frames)
		w := n.Waveform()
		data := bus.Data(0)
		for i := offset; i < offset+nonSilent; i++ {
			f := float64(frequency[i])
			if detune[i] != 0 {
				f *= math.Exp2(float64(detune[i]) / 1200)
			}
			data[i] = wave(w, n.phase)
			n.phase += f / n.ctx.sampleRate
			n.phase -= math.Floor(n.phase)
		}
		for ch := 1; ch < bus.NumChannels(); ch++ {
			copy(bus.Data(ch)[offset:offset+nonSilent], data[offset:offset+nonSilent])
		}
	}
	n.ended()
}

// wave returns value of waveform at phase in [0, 1).
func wave(w Waveform, phase float64) float32 {
	switch w {
	case Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	case Sawtooth:
		if phase < 0.5 {
			return float32(2 * phase)
		}
		return float32(2*phase - 2)
	case Triangle:
		switch {
		case phase < 0.25:
			return float32(4 * phase)
		case phase < 0.75:
			return float32(2 - 4*phase)
		}
		return float32(4*phase - 4)
	}
	return float32(math.Sin(2 * math.Pi * phase))
}
