// Package mock provides mocks for graph processors and allows to execute
// integration tests.
package mock

import (
	"sync/atomic"

	"pipelined.dev/webaudio/audio"
)

// Processor mocks a webaudio.Processor interface. It counts calls and
// frames, adds Value to every sample and then multiplies it by Gain if
// Gain is not zero.
type Processor struct {
	counter
	Value float32
	Gain  float32
	Hooks
}

// Process implements webaudio.Processor.
func (m *Processor) Process(bus *audio.Bus, frames int) {
	for ch := 0; ch < bus.NumChannels(); ch++ {
		data := bus.Data(ch)[:frames]
		for i := range data {
			data[i] += m.Value
			if m.Gain != 0 {
				data[i] *= m.Gain
			}
		}
	}
	m.advance(frames)
}

// Hooks allows to mock processor hooks.
type Hooks struct {
	initialized atomic.Bool

	ErrorOnInitialize error
}

// Initialize implements webaudio.Initializer.
func (h *Hooks) Initialize(sampleRate float64, quantumSize, channels int) error {
	if h.ErrorOnInitialize != nil {
		return h.ErrorOnInitialize
	}
	h.initialized.Store(true)
	return nil
}

// Initialized returns true if initializer hook succeeded.
func (h *Hooks) Initialized() bool {
	return h.initialized.Load()
}

// Sink records rendered audio. It is used as render function of
// device.
type Sink struct {
	counter
	Discard bool
	buffer  [][]float32
}

// Render pulls frames from render function and records them.
func (m *Sink) Render(render func(*audio.Bus, int), bus *audio.Bus, frames int) {
	render(bus, frames)
	if !m.Discard {
		if m.buffer == nil {
			m.buffer = make([][]float32, bus.NumChannels())
		}
		for ch := range m.buffer {
			m.buffer[ch] = append(m.buffer[ch], bus.Data(ch)[:frames]...)
		}
	}
	m.advance(frames)
}

// Buffer returns recorded audio. It's not safe to call it concurrently
// with Render.
func (m *Sink) Buffer() [][]float32 {
	return m.buffer
}

// counter counts calls and frames.
type counter struct {
	calls  atomic.Int64
	frames atomic.Int64
}

// advance counter's metrics.
func (c *counter) advance(frames int) {
	c.calls.Add(1)
	c.frames.Add(int64(frames))
}

// Count returns calls and frames metrics.
func (c *counter) Count() (int, int) {
	return int(c.calls.Load()), int(c.frames.Load())
}

// Reset resets counter's metrics.
func (c *counter) Reset() {
	c.calls.Store(0)
	c.frames.Store(0)
}
