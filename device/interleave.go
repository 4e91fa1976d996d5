package device

import (
	"sync/atomic"

	"pipelined.dev/webaudio/audio"
)

// streamReader converts render calls into interleaved float32 stream.
// Render function is loaded atomically so Read never locks.
type streamReader struct {
	render  atomic.Pointer[RenderFunc]
	bus     *audio.Bus
	samples []float32
	pos     int
}

func newStreamReader(cfg Config) *streamReader {
	return &streamReader{
		bus:     audio.NewBus(cfg.Channels, cfg.Frames),
		samples: make([]float32, cfg.Channels*cfg.Frames),
		pos:     cfg.Channels * cfg.Frames,
	}
}

// read fills p with interleaved samples. Silence is produced while
// render function is not set.
func (r *streamReader) read(p []float32) {
	render := r.render.Load()
	if render == nil {
		clear(p)
		return
	}
	for len(p) > 0 {
		if r.pos == len(r.samples) {
			(*render)(r.bus, r.bus.Len())
			interleave(r.bus, r.samples)
			r.pos = 0
		}
		n := copy(p, r.samples[r.pos:])
		r.pos += n
		p = p[n:]
	}
}

func interleave(bus *audio.Bus, dst []float32) {
	numChannels := bus.NumChannels()
	for c := 0; c < numChannels; c++ {
		for i, v := range bus.Data(c) {
			dst[i*numChannels+c] = v
		}
	}
}
