//go:build portaudio

package device

import (
	"sync"

	"github.com/gordonklaus/portaudio"

	"pipelined.dev/webaudio/audio"
)

// PortAudio is the name of portaudio sink.
const PortAudio = "portaudio"

func init() {
	Register(PortAudio, func(cfg Config) (Sink, error) {
		return NewPortAudio(cfg), nil
	})
}

// PortAudioSink plays audio using default portaudio device.
type PortAudioSink struct {
	cfg    Config
	bus    *audio.Bus
	stream *portaudio.Stream
	mu     sync.Mutex
}

// NewPortAudio returns new sink which plays to default device.
func NewPortAudio(cfg Config) *PortAudioSink {
	return &PortAudioSink{
		cfg: cfg,
		bus: audio.NewBus(cfg.Channels, cfg.Frames),
	}
}

// Start initializes portaudio and opens default stream with
// non-interleaved callback.
func (s *PortAudioSink) Start(render RenderFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return ErrStarted
	}
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	stream, err := portaudio.OpenDefaultStream(0, s.cfg.Channels, s.cfg.SampleRate, s.cfg.Frames, func(out [][]float32) {
		frames := len(out[0])
		if frames > s.bus.Len() {
			frames = s.bus.Len()
		}
		render(s.bus, frames)
		for c := range out {
			copy(out[c], s.bus.Data(c)[:frames])
		}
	})
	if err != nil {
		portaudio.Terminate()
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return err
	}
	s.stream = stream
	return nil
}

// Stop terminates portaudio structures.
func (s *PortAudioSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	stream := s.stream
	s.stream = nil
	err := stream.Stop()
	if err != nil {
		return err
	}
	err = stream.Close()
	if err != nil {
		return err
	}
	return portaudio.Terminate()
}

// Close stops the stream.
func (s *PortAudioSink) Close() error {
	return s.Stop()
}
