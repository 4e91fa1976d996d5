//go:build oto

package device

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

// Oto is the name of oto sink.
const Oto = "oto"

func init() {
	Register(Oto, func(cfg Config) (Sink, error) {
		return NewOto(cfg)
	})
}

// oto allows a single context per process.
var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoConfig  Config
	otoErr     error
)

// OtoSink plays audio with oto.
type OtoSink struct {
	reader *streamReader
	player *oto.Player
	mu     sync.Mutex // only for setup and control.
}

// NewOto returns sink that plays through the default device.
func NewOto(cfg Config) (*OtoSink, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   int(cfg.SampleRate),
			ChannelCount: cfg.Channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   time.Duration(float64(cfg.Frames) / cfg.SampleRate * float64(time.Second)),
		})
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoContext, otoConfig = ctx, cfg
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoConfig.SampleRate != cfg.SampleRate || otoConfig.Channels != cfg.Channels {
		return nil, fmt.Errorf("%w: oto context is already open with sample rate %v channels %d", ErrInvalidConfig, otoConfig.SampleRate, otoConfig.Channels)
	}
	return &OtoSink{
		reader: newStreamReader(cfg),
	}, nil
}

// Read implements io.Reader for oto player.
func (s *OtoSink) Read(p []byte) (int, error) {
	n := len(p) / 4
	if n == 0 {
		return 0, nil
	}
	samples := unsafe.Slice((*float32)(unsafe.Pointer(&p[0])), n)
	s.reader.read(samples)
	return n * 4, nil
}

// Start begins playback.
func (s *OtoSink) Start(render RenderFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		return ErrStarted
	}
	s.reader.render.Store(&render)
	s.player = otoContext.NewPlayer(s)
	s.player.Play()
	return nil
}

// Stop pauses playback and releases the player.
func (s *OtoSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return nil
	}
	s.player.Pause()
	err := s.player.Close()
	s.player = nil
	s.reader.render.Store(nil)
	return err
}

// Close stops playback.
func (s *OtoSink) Close() error {
	return s.Stop()
}
