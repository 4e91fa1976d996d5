package device

import (
	"sync"
	"time"

	"pipelined.dev/webaudio/audio"
)

func init() {
	Register(Headless, func(cfg Config) (Sink, error) {
		return NewHeadless(cfg), nil
	})
}

// HeadlessSink calls render function at the pace of real device and
// discards the output.
type HeadlessSink struct {
	cfg    Config
	bus    *audio.Bus
	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	onData func(*audio.Bus)
}

// NewHeadless returns a sink without output.
func NewHeadless(cfg Config) *HeadlessSink {
	return &HeadlessSink{
		cfg: cfg,
		bus: audio.NewBus(cfg.Channels, cfg.Frames),
	}
}

// OnData sets the function that receives every rendered bus. It must be
// called before Start.
func (s *HeadlessSink) OnData(fn func(*audio.Bus)) {
	s.onData = fn
}

// Start starts the device goroutine.
func (s *HeadlessSink) Start(render RenderFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return ErrStarted
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	period := time.Duration(float64(s.cfg.Frames) / s.cfg.SampleRate * float64(time.Second))
	go s.run(render, period, s.stop, s.done)
	return nil
}

func (s *HeadlessSink) run(render RenderFunc, period time.Duration, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			render(s.bus, s.cfg.Frames)
			if s.onData != nil {
				s.onData(s.bus)
			}
		}
	}
}

// Stop stops the device goroutine and waits for it to exit.
func (s *HeadlessSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil
	return nil
}

// Close stops the sink.
func (s *HeadlessSink) Close() error {
	return s.Stop()
}
