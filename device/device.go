/*
Package device provides output sinks that drive the render function of
audio context.

Sink implementations are selected by name. Headless sink is always
available. Sinks that require cgo or platform libraries are compiled
only with corresponding build tags:

	go build -tags oto
	go build -tags portaudio
*/
package device

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"pipelined.dev/webaudio/audio"
)

// Headless is the name of sink without audio output.
const Headless = "headless"

var (
	// ErrUnknownDevice is returned when sink with requested name is not
	// registered.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrStarted is returned when sink is started twice.
	ErrStarted = errors.New("device already started")
	// ErrInvalidConfig is returned when config values are out of range.
	ErrInvalidConfig = errors.New("invalid device config")
)

type (
	// RenderFunc fills out bus with frames of audio. It is called from
	// the device goroutine and must not block.
	RenderFunc func(out *audio.Bus, frames int)

	// Config defines the output stream.
	Config struct {
		SampleRate float64
		Channels   int
		// Frames is a number of frames requested per callback.
		Frames int
	}

	// Sink drives render function with device callbacks.
	Sink interface {
		Start(RenderFunc) error
		Stop() error
		Close() error
	}

	// Factory creates sink for provided config.
	Factory func(Config) (Sink, error)
)

var registry = struct {
	sync.Mutex
	m map[string]Factory
}{
	m: make(map[string]Factory),
}

// Register makes the sink factory available by name. It's intended to be
// called from init functions.
func Register(name string, f Factory) {
	registry.Lock()
	defer registry.Unlock()
	registry.m[name] = f
}

// Open creates sink registered by name.
func Open(name string, cfg Config) (Sink, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	registry.Lock()
	f, ok := registry.m[name]
	registry.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
	return f(cfg)
}

// Names returns sorted names of registered sinks.
func Names() []string {
	registry.Lock()
	defer registry.Unlock()
	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (cfg Config) validate() error {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 || cfg.Frames <= 0 {
		return fmt.Errorf("%w: sample rate %v channels %d frames %d", ErrInvalidConfig, cfg.SampleRate, cfg.Channels, cfg.Frames)
	}
	return nil
}
