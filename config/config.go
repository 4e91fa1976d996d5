// Package config loads application settings for webaudio commands.
// Settings are read from optional config file and WEBAUDIO_ prefixed
// environment variables, e.g. WEBAUDIO_SAMPLERATE or
// WEBAUDIO_THREADPOOL_WORKERS.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"pipelined.dev/webaudio"
	"pipelined.dev/webaudio/device"
	"pipelined.dev/webaudio/log"
	"pipelined.dev/webaudio/threadpool"
)

// ErrInvalidConfig is returned when loaded settings cannot be used.
var ErrInvalidConfig = errors.New("invalid config")

const envPrefix = "WEBAUDIO"

// Config holds settings of audio context and output device.
type Config struct {
	SampleRate float64
	Quantum    int
	Channels   int
	Device     string
	// Frames is the size of device buffer.
	Frames     int
	LogLevel   string
	ThreadPool threadpool.Config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("samplerate", webaudio.DefaultSampleRate)
	v.SetDefault("quantum", webaudio.DefaultQuantumSize)
	v.SetDefault("channels", webaudio.DefaultChannels)
	v.SetDefault("device", device.Headless)
	v.SetDefault("frames", 512)
	v.SetDefault("loglevel", "info")
	v.SetDefault("threadpool.workers", 4)
	v.SetDefault("threadpool.balancerqueue", 32)
	v.SetDefault("threadpool.workerqueue", 32)
}

// Load reads settings from file at path. Empty path means that only
// defaults and environment are used.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	pool := threadpool.DefaultConfig()
	pool.Workers = v.GetInt("threadpool.workers")
	pool.LoadBalancerQueueSize = v.GetInt("threadpool.balancerqueue")
	pool.WorkerQueueSize = v.GetInt("threadpool.workerqueue")
	cfg := Config{
		SampleRate: v.GetFloat64("samplerate"),
		Quantum:    v.GetInt("quantum"),
		Channels:   v.GetInt("channels"),
		Device:     v.GetString("device"),
		Frames:     v.GetInt("frames"),
		LogLevel:   v.GetString("loglevel"),
		ThreadPool: pool,
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: samplerate %v", ErrInvalidConfig, c.SampleRate)
	case c.Quantum <= 0:
		return fmt.Errorf("%w: quantum %d", ErrInvalidConfig, c.Quantum)
	case c.Channels <= 0:
		return fmt.Errorf("%w: channels %d", ErrInvalidConfig, c.Channels)
	case c.Frames <= 0:
		return fmt.Errorf("%w: frames %d", ErrInvalidConfig, c.Frames)
	case c.ThreadPool.Workers <= 0:
		return fmt.Errorf("%w: threadpool workers %d", ErrInvalidConfig, c.ThreadPool.Workers)
	case c.ThreadPool.LoadBalancerQueueSize <= 0 || c.ThreadPool.WorkerQueueSize <= 0:
		return fmt.Errorf("%w: threadpool queues %d/%d", ErrInvalidConfig,
			c.ThreadPool.LoadBalancerQueueSize, c.ThreadPool.WorkerQueueSize)
	}
	return nil
}

// Options returns context options. Logger is created with configured
// level.
func (c Config) Options() ([]webaudio.Option, error) {
	l, err := log.WithLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: loglevel %q: %v", ErrInvalidConfig, c.LogLevel, err)
	}
	return []webaudio.Option{
		webaudio.WithSampleRate(c.SampleRate),
		webaudio.WithQuantumSize(c.Quantum),
		webaudio.WithChannels(c.Channels),
		webaudio.WithThreadPool(c.ThreadPool),
		webaudio.WithLogger(l),
	}, nil
}

// DeviceConfig returns settings of output device.
func (c Config) DeviceConfig() device.Config {
	return device.Config{
		SampleRate: c.SampleRate,
		Channels:   c.Channels,
		Frames:     c.Frames,
	}
}
