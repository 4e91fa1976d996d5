package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"pipelined.dev/webaudio"
	"pipelined.dev/webaudio/config"
	"pipelined.dev/webaudio/device"
)

type playCommand struct {
	graph
	config string
	device string
}

//Implement command interface
func (cmd *playCommand) Name() string {
	return "play"
}

func (cmd *playCommand) Help() string {
	return "Play the graph with output device"
}

func (cmd *playCommand) Register(fs *flag.FlagSet) {
	cmd.graph.register(fs)
	fs.StringVar(&cmd.config, "config", "", "path to config file")
	fs.StringVar(&cmd.device, "device", "", "output device, overrides config")
}

func (cmd *playCommand) Run() error {
	if err := cmd.validate(); err != nil {
		return err
	}
	cfg, err := config.Load(cmd.config)
	if err != nil {
		return err
	}
	if cmd.device != "" {
		cfg.Device = cmd.device
	}
	options, err := cfg.Options()
	if err != nil {
		return err
	}
	e, h, err := cmd.engine()
	if err != nil {
		return err
	}
	if e != nil {
		defer e.Close()
		options = append(options, webaudio.WithWorkletEngine(e))
	}

	ended := make(chan struct{})
	var once sync.Once
	options = append(options, webaudio.WithEventHandler(func(ev webaudio.Event) {
		if ev.Type == webaudio.EventEnded && ev.Callback && ev.CallbackID == endedCallback {
			once.Do(func() { close(ended) })
		}
	}))

	sink, err := device.Open(cfg.Device, cfg.DeviceConfig())
	if err != nil {
		return fmt.Errorf("open device %s: %w (available: %v)", cfg.Device, err, device.Names())
	}
	c, err := webaudio.NewAudioContext(sink, options...)
	if err != nil {
		sink.Close()
		return err
	}
	defer c.Close()
	if _, err := cmd.build(c.Context, h); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := c.Resume(); err != nil {
		return err
	}
	fmt.Printf("Playing with %s device\n", cfg.Device)
	select {
	case <-ended:
	case <-ctx.Done():
	}
	return c.Close()
}
