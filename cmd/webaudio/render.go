package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"pipelined.dev/webaudio"
	"pipelined.dev/webaudio/config"
	"pipelined.dev/webaudio/mp3"
	"pipelined.dev/webaudio/wav"
)

// mp3Quality is lame algorithm quality, 2 is near-best.
const mp3Quality = 2

type renderCommand struct {
	graph
	config   string
	out      string
	bitDepth int
	bitRate  int
}

//Implement command interface
func (cmd *renderCommand) Name() string {
	return "render"
}

func (cmd *renderCommand) Help() string {
	return "Render the graph offline into wav or mp3 file"
}

func (cmd *renderCommand) Register(fs *flag.FlagSet) {
	cmd.graph.register(fs)
	fs.StringVar(&cmd.config, "config", "", "path to config file")
	fs.StringVar(&cmd.out, "out", "", "output wav or mp3 file (required)")
	fs.IntVar(&cmd.bitDepth, "bitdepth", 16, "wav bit depth: 16, 24 or 32")
	fs.IntVar(&cmd.bitRate, "bitrate", 192, "mp3 bit rate in kbps")
}

func (cmd *renderCommand) Run() error {
	if cmd.out == "" {
		return fmt.Errorf("missing -out required flag")
	}
	if err := cmd.validate(); err != nil {
		return err
	}
	cfg, err := config.Load(cmd.config)
	if err != nil {
		return err
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

	length := int(cmd.duration * cfg.SampleRate)
	c, err := webaudio.NewOfflineContext(length, options...)
	if err != nil {
		return err
	}
	defer c.Close()
	if _, err := cmd.build(c.Context, h); err != nil {
		return err
	}
	buf, err := c.StartRendering(context.Background())
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(cmd.out), ".mp3") {
		err = mp3.Save(cmd.out, buf, cmd.bitRate, mp3Quality)
	} else {
		err = wav.Save(cmd.out, buf, cmd.bitDepth)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Rendered %v to %s\n", buf.Duration(), cmd.out)
	return nil
}
