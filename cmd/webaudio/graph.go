package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"pipelined.dev/webaudio"
	"pipelined.dev/webaudio/worklet"
)

// endedCallback identifies the ended event of graph source.
const endedCallback = 1

// source is implemented by every scheduled source node.
type source interface {
	webaudio.Node
	Start(when float64) error
	Stop(when float64) error
	SetOnEnded(id string) error
}

// graph describes the chain source -> [worklet] -> gain -> destination.
type graph struct {
	in        string
	frequency float64
	waveform  string
	gain      float64
	fade      float64
	worklet   string
	duration  float64
}

func (g *graph) register(fs *flag.FlagSet) {
	fs.StringVar(&g.in, "in", "", "wav file to play instead of oscillator")
	fs.Float64Var(&g.frequency, "frequency", 440, "oscillator frequency in Hz")
	fs.StringVar(&g.waveform, "waveform", "sine", "oscillator waveform: sine, square, sawtooth or triangle")
	fs.Float64Var(&g.gain, "gain", 0.5, "output gain")
	fs.Float64Var(&g.fade, "fade", 0, "fade out duration in seconds")
	fs.StringVar(&g.worklet, "worklet", "", "lua file with processing worklet")
	fs.Float64Var(&g.duration, "duration", 1, "duration in seconds")
}

func (g *graph) validate() error {
	var message string
	if g.duration <= 0 {
		message += fmt.Sprintf("Invalid -duration %v\n", g.duration)
	}
	if g.fade < 0 || g.fade > g.duration {
		message += fmt.Sprintf("Invalid -fade %v\n", g.fade)
	}
	if _, err := parseWaveform(g.waveform); err != nil {
		message += fmt.Sprintf("Invalid -waveform %q\n", g.waveform)
	}
	if message != "" {
		return fmt.Errorf("%s", strings.TrimSpace(message))
	}
	return nil
}

// engine loads worklet runtime if worklet file is provided.
func (g *graph) engine() (*worklet.Engine, worklet.Handle, error) {
	if g.worklet == "" {
		return nil, worklet.Handle{}, nil
	}
	src, err := os.ReadFile(g.worklet)
	if err != nil {
		return nil, worklet.Handle{}, err
	}
	e := worklet.NewEngine()
	h, err := e.Register("effect", string(src))
	if err != nil {
		e.Close()
		return nil, worklet.Handle{}, err
	}
	return e, h, nil
}

// build creates nodes in context and schedules the source.
func (g *graph) build(c *webaudio.Context, h worklet.Handle) (source, error) {
	src, err := g.source(c)
	if err != nil {
		return nil, err
	}
	var last webaudio.Node = src
	if h.Valid() {
		effect, err := c.NewWorkletProcessing(h, min(c.Channels(), 2))
		if err != nil {
			return nil, err
		}
		if err := last.Connect(effect); err != nil {
			return nil, err
		}
		last = effect
	}

	gain := c.NewGain()
	gain.Gain().SetValue(float32(g.gain))
	if g.fade > 0 {
		if err := gain.Gain().SetValueAtTime(float32(g.gain), g.duration-g.fade); err != nil {
			return nil, err
		}
		if err := gain.Gain().LinearRampToValueAtTime(0, g.duration); err != nil {
			return nil, err
		}
	}
	if err := last.Connect(gain); err != nil {
		return nil, err
	}
	if err := gain.Connect(c.Destination()); err != nil {
		return nil, err
	}

	if err := src.SetOnEnded(fmt.Sprint(endedCallback)); err != nil {
		return nil, err
	}
	if err := src.Start(0); err != nil {
		return nil, err
	}
	if err := src.Stop(g.duration); err != nil {
		return nil, err
	}
	return src, nil
}

func (g *graph) source(c *webaudio.Context) (source, error) {
	if g.in != "" {
		result := <-c.DecodeAudioData(g.in)
		if result.Err != nil {
			return nil, result.Err
		}
		n := c.NewBufferSource()
		if err := n.SetBuffer(result.Buffer); err != nil {
			return nil, err
		}
		return n, nil
	}
	w, err := parseWaveform(g.waveform)
	if err != nil {
		return nil, err
	}
	n := c.NewOscillator()
	if err := n.SetWaveform(w); err != nil {
		return nil, err
	}
	n.Frequency().SetValue(float32(g.frequency))
	return n, nil
}

func parseWaveform(s string) (webaudio.Waveform, error) {
	for _, w := range []webaudio.Waveform{webaudio.Sine, webaudio.Square, webaudio.Sawtooth, webaudio.Triangle} {
		if w.String() == s {
			return w, nil
		}
	}
	return 0, fmt.Errorf("%w: waveform %q", webaudio.ErrInvalidArgument, s)
}
