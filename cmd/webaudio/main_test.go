package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/webaudio/wav"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestInit(t *testing.T) {
	// check if commands are registered
	assert.Equal(t, 2, len(commands))
}

const halfGain = `
return function(inputs, outputs, frames, time)
	for c = 1, #inputs do
		for i = 1, frames do
			outputs[c][i] = inputs[c][i] * 0.5
		end
	end
end
`

func TestRun(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "webaudio.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("samplerate: 8000\nchannels: 1\nframes: 128\nloglevel: error\n"), 0o644))
	workletPath := filepath.Join(dir, "half.lua")
	require.NoError(t, os.WriteFile(workletPath, []byte(halfGain), 0o644))
	out := filepath.Join(dir, "out.wav")

	var tests = []struct {
		description string
		args        []string
		code        int
	}{
		{
			description: "no command",
			code:        errorExitCode,
		},
		{
			description: "unknown command",
			args:        []string{"mix"},
			code:        errorExitCode,
		},
		{
			description: "unknown flag",
			args:        []string{"render", "-plugin", "x"},
			code:        errorExitCode,
		},
		{
			description: "render without output",
			args:        []string{"render", "-config", cfgPath},
			code:        errorExitCode,
		},
		{
			description: "render invalid waveform",
			args:        []string{"render", "-config", cfgPath, "-out", out, "-waveform", "noise"},
			code:        errorExitCode,
		},
		{
			description: "render",
			args: []string{"render", "-config", cfgPath, "-out", out,
				"-duration", "0.1", "-fade", "0.05", "-waveform", "square", "-worklet", workletPath},
			code: successExitCode,
		},
		{
			description: "play headless",
			args:        []string{"play", "-config", cfgPath, "-in", out, "-duration", "0.05"},
			code:        successExitCode,
		},
		{
			description: "play unknown device",
			args:        []string{"play", "-config", cfgPath, "-device", "speaker"},
			code:        errorExitCode,
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			c := cli{args: append([]string{"webaudio"}, test.args...)}
			assert.Equal(t, test.code, c.run())
		})
	}

	buf, err := wav.Load(out)
	require.NoError(t, err)
	assert.Equal(t, 800, buf.Len())
	data, err := buf.Channel(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, data[0], 1e-3)
}
