package wav_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/webaudio/audio"
	"pipelined.dev/webaudio/wav"
)

func TestRoundTrip(t *testing.T) {
	var tests = []struct {
		bitDepth   int
		sampleRate float64
		channels   [][]float32
		delta      float64
	}{
		{
			bitDepth:   16,
			sampleRate: 44100,
			channels: [][]float32{
				{0, 0.5, -0.5, 0.25},
				{1, -1, 0.125, 0},
			},
			delta: 1e-3,
		},
		{
			bitDepth:   24,
			sampleRate: 48000,
			channels: [][]float32{
				{0.1, 0.2, 0.3},
			},
			delta: 1e-5,
		},
		{
			bitDepth:   32,
			sampleRate: 22050,
			channels: [][]float32{
				{-0.75, 0.75},
				{0.5, -0.5},
			},
			delta: 1e-6,
		},
	}
	dir := t.TempDir()
	for _, test := range tests {
		path := filepath.Join(dir, "out.wav")
		in := audio.BufferOf(test.sampleRate, test.channels...)
		require.NoError(t, wav.Save(path, in, test.bitDepth))

		out, err := wav.Load(path)
		require.NoError(t, err)
		assert.Equal(t, test.sampleRate, out.SampleRate())
		require.Equal(t, in.NumChannels(), out.NumChannels())
		require.Equal(t, in.Len(), out.Len())
		for c := 0; c < in.NumChannels(); c++ {
			expected, _ := in.Channel(c)
			result, _ := out.Channel(c)
			assert.InDeltaSlice(t, expected, result, test.delta, "bit depth %d", test.bitDepth)
		}
	}
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()
	buf := audio.NewBuffer(1, 10, 44100)
	assert.ErrorIs(t, wav.Save(filepath.Join(dir, "bad.wav"), buf, 12), wav.ErrUnsupportedBitDepth)

	_, err := wav.Decode(bytes.NewReader([]byte("definitely not a wav file")))
	assert.ErrorIs(t, err, wav.ErrInvalidFile)

	_, err = wav.Load(filepath.Join(dir, "missing.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
