package webaudio_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/webaudio"
	"pipelined.dev/webaudio/audio"
)

func TestScheduling(t *testing.T) {
	var rec recorder
	c := newContext(t,
		webaudio.WithSampleRate(10),
		webaudio.WithQuantumSize(10),
		webaudio.WithChannels(1),
		webaudio.WithEventHandler(rec.handle),
	)
	src := c.NewConstantSource()
	assert.Equal(t, webaudio.Unscheduled, src.PlaybackState())
	require.NoError(t, src.SetOnEnded("42"))
	require.NoError(t, src.Connect(c.Destination()))
	require.NoError(t, src.Start(0))
	require.NoError(t, src.Stop(0.5))
	assert.Equal(t, webaudio.Scheduled, src.PlaybackState())

	assert.Equal(t, []float32{1, 1, 1, 1, 1, 0, 0, 0, 0, 0}, render(c, 10))
	assert.Equal(t, webaudio.Finished, src.PlaybackState())
	assert.False(t, src.Enabled())
	for i := 0; i < 3; i++ {
		for _, v := range render(c, 10) {
			assert.Zero(t, v)
		}
	}

	require.NoError(t, c.Close())
	events := rec.get()
	require.Len(t, events, 1)
	assert.Equal(t, webaudio.EventEnded, events[0].Type)
	assert.Equal(t, src.ID(), events[0].NodeID)
	assert.True(t, events[0].Callback)
	assert.Equal(t, uint64(42), events[0].CallbackID)
}

func TestCloseOnEnded(t *testing.T) {
	var c *webaudio.Context
	closed := make(chan struct{})
	c = newContext(t,
		webaudio.WithSampleRate(10),
		webaudio.WithQuantumSize(10),
		webaudio.WithChannels(1),
		webaudio.WithEventHandler(func(e webaudio.Event) {
			if e.Type != webaudio.EventEnded {
				return
			}
			go func() {
				assert.NoError(t, c.Close())
				close(closed)
			}()
		}),
	)
	src := c.NewConstantSource()
	require.NoError(t, src.Connect(c.Destination()))
	require.NoError(t, src.Start(0))
	require.NoError(t, src.Stop(0.5))
	render(c, 10)

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("context is not closed after ended event")
	}
	assert.NoError(t, c.Close())
}

func TestScheduleWindow(t *testing.T) {
	var tests = []struct {
		description string
		start       float64
		stop        float64
		expected    [][]float32
	}{
		{
			description: "start in the middle of quantum",
			start:       0.3,
			stop:        -1,
			expected: [][]float32{
				{0, 0, 0, 1, 1},
				{1, 1, 1, 1, 1},
			},
		},
		{
			description: "start in the next quantum",
			start:       0.7,
			stop:        -1,
			expected: [][]float32{
				{0, 0, 0, 0, 0},
				{0, 0, 1, 1, 1},
			},
		},
		{
			description: "stop in the next quantum",
			start:       0.1,
			stop:        0.8,
			expected: [][]float32{
				{0, 1, 1, 1, 1},
				{1, 1, 1, 0, 0},
				{0, 0, 0, 0, 0},
			},
		},
		{
			description: "stop at quantum boundary",
			start:       0,
			stop:        0.5,
			expected: [][]float32{
				{1, 1, 1, 1, 1},
				{0, 0, 0, 0, 0},
			},
		},
		{
			description: "stop before start",
			start:       0.4,
			stop:        0.2,
			expected: [][]float32{
				{0, 0, 0, 0, 0},
				{0, 0, 0, 0, 0},
			},
		},
		{
			description: "sub-sample start",
			start:       0.2000000001,
			stop:        -1,
			expected: [][]float32{
				{0, 0, 1, 1, 1},
			},
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			c := newContext(t,
				webaudio.WithSampleRate(10),
				webaudio.WithQuantumSize(5),
				webaudio.WithChannels(1),
			)
			defer c.Close()
			src := c.NewConstantSource()
			require.NoError(t, src.Connect(c.Destination()))
			require.NoError(t, src.Start(test.start))
			if test.stop >= 0 {
				require.NoError(t, src.Stop(test.stop))
			}
			for i, expected := range test.expected {
				assert.Equal(t, expected, render(c, 5), "quantum %d", i)
			}
		})
	}
}

func TestStopInThePast(t *testing.T) {
	c := newContext(t,
		webaudio.WithSampleRate(10),
		webaudio.WithQuantumSize(10),
		webaudio.WithChannels(1),
	)
	defer c.Close()
	src := c.NewConstantSource()
	require.NoError(t, src.Connect(c.Destination()))
	require.NoError(t, src.Start(0))
	render(c, 10)
	assert.Equal(t, webaudio.Playing, src.PlaybackState())

	require.NoError(t, src.Stop(0.2))
	for _, v := range render(c, 10) {
		assert.Zero(t, v)
	}
	assert.Equal(t, webaudio.Finished, src.PlaybackState())
}

func TestScheduleErrors(t *testing.T) {
	c := newContext(t)
	defer c.Close()

	src := c.NewConstantSource()
	assert.ErrorIs(t, src.Stop(1), webaudio.ErrInvalidState)
	assert.ErrorIs(t, src.Start(-1), webaudio.ErrInvalidArgument)
	assert.ErrorIs(t, src.Start(math.NaN()), webaudio.ErrInvalidArgument)
	assert.ErrorIs(t, src.Start(math.Inf(1)), webaudio.ErrInvalidArgument)
	assert.Equal(t, webaudio.Unscheduled, src.PlaybackState())

	require.NoError(t, src.Start(0))
	assert.ErrorIs(t, src.Start(1), webaudio.ErrInvalidState)
	assert.ErrorIs(t, src.Stop(-1), webaudio.ErrInvalidArgument)
	require.NoError(t, src.Stop(1))
	assert.ErrorIs(t, src.Stop(2), webaudio.ErrInvalidState)

	released := c.NewConstantSource()
	require.NoError(t, c.Release(released))
	assert.ErrorIs(t, released.Start(0), webaudio.ErrInvalidState)
}

func TestSetOnEnded(t *testing.T) {
	var tests = []struct {
		id  string
		err error
	}{
		{id: "42"},
		{id: "0"},
		{id: "18446744073709551615"},
		{id: "", err: webaudio.ErrInvalidArgument},
		{id: "abc", err: webaudio.ErrInvalidArgument},
		{id: "-1", err: webaudio.ErrInvalidArgument},
		{id: "0x10", err: webaudio.ErrInvalidArgument},
		{id: "18446744073709551616", err: webaudio.ErrInvalidArgument},
	}
	c := newContext(t)
	defer c.Close()
	src := c.NewConstantSource()
	for _, test := range tests {
		t.Run(test.id, func(t *testing.T) {
			err := src.SetOnEnded(test.id)
			if test.err != nil {
				assert.ErrorIs(t, err, test.err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestClearOnEnded(t *testing.T) {
	var rec recorder
	c := newContext(t,
		webaudio.WithSampleRate(10),
		webaudio.WithQuantumSize(10),
		webaudio.WithChannels(1),
		webaudio.WithEventHandler(rec.handle),
	)
	src := c.NewConstantSource()
	require.NoError(t, src.SetOnEnded("7"))
	src.ClearOnEnded()
	require.NoError(t, src.Start(0))
	require.NoError(t, src.Stop(0.3))
	require.NoError(t, src.Connect(c.Destination()))
	render(c, 10)

	require.NoError(t, c.Close())
	events := rec.get()
	require.Len(t, events, 1)
	assert.Equal(t, webaudio.EventEnded, events[0].Type)
	assert.False(t, events[0].Callback)
}

func TestBufferSource(t *testing.T) {
	var tests = []struct {
		description string
		loop        bool
		expected    []float32
		state       webaudio.PlaybackState
	}{
		{
			description: "once",
			expected:    []float32{1, 2, 3, 4, 0, 0, 0, 0, 0, 0},
			state:       webaudio.Finished,
		},
		{
			description: "loop",
			loop:        true,
			expected:    []float32{1, 2, 3, 4, 1, 2, 3, 4, 1, 2},
			state:       webaudio.Playing,
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			c := newContext(t,
				webaudio.WithSampleRate(10),
				webaudio.WithQuantumSize(10),
				webaudio.WithChannels(1),
			)
			defer c.Close()
			src := c.NewBufferSource()
			require.NoError(t, src.SetBuffer(audio.BufferOf(10, []float32{1, 2, 3, 4})))
			require.NoError(t, src.SetLoop(test.loop, 0, 0))
			require.NoError(t, src.Start(0))
			require.NoError(t, src.Connect(c.Destination()))
			assert.Equal(t, test.expected, render(c, 10))
			assert.Equal(t, test.state, src.PlaybackState())
		})
	}
}

func TestBufferSourceErrors(t *testing.T) {
	c := newContext(t)
	defer c.Close()
	src := c.NewBufferSource()
	assert.ErrorIs(t, src.SetBuffer(nil), webaudio.ErrInvalidArgument)
	assert.ErrorIs(t, src.SetLoop(true, -1, 0), webaudio.ErrInvalidArgument)
	assert.ErrorIs(t, src.SetLoop(true, 1, 0.5), webaudio.ErrInvalidArgument)
}

func TestOscillator(t *testing.T) {
	c := newContext(t,
		webaudio.WithSampleRate(8),
		webaudio.WithQuantumSize(8),
		webaudio.WithChannels(1),
	)
	defer c.Close()
	osc := c.NewOscillator()
	osc.Frequency().SetValue(2)
	require.NoError(t, osc.SetWaveform(webaudio.Square))
	assert.Equal(t, webaudio.Square, osc.Waveform())
	assert.ErrorIs(t, osc.SetWaveform(webaudio.Waveform(42)), webaudio.ErrInvalidArgument)
	require.NoError(t, osc.Start(0))
	require.NoError(t, osc.Connect(c.Destination()))
	assert.Equal(t, []float32{1, 1, -1, -1, 1, 1, -1, -1}, render(c, 8))
}
