package param_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/webaudio/mutable"
	"pipelined.dev/webaudio/param"
)

const delta = 1e-5

func TestLinearRamp(t *testing.T) {
	p := param.New(0, -10, 10, param.WithSampleRate(1), param.WithQuantumSize(1))
	require.NoError(t, p.SetValueAtTime(0, 0))
	require.NoError(t, p.LinearRampToValueAtTime(1, 1))

	bus := p.Evaluate(1, 0.5)
	assert.InDelta(t, 0.5, bus.Data(0)[0], delta)
	assert.InDelta(t, 0.5, p.Value(), delta)

	bus = p.Evaluate(1, 2)
	assert.InDelta(t, 1, bus.Data(0)[0], delta)
}

func TestAutomation(t *testing.T) {
	type sample struct {
		time  float64
		value float32
	}
	tests := []struct {
		description string
		schedule    func(*param.Param) error
		samples     []sample
	}{
		{
			description: "no events",
			schedule:    func(*param.Param) error { return nil },
			samples:     []sample{{0, 1}, {10, 1}},
		},
		{
			description: "set value steps",
			schedule: func(p *param.Param) error {
				return p.SetValueAtTime(3, 1)
			},
			samples: []sample{{0, 1}, {0.99, 1}, {1, 3}, {5, 3}},
		},
		{
			description: "exponential ramp",
			schedule: func(p *param.Param) error {
				if err := p.SetValueAtTime(1, 0); err != nil {
					return err
				}
				return p.ExponentialRampToValueAtTime(4, 2)
			},
			samples: []sample{{0, 1}, {1, 2}, {2, 4}, {3, 4}},
		},
		{
			description: "set target",
			schedule: func(p *param.Param) error {
				return p.SetTargetAtTime(0, 1, 1)
			},
			samples: []sample{{0.5, 1}, {1, 1}, {2, float32(math.Exp(-1))}},
		},
		{
			description: "ramp after set target starts at set target",
			schedule: func(p *param.Param) error {
				if err := p.SetTargetAtTime(0, 1, 1); err != nil {
					return err
				}
				return p.LinearRampToValueAtTime(3, 3)
			},
			samples: []sample{{0, 1}, {2, 2}, {3, 3}},
		},
		{
			description: "exponential ramp after set target toward zero",
			schedule: func(p *param.Param) error {
				if err := p.SetValueAtTime(1, 0); err != nil {
					return err
				}
				if err := p.SetTargetAtTime(0, 1, 1); err != nil {
					return err
				}
				return p.ExponentialRampToValueAtTime(4, 3)
			},
			samples: []sample{{0, 1}, {1, 1}, {2, 2}, {3, 4}},
		},
		{
			description: "value curve",
			schedule: func(p *param.Param) error {
				return p.SetValueCurveAtTime([]float32{0, 2, 4}, 1, 2)
			},
			samples: []sample{{0.5, 1}, {1, 0}, {1.5, 1}, {2, 2}, {2.5, 3}, {3, 4}, {4, 4}},
		},
		{
			description: "linear ramp without start event",
			schedule: func(p *param.Param) error {
				return p.LinearRampToValueAtTime(3, 2)
			},
			samples: []sample{{0, 1}, {1, 2}, {2, 3}},
		},
	}
	for _, test := range tests {
		p := param.New(1, -10, 10)
		require.NoError(t, test.schedule(p), test.description)
		for _, s := range test.samples {
			assert.InDelta(t, s.value, p.ValueAtTime(s.time), delta, "%s at %v", test.description, s.time)
		}
	}
}

func TestEvaluateAcrossQuanta(t *testing.T) {
	// render timeline prunes past events and must keep values intact.
	p := param.New(0, 0, 100, param.WithSampleRate(10), param.WithQuantumSize(5))
	require.NoError(t, p.SetValueAtTime(0, 0))
	require.NoError(t, p.LinearRampToValueAtTime(10, 1))
	require.NoError(t, p.SetValueAtTime(20, 1.5))
	require.NoError(t, p.LinearRampToValueAtTime(30, 2.5))

	var result []float32
	for q := 0; q < 6; q++ {
		bus := p.Evaluate(5, float64(q)*0.5)
		result = append(result, bus.Data(0)...)
	}
	expected := []float32{
		0, 1, 2, 3, 4,
		5, 6, 7, 8, 9,
		10, 10, 10, 10, 10,
		20, 21, 22, 23, 24,
		25, 26, 27, 28, 29,
		30, 30, 30, 30, 30,
	}
	assert.InDeltaSlice(t, expected, result, 1e-4)
}

func TestInvalidTimeOrder(t *testing.T) {
	p := param.New(0, 0, 1)
	require.NoError(t, p.SetValueAtTime(1, 2))
	assert.ErrorIs(t, p.SetValueAtTime(0.5, 1), param.ErrInvalidTimeOrder)
	assert.ErrorIs(t, p.LinearRampToValueAtTime(0.5, 1), param.ErrInvalidTimeOrder)
	assert.Len(t, p.Events(), 1)

	require.NoError(t, p.SetValueCurveAtTime([]float32{0, 1}, 3, 2))
	assert.ErrorIs(t, p.SetValueAtTime(0, 4), param.ErrInvalidTimeOrder, "overlaps curve")
	assert.NoError(t, p.SetValueAtTime(0, 5))
}

func TestInvalidArguments(t *testing.T) {
	p := param.New(1, -1, 1)
	tests := []struct {
		description string
		call        func() error
		err         error
	}{
		{
			description: "negative time",
			call:        func() error { return p.SetValueAtTime(0, -1) },
			err:         param.ErrInvalidArgument,
		},
		{
			description: "nan time",
			call:        func() error { return p.LinearRampToValueAtTime(0, math.NaN()) },
			err:         param.ErrInvalidArgument,
		},
		{
			description: "infinite time",
			call:        func() error { return p.CancelScheduledValues(math.Inf(1)) },
			err:         param.ErrInvalidArgument,
		},
		{
			description: "zero time constant",
			call:        func() error { return p.SetTargetAtTime(0, 0, 0) },
			err:         param.ErrInvalidArgument,
		},
		{
			description: "short curve",
			call:        func() error { return p.SetValueCurveAtTime([]float32{1}, 0, 1) },
			err:         param.ErrInvalidArgument,
		},
		{
			description: "exponential ramp to zero",
			call:        func() error { return p.ExponentialRampToValueAtTime(0, 1) },
			err:         param.ErrInvalidAutomation,
		},
		{
			description: "exponential ramp through zero",
			call:        func() error { return p.ExponentialRampToValueAtTime(-1, 1) },
			err:         param.ErrInvalidAutomation,
		},
	}
	for _, test := range tests {
		assert.ErrorIs(t, test.call(), test.err, test.description)
	}
	assert.Empty(t, p.Events())
}

func TestExponentialRampAfterSetTarget(t *testing.T) {
	p := param.New(0, -10, 10)
	require.NoError(t, p.SetValueAtTime(-1, 0))
	require.NoError(t, p.SetTargetAtTime(1, 1, 1))
	// ramp starts from -1, the value set target departs from.
	assert.ErrorIs(t, p.ExponentialRampToValueAtTime(2, 3), param.ErrInvalidAutomation)
	assert.Len(t, p.Events(), 2)

	require.NoError(t, p.ExponentialRampToValueAtTime(-4, 3))
	assert.InDelta(t, -2, p.ValueAtTime(2), delta)
	assert.InDelta(t, -4, p.ValueAtTime(3), delta)
}

func TestClamp(t *testing.T) {
	p := param.New(0, -1, 1, param.WithSampleRate(100), param.WithQuantumSize(100))
	require.NoError(t, p.SetValueAtTime(-5, 0))
	require.NoError(t, p.LinearRampToValueAtTime(5, 1))
	bus := p.Evaluate(100, 0)
	for i, v := range bus.Data(0) {
		assert.True(t, v >= -1 && v <= 1, "frame %d value %v", i, v)
	}
	p.SetValue(float32(math.NaN()))
	assert.Equal(t, float32(0), p.Value())
	assert.Equal(t, float32(1), p.Clamp(2))
}

func TestCancel(t *testing.T) {
	p := param.New(0, 0, 10)
	require.NoError(t, p.SetValueAtTime(0, 0))
	require.NoError(t, p.LinearRampToValueAtTime(10, 10))
	require.NoError(t, p.SetValueAtTime(1, 11))

	require.NoError(t, p.CancelScheduledValues(11))
	assert.Len(t, p.Events(), 2)

	require.NoError(t, p.CancelAndHoldAtTime(5))
	assert.InDelta(t, 5, p.ValueAtTime(5), delta)
	assert.InDelta(t, 5, p.ValueAtTime(20), delta)
}

func TestStagedChanges(t *testing.T) {
	q := mutable.NewQueue()
	p := param.New(1, 0, 10, param.WithStager(q), param.WithSampleRate(1), param.WithQuantumSize(1))
	require.NoError(t, p.SetValueAtTime(5, 0))

	// control timeline is updated at once, render timeline after apply.
	assert.InDelta(t, 5, p.ValueAtTime(0), delta)
	assert.Equal(t, float32(1), p.Evaluate(1, 0).Data(0)[0])

	q.Apply()
	assert.Equal(t, float32(5), p.Evaluate(1, 1).Data(0)[0])
}

func TestSetValue(t *testing.T) {
	p := param.New(1, 0, 10, param.WithSampleRate(1), param.WithQuantumSize(1))
	p.SetValue(7)
	assert.Equal(t, float32(7), p.Value())
	assert.Equal(t, float32(7), p.KRate(0))
	assert.Equal(t, float32(10), func() float32 { p.SetValue(20); return p.Value() }())
}
