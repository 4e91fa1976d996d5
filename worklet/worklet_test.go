package worklet_test

import (
	"encoding/binary"
	"math"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"pipelined.dev/webaudio/worklet"
)

const fill = `
return function(outputs, frames, value)
	for _, out in ipairs(outputs) do
		for i = 1, frames do
			out[i] = value
		end
	end
	return #outputs[1]
end
`

func TestExecuteWorklet(t *testing.T) {
	e := worklet.NewEngine()
	defer e.Close()
	h, err := e.Register("fill", fill)
	require.NoError(t, err)
	assert.True(t, h.Valid())
	assert.Equal(t, "fill", h.Name())

	r := worklet.NewRunner(e)
	assert.True(t, r.Available())
	bufs := []*worklet.Buffer{worklet.NewBuffer(4), worklet.NewBuffer(4)}
	ret, ok := r.ExecuteWorklet(h, bufs, 3, 0.5)
	require.True(t, ok)
	assert.Equal(t, lua.LNumber(4), ret)
	for _, b := range bufs {
		assert.Equal(t, []float32{0.5, 0.5, 0.5, 0}, b.Data())
	}

	found, ok := e.Handle("fill")
	assert.True(t, ok)
	assert.True(t, found.Valid())
	_, ok = e.Handle("missing")
	assert.False(t, ok)
}

func TestCall(t *testing.T) {
	e := worklet.NewEngine()
	defer e.Close()
	h, err := e.Register("scale", `
local prev
return function(outputs, frames, value)
	local same = prev == outputs
	prev = outputs
	for i = 1, frames do
		outputs[1][i] = value
	end
	return same
end
`)
	require.NoError(t, err)
	r := worklet.NewRunner(e)
	buf := worklet.NewBuffer(4)
	c := worklet.NewCall(h, []*worklet.Buffer{buf}, 4, 0.5)
	assert.Equal(t, h, c.Handle())

	ret, ok := r.Execute(c)
	require.True(t, ok)
	assert.Equal(t, lua.LFalse, ret)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, buf.Data())

	c.Set(1, 2)
	c.Set(2, 0.25)
	ret, ok = r.Execute(c)
	require.True(t, ok)
	assert.Equal(t, lua.LTrue, ret, "buffers table must be reused")
	assert.Equal(t, []float32{0.25, 0.25, 0.5, 0.5}, buf.Data())

	_, ok = r.Execute(worklet.NewCall(worklet.Handle{}))
	assert.False(t, ok)
	e.Close()
	_, ok = r.Execute(c)
	assert.False(t, ok)
}

func TestRegisterErrors(t *testing.T) {
	tests := []struct {
		description string
		source      string
		err         error
	}{
		{
			description: "syntax error",
			source:      "return function(",
		},
		{
			description: "not a function",
			source:      "return 42",
			err:         worklet.ErrNotFunction,
		},
		{
			description: "runtime error",
			source:      "error('boom')",
		},
	}
	e := worklet.NewEngine()
	defer e.Close()
	for _, test := range tests {
		_, err := e.Register("broken", test.source)
		assert.Error(t, err, test.description)
		if test.err != nil {
			assert.ErrorIs(t, err, test.err, test.description)
		}
	}
}

func TestUnavailable(t *testing.T) {
	tests := []struct {
		description string
		runner      func() *worklet.Runner
	}{
		{
			description: "nil engine",
			runner: func() *worklet.Runner {
				return worklet.NewRunner(nil)
			},
		},
		{
			description: "closed engine",
			runner: func() *worklet.Runner {
				e := worklet.NewEngine()
				r := worklet.NewRunner(e)
				e.Close()
				e.Close()
				return r
			},
		},
	}
	for _, test := range tests {
		r := test.runner()
		assert.False(t, r.Available(), test.description)
		_, ok := r.ExecuteGuardedSync(func(*worklet.Engine) (lua.LValue, error) {
			return lua.LTrue, nil
		})
		assert.False(t, ok, test.description)
	}
}

func newCollectedRunner() *worklet.Runner {
	return worklet.NewRunner(worklet.NewEngine())
}

func TestCollectedEngine(t *testing.T) {
	r := newCollectedRunner()
	assert.Eventually(t, func() bool {
		runtime.GC()
		return !r.Available()
	}, time.Second, 10*time.Millisecond)
}

func TestBusyEngine(t *testing.T) {
	e := worklet.NewEngine()
	defer e.Close()
	r := worklet.NewRunner(e)
	var nested bool
	_, ok := r.ExecuteGuardedSync(func(*worklet.Engine) (lua.LValue, error) {
		_, nested = r.ExecuteGuardedSync(func(*worklet.Engine) (lua.LValue, error) {
			return lua.LTrue, nil
		})
		return lua.LNil, nil
	})
	assert.True(t, ok)
	assert.False(t, nested, "busy engine must not block")
}

func TestWorkletFailure(t *testing.T) {
	e := worklet.NewEngine()
	defer e.Close()
	h, err := e.Register("fail", `return function(out) out[100] = 1 end`)
	require.NoError(t, err)
	r := worklet.NewRunner(e)
	_, ok := r.ExecuteWorklet(h, worklet.NewBuffer(2))
	assert.False(t, ok)
	assert.Equal(t, uint64(1), r.Failures())
	assert.Error(t, r.Err())

	_, ok = r.ExecuteWorklet(worklet.Handle{})
	assert.False(t, ok)
}

func TestBufferBytes(t *testing.T) {
	data := []float32{1, -2}
	b := worklet.Wrap(data)
	raw := b.Bytes()
	require.Len(t, raw, 8)
	assert.Equal(t, math.Float32bits(-2), binary.NativeEndian.Uint32(raw[4:]))

	// writes through raw view are visible in samples.
	binary.NativeEndian.PutUint32(raw, math.Float32bits(0.25))
	assert.Equal(t, float32(0.25), data[0])

	b.Reset(nil)
	assert.Nil(t, b.Bytes())
	assert.Equal(t, 0, b.Len())
}
