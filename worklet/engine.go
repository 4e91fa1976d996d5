/*
Package worklet runs user-supplied per-block transforms.

Worklets are Lua functions executed by Engine. Render goroutine never
calls Engine directly: it goes through Runner, which holds only a weak
reference to the engine and never waits for it. If the engine is
collected, closed or busy, the call reports that the runtime is
unavailable and the caller renders silence.

Inside Lua, buffers are userdata indexed from 1:

	return function(outputs, frames, time, offset)
		local out = outputs[1]
		for i = offset + 1, offset + frames do
			out[i] = math.sin(i)
		end
	end
*/
package worklet

import (
	"errors"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

const bufferType = "buffer"

var (
	// ErrUnavailable is returned when the runtime cannot execute a call.
	ErrUnavailable = errors.New("worklet runtime unavailable")
	// ErrNotFunction is returned when registered chunk doesn't evaluate
	// to a function.
	ErrNotFunction = errors.New("worklet must return a function")
)

type (
	// Engine owns Lua state. Access to the state is serialized.
	Engine struct {
		mu       sync.Mutex
		state    *lua.LState
		worklets map[string]*lua.LFunction
		closed   bool
	}

	// Handle identifies registered worklet.
	Handle struct {
		name string
		fn   *lua.LFunction
	}
)

// NewEngine creates engine with Lua standard libraries loaded.
func NewEngine() *Engine {
	L := lua.NewState()
	mt := L.NewTypeMetatable(bufferType)
	L.SetField(mt, "__index", L.NewFunction(bufferIndex))
	L.SetField(mt, "__newindex", L.NewFunction(bufferNewIndex))
	L.SetField(mt, "__len", L.NewFunction(bufferLen))
	return &Engine{
		state:    L,
		worklets: make(map[string]*lua.LFunction),
	}
}

// Register compiles the source and stores the function it returns under
// the name. Registering the same name again replaces the worklet.
func (e *Engine) Register(name, source string) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Handle{}, ErrUnavailable
	}
	chunk, err := e.state.LoadString(source)
	if err != nil {
		return Handle{}, fmt.Errorf("compile worklet %s: %w", name, err)
	}
	if err := e.state.CallByParam(lua.P{Fn: chunk, NRet: 1, Protect: true}); err != nil {
		return Handle{}, fmt.Errorf("load worklet %s: %w", name, err)
	}
	ret := e.state.Get(-1)
	e.state.Pop(1)
	fn, ok := ret.(*lua.LFunction)
	if !ok {
		return Handle{}, fmt.Errorf("%w: %s returned %s", ErrNotFunction, name, ret.Type())
	}
	e.worklets[name] = fn
	return Handle{name: name, fn: fn}, nil
}

// Handle returns registered worklet by name.
func (e *Engine) Handle(name string) (Handle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn, ok := e.worklets[name]
	return Handle{name: name, fn: fn}, ok
}

// Close releases Lua state. Consequent calls are no-op.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.worklets = nil
	e.state.Close()
}

// State returns Lua state. It must be used only within a job executed by
// Runner.
func (e *Engine) State() *lua.LState {
	return e.state
}

// Value converts Go argument into Lua value. Supported types are
// *Buffer, []*Buffer, float64, float32, int, int64, bool, string and
// lua.LValue.
func (e *Engine) Value(arg any) (lua.LValue, error) {
	switch v := arg.(type) {
	case lua.LValue:
		return v, nil
	case *Buffer:
		return e.buffer(v), nil
	case []*Buffer:
		t := e.state.CreateTable(len(v), 0)
		for _, b := range v {
			t.Append(e.buffer(b))
		}
		return t, nil
	case float64:
		return lua.LNumber(v), nil
	case float32:
		return lua.LNumber(v), nil
	case int:
		return lua.LNumber(v), nil
	case int64:
		return lua.LNumber(v), nil
	case bool:
		return lua.LBool(v), nil
	case string:
		return lua.LString(v), nil
	case nil:
		return lua.LNil, nil
	}
	return lua.LNil, fmt.Errorf("unsupported worklet argument %T", arg)
}

func (e *Engine) buffer(b *Buffer) *lua.LUserData {
	ud := e.state.NewUserData()
	ud.Value = b
	ud.Metatable = e.state.GetTypeMetatable(bufferType)
	return ud
}

// call invokes function. Engine must be locked.
func (e *Engine) call(fn *lua.LFunction, args ...any) (lua.LValue, error) {
	values := make([]lua.LValue, len(args))
	for i := range args {
		v, err := e.Value(args[i])
		if err != nil {
			return lua.LNil, err
		}
		values[i] = v
	}
	if err := e.state.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, values...); err != nil {
		return lua.LNil, err
	}
	ret := e.state.Get(-1)
	e.state.Pop(1)
	return ret, nil
}

func checkBuffer(L *lua.LState) *Buffer {
	ud := L.CheckUserData(1)
	if b, ok := ud.Value.(*Buffer); ok {
		return b
	}
	L.ArgError(1, "buffer expected")
	return nil
}

func bufferIndex(L *lua.LState) int {
	b := checkBuffer(L)
	i := L.CheckInt(2)
	if i < 1 || i > len(b.data) {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(b.data[i-1]))
	return 1
}

func bufferNewIndex(L *lua.LState) int {
	b := checkBuffer(L)
	i := L.CheckInt(2)
	v := L.CheckNumber(3)
	if i < 1 || i > len(b.data) {
		L.RaiseError("buffer index %d out of range [1, %d]", i, len(b.data))
		return 0
	}
	b.data[i-1] = float32(v)
	return 0
}

func bufferLen(L *lua.LState) int {
	b := checkBuffer(L)
	L.Push(lua.LNumber(len(b.data)))
	return 1
}
