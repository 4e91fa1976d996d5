package worklet

import lua "github.com/yuin/gopher-lua"

// Call is a prepared worklet invocation that is reused every block.
// Buffer arguments are converted into Lua values once per engine, number
// arguments are updated in place with Set.
type Call struct {
	handle Handle
	args   []any
	values []lua.LValue
	state  *lua.LState
}

// NewCall prepares invocation of worklet with arguments. Arguments are
// converted with Engine.Value, number arguments are placeholders for Set.
func NewCall(h Handle, args ...any) *Call {
	c := Call{
		handle: h,
		args:   args,
		values: make([]lua.LValue, len(args)),
	}
	for i, arg := range args {
		if v, ok := number(arg); ok {
			c.values[i] = v
		}
	}
	return &c
}

// Set replaces the number argument at position i.
func (c *Call) Set(i int, v float64) {
	c.values[i] = lua.LNumber(v)
}

// Handle returns the invoked worklet.
func (c *Call) Handle() Handle {
	return c.handle
}

// invoke runs the call on locked engine.
func (c *Call) invoke(e *Engine) (lua.LValue, error) {
	if c.state != e.state {
		for i, arg := range c.args {
			if _, ok := number(arg); ok {
				continue
			}
			v, err := e.Value(arg)
			if err != nil {
				return lua.LNil, err
			}
			c.values[i] = v
		}
		c.state = e.state
	}
	if err := e.state.CallByParam(lua.P{Fn: c.handle.fn, NRet: 1, Protect: true}, c.values...); err != nil {
		return lua.LNil, err
	}
	ret := e.state.Get(-1)
	e.state.Pop(1)
	return ret, nil
}

func number(arg any) (lua.LNumber, bool) {
	switch v := arg.(type) {
	case float64:
		return lua.LNumber(v), true
	case float32:
		return lua.LNumber(v), true
	case int:
		return lua.LNumber(v), true
	case int64:
		return lua.LNumber(v), true
	}
	return 0, false
}
