package worklet

import (
	"sync/atomic"
	"weak"

	lua "github.com/yuin/gopher-lua"
)

// Runner executes jobs on engine without blocking. It doesn't keep
// engine alive.
type Runner struct {
	engine   weak.Pointer[Engine]
	failures atomic.Uint64
	lastErr  atomic.Pointer[error]
}

// NewRunner returns runner for the engine. Nil engine results in a
// runner that is always unavailable.
func NewRunner(e *Engine) *Runner {
	var r Runner
	if e != nil {
		r.engine = weak.Make(e)
	}
	return &r
}

// ExecuteGuardedSync runs the job on engine. It returns false if engine
// is collected, closed, busy or the job failed.
func (r *Runner) ExecuteGuardedSync(job func(*Engine) (lua.LValue, error)) (lua.LValue, bool) {
	e := r.acquire()
	if e == nil {
		return lua.LNil, false
	}
	defer e.mu.Unlock()
	ret, err := job(e)
	if err != nil {
		r.fail(err)
		return lua.LNil, false
	}
	return ret, true
}

// Execute invokes prepared call. Unlike ExecuteWorklet it reuses
// arguments converted by previous invocations.
func (r *Runner) Execute(c *Call) (lua.LValue, bool) {
	if c.handle.fn == nil {
		return lua.LNil, false
	}
	e := r.acquire()
	if e == nil {
		return lua.LNil, false
	}
	defer e.mu.Unlock()
	ret, err := c.invoke(e)
	if err != nil {
		r.fail(err)
		return lua.LNil, false
	}
	return ret, true
}

// acquire returns locked engine or nil if it is collected, closed or
// busy.
func (r *Runner) acquire() *Engine {
	e := r.engine.Value()
	if e == nil {
		return nil
	}
	if !e.mu.TryLock() {
		return nil
	}
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	return e
}

// ExecuteWorklet invokes registered worklet with arguments converted by
// Engine.Value.
func (r *Runner) ExecuteWorklet(h Handle, args ...any) (lua.LValue, bool) {
	if h.fn == nil {
		return lua.LNil, false
	}
	return r.ExecuteGuardedSync(func(e *Engine) (lua.LValue, error) {
		return e.call(h.fn, args...)
	})
}

// Available returns true if engine is alive and not closed.
func (r *Runner) Available() bool {
	e := r.engine.Value()
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed
}

// Failures returns number of failed jobs.
func (r *Runner) Failures() uint64 {
	return r.failures.Load()
}

// Err returns the last job error.
func (r *Runner) Err() error {
	if err := r.lastErr.Load(); err != nil {
		return *err
	}
	return nil
}

func (r *Runner) fail(err error) {
	r.failures.Add(1)
	r.lastErr.Store(&err)
}

// Name returns worklet name.
func (h Handle) Name() string {
	return h.name
}

// Valid returns true if handle refers to registered worklet.
func (h Handle) Valid() bool {
	return h.fn != nil
}
