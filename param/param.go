/*
Package param implements automatable audio parameters.

Param keeps two copies of its automation timeline. The control copy is
used to validate calls and answer queries. The render copy is updated
through a mutable.Stager and is evaluated by the render goroutine once
per quantum.
*/
package param

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"pipelined.dev/webaudio/audio"
	"pipelined.dev/webaudio/mutable"
)

var (
	// ErrInvalidTimeOrder is returned when event is scheduled before the
	// last scheduled event.
	ErrInvalidTimeOrder = errors.New("invalid time order")
	// ErrInvalidAutomation is returned when automation cannot be
	// computed, e.g. exponential ramp through zero.
	ErrInvalidAutomation = errors.New("invalid automation")
	// ErrInvalidArgument is returned for negative or non-finite times and
	// malformed curves.
	ErrInvalidArgument = errors.New("invalid argument")
)

const (
	defaultSampleRate  = 44100
	defaultQuantumSize = 128
)

type (
	// Param is an automatable value. Control methods are safe to call
	// from a single control goroutine, Evaluate must be called only by
	// the render goroutine.
	Param struct {
		defaultValue float32
		minValue     float32
		maxValue     float32
		sampleRate   float64
		quantumSize  int
		stager       mutable.Stager
		clock        func() float64

		control timeline
		value   atomic.Uint32

		render timeline
		bus    *audio.Bus
	}

	// Option configures param.
	Option func(*Param)
)

// WithSampleRate sets the rate used to compute frame times.
func WithSampleRate(sampleRate float64) Option {
	return func(p *Param) {
		p.sampleRate = sampleRate
	}
}

// WithQuantumSize sets the maximum number of frames evaluated at once.
func WithQuantumSize(size int) Option {
	return func(p *Param) {
		p.quantumSize = size
	}
}

// WithStager sets the stager used to deliver changes to render timeline.
func WithStager(s mutable.Stager) Option {
	return func(p *Param) {
		p.stager = s
	}
}

// WithClock sets the function that returns current time of the context.
// Control timeline drops events that are in the past of the clock.
func WithClock(clock func() float64) Option {
	return func(p *Param) {
		p.clock = clock
	}
}

// New returns a param with provided default value and nominal range.
func New(defaultValue, minValue, maxValue float32, options ...Option) *Param {
	if minValue > maxValue {
		minValue, maxValue = maxValue, minValue
	}
	p := Param{
		defaultValue: defaultValue,
		minValue:     minValue,
		maxValue:     maxValue,
		sampleRate:   defaultSampleRate,
		quantumSize:  defaultQuantumSize,
		stager:       mutable.Immediate{},
	}
	for _, option := range options {
		option(&p)
	}
	v := p.clamp(defaultValue)
	p.control.baseValue = v
	p.render.baseValue = v
	p.value.Store(math.Float32bits(v))
	p.bus = audio.NewBus(1, p.quantumSize)
	return &p
}

// DefaultValue returns the initial value.
func (p *Param) DefaultValue() float32 {
	return p.defaultValue
}

// MinValue returns the lower bound of nominal range.
func (p *Param) MinValue() float32 {
	return p.minValue
}

// MaxValue returns the upper bound of nominal range.
func (p *Param) MaxValue() float32 {
	return p.maxValue
}

// Value returns the last computed value.
func (p *Param) Value() float32 {
	return math.Float32frombits(p.value.Load())
}

// SetValue sets the value immediately. It has no effect on render if
// automation events are scheduled.
func (p *Param) SetValue(v float32) {
	v = p.clamp(v)
	p.value.Store(math.Float32bits(v))
	if len(p.control.events) > 0 {
		return
	}
	p.control.baseValue = v
	p.stager.Stage(func() {
		if len(p.render.events) == 0 {
			p.render.baseValue = v
		}
	})
}

// SetValueAtTime schedules a step to the value at time t.
func (p *Param) SetValueAtTime(v float32, t float64) error {
	return p.schedule(Event{Kind: SetValue, Time: t, Value: v})
}

// LinearRampToValueAtTime schedules a linear ramp from the previous
// event to the value that ends at time t.
func (p *Param) LinearRampToValueAtTime(v float32, t float64) error {
	return p.schedule(Event{Kind: LinearRamp, Time: t, Value: v})
}

// ExponentialRampToValueAtTime schedules an exponential ramp from the
// previous event to the value that ends at time t. Both start and target
// values must be non-zero and have the same sign.
func (p *Param) ExponentialRampToValueAtTime(v float32, t float64) error {
	start := p.control.rampStart()
	if v == 0 || start == 0 || (v < 0) != (start < 0) {
		return fmt.Errorf("%w: exponential ramp from %v to %v", ErrInvalidAutomation, start, v)
	}
	return p.schedule(Event{Kind: ExponentialRamp, Time: t, Value: v})
}

// SetTargetAtTime schedules exponential approach to the target value
// starting at time t.
func (p *Param) SetTargetAtTime(target float32, t, timeConstant float64) error {
	if !(timeConstant > 0) || math.IsInf(timeConstant, 0) {
		return fmt.Errorf("%w: time constant %v", ErrInvalidArgument, timeConstant)
	}
	return p.schedule(Event{Kind: SetTarget, Time: t, Value: target, TimeConstant: timeConstant})
}

// SetValueCurveAtTime schedules the curve that starts at time t and lasts
// for duration. Curve is copied.
func (p *Param) SetValueCurveAtTime(curve []float32, t, duration float64) error {
	if len(curve) < 2 {
		return fmt.Errorf("%w: curve length %d", ErrInvalidArgument, len(curve))
	}
	if !(duration > 0) || math.IsInf(duration, 0) {
		return fmt.Errorf("%w: curve duration %v", ErrInvalidArgument, duration)
	}
	return p.schedule(Event{
		Kind:     SetValueCurve,
		Time:     t,
		Curve:    append([]float32(nil), curve...),
		Duration: duration,
	})
}

// CancelScheduledValues removes all events scheduled at or after time t.
func (p *Param) CancelScheduledValues(t float64) error {
	if err := validTime(t); err != nil {
		return err
	}
	p.control.cancel(t)
	p.stager.Stage(func() {
		p.render.cancel(t)
	})
	return nil
}

// CancelAndHoldAtTime removes all events scheduled at or after time t
// and holds the value automation would have at time t.
func (p *Param) CancelAndHoldAtTime(t float64) error {
	if err := validTime(t); err != nil {
		return err
	}
	hold := p.control.valueAt(t)
	p.control.cancel(t)
	p.control.insert(Event{Kind: SetValue, Time: t, Value: hold})
	p.stager.Stage(func() {
		p.render.cancel(t)
		p.render.insert(Event{Kind: SetValue, Time: t, Value: hold})
	})
	return nil
}

// Events returns a copy of scheduled events.
func (p *Param) Events() []Event {
	return append([]Event(nil), p.control.events...)
}

// ValueAtTime computes the automation value at time t from scheduled
// events. It doesn't account for connected inputs.
func (p *Param) ValueAtTime(t float64) float32 {
	return p.clamp(p.control.valueAt(t))
}

func (p *Param) schedule(e Event) error {
	if err := validTime(e.Time); err != nil {
		return err
	}
	if p.clock != nil {
		p.control.prune(p.clock())
	}
	if last, _ := p.control.last(); len(p.control.events) > 0 && e.Time < last {
		return fmt.Errorf("%w: %v event at %v before %v", ErrInvalidTimeOrder, e.Kind, e.Time, last)
	}
	p.control.insert(e)
	p.stager.Stage(func() {
		p.render.insert(e)
	})
	return nil
}

// Evaluate computes values for the quantum starting at currentTime. If
// automation is constant over the quantum, the returned bus is filled
// with a single value. Returned bus is owned by param and is valid until
// the next call.
func (p *Param) Evaluate(frames int, currentTime float64) *audio.Bus {
	p.render.prune(currentTime)
	data := p.bus.Data(0)
	if frames > len(data) {
		frames = len(data)
	}
	if frames <= 0 {
		return p.bus
	}
	end := currentTime + float64(frames)/p.sampleRate
	if !p.render.activeIn(currentTime, end) {
		v := p.clamp(p.render.valueAt(currentTime))
		for i := range data[:frames] {
			data[i] = v
		}
		p.value.Store(math.Float32bits(v))
		return p.bus
	}
	for i := range data[:frames] {
		data[i] = p.clamp(p.render.valueAt(currentTime + float64(i)/p.sampleRate))
	}
	p.value.Store(math.Float32bits(data[frames-1]))
	return p.bus
}

// KRate computes a single value at time t. It is used by nodes that
// read param once per quantum.
func (p *Param) KRate(t float64) float32 {
	p.render.prune(t)
	v := p.clamp(p.render.valueAt(t))
	p.value.Store(math.Float32bits(v))
	return v
}

// Clamp limits the value to nominal range. NaN is replaced with default
// value.
func (p *Param) Clamp(v float32) float32 {
	return p.clamp(v)
}

func (p *Param) clamp(v float32) float32 {
	if v != v {
		return p.clampDefault()
	}
	if v < p.minValue {
		return p.minValue
	}
	if v > p.maxValue {
		return p.maxValue
	}
	return v
}

func (p *Param) clampDefault() float32 {
	v := p.defaultValue
	if v < p.minValue {
		return p.minValue
	}
	if v > p.maxValue {
		return p.maxValue
	}
	return v
}

func validTime(t float64) error {
	if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("%w: time %v", ErrInvalidArgument, t)
	}
	return nil
}
