package param

import "math"

// convergence is a distance to target when set-target event is
// considered complete.
const convergence = 1e-6

// Kind of automation event.
type Kind int

const (
	// SetValue steps to the value at event time.
	SetValue Kind = iota
	// LinearRamp interpolates linearly from the previous event.
	LinearRamp
	// ExponentialRamp interpolates exponentially from the previous event.
	ExponentialRamp
	// SetTarget exponentially approaches the value starting at event time.
	SetTarget
	// SetValueCurve follows the curve over the event duration.
	SetValueCurve
)

func (k Kind) String() string {
	switch k {
	case SetValue:
		return "set-value"
	case LinearRamp:
		return "linear-ramp"
	case ExponentialRamp:
		return "exponential-ramp"
	case SetTarget:
		return "set-target"
	case SetValueCurve:
		return "set-value-curve"
	}
	return "unknown"
}

// Event is a single automation event.
type Event struct {
	Kind         Kind
	Time         float64
	Value        float32
	TimeConstant float64
	Curve        []float32
	Duration     float64
}

func (e *Event) isRamp() bool {
	return e.Kind == LinearRamp || e.Kind == ExponentialRamp
}

// end returns the time when event stops affecting the value on its own.
func (e *Event) end() float64 {
	if e.Kind == SetValueCurve {
		return e.Time + e.Duration
	}
	return e.Time
}

// ramp returns the value of ramp event at time t, starting from t0, v0.
func (e *Event) ramp(t0 float64, v0 float32, t float64) float32 {
	if e.Time <= t0 {
		return e.Value
	}
	if t <= t0 {
		return v0
	}
	ratio := (t - t0) / (e.Time - t0)
	if e.Kind == ExponentialRamp {
		// undefined in log domain, hold until the end of ramp.
		if v0 == 0 || e.Value == 0 || (v0 < 0) != (e.Value < 0) {
			return v0
		}
		return float32(float64(v0) * math.Pow(float64(e.Value)/float64(v0), ratio))
	}
	return v0 + float32(ratio)*(e.Value-v0)
}

// approach returns value of set-target event at time t, starting from v0.
func (e *Event) approach(v0 float32, t float64) float32 {
	if t <= e.Time {
		return v0
	}
	k := math.Exp(-(t - e.Time) / e.TimeConstant)
	return e.Value + float32(float64(v0-e.Value)*k)
}

// curveAt returns value of curve event at time t.
func (e *Event) curveAt(t float64) float32 {
	last := len(e.Curve) - 1
	if t >= e.Time+e.Duration {
		return e.Curve[last]
	}
	pos := (t - e.Time) / e.Duration * float64(last)
	if pos <= 0 {
		return e.Curve[0]
	}
	k := int(pos)
	if k >= last {
		return e.Curve[last]
	}
	frac := float32(pos - float64(k))
	return e.Curve[k] + (e.Curve[k+1]-e.Curve[k])*frac
}

// timeline is an ordered list of events. Events that are completely in
// the past are folded into base time and value.
type timeline struct {
	baseTime  float64
	baseValue float32
	events    []Event
}

// handover returns time and value that event i passes to the next event.
func (tl *timeline) handover(i int, prevT float64, prevV float32) (float64, float32) {
	e := &tl.events[i]
	switch e.Kind {
	case SetTarget:
		if i+1 < len(tl.events) {
			next := &tl.events[i+1]
			if next.isRamp() {
				return e.Time, prevV
			}
			return next.Time, e.approach(prevV, next.Time)
		}
		return e.Time, prevV
	case SetValueCurve:
		return e.end(), e.Curve[len(e.Curve)-1]
	}
	return e.Time, e.Value
}

// valueAt computes automation value at time t.
func (tl *timeline) valueAt(t float64) float32 {
	prevT, prevV := tl.baseTime, tl.baseValue
	for i := range tl.events {
		e := &tl.events[i]
		if e.isRamp() {
			if t < e.Time {
				return e.ramp(prevT, prevV, t)
			}
		} else {
			if t < e.Time {
				return prevV
			}
			switch e.Kind {
			case SetTarget:
				if i+1 == len(tl.events) || (!tl.events[i+1].isRamp() && t < tl.events[i+1].Time) {
					return e.approach(prevV, t)
				}
			case SetValueCurve:
				if t < e.end() {
					return e.curveAt(t)
				}
			}
		}
		prevT, prevV = tl.handover(i, prevT, prevV)
	}
	return prevV
}

// activeIn returns true if value changes within [t0, t1).
func (tl *timeline) activeIn(t0, t1 float64) bool {
	prevT, prevV := tl.baseTime, tl.baseValue
	for i := range tl.events {
		e := &tl.events[i]
		if e.Time >= t1 && !e.isRamp() {
			return false
		}
		switch e.Kind {
		case SetValue:
			if e.Time > t0 {
				return true
			}
		case LinearRamp, ExponentialRamp:
			if prevT < t1 && e.Time > t0 && e.Value != prevV {
				return true
			}
		case SetTarget:
			end := math.Inf(1)
			if i+1 < len(tl.events) {
				if tl.events[i+1].isRamp() {
					break
				}
				end = tl.events[i+1].Time
			}
			if end > t0 {
				// converged approach is constant.
				v := e.approach(prevV, max(t0, e.Time))
				if math.Abs(float64(v-e.Value)) > convergence {
					return true
				}
			}
		case SetValueCurve:
			if e.end() > t0 {
				return true
			}
		}
		prevT, prevV = tl.handover(i, prevT, prevV)
	}
	return false
}

// last returns end time and final value of the timeline.
func (tl *timeline) last() (float64, float32) {
	if len(tl.events) == 0 {
		return tl.baseTime, tl.baseValue
	}
	i := len(tl.events) - 1
	e := &tl.events[i]
	if e.Kind == SetTarget {
		return e.Time, e.Value
	}
	_, v := tl.handover(i, 0, 0)
	return e.end(), v
}

// rampStart returns the value a ramp appended to the timeline starts
// from. After set-target it is the value the approach started with.
func (tl *timeline) rampStart() float32 {
	prevT, prevV := tl.baseTime, tl.baseValue
	for i := range tl.events {
		prevT, prevV = tl.handover(i, prevT, prevV)
	}
	return prevV
}

// insert appends event to the end of timeline.
func (tl *timeline) insert(e Event) {
	tl.events = append(tl.events, e)
}

// cancel removes all events with time at or after t.
func (tl *timeline) cancel(t float64) {
	for i := range tl.events {
		if tl.events[i].Time >= t {
			clear(tl.events[i:])
			tl.events = tl.events[:i]
			return
		}
	}
}

// prune folds events which can no longer affect values at or after now.
// It shifts events in place and does not allocate.
func (tl *timeline) prune(now float64) {
	n := 0
	prevT, prevV := tl.baseTime, tl.baseValue
	for n+1 < len(tl.events) && tl.events[n+1].Time <= now {
		prevT, prevV = tl.handover(n, prevT, prevV)
		n++
	}
	if n == 0 {
		return
	}
	tl.baseTime, tl.baseValue = prevT, prevV
	copy(tl.events, tl.events[n:])
	clear(tl.events[len(tl.events)-n:])
	tl.events = tl.events[:len(tl.events)-n]
}
