// Package metric publishes render counters with expvar. Counters are
// aggregated per node type: every node of the same type updates the same
// Meter.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
)

const prefix = "webaudio"

const (
	// QuantumCounter is the number of rendered quanta.
	QuantumCounter = "Quanta"
	// FrameCounter is the number of rendered frames.
	FrameCounter = "Frames"
	// DurationCounter is the duration of rendered signal.
	DurationCounter = "Duration"
	// BusyCounter is the time spent rendering.
	BusyCounter = "Busy"
	// LoadCounter is the ratio of busy time to signal duration. Values
	// above 1 mean rendering is slower than real time.
	LoadCounter = "Load"
	// InstanceCounter is the number of metered instances.
	InstanceCounter = "Instances"
)

var (
	meters = registry{
		m: make(map[string]*Meter),
	}

	counters = []string{
		QuantumCounter,
		FrameCounter,
		DurationCounter,
		BusyCounter,
		LoadCounter,
		InstanceCounter,
	}
)

// Meter accumulates counters of one instance type. It's safe for
// concurrent use and Measure doesn't allocate.
type Meter struct {
	quanta    expvar.Int
	frames    expvar.Int
	instances expvar.Int
	duration  duration
	busy      duration
}

// For returns the meter of the instance type and counts the instance.
func For(instance any) *Meter {
	m := meters.get(typeOf(instance))
	m.instances.Add(1)
	return m
}

// Measure records a quantum of frames at sample rate that took busy
// time to render.
func (m *Meter) Measure(frames int, sampleRate float64, busy time.Duration) {
	m.quanta.Add(1)
	m.frames.Add(int64(frames))
	m.busy.add(busy)
	if sampleRate > 0 {
		m.duration.add(time.Duration(float64(frames) * float64(time.Second) / sampleRate))
	}
}

// Load returns the ratio of busy time to rendered duration.
func (m *Meter) Load() float64 {
	d := m.duration.d.Load()
	if d == 0 {
		return 0
	}
	return float64(m.busy.d.Load()) / float64(d)
}

// Get returns counters of instance type.
func Get(instance any) map[string]string {
	return values(typeOf(instance))
}

// GetAll returns counters of all metered types.
func GetAll() map[string]map[string]string {
	meters.Lock()
	defer meters.Unlock()
	all := make(map[string]map[string]string, len(meters.m))
	for t := range meters.m {
		all[t] = values(t)
	}
	return all
}

func values(t string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		if v := expvar.Get(key(t, counter)); v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

type registry struct {
	sync.Mutex
	m map[string]*Meter
}

func (r *registry) get(t string) *Meter {
	r.Lock()
	defer r.Unlock()
	if m, ok := r.m[t]; ok {
		return m
	}
	m := &Meter{}
	expvar.Publish(key(t, QuantumCounter), &m.quanta)
	expvar.Publish(key(t, FrameCounter), &m.frames)
	expvar.Publish(key(t, InstanceCounter), &m.instances)
	expvar.Publish(key(t, DurationCounter), &m.duration)
	expvar.Publish(key(t, BusyCounter), &m.busy)
	expvar.Publish(key(t, LoadCounter), expvar.Func(func() any { return m.Load() }))
	r.m[t] = m
	return m
}

func key(t, counter string) string {
	return fmt.Sprintf("%s.%s.%s", prefix, t, counter)
}

func typeOf(instance any) string {
	rv := reflect.ValueOf(instance)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration formats time.Duration values.
type duration struct {
	d atomic.Int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(v.d.Load()).String())
}

func (v *duration) add(delta time.Duration) {
	v.d.Add(int64(delta))
}
