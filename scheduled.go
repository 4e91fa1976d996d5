package webaudio

import (
	"fmt"
	"math"
	"strconv"
	"sync/atomic"

	"pipelined.dev/webaudio/audio"
)

// PlaybackState of scheduled source.
type PlaybackState int32

const (
	// Unscheduled source was not started.
	Unscheduled PlaybackState = iota
	// Scheduled source waits for its start time.
	Scheduled
	// Playing source produces audio.
	Playing
	// Finished source reached its stop time. It's a terminal state.
	Finished
)

func (s PlaybackState) String() string {
	switch s {
	case Unscheduled:
		return "unscheduled"
	case Scheduled:
		return "scheduled"
	case Playing:
		return "playing"
	case Finished:
		return "finished"
	}
	return "unknown"
}

const noStop = math.MaxInt64

// ScheduledSource is embedded by nodes that produce audio within a time
// interval.
type ScheduledSource struct {
	n *node

	state   atomic.Int32
	started atomic.Bool
	stopped atomic.Bool

	// render side.
	renderState PlaybackState
	startFrame  int64
	stopFrame   int64
	callbackID  uint64
	callback    bool
	finishing   bool
}

func (s *ScheduledSource) setup(n *node) {
	s.n = n
	s.stopFrame = noStop
}

// PlaybackState returns current state. It is safe to call from any
// goroutine.
func (s *ScheduledSource) PlaybackState() PlaybackState {
	return PlaybackState(s.state.Load())
}

// Start schedules playback at time when, in seconds of context time.
func (s *ScheduledSource) Start(when float64) error {
	if err := validWhen(when); err != nil {
		return err
	}
	if s.n.released.Load() {
		return fmt.Errorf("%w: node %s is released", ErrInvalidState, s.n.id)
	}
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: node %s is already started", ErrInvalidState, s.n.id)
	}
	frame := s.n.ctx.frameOf(when)
	s.state.Store(int32(Scheduled))
	s.n.ctx.mutations.Stage(func() {
		s.startFrame = frame
		s.renderState = Scheduled
	})
	return nil
}

// Stop schedules the end of playback at time when. Stop at or before
// the current time applies at the start of the next quantum.
func (s *ScheduledSource) Stop(when float64) error {
	if err := validWhen(when); err != nil {
		return err
	}
	if !s.started.Load() {
		return fmt.Errorf("%w: node %s is not started", ErrInvalidState, s.n.id)
	}
	if !s.stopped.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: node %s is already stopped", ErrInvalidState, s.n.id)
	}
	frame := s.n.ctx.frameOf(when)
	s.n.ctx.mutations.Stage(func() {
		s.stopFrame = frame
	})
	return nil
}

// SetOnEnded sets callback identifier delivered with ended event. The
// identifier must be a decimal unsigned 64-bit integer.
func (s *ScheduledSource) SetOnEnded(id string) error {
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: callback id %q: %v", ErrInvalidArgument, id, err)
	}
	s.n.ctx.mutations.Stage(func() {
		s.callbackID, s.callback = v, true
	})
	return nil
}

// ClearOnEnded removes callback identifier.
func (s *ScheduledSource) ClearOnEnded() {
	s.n.ctx.mutations.Stage(func() {
		s.callbackID, s.callback = 0, false
	})
}

// finish makes the source end after current quantum.
func (s *ScheduledSource) finish() {
	s.finishing = true
}

// playback computes the part of quantum that is inside playback
// interval. Frames outside of it are silenced. Returned startOffset and
// nonSilent define the range that node must generate.
func (s *ScheduledSource) playback(bus *audio.Bus, frames int) (startOffset, nonSilent int) {
	switch s.renderState {
	case Unscheduled, Finished:
		bus.Zero()
		return 0, 0
	}
	first := s.n.ctx.renderFrm
	last := first + int64(frames)
	if s.startFrame >= last {
		bus.Zero()
		return 0, 0
	}
	start := max(s.startFrame, first)
	stop := max(s.stopFrame, first)
	end := min(stop, last)
	startOffset = int(start - first)
	if end > start {
		nonSilent = int(end - start)
	}
	if s.renderState == Scheduled {
		s.renderState = Playing
		s.state.Store(int32(Playing))
	}
	bus.ZeroRange(0, startOffset)
	bus.ZeroRange(startOffset+nonSilent, frames-startOffset-nonSilent)
	if stop <= last {
		s.finishing = true
	}
	return startOffset, nonSilent
}

// ended completes the quantum. It must be called after node generated
// the audio.
func (s *ScheduledSource) ended() {
	if !s.finishing || s.renderState == Finished {
		return
	}
	s.renderState = Finished
	s.state.Store(int32(Finished))
	s.n.enabled = false
	s.n.enabledFlag.Store(false)
	s.n.ctx.emit(Event{
		Type:       EventEnded,
		NodeID:     s.n.id,
		CallbackID: s.callbackID,
		Callback:   s.callback,
	})
}

func validWhen(when float64) error {
	if when < 0 || math.IsNaN(when) || math.IsInf(when, 0) {
		return fmt.Errorf("%w: time %v", ErrInvalidArgument, when)
	}
	return nil
}
