package webaudio

import (
	"errors"
	"strings"

	"pipelined.dev/webaudio/audio"
	"pipelined.dev/webaudio/param"
	"pipelined.dev/webaudio/worklet"
)

var (
	// ErrInvalidArgument is returned for bad caller input: negative or
	// non-finite times, malformed identifiers, foreign nodes.
	ErrInvalidArgument = param.ErrInvalidArgument
	// ErrInvalidState is returned when operation violates the lifecycle
	// of node or context, e.g. double start.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotInitialized is reported when uninitialized node is pulled.
	ErrNotInitialized = errors.New("node is not initialized")
	// ErrInvalidAutomation is returned for mathematically undefined
	// parameter automation.
	ErrInvalidAutomation = param.ErrInvalidAutomation
	// ErrInvalidTimeOrder is returned when automation event precedes
	// already scheduled events.
	ErrInvalidTimeOrder = param.ErrInvalidTimeOrder
	// ErrOutOfRange is returned for channel access beyond bounds.
	ErrOutOfRange = audio.ErrOutOfRange
	// ErrRuntimeUnavailable is reported when worklet runtime cannot
	// execute a call. Nodes render silence in that case.
	ErrRuntimeUnavailable = worklet.ErrUnavailable
)

// closeErrors wraps errors that might occur when multiple resources are
// closed.
type closeErrors []error

func (e closeErrors) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ",")
}

// Unwrap allows to match any of errors.
func (e closeErrors) Unwrap() []error {
	return e
}

// ret returns untyped nil if error is list is empty.
func (e closeErrors) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
