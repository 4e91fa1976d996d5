// Package spsc implements a bounded single-producer single-consumer
// channel. The data path only uses atomics; blocking operations wait
// according to the chosen WaitStrategy.
package spsc

import (
	"runtime"
	"sync/atomic"
)

// WaitStrategy defines how blocking operations wait for the other side.
type WaitStrategy int

const (
	// Park blocks the goroutine until the other side signals progress.
	Park WaitStrategy = iota
	// Yield spins, yielding the processor between attempts.
	Yield
)

// cacheLine separates producer and consumer indices.
type cacheLine [64]byte

type ring[T any] struct {
	head atomic.Uint64 // next slot to read, written by consumer.
	_    cacheLine
	tail atomic.Uint64 // next slot to write, written by producer.
	_    cacheLine

	mask uint64
	buf  []T
	wait WaitStrategy

	notEmpty chan struct{}
	notFull  chan struct{}
}

// Sender is the producing side of channel. It must be used by a single
// goroutine at a time.
type Sender[T any] struct {
	r *ring[T]
}

// Receiver is the consuming side of channel. It must be used by a single
// goroutine at a time.
type Receiver[T any] struct {
	r *ring[T]
}

// New creates a channel with at least provided capacity. Capacity is
// rounded up to the power of two.
func New[T any](capacity int, wait WaitStrategy) (*Sender[T], *Receiver[T]) {
	size := 1
	for size < capacity {
		size <<= 1
	}
	r := &ring[T]{
		mask:     uint64(size - 1),
		buf:      make([]T, size),
		wait:     wait,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
	}
	return &Sender[T]{r: r}, &Receiver[T]{r: r}
}

// Cap returns capacity of the channel.
func (s *Sender[T]) Cap() int {
	return len(s.r.buf)
}

// TrySend puts value into channel. False is returned if channel is full.
// It never blocks.
func (s *Sender[T]) TrySend(v T) bool {
	r := s.r
	tail := r.tail.Load()
	if tail-r.head.Load() == uint64(len(r.buf)) {
		return false
	}
	r.buf[tail&r.mask] = v
	r.tail.Store(tail + 1)
	signal(r.notEmpty)
	return true
}

// Send puts value into channel and waits if channel is full.
func (s *Sender[T]) Send(v T) {
	for !s.TrySend(v) {
		s.r.block(s.r.notFull)
	}
}

// TryReceive takes value from channel. False is returned if channel is
// empty. It never blocks.
func (r *Receiver[T]) TryReceive() (T, bool) {
	var zero T
	rg := r.r
	head := rg.head.Load()
	if head == rg.tail.Load() {
		return zero, false
	}
	i := head & rg.mask
	v := rg.buf[i]
	rg.buf[i] = zero
	rg.head.Store(head + 1)
	signal(rg.notFull)
	return v, true
}

// Receive takes value from channel and waits if channel is empty.
func (r *Receiver[T]) Receive() T {
	for {
		if v, ok := r.TryReceive(); ok {
			return v
		}
		r.r.block(r.r.notEmpty)
	}
}

// Ready returns a channel that is signalled after new values are sent.
// It allows to wait for values in select statements; the channel can be
// signalled spuriously, so TryReceive must be used after wake up.
func (r *Receiver[T]) Ready() <-chan struct{} {
	return r.r.notEmpty
}

// Len returns an approximate number of queued values.
func (r *Receiver[T]) Len() int {
	return int(r.r.tail.Load() - r.r.head.Load())
}

func (r *ring[T]) block(c chan struct{}) {
	switch r.wait {
	case Yield:
		runtime.Gosched()
	default:
		<-c
	}
}

// signal wakes up the waiting side, if any, without blocking.
func signal(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}
