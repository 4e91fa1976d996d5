/*
Package mutable delivers changes from control goroutines to the render
goroutine.

Control calls never touch render state directly. Instead they stage
mutator closures which the render goroutine applies at the boundary of
the next render quantum. Staging is lock-free and never blocks; applying
does not allocate.
*/
package mutable

import "sync/atomic"

type (
	// MutatorFunc mutates the object.
	MutatorFunc func()

	// Stager accepts mutations that will be applied by the owner of
	// mutable state.
	Stager interface {
		Stage(MutatorFunc)
	}

	// Immediate is a stager that applies mutations right away. It is
	// used by objects that are not attached to a render goroutine.
	Immediate struct{}
)

// Stage applies the mutation.
func (Immediate) Stage(fn MutatorFunc) {
	fn()
}

type node struct {
	next atomic.Pointer[node]
	fn   MutatorFunc
}

// Queue is an unbounded multi-producer single-consumer queue of
// mutations. Any goroutine can stage mutations, only one goroutine must
// apply them.
type Queue struct {
	head atomic.Pointer[node] // last staged node, swapped by producers.
	tail *node                // last applied node, owned by consumer.
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	stub := &node{}
	q := Queue{tail: stub}
	q.head.Store(stub)
	return &q
}

// Stage puts mutation into the queue.
func (q *Queue) Stage(fn MutatorFunc) {
	if fn == nil {
		return
	}
	n := &node{fn: fn}
	prev := q.head.Swap(n)
	prev.next.Store(n)
}

// Apply executes all staged mutations in order they were staged and
// returns the number of applied mutations. Mutations staged
// concurrently with Apply might be left for the next call.
func (q *Queue) Apply() int {
	applied := 0
	for {
		next := q.tail.next.Load()
		if next == nil {
			return applied
		}
		q.tail = next
		fn := next.fn
		next.fn = nil
		fn()
		applied++
	}
}

// Empty returns true if there are no mutations to apply.
func (q *Queue) Empty() bool {
	return q.tail.next.Load() == nil
}
