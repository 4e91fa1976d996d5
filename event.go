package webaudio

// EventType defines the kind of event emitted by render goroutine.
type EventType int

const (
	// EventEnded is emitted once when scheduled source finishes.
	EventEnded EventType = iota
	// EventFault is emitted when render path swallows an error.
	EventFault
)

func (t EventType) String() string {
	switch t {
	case EventEnded:
		return "ended"
	case EventFault:
		return "fault"
	}
	return "unknown"
}

type (
	// Event is a notification from render goroutine. Events are
	// delivered to EventHandler by the context event loop.
	Event struct {
		Type   EventType
		NodeID string
		// CallbackID is the identifier set with SetOnEnded. It is valid
		// only if Callback is true.
		CallbackID uint64
		Callback   bool
		Err        error
	}

	// EventHandler receives events on thread pool goroutines.
	EventHandler func(Event)
)

// emit sends event without blocking. Events that don't fit into the
// channel are kept in preallocated pending list and retried on the next
// quantum.
func (c *Context) emit(e Event) {
	if len(c.pending) == 0 && c.events.TrySend(e) {
		return
	}
	if len(c.pending) < cap(c.pending) {
		c.pending = append(c.pending, e)
		return
	}
	c.dropped.Add(1)
}

// flushEvents retries pending events in order.
func (c *Context) flushEvents() {
	sent := 0
	for sent < len(c.pending) && c.events.TrySend(c.pending[sent]) {
		sent++
	}
	if sent == 0 {
		return
	}
	n := copy(c.pending, c.pending[sent:])
	clear(c.pending[n:])
	c.pending = c.pending[:n]
}

// fault reports swallowed render error.
func (c *Context) fault(n *node, err error) {
	c.faults.Add(1)
	c.emit(Event{Type: EventFault, NodeID: n.id, Err: err})
}
