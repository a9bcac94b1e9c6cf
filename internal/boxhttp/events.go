package boxhttp

import (
	"sync"
	"sync/atomic"
)

// EventKind discriminates notifier events.
type EventKind string

// Event kinds published by the executor.
const (
	EventResponse EventKind = "response"
	EventError    EventKind = "error"
)

// Event is an observability record for one completed request. The embedded
// response and error carry only redacted request headers.
type Event struct {
	Kind     EventKind
	Response *Response
	Err      error
}

// Notifier fans out executor events to subscribers without ever blocking the
// request path. Events for subscribers with full buffers are dropped and
// counted. A nil *Notifier is valid and discards everything.
type Notifier struct {
	mu      sync.Mutex
	subs    map[int]chan Event
	nextID  int
	dropped atomic.Uint64
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener with the given channel buffer and returns
// the event channel plus an unsubscribe function. Unsubscribing closes the
// channel.
func (n *Notifier) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}

	ch := make(chan Event, buffer)

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()

		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish delivers the event to every subscriber that has buffer space.
func (n *Notifier) Publish(ev Event) {
	if n == nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
			n.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events discarded due to full subscriber
// buffers.
func (n *Notifier) Dropped() uint64 {
	if n == nil {
		return 0
	}

	return n.dropped.Load()
}
