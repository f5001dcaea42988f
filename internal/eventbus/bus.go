// Package eventbus provides the ordered, non-blocking event queue that
// carries workflow progress events from nodes to the streaming API layer.
package eventbus

import (
	"sync"
	"time"
)

// Event is a single progress event emitted by a workflow node.
type Event struct {
	Stage   string         `json:"stage"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Publisher is the capability handed to workflow nodes. Publish must never
// block regardless of consumer state.
type Publisher interface {
	Publish(stage, message string, meta map[string]any)
}

// Bus is an unbounded FIFO event queue. Producers call Publish from workflow
// goroutines; a single consumer drains it via Receive or TryReceive. Closing
// the bus signals end-of-stream; events published before Close remain
// receivable until drained.
type Bus struct {
	mu      sync.Mutex
	events  []Event
	notify  chan struct{}
	closed  bool
	doneCh  chan struct{}
	dropped int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		notify: make(chan struct{}, 1),
		doneCh: make(chan struct{}),
	}
}

// Publish appends an event to the queue. It never blocks and is safe to call
// from multiple goroutines; events from a single goroutine are delivered in
// publish order. Publishing after Close drops the event.
func (b *Bus) Publish(stage, message string, meta map[string]any) {
	b.mu.Lock()
	if b.closed {
		b.dropped++
		b.mu.Unlock()
		return
	}
	b.events = append(b.events, Event{Stage: stage, Message: message, Meta: meta})
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// TryReceive pops the oldest queued event without waiting. The second return
// is false when the queue is currently empty.
func (b *Bus) TryReceive() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return Event{}, false
	}
	ev := b.events[0]
	b.events = b.events[1:]
	return ev, true
}

// Receive waits up to timeout for an event. The second return is false on
// timeout. A closed bus with queued events still yields them.
func (b *Bus) Receive(timeout time.Duration) (Event, bool) {
	if ev, ok := b.TryReceive(); ok {
		return ev, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-b.notify:
			if ev, ok := b.TryReceive(); ok {
				return ev, true
			}
		case <-timer.C:
			return Event{}, false
		}
	}
}

// Close marks the bus as done. Subsequent Publish calls are dropped; queued
// events remain receivable. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.doneCh)
}

// Done reports when the bus has been closed.
func (b *Bus) Done() <-chan struct{} {
	return b.doneCh
}

// Len returns the number of queued, undelivered events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Dropped returns the count of events published after Close.
func (b *Bus) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
