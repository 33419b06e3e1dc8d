package stream

import (
	"context"
	"sync"
)

const defaultBuffer = 64

// Emitter receives workflow progress events in execution order.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// ChannelEmitter buffers the events of one run for a single consumer.
// The workflow goroutine emits, the transport goroutine drains Events().
// Close must only be called once no further Emit can happen; the runner
// owns that ordering by closing after the terminal event.
type ChannelEmitter struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

func NewChannelEmitter(buffer int) *ChannelEmitter {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &ChannelEmitter{ch: make(chan Event, buffer)}
}

// Emit queues an event for the consumer. When the consumer has gone away
// the run context is canceled and the send is abandoned rather than
// blocking the workflow.
func (e *ChannelEmitter) Emit(ctx context.Context, ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.ch <- ev:
	case <-ctx.Done():
	}
}

// Events returns the consumer side of the stream. The channel is closed
// by Close; buffered events remain readable after that.
func (e *ChannelEmitter) Events() <-chan Event {
	return e.ch
}

// Close ends the stream.
func (e *ChannelEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}

// NullEmitter discards every event. Non-streaming entry points use it so
// workflow code can emit unconditionally.
type NullEmitter struct{}

func (NullEmitter) Emit(context.Context, Event) {}

// CollectEmitter records events in order; test helper.
type CollectEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (c *CollectEmitter) Emit(_ context.Context, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a snapshot of everything emitted so far.
func (c *CollectEmitter) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
