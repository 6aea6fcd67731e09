package events

import (
	"sync"
)

// ChannelEvent fans a value out to any number of listening channels.
// A single producer calls Notify; consumers receive on their own channels.
// Delivery never blocks the producer: a listener whose channel is full misses
// that value and the miss is counted.
type ChannelEvent[T any] struct {
	mu           sync.RWMutex
	listeners    map[uint64]chan<- T
	nextID       uint64
	replayLatest bool
	latest       T
	hasLatest    bool
	dropped      uint64
}

// NewChannelEvent creates a ChannelEvent. With replayLatest set, a channel that
// starts listening after the first Notify immediately receives the latest value.
func NewChannelEvent[T any](replayLatest bool) *ChannelEvent[T] {
	return &ChannelEvent[T]{
		listeners:    make(map[uint64]chan<- T),
		replayLatest: replayLatest,
	}
}

// Listen registers ch and returns a function that removes it again.
func (e *ChannelEvent[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("ChannelEvent: channel cannot be nil")
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = ch
	replay := e.replayLatest && e.hasLatest
	latest := e.latest
	e.mu.Unlock()

	if replay {
		select {
		case ch <- latest:
		default:
			e.countDrop()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.listeners, id)
			e.mu.Unlock()
		})
	}
}

// Notify delivers value to every listener and returns how many received it.
func (e *ChannelEvent[T]) Notify(value T) int {
	e.mu.Lock()
	e.latest = value
	e.hasLatest = true
	targets := make([]chan<- T, 0, len(e.listeners))
	for _, ch := range e.listeners {
		targets = append(targets, ch)
	}
	e.mu.Unlock()

	delivered := 0
	for _, ch := range targets {
		select {
		case ch <- value:
			delivered++
		default:
			e.countDrop()
		}
	}
	return delivered
}

// Latest returns the most recently notified value, if any.
func (e *ChannelEvent[T]) Latest() (T, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest, e.hasLatest
}

// ListenerCount returns the number of registered channels.
func (e *ChannelEvent[T]) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}

// Dropped returns how many deliveries were skipped because a listener was full.
func (e *ChannelEvent[T]) Dropped() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dropped
}

func (e *ChannelEvent[T]) countDrop() {
	e.mu.Lock()
	e.dropped++
	e.mu.Unlock()
}
