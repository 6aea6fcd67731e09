package events

import (
	"sync"
)

// HandlerRegistry keeps handler sets per key, e.g. one set per message kind.
// Several handlers may be registered for the same key; Dispatch calls each of
// them on the caller's goroutine.
type HandlerRegistry[K comparable, T any] struct {
	mu       sync.RWMutex
	handlers map[K]map[uint64]func(T)
	nextID   uint64
}

func NewHandlerRegistry[K comparable, T any]() *HandlerRegistry[K, T] {
	return &HandlerRegistry[K, T]{
		handlers: make(map[K]map[uint64]func(T)),
	}
}

// Register adds handler under key and returns its removal function.
func (r *HandlerRegistry[K, T]) Register(key K, handler func(T)) func() {
	if handler == nil {
		panic("HandlerRegistry: handler cannot be nil")
	}

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	set, ok := r.handlers[key]
	if !ok {
		set = make(map[uint64]func(T))
		r.handlers[key] = set
	}
	set[id] = handler
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if set, ok := r.handlers[key]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(r.handlers, key)
				}
			}
		})
	}
}

// Dispatch calls every handler registered under key with value and returns
// the number of handlers called. Handlers run outside the registry lock so
// they may register or remove handlers themselves.
func (r *HandlerRegistry[K, T]) Dispatch(key K, value T) int {
	r.mu.RLock()
	set := r.handlers[key]
	targets := make([]func(T), 0, len(set))
	for _, h := range set {
		targets = append(targets, h)
	}
	r.mu.RUnlock()

	for _, h := range targets {
		h(value)
	}
	return len(targets)
}

// Count returns the number of handlers registered under key.
func (r *HandlerRegistry[K, T]) Count(key K) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[key])
}
