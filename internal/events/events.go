// Package events implements the "explicit Observer<T> interface" design note:
// components publish strongly typed event records instead of string-keyed
// callbacks. Unknown events are a compile-time error because there is no
// string-keyed dispatch at all; only the types declared in this package (or
// a caller's own) can ever be published through a Bus[T].
package events

import "sync"

// Observer receives published events of type T.
type Observer[T any] interface {
	Notify(event T)
}

// ObserverFunc adapts a plain function to Observer[T].
type ObserverFunc[T any] func(event T)

func (f ObserverFunc[T]) Notify(event T) { f(event) }

// Bus fans a published event out to every subscribed Observer[T]. Safe for
// concurrent Subscribe/Publish from multiple goroutines.
type Bus[T any] struct {
	mu        sync.RWMutex
	observers []Observer[T]
}

// NewBus constructs an empty event bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers an observer and returns an unsubscribe function.
func (b *Bus[T]) Subscribe(o Observer[T]) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
	idx := len(b.observers) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.observers) {
			b.observers[idx] = nil
		}
	}
}

// Publish notifies every currently subscribed observer synchronously, in
// subscription order.
func (b *Bus[T]) Publish(event T) {
	b.mu.RLock()
	observers := make([]Observer[T], len(b.observers))
	copy(observers, b.observers)
	b.mu.RUnlock()

	for _, o := range observers {
		if o != nil {
			o.Notify(event)
		}
	}
}
