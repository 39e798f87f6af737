// Package notify provides a typed in-process publish/subscribe channel.
package notify

import (
	"slices"
	"sync"
)

// Bus delivers published values to every current subscriber.
type Bus[T any] struct {
	mutex       sync.RWMutex
	nextID      uint64
	subscribers map[uint64]func(T)
}

// NewBus constructs an empty bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{subscribers: make(map[uint64]func(T))}
}

// Subscribe registers handler and returns a function that removes it. The returned
// function is safe to call more than once.
func (bus *Bus[T]) Subscribe(handler func(T)) func() {
	if handler == nil {
		return func() {}
	}
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	if bus.subscribers == nil {
		bus.subscribers = make(map[uint64]func(T))
	}
	bus.nextID++
	subscriptionID := bus.nextID
	bus.subscribers[subscriptionID] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			bus.mutex.Lock()
			defer bus.mutex.Unlock()
			delete(bus.subscribers, subscriptionID)
		})
	}
}

// Publish calls every subscriber synchronously, in subscription order, with value.
// Handlers may subscribe or unsubscribe while being called.
func (bus *Bus[T]) Publish(value T) {
	for _, handler := range bus.snapshot() {
		handler(value)
	}
}

// Len returns the number of current subscribers.
func (bus *Bus[T]) Len() int {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()
	return len(bus.subscribers)
}

func (bus *Bus[T]) snapshot() []func(T) {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()
	ids := make([]uint64, 0, len(bus.subscribers))
	for subscriptionID := range bus.subscribers {
		ids = append(ids, subscriptionID)
	}
	slices.Sort(ids)
	handlers := make([]func(T), 0, len(ids))
	for _, subscriptionID := range ids {
		handlers = append(handlers, bus.subscribers[subscriptionID])
	}
	return handlers
}
