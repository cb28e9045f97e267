// Package events distributes domain events (committed plays, snapshot
// updates, anomalies, lifecycle transitions) from the tracking core to
// observers such as the persistence layer, the snapshot publisher and the
// trace recorder.
package events

import (
	"log"
	"sync"
	"time"
)

// Event is one domain event. Payload holds one of the typed structs from
// messages.go.
type Event struct {
	// Type is the event type (e.g. "tracker:play", "match:started").
	Type string

	// Payload is the typed event payload.
	Payload any

	// Timestamp is the domain time of the event (producer clock, not wall
	// clock).
	Timestamp time.Time
}

// Observer is notified of dispatched events. Implementations decide what
// to do with them (persist, broadcast, log).
type Observer interface {
	// OnEvent handles one event. Errors are logged by the dispatcher and
	// do not stop delivery to other observers.
	OnEvent(event Event) error

	// GetName returns a human-readable name for logging.
	GetName() string

	// ShouldHandle filters which event types this observer receives.
	ShouldHandle(eventType string) bool
}

// Dispatcher fans events out to registered observers. Thread-safe.
type Dispatcher struct {
	observers []Observer
	mu        sync.RWMutex
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{observers: make([]Observer, 0)}
}

// Register adds an observer. It will receive all future events that pass
// its ShouldHandle filter.
func (d *Dispatcher) Register(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, observer)
	log.Printf("[Dispatcher] Registered observer: %s", observer.GetName())
}

// Unregister removes an observer.
func (d *Dispatcher) Unregister(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, obs := range d.observers {
		if obs == observer {
			d.observers[i] = d.observers[len(d.observers)-1]
			d.observers = d.observers[:len(d.observers)-1]
			log.Printf("[Dispatcher] Unregistered observer: %s", observer.GetName())
			return
		}
	}
}

// Dispatch notifies observers sequentially in registration order. An
// observer error is logged and delivery continues.
func (d *Dispatcher) Dispatch(event Event) {
	d.mu.RLock()
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	d.mu.RUnlock()

	for _, observer := range observers {
		if !observer.ShouldHandle(event.Type) {
			continue
		}
		if err := observer.OnEvent(event); err != nil {
			log.Printf("[Dispatcher] Observer %s failed to handle event %s: %v",
				observer.GetName(), event.Type, err)
		}
	}
}

// DispatchAsync notifies each observer in its own goroutine. Useful for
// slow handlers that must not block the processing sequence.
func (d *Dispatcher) DispatchAsync(event Event) {
	d.mu.RLock()
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	d.mu.RUnlock()

	for _, observer := range observers {
		if !observer.ShouldHandle(event.Type) {
			continue
		}
		go func(obs Observer) {
			if err := obs.OnEvent(event); err != nil {
				log.Printf("[Dispatcher] Observer %s failed to handle event %s: %v",
					obs.GetName(), event.Type, err)
			}
		}(observer)
	}
}

// ObserverCount returns the number of registered observers.
func (d *Dispatcher) ObserverCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.observers)
}

// Clear removes all observers. Useful in tests.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = make([]Observer, 0)
}

// Payload extracts a typed payload from an event. Returns the zero value
// and false when the payload is of a different type.
func Payload[T any](event Event) (T, bool) {
	typed, ok := event.Payload.(T)
	return typed, ok
}
