// Package events carries detector output to its consumers.
//
// The bus fans each event out to the channels subscribed to its type while
// it is running. Publish never blocks: an event is dropped for a subscriber
// whose channel is full, and Publish reports whether every subscriber
// received it. A stopped bus delivers nothing.
//
// Usage:
//
//	bus := events.NewEventBus()
//	bus.Start(ctx)
//	defer bus.Stop()
//	ch := make(chan events.Event, 8)
//	bus.Subscribe(events.EventWakeWordDetected, ch)
//	bus.Publish(events.NewEvent(events.EventWakeWordDetected, events.Detection{...}))
package events

import (
	"context"
	"sync"
	"time"
)

// EventType identifies an event.
type EventType int

const (
	// EventWakeWordDetected carries a Detection.
	EventWakeWordDetected EventType = iota
	// EventWakeWordArmed carries an Armed; the threshold was crossed and
	// the next cycle confirms.
	EventWakeWordArmed
	// EventStatusChanged carries a StatusChange.
	EventStatusChanged
	// EventInferenceError carries a CycleError for an abandoned cycle.
	EventInferenceError
	// EventError carries a CycleError when capture fails to start or the
	// device goes away; the detector stops listening.
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventWakeWordDetected:
		return "DETECTED"
	case EventWakeWordArmed:
		return "PRE_TRIGGER"
	case EventStatusChanged:
		return "STATUS"
	case EventInferenceError:
		return "INFERENCE_ERROR"
	case EventError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is a published message.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps payload with the current time.
func NewEvent(t EventType, payload any) Event {
	return Event{Type: t, Timestamp: time.Now(), Payload: payload}
}

// Bus is the publish side used by detectors.
type Bus interface {
	Subscribe(t EventType, ch chan<- Event)
	Unsubscribe(t EventType, ch chan<- Event)
	Publish(evt Event) bool
}

// EventBus is the default Bus.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan<- Event
	running     bool
	cancel      context.CancelFunc
	generation  uint64
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[EventType][]chan<- Event)}
}

// Subscribe delivers events of type t to ch. The caller owns ch.
func (b *EventBus) Subscribe(t EventType, ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[t] = append(b.subscribers[t], ch)
}

// Unsubscribe stops delivery of t to ch.
func (b *EventBus) Unsubscribe(t EventType, ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[t]
	for i, s := range subs {
		if s == ch {
			b.subscribers[t] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers evt without blocking. It returns false if the bus is
// not running or any subscriber's channel was full.
func (b *EventBus) Publish(evt Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.running {
		return false
	}
	delivered := true
	for _, ch := range b.subscribers[evt.Type] {
		select {
		case ch <- evt:
		default:
			delivered = false
		}
	}
	return delivered
}

// Start marks the bus running until ctx is done or Stop is called.
// Calling Start on a running bus is a no-op.
func (b *EventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.running = true
	b.generation++
	gen := b.generation

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.generation == gen {
			b.stopLocked()
		}
	}()
	return nil
}

// Stop is idempotent.
func (b *EventBus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
}

func (b *EventBus) stopLocked() {
	if !b.running {
		return
	}
	b.running = false
	b.cancel()
	b.cancel = nil
}

// Running reports whether Start was called without a matching Stop.
func (b *EventBus) Running() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

var _ Bus = (*EventBus)(nil)
