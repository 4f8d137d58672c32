package store

import (
	"log/slog"
	"sync"
)

// ------------------------------
// Event System
// ------------------------------
//
// Stores emit typed events when a resurrection is created or completes.
// Register listeners to react to these changes.
//
// Example usage:
//
//	s.RegisterEventListener(store.OnResurrectionCompletedEvent, func(event store.Event) error {
//	    ev := event.(store.ResurrectionCompletedEvent)
//	    log.Printf("Resurrection complete: %s", ev.Record.ID)
//	    return nil
//	})
//
// Event is the common interface for all store events.
type Event interface {
	Kind() EventKind
}

// EventKind represents all the kinds of events that can be emitted by a Store.
type EventKind int

const (
	// OnResurrectionCreatedEvent is emitted when a record is first stored.
	OnResurrectionCreatedEvent EventKind = iota
	// OnResurrectionCompletedEvent is emitted when a record flips to complete.
	OnResurrectionCompletedEvent
)

func (k EventKind) String() string {
	switch k {
	case OnResurrectionCreatedEvent:
		return "resurrection_created"
	case OnResurrectionCompletedEvent:
		return "resurrection_complete"
	default:
		return "unknown"
	}
}

// ResurrectionCreatedEvent carries a copy of the newly stored record.
type ResurrectionCreatedEvent struct {
	Record Record
}

func (e ResurrectionCreatedEvent) Kind() EventKind { return OnResurrectionCreatedEvent }

// ResurrectionCompletedEvent carries a copy of the record as of its
// transition to complete.
type ResurrectionCompletedEvent struct {
	Record Record
}

func (e ResurrectionCompletedEvent) Kind() EventKind { return OnResurrectionCompletedEvent }

// EventListener is a callback that handles events of a specific kind.
type EventListener func(event Event) error

// emitter is embedded by both backends.
type emitter struct {
	mu        sync.RWMutex
	listeners map[EventKind][]EventListener
	logger    *slog.Logger
}

// RegisterEventListener adds a listener for a specific event kind.
// Listeners are called synchronously in registration order after the store
// operation succeeds, outside of any store lock.
func (e *emitter) RegisterEventListener(kind EventKind, listener EventListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[EventKind][]EventListener)
	}
	e.listeners[kind] = append(e.listeners[kind], listener)
}

// SetLogger replaces the logger used to report listener failures.
func (e *emitter) SetLogger(logger *slog.Logger) {
	e.mu.Lock()
	e.logger = logger
	e.mu.Unlock()
}

func (e *emitter) emit(event Event) {
	e.mu.RLock()
	listeners := append([]EventListener(nil), e.listeners[event.Kind()]...)
	logger := e.logger
	e.mu.RUnlock()

	if logger == nil {
		logger = slog.Default()
	}
	for _, listener := range listeners {
		if err := listener(event); err != nil {
			logger.Warn("store event listener failed", "event", event.Kind().String(), "error", err)
		}
	}
}
