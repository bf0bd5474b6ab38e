package events

import (
	"context"
	"fmt"
	"sync"
)

// Wildcard registers a handler for every event type.
const Wildcard = "*"

// EventHandlerFunc handles a dispatched domain event.
type EventHandlerFunc func(ctx context.Context, event DomainEvent) error

// HandlerRegistration binds a named handler to event types.
type HandlerRegistration struct {
	EventTypes []string
	Handler    EventHandlerFunc
	Name       string
}

type namedHandler struct {
	name    string
	handler EventHandlerFunc
}

// EventDispatcher routes domain events to registered handlers.
type EventDispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler

	// ContinueOnError runs every handler even after one fails; the errors are
	// collected into a DispatchError.
	ContinueOnError bool
}

// NewEventDispatcher creates an empty dispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{handlers: make(map[string][]namedHandler)}
}

// Register adds a handler for the listed event types.
func (d *EventDispatcher) Register(reg HandlerRegistration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	nh := namedHandler{name: reg.Name, handler: reg.Handler}
	for _, t := range reg.EventTypes {
		d.handlers[t] = append(d.handlers[t], nh)
	}
}

// RegisterHandler registers a single handler for the given event types.
func (d *EventDispatcher) RegisterHandler(name string, handler EventHandlerFunc, eventTypes ...string) {
	d.Register(HandlerRegistration{Name: name, Handler: handler, EventTypes: eventTypes})
}

// RegisterWildcard registers a handler for all events.
func (d *EventDispatcher) RegisterWildcard(name string, handler EventHandlerFunc) {
	d.RegisterHandler(name, handler, Wildcard)
}

// Dispatch runs the handlers registered for the event's type, then the
// wildcard handlers.
func (d *EventDispatcher) Dispatch(ctx context.Context, event DomainEvent) error {
	d.mu.RLock()
	eventType := event.EventType()
	handlers := make([]namedHandler, 0, len(d.handlers[eventType])+len(d.handlers[Wildcard]))
	handlers = append(handlers, d.handlers[eventType]...)
	handlers = append(handlers, d.handlers[Wildcard]...)
	d.mu.RUnlock()

	var errs []error
	for _, nh := range handlers {
		if err := nh.handler(ctx, event); err != nil {
			err = fmt.Errorf("handler %s failed for event %s: %w", nh.name, eventType, err)
			if !d.ContinueOnError {
				return err
			}
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &DispatchError{Errors: errs}
	}
	return nil
}

// DispatchAsync dispatches on a new goroutine. The returned channel receives
// the dispatch result and is then closed.
func (d *EventDispatcher) DispatchAsync(ctx context.Context, event DomainEvent) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- d.Dispatch(ctx, event)
		close(ch)
	}()
	return ch
}

// HasHandlers reports whether dispatching eventType would reach any handler.
func (d *EventDispatcher) HasHandlers(eventType string) bool {
	return d.HandlerCount(eventType) > 0
}

// HandlerCount returns how many handlers an event of eventType reaches.
func (d *EventDispatcher) HandlerCount(eventType string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := len(d.handlers[eventType])
	if eventType != Wildcard {
		n += len(d.handlers[Wildcard])
	}
	return n
}

// DispatchError collects handler failures when ContinueOnError is set.
type DispatchError struct {
	Errors []error
}

func (e *DispatchError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("multiple dispatch errors (%d)", len(e.Errors))
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e *DispatchError) Unwrap() []error {
	return e.Errors
}
