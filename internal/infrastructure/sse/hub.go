// Package sse pushes board events to browsers over Server-Sent Events and
// websockets.
package sse

import (
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/swimlane/pkg/domain/events"
)

// Message is the wire form of a pushed event.
type Message struct {
	ID          string         `json:"id,omitempty"`
	Type        string         `json:"type"`
	AggregateID string         `json:"aggregate_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data,omitempty"`
}

// NewMessage converts an event for the wire.
func NewMessage(e *events.BaseEvent) Message {
	return Message{
		ID:          e.ID,
		Type:        e.Type,
		AggregateID: e.AggregateID_,
		Timestamp:   e.Timestamp,
		Data:        e.Metadata,
	}
}

// Hub fans published events out to connected clients. Slow clients miss
// events rather than block the publisher.
type Hub struct {
	mu          sync.RWMutex
	clients     map[chan *events.BaseEvent]struct{}
	unsubscribe func()
}

// NewHub creates a hub subscribed to publisher.
func NewHub(publisher events.EventPublisher) *Hub {
	h := &Hub{clients: make(map[chan *events.BaseEvent]struct{})}
	h.unsubscribe = publisher.Subscribe(func(e *events.BaseEvent) error {
		h.mu.RLock()
		defer h.mu.RUnlock()
		for ch := range h.clients {
			select {
			case ch <- e:
			default:
				// Drop if client is slow
			}
		}
		return nil
	})
	return h
}

// Attach registers a client. detach must be called exactly once.
func (h *Hub) Attach() (ch <-chan *events.BaseEvent, detach func()) {
	c := make(chan *events.BaseEvent, 64)
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c, func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c)
	}
}

// Clients returns the number of attached clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops listening to the publisher.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

// TypeFilter parses a comma separated list of event types. An empty filter
// passes everything.
type TypeFilter map[string]bool

// ParseTypeFilter builds a filter from a query parameter value.
func ParseTypeFilter(raw string) TypeFilter {
	f := TypeFilter{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			f[t] = true
		}
	}
	return f
}

// Allows reports whether eventType passes.
func (f TypeFilter) Allows(eventType string) bool {
	return len(f) == 0 || f[eventType]
}
