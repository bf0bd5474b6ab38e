package events

import (
	"context"
	"fmt"
	"log/slog"
)

// AuditHandler appends move events to the event store.
type AuditHandler struct {
	store  EventStore
	logger *slog.Logger
}

// NewAuditHandler creates a handler writing to store.
func NewAuditHandler(store EventStore, logger *slog.Logger) *AuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditHandler{store: store, logger: logger}
}

// Handle appends the event. Events that are not BaseEvents are ignored.
func (h *AuditHandler) Handle(_ context.Context, event DomainEvent) error {
	e, ok := event.(*BaseEvent)
	if !ok || h.store == nil {
		return nil
	}
	if err := h.store.Append(e); err != nil {
		h.logger.Error("failed to append audit event",
			"event_type", e.Type,
			"record_id", e.AggregateID_,
			"error", err)
		return fmt.Errorf("append %s: %w", e.Type, err)
	}
	return nil
}

// Register subscribes the handler to the move lifecycle.
func (h *AuditHandler) Register(d *EventDispatcher) {
	d.RegisterHandler("audit", h.Handle, MoveEventTypes...)
}

// PublishHandler forwards dispatched events to a publisher so push
// subscribers see them.
type PublishHandler struct {
	publisher EventPublisher
	logger    *slog.Logger
}

// NewPublishHandler creates a handler forwarding to publisher.
func NewPublishHandler(publisher EventPublisher, logger *slog.Logger) *PublishHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishHandler{publisher: publisher, logger: logger}
}

// Handle publishes the event. Publishing failures are logged, not returned:
// a slow subscriber must not fail the pipeline.
func (h *PublishHandler) Handle(_ context.Context, event DomainEvent) error {
	e, ok := event.(*BaseEvent)
	if !ok || h.publisher == nil {
		return nil
	}
	if err := h.publisher.Publish(e); err != nil {
		h.logger.Warn("failed to publish event", "event_type", e.Type, "error", err)
	}
	return nil
}

// Register subscribes the handler to every event.
func (h *PublishHandler) Register(d *EventDispatcher) {
	d.RegisterWildcard("publish", h.Handle)
}
