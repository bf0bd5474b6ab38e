package events

// EventStore persists domain events.
type EventStore interface {
	// Append adds an event, chaining it to the previous one.
	Append(event *BaseEvent) error

	// LoadAll returns all events in the order they were appended.
	LoadAll() ([]*BaseEvent, error)

	// LoadByAggregate returns the events of one aggregate.
	LoadByAggregate(aggregateType, aggregateID string) ([]*BaseEvent, error)

	// LoadByType returns events of a specific type.
	LoadByType(eventType string) ([]*BaseEvent, error)

	// Count returns the total number of events.
	Count() (int, error)
}

// Projection rebuilds a read model from events.
type Projection interface {
	Name() string
	Apply(event *BaseEvent) error
	Rebuild(events []*BaseEvent) error
	Reset() error
}

// EventPublisher broadcasts events to subscribers.
type EventPublisher interface {
	// Publish sends an event to all registered subscribers.
	Publish(event *BaseEvent) error

	// Subscribe registers a handler and returns a function removing it.
	Subscribe(handler EventHandler) (unsubscribe func())
}

// EventHandler processes published events.
type EventHandler func(event *BaseEvent) error
