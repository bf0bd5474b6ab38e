package application

import (
	"fmt"

	"github.com/felixgeelhaar/swimlane/pkg/domain/events"
)

// integrityVerifier is implemented by stores that chain events by hash.
type integrityVerifier interface {
	VerifyIntegrity() ([]string, error)
}

// HistoryService answers questions about past moves from the event log.
// The projection is rebuilt from the store on creation and kept current by
// subscribing to the publisher.
type HistoryService struct {
	store       events.EventStore
	projection  *events.MoveHistoryProjection
	unsubscribe func()
}

// NewHistoryService rebuilds the move history from store. publisher may be
// nil for a read-only snapshot.
func NewHistoryService(store events.EventStore, publisher events.EventPublisher) (*HistoryService, error) {
	svc := &HistoryService{
		store:      store,
		projection: events.NewMoveHistoryProjection(),
	}

	evts, err := store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if err := svc.projection.Rebuild(evts); err != nil {
		return nil, fmt.Errorf("rebuild %s: %w", svc.projection.Name(), err)
	}

	if publisher != nil {
		// Projection errors are non-fatal for publishing.
		svc.unsubscribe = publisher.Subscribe(func(e *events.BaseEvent) error {
			_ = svc.projection.Apply(e)
			return nil
		})
	}
	return svc, nil
}

// History returns the summary for one record.
func (s *HistoryService) History(recordID string) (events.MoveHistory, bool) {
	return s.projection.Get(recordID)
}

// All returns every record's summary, most recent first.
func (s *HistoryService) All() []events.MoveHistory {
	return s.projection.All()
}

// Events returns the raw move trail of one record.
func (s *HistoryService) Events(recordID string) ([]*events.BaseEvent, error) {
	return s.store.LoadByAggregate(events.AggregateTypeRecord, recordID)
}

// VerifyIntegrity checks the hash chain. Stores without one report nothing.
func (s *HistoryService) VerifyIntegrity() ([]string, error) {
	v, ok := s.store.(integrityVerifier)
	if !ok {
		return nil, nil
	}
	return v.VerifyIntegrity()
}

// Close stops following the publisher.
func (s *HistoryService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}
