package events

import (
	"sort"
	"sync"
	"time"
)

// MoveHistory summarises the audit trail of one record.
type MoveHistory struct {
	RecordID    string    `json:"record_id"`
	Applied     int       `json:"applied"`
	Failed      int       `json:"failed"`
	Settled     int       `json:"settled"`
	Stalled     int       `json:"stalled"`
	LastField   string    `json:"last_field,omitempty"`
	LastValue   string    `json:"last_value,omitempty"`
	LastTarget  string    `json:"last_target,omitempty"`
	LastOutcome string    `json:"last_outcome,omitempty"`
	LastAt      time.Time `json:"last_at"`
}

// MoveHistoryProjection folds move events into per-record histories.
type MoveHistoryProjection struct {
	mu      sync.RWMutex
	records map[string]*MoveHistory
}

// NewMoveHistoryProjection creates an empty projection.
func NewMoveHistoryProjection() *MoveHistoryProjection {
	return &MoveHistoryProjection{records: make(map[string]*MoveHistory)}
}

func (p *MoveHistoryProjection) Name() string { return "move_history" }

func (p *MoveHistoryProjection) Apply(event *BaseEvent) error {
	id := event.String("record_id")
	if id == "" {
		return nil
	}

	switch event.Type {
	case EventTypeMoveApplied, EventTypeMoveFailed, EventTypeMoveSettled, EventTypeMoveStalled:
	default:
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	h := p.getOrCreate(id)
	switch event.Type {
	case EventTypeMoveApplied:
		h.Applied++
		h.LastField = event.String("field")
		h.LastValue = event.String("value")
		h.LastTarget = event.String("target_key")
	case EventTypeMoveFailed:
		h.Failed++
	case EventTypeMoveSettled:
		h.Settled++
	case EventTypeMoveStalled:
		h.Stalled++
	}
	h.LastOutcome = event.Type
	h.LastAt = event.Timestamp
	return nil
}

func (p *MoveHistoryProjection) Rebuild(events []*BaseEvent) error {
	_ = p.Reset()
	for _, e := range events {
		if err := p.Apply(e); err != nil {
			return err
		}
	}
	return nil
}

func (p *MoveHistoryProjection) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = make(map[string]*MoveHistory)
	return nil
}

// Get returns a copy of the history of one record.
func (p *MoveHistoryProjection) Get(recordID string) (MoveHistory, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.records[recordID]
	if !ok {
		return MoveHistory{}, false
	}
	return *h, true
}

// All returns every history, most recently touched first.
func (p *MoveHistoryProjection) All() []MoveHistory {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]MoveHistory, 0, len(p.records))
	for _, h := range p.records {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastAt.Equal(out[j].LastAt) {
			return out[i].LastAt.After(out[j].LastAt)
		}
		return out[i].RecordID < out[j].RecordID
	})
	return out
}

func (p *MoveHistoryProjection) getOrCreate(id string) *MoveHistory {
	h, ok := p.records[id]
	if !ok {
		h = &MoveHistory{RecordID: id}
		p.records[id] = h
	}
	return h
}
