// Package events defines the domain events emitted by the board pipeline and
// the in-process dispatcher that routes them to the audit log and to push
// subscribers.
package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
)

// DomainEvent is the base interface for all domain events.
type DomainEvent interface {
	EventType() string
	AggregateID() string
	AggregateType() string
	OccurredAt() time.Time
}

// BaseEvent is the serialised form of every event. Events are chained by
// hash when appended to the audit log.
type BaseEvent struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	AggregateID_   string         `json:"aggregate_id"`
	AggregateType_ string         `json:"aggregate_type"`
	Timestamp      time.Time      `json:"timestamp"`
	Actor          string         `json:"actor,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	PrevHash       string         `json:"prev_hash,omitempty"`
	Hash           string         `json:"hash,omitempty"`
}

func (e *BaseEvent) EventType() string     { return e.Type }
func (e *BaseEvent) AggregateID() string   { return e.AggregateID_ }
func (e *BaseEvent) AggregateType() string { return e.AggregateType_ }
func (e *BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// String returns a metadata value as a string, or "" when absent.
func (e *BaseEvent) String(key string) string {
	if s, ok := e.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// Int returns a numeric metadata value. JSON decoding yields float64.
func (e *BaseEvent) Int(key string) int {
	switch v := e.Metadata[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// CalculateHash returns the SHA256 over the chained fields of the event.
func (e *BaseEvent) CalculateHash() string {
	h := sha256.New()
	h.Write([]byte(e.PrevHash))
	h.Write([]byte(e.ID))
	h.Write([]byte(e.Timestamp.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte(e.Type))
	h.Write([]byte(e.AggregateID_))
	h.Write([]byte(e.Actor))
	h.Write([]byte(canonicalJSON(e.Metadata)))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalJSON encodes m with sorted keys.
func canonicalJSON(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			out = append(out, ',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(m[k])
		out = append(out, kb...)
		out = append(out, ':')
		out = append(out, vb...)
	}
	return string(append(out, '}'))
}

const (
	EventTypeMoveApplied     = "move.applied"
	EventTypeMoveFailed      = "move.failed"
	EventTypeMoveSettled     = "move.settled"
	EventTypeMoveStalled     = "move.stalled"
	EventTypeRecordChanged   = "record.changed"
	EventTypeMetadataChanged = "metadata.changed"
	EventTypeBoardRefreshed  = "board.refreshed"
)

const (
	AggregateTypeRecord = "record"
	AggregateTypeBoard  = "board"
)

// MoveEventTypes lists the events that make up a move's audit trail.
var MoveEventTypes = []string{
	EventTypeMoveApplied,
	EventTypeMoveFailed,
	EventTypeMoveSettled,
	EventTypeMoveStalled,
}

// NewMoveEvent describes a pending move at one stage of its life.
func NewMoveEvent(eventType string, p board.PendingMove, actor string) *BaseEvent {
	return &BaseEvent{
		Type:           eventType,
		AggregateID_:   p.RecordID,
		AggregateType_: AggregateTypeRecord,
		Timestamp:      time.Now().UTC(),
		Actor:          actor,
		Metadata: map[string]any{
			"record_id":  p.RecordID,
			"field":      string(p.Patch.Field),
			"value":      p.Patch.Value,
			"target_key": p.TargetKey,
			"seq":        p.Seq,
		},
	}
}

// NewMoveFailedEvent is a move.failed event carrying the gateway error.
func NewMoveFailedEvent(p board.PendingMove, actor string, err error) *BaseEvent {
	e := NewMoveEvent(EventTypeMoveFailed, p, actor)
	if err != nil {
		e.Metadata["error"] = err.Error()
	}
	return e
}

// NewRecordChangedEvent notifies subscribers that a record's data changed
// outside the engine's knowledge. An empty recordID means "something in the
// record set changed".
func NewRecordChangedEvent(recordID, source string) *BaseEvent {
	e := &BaseEvent{
		Type:           EventTypeRecordChanged,
		AggregateID_:   recordID,
		AggregateType_: AggregateTypeRecord,
		Timestamp:      time.Now().UTC(),
		Metadata:       map[string]any{"source": source},
	}
	if recordID != "" {
		e.Metadata["record_id"] = recordID
	}
	return e
}

// NewMetadataChangedEvent notifies subscribers that metadata changed.
func NewMetadataChangedEvent(source string) *BaseEvent {
	return &BaseEvent{
		Type:           EventTypeMetadataChanged,
		AggregateType_: AggregateTypeBoard,
		Timestamp:      time.Now().UTC(),
		Metadata:       map[string]any{"source": source},
	}
}

// NewBoardRefreshedEvent reports a fresh authoritative batch.
func NewBoardRefreshedEvent(field board.Field, records, pending int) *BaseEvent {
	return &BaseEvent{
		Type:           EventTypeBoardRefreshed,
		AggregateID_:   string(field),
		AggregateType_: AggregateTypeBoard,
		Timestamp:      time.Now().UTC(),
		Metadata: map[string]any{
			"field":   string(field),
			"records": records,
			"pending": pending,
		},
	}
}
