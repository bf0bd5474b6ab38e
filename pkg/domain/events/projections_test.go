package events

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
)

func TestMoveHistoryProjection_Rebuild(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	at := func(e *BaseEvent, minutes int) *BaseEvent {
		e.Timestamp = base.Add(time.Duration(minutes) * time.Minute)
		return e
	}
	first := board.PendingMove{RecordID: "t1", Patch: board.Patch{Field: board.FieldStatus, Value: "20"}, TargetKey: "Done::10,20", Seq: 1}
	second := board.PendingMove{RecordID: "t2", Patch: board.Patch{Field: board.FieldAssignee, Value: "u1"}, TargetKey: "u1", Seq: 2}

	log := []*BaseEvent{
		at(NewMoveEvent(EventTypeMoveApplied, first, ""), 0),
		at(NewMoveFailedEvent(first, "", nil), 1),
		at(NewMoveEvent(EventTypeMoveApplied, first, ""), 2),
		at(NewMoveEvent(EventTypeMoveSettled, first, ""), 3),
		at(NewMoveEvent(EventTypeMoveApplied, second, ""), 4),
		at(NewMoveEvent(EventTypeMoveStalled, second, ""), 9),
		at(NewRecordChangedEvent("t1", "watcher"), 10),
	}

	p := NewMoveHistoryProjection()
	if err := p.Rebuild(log); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	h, ok := p.Get("t1")
	if !ok {
		t.Fatal("Expected history for t1")
	}
	if h.Applied != 2 || h.Failed != 1 || h.Settled != 1 || h.LastOutcome != EventTypeMoveSettled {
		t.Errorf("unexpected t1 history %+v", h)
	}
	if h.LastValue != "20" || h.LastTarget != "Done::10,20" {
		t.Errorf("unexpected last move %+v", h)
	}

	all := p.All()
	if len(all) != 2 || all[0].RecordID != "t2" {
		t.Errorf("Expected t2 first, got %+v", all)
	}
	if all[0].Stalled != 1 {
		t.Errorf("Expected one stall for t2, got %d", all[0].Stalled)
	}

	_ = p.Reset()
	if len(p.All()) != 0 {
		t.Error("Expected empty projection after reset")
	}
}
