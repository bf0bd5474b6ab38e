package board_test

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
)

func TestPlanMove_AlreadyInColumnIsNoop(t *testing.T) {
	s := testState(t, board.FieldStatus)

	_, outcome, err := board.PlanMove(s, "t1", doneKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != board.OutcomeNoop {
		t.Errorf("expected noop, got %s", outcome)
	}
}

func TestPlanMove_ResolvesIdentifierForRecordParent(t *testing.T) {
	s := testState(t, board.FieldStatus)

	move, outcome, err := board.PlanMove(s, "t2", doneKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != board.OutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}
	if move.Patch.Value != "20" {
		t.Errorf("expected Done of project 2 (20), got %q", move.Patch.Value)
	}
	if move.Patch.Display != (board.Display{Name: "Done", Color: "teal"}) {
		t.Errorf("expected display of status 20, got %+v", move.Patch.Display)
	}
	if move.FromKey != inProgressKey() || move.TargetKey != doneKey() {
		t.Errorf("unexpected keys: from %q to %q", move.FromKey, move.TargetKey)
	}
	if u := move.Patch.Update(); u != (board.FieldUpdate{Field: "status_id", Value: "20"}) {
		t.Errorf("gateway update must carry only the backing field, got %+v", u)
	}
}

func TestPlanMove_NoMatchingValueForParentIsInvalid(t *testing.T) {
	s := testState(t, board.FieldStatus)

	_, outcome, err := board.PlanMove(s, "t3", doneKey())
	if outcome != board.OutcomeInvalid {
		t.Fatalf("expected invalid, got %s", outcome)
	}
	if !errors.Is(err, board.ErrNoParentMatch) {
		t.Errorf("expected ErrNoParentMatch, got %v", err)
	}
	var dropErr *board.InvalidDropError
	if !errors.As(err, &dropErr) || dropErr.RecordID != "t3" {
		t.Errorf("expected InvalidDropError for t3, got %v", err)
	}
}

func TestPlanMove_SharedValueResolvesForAnyParent(t *testing.T) {
	s := testState(t, board.FieldStatus)

	move, outcome, err := board.PlanMove(s, "t2", todoKey())
	if err != nil || outcome != board.OutcomeApplied {
		t.Fatalf("expected applied, got %s (%v)", outcome, err)
	}
	if move.Patch.Value != "5" {
		t.Errorf("expected shared Todo id 5, got %q", move.Patch.Value)
	}
}

func TestPlanMove_UnknownColumnIsInvalid(t *testing.T) {
	s := testState(t, board.FieldStatus)

	_, outcome, err := board.PlanMove(s, "t1", "Blocked::77")
	if outcome != board.OutcomeInvalid || !errors.Is(err, board.ErrUnknownColumn) {
		t.Errorf("expected invalid unknown column, got %s (%v)", outcome, err)
	}
}

func TestPlanMove_UnknownRecord(t *testing.T) {
	s := testState(t, board.FieldStatus)

	_, _, err := board.PlanMove(s, "nope", doneKey())
	if !errors.Is(err, board.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestPlanMove_TemporalTargetsFirstOfMonth(t *testing.T) {
	s := testState(t, board.FieldDeliveryDate)

	move, outcome, err := board.PlanMove(s, "t2", "2024-03")
	if err != nil || outcome != board.OutcomeApplied {
		t.Fatalf("expected applied, got %s (%v)", outcome, err)
	}
	if move.Patch.Value != "2024-03-01" {
		t.Errorf("expected first of month, got %q", move.Patch.Value)
	}
	if move.Patch.Display != (board.Display{}) {
		t.Errorf("temporal moves carry no display fields, got %+v", move.Patch.Display)
	}
}

func TestPlanMove_ToUnassignedClearsValue(t *testing.T) {
	s := testState(t, board.FieldAssignee)

	move, outcome, err := board.PlanMove(s, "t2", board.UnassignedKey)
	if err != nil || outcome != board.OutcomeApplied {
		t.Fatalf("expected applied, got %s (%v)", outcome, err)
	}
	if move.Patch.Value != "" || move.Patch.Display != (board.Display{}) {
		t.Errorf("expected cleared patch, got %+v", move.Patch)
	}
}

func TestPlanMove_SimpleValueWithoutMetadataUsesLabel(t *testing.T) {
	meta := board.NewMetadataStore(board.MetadataBundle{})
	s := board.Reduce(board.NewState(board.FieldAssignee, meta), board.RecordsLoaded{Records: []board.Record{
		{ID: "a", AssigneeID: "x1", AssigneeName: "Linus"},
		{ID: "b", AssigneeID: "x2", AssigneeName: "Ken"},
	}})

	move, _, err := board.PlanMove(s, "b", "x1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if move.Patch.Display.Name != "Linus" {
		t.Errorf("expected column label as name, got %q", move.Patch.Display.Name)
	}
}
