package board

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Drag lifecycle states. These must remain untyped string constants for
// statekit.StateID compatibility.
const (
	DragIdle           = "idle"
	DragDragging       = "dragging"
	DragDroppedValid   = "dropped_valid"
	DragDroppedInvalid = "dropped_invalid"
)

const (
	dragEventStart  = "start"
	dragEventCancel = "cancel"
	dragEventAccept = "accept"
	dragEventReject = "reject"
	dragEventReset  = "reset"
)

// Gesture is the transient state of one drag.
type Gesture struct {
	RecordID string
	FromKey  string
	HoverKey string
}

// DragContext carries state data for the lifecycle machine.
type DragContext struct {
	Active func() bool
}

// DropResult is the typed outcome of a drop. Move is set only when Outcome
// is OutcomeApplied; Err explains OutcomeInvalid.
type DropResult struct {
	Outcome DropOutcome
	Move    Move
	Err     error
}

// DragController is the synchronous gesture state machine:
// idle -> dragging -> (dropped_valid | dropped_invalid) -> idle, with cancel
// returning straight to idle. It never touches board state; a valid drop
// yields a Move for the mutation pipeline.
type DragController struct {
	interpreter *statekit.Interpreter[DragContext]
	gesture     *Gesture
}

// NewDragController builds the lifecycle machine in the idle state.
func NewDragController() (*DragController, error) {
	c := &DragController{}

	builder := statekit.NewMachine[DragContext]("drag-lifecycle").
		WithInitial(statekit.StateID(DragIdle)).
		WithContext(DragContext{
			Active: func() bool { return c.gesture != nil },
		}).
		WithGuard("hasGesture", func(ctx DragContext, e statekit.Event) bool {
			return ctx.Active()
		})

	builder.State(DragIdle).
		On(dragEventStart).Target(DragDragging).Guard("hasGesture").
		Done()

	builder.State(DragDragging).
		On(dragEventCancel).Target(DragIdle).
		On(dragEventAccept).Target(DragDroppedValid).
		On(dragEventReject).Target(DragDroppedInvalid).
		Done()

	builder.State(DragDroppedValid).
		On(dragEventReset).Target(DragIdle).
		Done()

	builder.State(DragDroppedInvalid).
		On(dragEventReset).Target(DragIdle).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build drag state machine: %w", err)
	}

	c.interpreter = statekit.NewInterpreter(machine)
	c.interpreter.Start()
	return c, nil
}

// Current returns the lifecycle state.
func (c *DragController) Current() string {
	return string(c.interpreter.State().Value)
}

// Gesture returns the active gesture, if any.
func (c *DragController) Gesture() (Gesture, bool) {
	if c.gesture == nil {
		return Gesture{}, false
	}
	return *c.gesture, true
}

func (c *DragController) send(event string) error {
	before := c.Current()
	c.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if c.Current() == before {
		return fmt.Errorf("drag event %q not allowed in state %q", event, before)
	}
	return nil
}

// Start picks up a record rendered on the board.
func (c *DragController) Start(s State, recordID string) error {
	if c.Current() != DragIdle {
		return ErrDragInProgress
	}
	from, ok := s.View().ColumnOf(recordID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
	}
	c.gesture = &Gesture{RecordID: recordID, FromKey: from, HoverKey: from}
	if err := c.send(dragEventStart); err != nil {
		c.gesture = nil
		return err
	}
	return nil
}

// Hover records the column under the pointer. An empty key means the pointer
// is outside every drop zone.
func (c *DragController) Hover(key string) error {
	if c.Current() != DragDragging {
		return ErrDragNotActive
	}
	c.gesture.HoverKey = key
	return nil
}

// Cancel aborts the gesture without producing anything.
func (c *DragController) Cancel() error {
	if c.Current() != DragDragging {
		return ErrDragNotActive
	}
	if err := c.send(dragEventCancel); err != nil {
		return err
	}
	c.gesture = nil
	return nil
}

// Drop ends the gesture over key and classifies it against s. The machine is
// back in idle when Drop returns, whatever the outcome. Dropping outside any
// drop zone cancels.
func (c *DragController) Drop(s State, key string) (DropResult, error) {
	if c.Current() != DragDragging {
		return DropResult{}, ErrDragNotActive
	}
	if key == "" {
		if err := c.Cancel(); err != nil {
			return DropResult{}, err
		}
		return DropResult{Outcome: OutcomeCancelled}, nil
	}

	g := *c.gesture
	move, outcome, err := PlanMove(s, g.RecordID, key)

	event := dragEventAccept
	if outcome == OutcomeInvalid {
		event = dragEventReject
	}
	if sendErr := c.send(event); sendErr != nil {
		return DropResult{}, sendErr
	}
	if resetErr := c.send(dragEventReset); resetErr != nil {
		return DropResult{}, resetErr
	}
	c.gesture = nil

	result := DropResult{Outcome: outcome, Err: err}
	if outcome == OutcomeApplied {
		result.Move = move
	}
	return result, nil
}
