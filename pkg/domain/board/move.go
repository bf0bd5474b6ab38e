package board

import "fmt"

// Move is the message a drop hands to the mutation pipeline.
type Move struct {
	RecordID  string `json:"record_id"`
	Field     Field  `json:"field"`
	FromKey   string `json:"from_key"`
	TargetKey string `json:"target_key"`
	Patch     Patch  `json:"patch"`
}

// PlanMove works out what dropping recordID on the column targetKey means in
// state s. It returns the move and OutcomeApplied, OutcomeNoop when the record
// already has the target value, or OutcomeInvalid with an *InvalidDropError.
// ErrRecordNotFound is returned as a plain error.
func PlanMove(s State, recordID, targetKey string) (Move, DropOutcome, error) {
	view := s.View()
	rec, ok := view.Record(recordID)
	if !ok {
		return Move{}, OutcomeInvalid, fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
	}
	col, ok := view.Column(targetKey)
	if !ok {
		return Move{}, OutcomeInvalid, &InvalidDropError{RecordID: recordID, ColumnKey: targetKey, Reason: ErrUnknownColumn}
	}
	fromKey, _ := view.ColumnOf(recordID)
	if fromKey == col.Key {
		return Move{}, OutcomeNoop, nil
	}

	value, err := targetValue(s, rec, col)
	if err != nil {
		return Move{}, OutcomeInvalid, &InvalidDropError{RecordID: recordID, ColumnKey: targetKey, Reason: err}
	}
	if sameValue(s.Field, rec.Value(s.Field), value) {
		return Move{}, OutcomeNoop, nil
	}

	patch := NewPatch(s.Meta, s.Field, value)
	if patch.Display == (Display{}) && s.Field.Class() == ClassSimple && value != "" {
		// Values seen only on records have no metadata entry; the column
		// label is the best name available.
		patch.Display.Name = col.Label
	}
	return Move{
		RecordID:  recordID,
		Field:     s.Field,
		FromKey:   fromKey,
		TargetKey: col.Key,
		Patch:     patch,
	}, OutcomeApplied, nil
}

// targetValue resolves the concrete backing value a column stands for, for
// this particular record.
func targetValue(s State, rec Record, col Column) (string, error) {
	if col.Key == UnassignedKey {
		return "", nil
	}
	switch s.Field.Class() {
	case ClassDedup:
		// The column aggregates one id per parent; pick the record's own.
		grp, ok := s.Meta.Statuses().GroupForKey(col.Key)
		if !ok {
			return "", ErrUnknownColumn
		}
		id, ok := s.Meta.Statuses().ResolveID(grp.Name, rec.ProjectID)
		if !ok {
			return "", ErrNoParentMatch
		}
		return id, nil
	case ClassTemporal:
		v, ok := monthStart(col.Key)
		if !ok {
			return "", ErrUnknownColumn
		}
		return v, nil
	case ClassSimple:
		return col.Key, nil
	}
	return "", ErrUnknownField
}
