package board

import "sort"

// PendingMove is an optimistic move awaiting authoritative confirmation.
type PendingMove struct {
	RecordID  string `json:"record_id"`
	Patch     Patch  `json:"patch"`
	TargetKey string `json:"target_key"`
	Seq       int    `json:"seq"`
}

// State is the board as the engine sees it: the authoritative record set and
// its grouping, plus the optimistic overlay while moves are pending.
//
// State values are never mutated in place; transitions return a new State.
//
// MoveSeq counts every move ever applied. It only grows, rollbacks and
// confirmations included, so a sequence number is never handed out twice.
type State struct {
	Field         Field
	Meta          *MetadataStore
	Records       []Record
	Authoritative Grouping
	Overlay       *Grouping
	Pending       map[string]PendingMove
	Details       map[string]Record
	MoveSeq       int
}

// NewState returns an empty board grouped by field.
func NewState(field Field, meta *MetadataStore) State {
	return State{
		Field:         field,
		Meta:          meta,
		Authoritative: Resolve(nil, field, meta),
	}
}

// View is what should be rendered: the overlay while one exists.
func (s State) View() Grouping {
	if s.Overlay != nil {
		return *s.Overlay
	}
	return s.Authoritative
}

// Record returns the authoritative copy of a record.
func (s State) Record(id string) (Record, bool) {
	for _, r := range s.Records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// ViewRecord returns the record as rendered, pending patches included.
func (s State) ViewRecord(id string) (Record, bool) {
	return s.View().Record(id)
}

// IsPending reports whether a move of the record awaits confirmation.
func (s State) IsPending(id string) bool {
	_, ok := s.Pending[id]
	return ok
}

// PendingMoves returns pending moves oldest first.
func (s State) PendingMoves() []PendingMove {
	out := make([]PendingMove, 0, len(s.Pending))
	for _, p := range s.Pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// clone copies the maps so the caller can modify them freely. Records and
// groupings are replaced wholesale by transitions, never edited.
func (s State) clone() State {
	if s.Pending != nil {
		pending := make(map[string]PendingMove, len(s.Pending))
		for k, v := range s.Pending {
			pending[k] = v
		}
		s.Pending = pending
	}
	if s.Details != nil {
		details := make(map[string]Record, len(s.Details))
		for k, v := range s.Details {
			details[k] = v
		}
		s.Details = details
	}
	return s
}

// rebuild regroups authoritative data and derives the overlay from it: every
// pending patch applied, then each pending record promoted to the head of its
// column, oldest first. Pending moves for records that vanished are dropped.
func (s State) rebuild() State {
	s.Authoritative = Resolve(s.Records, s.Field, s.Meta)

	present := make(map[string]bool, len(s.Records))
	for _, r := range s.Records {
		present[r.ID] = true
	}
	for id := range s.Pending {
		if !present[id] {
			delete(s.Pending, id)
		}
	}
	if len(s.Pending) == 0 {
		s.Pending = nil
		s.Overlay = nil
		return s
	}

	patched := make([]Record, len(s.Records))
	for i, r := range s.Records {
		if p, ok := s.Pending[r.ID]; ok {
			r = r.Apply(p.Patch)
		}
		patched[i] = r
	}
	overlay := Resolve(patched, s.Field, s.Meta)
	for _, p := range s.PendingMoves() {
		overlay.promote(p.RecordID)
		if p.Patch.Field == s.Field {
			if key, ok := overlay.ColumnOf(p.RecordID); ok {
				p.TargetKey = key
				s.Pending[p.RecordID] = p
			}
		}
	}
	s.Overlay = &overlay
	return s
}

// Action is a board state transition.
type Action interface {
	isAction()
}

// RecordsLoaded delivers a fresh authoritative batch.
type RecordsLoaded struct{ Records []Record }

// MetadataLoaded delivers a refreshed metadata snapshot.
type MetadataLoaded struct{ Meta *MetadataStore }

// GroupingChanged switches the grouping field.
type GroupingChanged struct{ Field Field }

// MoveApplied applies a move optimistically.
type MoveApplied struct{ Move Move }

// MoveFailed discards a move the gateway rejected. Seq guards against
// discarding a newer move of the same record.
type MoveFailed struct {
	RecordID string
	Seq      int
}

// MoveAbandoned drops a move that was never confirmed.
type MoveAbandoned struct {
	RecordID string
	Seq      int
}

// DetailOpened caches a record for a detail view.
type DetailOpened struct{ RecordID string }

// DetailClosed evicts a record from the detail cache.
type DetailClosed struct{ RecordID string }

func (RecordsLoaded) isAction()   {}
func (MetadataLoaded) isAction()  {}
func (GroupingChanged) isAction() {}
func (MoveApplied) isAction()     {}
func (MoveFailed) isAction()      {}
func (MoveAbandoned) isAction()   {}
func (DetailOpened) isAction()    {}
func (DetailClosed) isAction()    {}

// Reduce is the single transition function of the board.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case RecordsLoaded:
		return Reconcile(s, a.Records)
	case MetadataLoaded:
		next := s.clone()
		next.Meta = a.Meta
		return next.rebuild()
	case GroupingChanged:
		if !a.Field.IsValid() || a.Field == s.Field {
			return s
		}
		next := s.clone()
		next.Field = a.Field
		return next.rebuild()
	case MoveApplied:
		return Apply(s, a.Move)
	case MoveFailed:
		return Rollback(s, a.RecordID, a.Seq)
	case MoveAbandoned:
		return Rollback(s, a.RecordID, a.Seq)
	case DetailOpened:
		r, ok := s.ViewRecord(a.RecordID)
		if !ok {
			return s
		}
		next := s.clone()
		if next.Details == nil {
			next.Details = make(map[string]Record)
		}
		next.Details[a.RecordID] = r
		return next
	case DetailClosed:
		if _, ok := s.Details[a.RecordID]; !ok {
			return s
		}
		next := s.clone()
		delete(next.Details, a.RecordID)
		if len(next.Details) == 0 {
			next.Details = nil
		}
		return next
	}
	return s
}
