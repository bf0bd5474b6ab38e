package board

// Apply returns a new state with the move applied optimistically. The overlay
// is a full regrouping, so the moved record leaves every other column and
// heads its new one. Cached detail copies receive the same patch.
//
// A second move of the same record replaces the first one's pending entry.
func Apply(s State, m Move) State {
	if _, ok := s.Record(m.RecordID); !ok {
		return s
	}
	next := s.clone()
	next.MoveSeq++
	if next.Pending == nil {
		next.Pending = make(map[string]PendingMove)
	}
	next.Pending[m.RecordID] = PendingMove{
		RecordID:  m.RecordID,
		Patch:     m.Patch,
		TargetKey: m.TargetKey,
		Seq:       next.MoveSeq,
	}
	if d, ok := next.Details[m.RecordID]; ok {
		next.Details[m.RecordID] = d.Apply(m.Patch)
	}
	return next.rebuild()
}

// Rollback discards the pending move of recordID if its sequence matches and
// reverts every view of the record to the authoritative copy.
func Rollback(s State, recordID string, seq int) State {
	p, ok := s.Pending[recordID]
	if !ok || p.Seq != seq {
		return s
	}
	next := s.clone()
	delete(next.Pending, recordID)
	if _, ok := next.Details[recordID]; ok {
		if r, ok := next.Record(recordID); ok {
			next.Details[recordID] = r
		}
	}
	return next.rebuild()
}
