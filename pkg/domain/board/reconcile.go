package board

// Reconcile installs a fresh authoritative batch. A pending move settles only
// when the batch already shows the record where the move put it; everything
// else stays pending and keeps the overlay alive, however many batches pass.
func Reconcile(s State, records []Record) State {
	next := s.clone()
	next.Records = uniqueRecords(records)
	next.Authoritative = Resolve(next.Records, next.Field, next.Meta)

	for id, p := range next.Pending {
		if Confirmed(next, p) {
			delete(next.Pending, id)
		}
	}

	for id := range next.Details {
		r, ok := next.Record(id)
		if !ok {
			delete(next.Details, id)
			continue
		}
		if p, ok := next.Pending[id]; ok {
			r = r.Apply(p.Patch)
		}
		next.Details[id] = r
	}
	if len(next.Details) == 0 {
		next.Details = nil
	}
	return next.rebuild()
}

// Confirmed reports whether the authoritative data in s agrees with p. Under
// the grouping the move was made in, that means the record sits in the
// target column; otherwise the backing value must match.
func Confirmed(s State, p PendingMove) bool {
	if p.Patch.Field == s.Field {
		key, ok := s.Authoritative.ColumnOf(p.RecordID)
		return ok && key == p.TargetKey
	}
	r, ok := s.Record(p.RecordID)
	if !ok {
		return false
	}
	return sameValue(p.Patch.Field, r.Value(p.Patch.Field), p.Patch.Value)
}

// Settled returns the pending moves of before that after no longer tracks.
func Settled(before, after State) []PendingMove {
	var out []PendingMove
	for _, p := range before.PendingMoves() {
		if q, ok := after.Pending[p.RecordID]; ok && q.Seq == p.Seq {
			continue
		}
		out = append(out, p)
	}
	return out
}

func sameValue(f Field, a, b string) bool {
	if f.Class() != ClassTemporal {
		return a == b
	}
	ta, okA := ParseDate(a)
	tb, okB := ParseDate(b)
	if !okA || !okB {
		return !okA && !okB
	}
	return MonthKey(ta) == MonthKey(tb)
}

func uniqueRecords(in []Record) []Record {
	seen := make(map[string]bool, len(in))
	out := make([]Record, 0, len(in))
	for _, r := range in {
		if r.ID == "" || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r.Clone())
	}
	return out
}
