package board_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
)

func TestResolve_DedupColumns(t *testing.T) {
	meta := board.NewMetadataStore(testMetadata())
	g := board.Resolve(testRecords(), board.FieldStatus, meta)

	wantKeys := []string{board.UnassignedKey, todoKey(), inProgressKey(), doneKey()}
	if diff := cmp.Diff(wantKeys, columnKeys(g)); diff != "" {
		t.Fatalf("column keys mismatch (-want +got):\n%s", diff)
	}

	done, ok := g.Column(doneKey())
	if !ok {
		t.Fatal("expected a single Done column")
	}
	if done.Label != "Done" {
		t.Errorf("expected label Done, got %q", done.Label)
	}
	if diff := cmp.Diff([]string{"10", "20"}, done.IDs); diff != "" {
		t.Errorf("Done ids mismatch (-want +got):\n%s", diff)
	}

	cases := map[string][]string{
		board.UnassignedKey: {"t4"},
		todoKey():           {"t3"},
		inProgressKey():     {"t2"},
		doneKey():           {"t1"},
	}
	for key, want := range cases {
		if diff := cmp.Diff(want, columnIDs(g, key)); diff != "" {
			t.Errorf("column %s mismatch (-want +got):\n%s", key, diff)
		}
	}
}

func TestResolve_DedupAssignsByIdentifierNotName(t *testing.T) {
	meta := board.NewMetadataStore(testMetadata())
	stale := board.Record{ID: "s1", ProjectID: "1", StatusID: "10", StatusName: "In Progress"}

	g := board.Resolve([]board.Record{stale}, board.FieldStatus, meta)

	if key, _ := g.ColumnOf("s1"); key != doneKey() {
		t.Errorf("expected record in Done by id, got %q", key)
	}
}

func TestResolve_OrphanedReferenceIsUnassigned(t *testing.T) {
	meta := board.NewMetadataStore(testMetadata())
	g := board.Resolve(testRecords(), board.FieldStatus, meta)

	if key, _ := g.ColumnOf("t4"); key != board.UnassignedKey {
		t.Errorf("expected orphaned status to be unassigned, got %q", key)
	}
}

func TestResolve_SimpleColumns(t *testing.T) {
	meta := board.NewMetadataStore(testMetadata())
	g := board.Resolve(testRecords(), board.FieldAssignee, meta)

	if diff := cmp.Diff([]string{board.UnassignedKey, "u1", "u2"}, columnKeys(g)); diff != "" {
		t.Fatalf("column keys mismatch (-want +got):\n%s", diff)
	}
	if c, _ := g.Column("u2"); c.Label != "Grace" {
		t.Errorf("expected label Grace, got %q", c.Label)
	}
	if diff := cmp.Diff([]string{"t1", "t4"}, columnIDs(g, "u1")); diff != "" {
		t.Errorf("u1 column mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_SimpleColumnsSortByLabel(t *testing.T) {
	records := []board.Record{
		{ID: "a", AssigneeID: "x9", AssigneeName: "zoe"},
		{ID: "b", AssigneeID: "x1", AssigneeName: "Mallory"},
		{ID: "c", AssigneeID: "x5", AssigneeName: "alice"},
	}
	g := board.Resolve(records, board.FieldAssignee, nil)

	if diff := cmp.Diff([]string{board.UnassignedKey, "x5", "x1", "x9"}, columnKeys(g)); diff != "" {
		t.Errorf("column order mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_TemporalBuckets(t *testing.T) {
	records := append(testRecords(), board.Record{ID: "t5", DeliveryDate: "2024-05-01T09:00:00Z"})
	g := board.Resolve(records, board.FieldDeliveryDate, nil)

	if diff := cmp.Diff([]string{board.UnassignedKey, "2024-05", "2024-03"}, columnKeys(g)); diff != "" {
		t.Fatalf("column keys mismatch (-want +got):\n%s", diff)
	}
	if c, _ := g.Column("2024-05"); c.Label != "May 2024" {
		t.Errorf("expected label May 2024, got %q", c.Label)
	}
	if diff := cmp.Diff([]string{"t3", "t4"}, columnIDs(g, board.UnassignedKey)); diff != "" {
		t.Errorf("unassigned mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"t2", "t5"}, columnIDs(g, "2024-05")); diff != "" {
		t.Errorf("May bucket mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_EmptyRecordSet(t *testing.T) {
	meta := board.NewMetadataStore(testMetadata())
	for _, f := range board.AllFields() {
		g := board.Resolve(nil, f, meta)
		if len(g.Columns) != 1 || g.Columns[0].Key != board.UnassignedKey {
			t.Errorf("%s: expected only the unassigned column, got %v", f, columnKeys(g))
		}
	}
}

func TestResolve_PartitionInvariant(t *testing.T) {
	meta := board.NewMetadataStore(testMetadata())
	records := append(testRecords(),
		board.Record{ID: "t6", StatusID: "  20 ", AssigneeID: "ghost", DueDate: "2023-12-24"},
		board.Record{ID: "t7"},
	)

	for _, f := range board.AllFields() {
		t.Run(string(f), func(t *testing.T) {
			g := board.Resolve(records, f, meta)

			seen := make(map[string]int)
			for _, c := range g.Columns {
				for _, r := range g.Assignment[c.Key] {
					seen[r.ID]++
				}
			}
			for id, n := range seen {
				if n != 1 {
					t.Errorf("record %s appears %d times", id, n)
				}
			}
			if len(g.Assignment) != len(g.Columns) {
				t.Errorf("assignment has %d keys for %d columns", len(g.Assignment), len(g.Columns))
			}
			if diff := cmp.Diff(sortedIDs(records), sortedIDs(g.Records())); diff != "" {
				t.Errorf("union mismatch (-want +got):\n%s", diff)
			}
			if g.Columns[0].Key != board.UnassignedKey {
				t.Errorf("unassigned column must sort first, got %s", g.Columns[0].Key)
			}
		})
	}
}

func TestGrouping_FindColumn(t *testing.T) {
	meta := board.NewMetadataStore(testMetadata())
	g := board.Resolve(testRecords(), board.FieldStatus, meta)

	if c, ok := g.FindColumn("done"); !ok || c.Key != doneKey() {
		t.Errorf("expected label lookup to find Done, got %+v", c)
	}
	if c, ok := g.FindColumn(todoKey()); !ok || c.Label != "Todo" {
		t.Errorf("expected key lookup to find Todo, got %+v", c)
	}
	if _, ok := g.FindColumn("Archived"); ok {
		t.Error("expected unknown label to miss")
	}
}
