package board_test

import (
	"sort"
	"testing"

	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
)

// Two projects each define their own "Done" and "In Progress"; "Todo" is
// shared by every project.
func testMetadata() board.MetadataBundle {
	return board.MetadataBundle{
		Statuses: []board.MetadataEntry{
			{ID: "5", Name: "Todo", Color: "gray", Order: 1},
			{ID: "98", Name: "In Progress", Color: "amber", Order: 2, ParentID: "1"},
			{ID: "99", Name: "In Progress", Color: "orange", Order: 2, ParentID: "2"},
			{ID: "10", Name: "Done", Color: "green", Order: 3, ParentID: "1"},
			{ID: "20", Name: "Done", Color: "teal", Order: 3, ParentID: "2"},
		},
		Users: []board.MetadataEntry{
			{ID: "u1", Name: "Ada"},
			{ID: "u2", Name: "Grace"},
		},
		Projects: []board.MetadataEntry{
			{ID: "1", Name: "Apollo", Color: "blue"},
			{ID: "2", Name: "Gemini", Color: "red"},
			{ID: "3", Name: "Mercury", Color: "silver"},
		},
	}
}

func testRecords() []board.Record {
	return []board.Record{
		{ID: "t1", Title: "Ship release", ProjectID: "1", StatusID: "10", StatusName: "Done", StatusColor: "green", AssigneeID: "u1", AssigneeName: "Ada", DeliveryDate: "2024-03-05"},
		{ID: "t2", Title: "Write docs", ProjectID: "2", StatusID: "99", StatusName: "In Progress", StatusColor: "orange", AssigneeID: "u2", AssigneeName: "Grace", DeliveryDate: "2024-05-20"},
		{ID: "t3", Title: "Plan roadmap", ProjectID: "3", StatusID: "5", StatusName: "Todo", StatusColor: "gray"},
		{ID: "t4", Title: "Fix flaky test", ProjectID: "2", StatusID: "404", StatusName: "Archived", AssigneeID: "u1", AssigneeName: "Ada", DeliveryDate: "not-a-date"},
	}
}

func testState(t *testing.T, field board.Field) board.State {
	t.Helper()
	meta := board.NewMetadataStore(testMetadata())
	s := board.NewState(field, meta)
	return board.Reduce(s, board.RecordsLoaded{Records: testRecords()})
}

func doneKey() string       { return board.DedupKey("Done", []string{"10", "20"}) }
func inProgressKey() string { return board.DedupKey("In Progress", []string{"98", "99"}) }
func todoKey() string       { return board.DedupKey("Todo", []string{"5"}) }

func columnIDs(g board.Grouping, key string) []string {
	var ids []string
	for _, r := range g.Assignment[key] {
		ids = append(ids, r.ID)
	}
	return ids
}

func columnKeys(g board.Grouping) []string {
	keys := make([]string, 0, len(g.Columns))
	for _, c := range g.Columns {
		keys = append(keys, c.Key)
	}
	return keys
}

func sortedIDs(rs []board.Record) []string {
	ids := make([]string, 0, len(rs))
	for _, r := range rs {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return ids
}
