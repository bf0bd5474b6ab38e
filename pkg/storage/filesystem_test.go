package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
	"github.com/felixgeelhaar/swimlane/pkg/domain/events"
)

func sampleMetadata() board.MetadataBundle {
	return board.MetadataBundle{
		Statuses: []board.MetadataEntry{
			{ID: "5", Name: "Todo", Color: "gray", Order: 1},
			{ID: "10", Name: "Done", Color: "green", Order: 3, ParentID: "1"},
			{ID: "20", Name: "Done", Color: "teal", Order: 3, ParentID: "2"},
		},
		Users:    []board.MetadataEntry{{ID: "u1", Name: "Ada"}},
		Projects: []board.MetadataEntry{{ID: "1", Name: "Apollo"}, {ID: "2", Name: "Gemini", Color: "red"}},
	}
}

func newRepo(t *testing.T, opts ...Option) *FilesystemRepository {
	t.Helper()
	repo := NewFilesystemRepository(t.TempDir(), opts...)
	if err := repo.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := repo.SaveMetadata(sampleMetadata()); err != nil {
		t.Fatalf("SaveMetadata failed: %v", err)
	}
	return repo
}

func writeRecordsFile(t *testing.T, repo *FilesystemRepository, doc string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(repo.Dir(), RecordsFile), []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestFilesystemRepository_ResolvePath(t *testing.T) {
	repo := NewFilesystemRepository("/tmp/ws")

	if _, err := repo.ResolvePath("../secrets"); err == nil {
		t.Error("Expected traversal to be rejected")
	}
	if _, err := repo.ResolvePath("nested/records.json"); err == nil {
		t.Error("Expected nested path to be rejected")
	}
	path, err := repo.ResolvePath(RecordsFile)
	if err != nil || path != filepath.Join("/tmp/ws", SwimlaneDir, RecordsFile) {
		t.Errorf("unexpected path %q (%v)", path, err)
	}
}

func TestFilesystemRepository_MissingFilesAreEmpty(t *testing.T) {
	repo := NewFilesystemRepository(t.TempDir())

	records, err := repo.LoadRecords(context.Background())
	if err != nil || len(records) != 0 {
		t.Errorf("Expected empty records, got %v (%v)", records, err)
	}
	meta, err := repo.LoadMetadata(context.Background())
	if err != nil || len(meta.Statuses) != 0 {
		t.Errorf("Expected empty metadata, got %v (%v)", meta, err)
	}
	if repo.IsInitialized() {
		t.Error("workspace must not exist before Initialize")
	}
}

func TestFilesystemRepository_SanitizesMalformedRecords(t *testing.T) {
	repo := newRepo(t)
	writeRecordsFile(t, repo, `[
		{"id": "t1", "title": "ok", "status_id": "10", "priority": "high"},
		{"id": "t2", "title": "bad status", "status_id": 10, "assignee_id": "u1"},
		{"title": "no id"},
		{"id": "", "title": "empty id"},
		{"id": "t3", "title": "bad date", "delivery_date": ["2024-01-01"]}
	]`)

	records, err := repo.LoadRecords(context.Background())
	if err != nil {
		t.Fatalf("LoadRecords failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if records[0].Extra["priority"] != "high" {
		t.Errorf("unknown attributes must pass through, got %v", records[0].Extra)
	}
	if records[1].StatusID != "" || records[1].AssigneeID != "u1" {
		t.Errorf("only the malformed field may be dropped, got %+v", records[1])
	}
	if records[2].DeliveryDate != "" || records[2].Title != "bad date" {
		t.Errorf("unexpected record %+v", records[2])
	}
}

func TestFilesystemRepository_FetchRecords(t *testing.T) {
	repo := newRepo(t)
	if err := repo.SaveRecords([]board.Record{
		{ID: "t1", Title: "Ship release", StatusID: "10", ProjectID: "1"},
		{ID: "t2", Title: "Write docs", Description: "release notes", StatusID: "20", ProjectID: "2"},
		{ID: "t3", Title: "Plan", StatusID: "5", ProjectID: "2"},
		{ID: "t4", Title: "Triage"},
	}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	batch, err := repo.FetchRecords(ctx, board.Query{Field: board.FieldStatus})
	if err != nil {
		t.Fatalf("FetchRecords failed: %v", err)
	}
	if len(batch.RecordsByGroup) != 4 || len(batch.RecordsByGroup[board.UnassignedKey]) != 1 {
		t.Errorf("unexpected groups %v", batch.RecordsByGroup)
	}
	if len(batch.Metadata.Statuses) != 3 {
		t.Error("batch must carry metadata")
	}

	searched, _ := repo.FetchRecords(ctx, board.Query{Field: board.FieldStatus, Search: "RELEASE"})
	if got := len(searched.Flatten()); got != 2 {
		t.Errorf("Expected 2 search hits, got %d", got)
	}

	filtered, _ := repo.FetchRecords(ctx, board.Query{
		Field:   board.FieldStatus,
		Filters: map[string][]string{"project_id": {"2"}},
	})
	if got := len(filtered.Flatten()); got != 2 {
		t.Errorf("Expected 2 filtered records, got %d", got)
	}

	paged, _ := repo.FetchRecords(ctx, board.Query{Field: board.FieldProject, PageSize: 1})
	if got := len(paged.RecordsByGroup["2"]); got != 1 {
		t.Errorf("Expected page size 1 per group, got %d", got)
	}
}

func TestFilesystemRepository_UpdateFieldDerivesDisplay(t *testing.T) {
	pub := NewInMemoryEventPublisher(nil)
	var changed []string
	pub.Subscribe(func(e *events.BaseEvent) error {
		if e.Type == events.EventTypeRecordChanged {
			changed = append(changed, e.AggregateID_)
		}
		return nil
	})

	repo := newRepo(t, WithPublisher(pub))
	if err := repo.SaveRecords([]board.Record{{ID: "t1", StatusID: "5", StatusName: "Todo", ProjectID: "2"}}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := repo.UpdateField(ctx, "t1", board.FieldUpdate{Field: "status_id", Value: "20"}); err != nil {
		t.Fatalf("UpdateField failed: %v", err)
	}

	records, _ := repo.LoadRecords(ctx)
	if r := records[0]; r.StatusID != "20" || r.StatusName != "Done" || r.StatusColor != "teal" {
		t.Errorf("display fields must follow the id, got %+v", r)
	}
	if len(changed) != 1 || changed[0] != "t1" {
		t.Errorf("Expected one change notification for t1, got %v", changed)
	}

	if err := repo.UpdateField(ctx, "missing", board.FieldUpdate{Field: "status_id", Value: "5"}); !errors.Is(err, board.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got %v", err)
	}
	if err := repo.UpdateField(ctx, "t1", board.FieldUpdate{Field: "priority", Value: "1"}); !errors.Is(err, board.ErrUnknownField) {
		t.Errorf("Expected ErrUnknownField, got %v", err)
	}
}

func TestFilesystemRepository_CreateRecord(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	rec, err := repo.CreateRecord(ctx, board.Record{Title: "New", ProjectID: "2", AssigneeID: "u1"})
	if err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}
	if rec.ID == "" {
		t.Error("Expected generated id")
	}
	if rec.ProjectName != "Gemini" || rec.ProjectColor != "red" || rec.AssigneeName != "Ada" {
		t.Errorf("Expected denormalized names, got %+v", rec)
	}

	if _, err := repo.CreateRecord(ctx, board.Record{ID: rec.ID}); err == nil {
		t.Error("Expected duplicate id to be rejected")
	}

	records, _ := repo.LoadRecords(ctx)
	if len(records) != 1 {
		t.Errorf("Expected 1 record, got %d", len(records))
	}
}
