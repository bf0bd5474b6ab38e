package application

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
)

// ErrAlreadyInitialized is returned when a workspace already exists.
var ErrAlreadyInitialized = errors.New("workspace already initialized")

// WorkspaceRepository is the storage InitService seeds.
type WorkspaceRepository interface {
	Initialize() error
	IsInitialized() bool
	SaveMetadata(board.MetadataBundle) error
	SaveRecords([]board.Record) error
}

// InitService creates workspaces.
type InitService struct {
	repo WorkspaceRepository
}

func NewInitService(repo WorkspaceRepository) *InitService {
	return &InitService{repo: repo}
}

// Initialize creates an empty workspace, or one holding the sample board
// when sample is set.
func (s *InitService) Initialize(sample bool) error {
	if s.repo.IsInitialized() {
		return ErrAlreadyInitialized
	}
	if err := s.repo.Initialize(); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	meta, records := board.MetadataBundle{}, []board.Record{}
	if sample {
		meta = SampleMetadata()
		store := board.NewMetadataStore(meta)
		for _, r := range SampleRecords() {
			for _, f := range []board.Field{board.FieldStatus, board.FieldAssignee, board.FieldProject} {
				r = r.Apply(board.NewPatch(store, f, r.Value(f)))
			}
			records = append(records, r)
		}
	}
	if err := s.repo.SaveMetadata(meta); err != nil {
		return fmt.Errorf("seed metadata: %w", err)
	}
	if err := s.repo.SaveRecords(records); err != nil {
		return fmt.Errorf("seed records: %w", err)
	}
	return nil
}

// SampleMetadata describes two projects with their own workflow statuses
// and one status they share.
func SampleMetadata() board.MetadataBundle {
	return board.MetadataBundle{
		Statuses: []board.MetadataEntry{
			{ID: "1", Name: "Backlog", Color: "gray", Order: 1},
			{ID: "11", Name: "In Progress", Color: "blue", Order: 2, ParentID: "web"},
			{ID: "21", Name: "In Progress", Color: "indigo", Order: 2, ParentID: "api"},
			{ID: "12", Name: "Review", Color: "yellow", Order: 3, ParentID: "web"},
			{ID: "13", Name: "Done", Color: "green", Order: 4, ParentID: "web"},
			{ID: "23", Name: "Done", Color: "teal", Order: 4, ParentID: "api"},
		},
		Users: []board.MetadataEntry{
			{ID: "ada", Name: "Ada Lovelace"},
			{ID: "grace", Name: "Grace Hopper"},
			{ID: "alan", Name: "Alan Turing"},
		},
		Projects: []board.MetadataEntry{
			{ID: "web", Name: "Web App", Color: "purple"},
			{ID: "api", Name: "Public API", Color: "orange"},
		},
	}
}

// SampleRecords is a small board over SampleMetadata, without display
// fields.
func SampleRecords() []board.Record {
	return []board.Record{
		{ID: "SW-1", Title: "Design the landing page", ProjectID: "web", StatusID: "11", AssigneeID: "ada", DeliveryDate: "2025-01-15"},
		{ID: "SW-2", Title: "Rate limit the search endpoint", ProjectID: "api", StatusID: "21", AssigneeID: "alan", DeliveryDate: "2025-02-03"},
		{ID: "SW-3", Title: "Write the onboarding guide", ProjectID: "web", StatusID: "1", DueDate: "2025-03-01"},
		{ID: "SW-4", Title: "Publish the OpenAPI document", ProjectID: "api", StatusID: "23", AssigneeID: "grace", DeliveryDate: "2025-01-20"},
		{ID: "SW-5", Title: "Review accessibility findings", ProjectID: "web", StatusID: "12", AssigneeID: "grace"},
		{ID: "SW-6", Title: "Plan the next release"},
	}
}
