package board

import (
	"context"
	"sort"
)

// Query selects the records a board shows.
type Query struct {
	Field    Field
	PageSize int
	Search   string
	// Filters maps a backing attribute to its allowed values.
	Filters map[string][]string
}

// Batch is one authoritative fetch.
type Batch struct {
	RecordsByGroup map[string][]Record `json:"records_by_group"`
	Metadata       MetadataBundle      `json:"metadata"`
}

// Flatten returns the batch's records in group-key order, each id once.
func (b *Batch) Flatten() []Record {
	if b == nil {
		return nil
	}
	keys := make([]string, 0, len(b.RecordsByGroup))
	for k := range b.RecordsByGroup {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var all []Record
	for _, k := range keys {
		all = append(all, b.RecordsByGroup[k]...)
	}
	return uniqueRecords(all)
}

// RecordSource fetches authoritative records. It must be safe to call
// repeatedly.
type RecordSource interface {
	FetchRecords(ctx context.Context, q Query) (*Batch, error)
}

// MetadataSource fetches the universe of groupable values.
type MetadataSource interface {
	FetchMetadata(ctx context.Context) (MetadataBundle, error)
}

// PersistenceGateway writes a single backing field of a record.
type PersistenceGateway interface {
	UpdateField(ctx context.Context, recordID string, update FieldUpdate) error
}
