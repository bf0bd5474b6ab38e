package board

import (
	"reflect"
	"strings"
)

// MetadataKind identifies a metadata table.
type MetadataKind string

const (
	KindStatus  MetadataKind = "status"
	KindUser    MetadataKind = "user"
	KindProject MetadataKind = "project"
)

// MetadataEntry is one admissible value of a groupable attribute. Several
// entries may share a Name while belonging to different parents.
type MetadataEntry struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Color    string `json:"color,omitempty" yaml:"color,omitempty"`
	Order    int    `json:"order,omitempty" yaml:"order,omitempty"`
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
}

// MetadataBundle is the universe of groupable values as delivered by the
// metadata source.
type MetadataBundle struct {
	Statuses []MetadataEntry `json:"statuses" yaml:"statuses"`
	Users    []MetadataEntry `json:"users" yaml:"users"`
	Projects []MetadataEntry `json:"projects" yaml:"projects"`
}

// Entries returns the table for kind.
func (b MetadataBundle) Entries(kind MetadataKind) []MetadataEntry {
	switch kind {
	case KindStatus:
		return b.Statuses
	case KindUser:
		return b.Users
	case KindProject:
		return b.Projects
	}
	return nil
}

// MetadataStore is an immutable lookup snapshot over a MetadataBundle. A nil
// store behaves as an empty one.
type MetadataStore struct {
	bundle MetadataBundle
	byID   map[MetadataKind]map[string]MetadataEntry
	status *DedupIndex
}

// NewMetadataStore indexes a bundle. Entries without an id are ignored and
// the first entry wins when ids repeat.
func NewMetadataStore(b MetadataBundle) *MetadataStore {
	m := &MetadataStore{
		bundle: b,
		byID:   make(map[MetadataKind]map[string]MetadataEntry),
	}
	for _, kind := range []MetadataKind{KindStatus, KindUser, KindProject} {
		idx := make(map[string]MetadataEntry)
		for _, e := range b.Entries(kind) {
			id := strings.TrimSpace(e.ID)
			if id == "" {
				continue
			}
			if _, dup := idx[id]; dup {
				continue
			}
			e.ID = id
			idx[id] = e
		}
		m.byID[kind] = idx
	}
	m.status = NewDedupIndex(b.Statuses)
	return m
}

// Lookup finds an entry by id.
func (m *MetadataStore) Lookup(kind MetadataKind, id string) (MetadataEntry, bool) {
	if m == nil {
		return MetadataEntry{}, false
	}
	e, ok := m.byID[kind][strings.TrimSpace(id)]
	return e, ok
}

// Entries returns a copy of the table for kind.
func (m *MetadataStore) Entries(kind MetadataKind) []MetadataEntry {
	if m == nil {
		return nil
	}
	src := m.bundle.Entries(kind)
	out := make([]MetadataEntry, len(src))
	copy(out, src)
	return out
}

// Statuses returns the name-deduplicated index of status entries.
func (m *MetadataStore) Statuses() *DedupIndex {
	if m == nil {
		return NewDedupIndex(nil)
	}
	return m.status
}

// Bundle returns the bundle the store was built from.
func (m *MetadataStore) Bundle() MetadataBundle {
	if m == nil {
		return MetadataBundle{}
	}
	return m.bundle
}

// Equal reports whether both stores were built from the same bundle.
func (m *MetadataStore) Equal(o *MetadataStore) bool {
	if m == nil || o == nil {
		return m == o
	}
	return reflect.DeepEqual(m.bundle, o.bundle)
}
