package board

import (
	"sort"
	"strings"
	"time"
)

const (
	// UnassignedKey is the column for records with no usable grouping value.
	UnassignedKey   = "__unassigned__"
	UnassignedLabel = "Unassigned"
)

// Column is a derived, render-only bucket. IDs lists the backing identifiers
// a deduplicated column aggregates.
type Column struct {
	Key   string   `json:"key"`
	Label string   `json:"label"`
	Color string   `json:"color,omitempty"`
	IDs   []string `json:"ids,omitempty"`
}

// Grouping is the ordered column list plus the records assigned to each.
// Every record appears in exactly one column.
type Grouping struct {
	Field      Field               `json:"field"`
	Columns    []Column            `json:"columns"`
	Assignment map[string][]Record `json:"assignment"`
}

// Column finds a column by key.
func (g Grouping) Column(key string) (Column, bool) {
	for _, c := range g.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// FindColumn resolves a reference typed by a person: an exact key first, then
// a case-insensitive label.
func (g Grouping) FindColumn(ref string) (Column, bool) {
	if c, ok := g.Column(ref); ok {
		return c, true
	}
	ref = strings.TrimSpace(ref)
	for _, c := range g.Columns {
		if strings.EqualFold(c.Label, ref) {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnOf returns the key of the column holding recordID.
func (g Grouping) ColumnOf(recordID string) (string, bool) {
	for _, c := range g.Columns {
		for _, r := range g.Assignment[c.Key] {
			if r.ID == recordID {
				return c.Key, true
			}
		}
	}
	return "", false
}

// Record finds a record by id.
func (g Grouping) Record(recordID string) (Record, bool) {
	for _, c := range g.Columns {
		for _, r := range g.Assignment[c.Key] {
			if r.ID == recordID {
				return r, true
			}
		}
	}
	return Record{}, false
}

// Records flattens the grouping in column order.
func (g Grouping) Records() []Record {
	var out []Record
	for _, c := range g.Columns {
		out = append(out, g.Assignment[c.Key]...)
	}
	return out
}

// Len returns the number of assigned records.
func (g Grouping) Len() int {
	n := 0
	for _, rs := range g.Assignment {
		n += len(rs)
	}
	return n
}

// promote moves recordID to the head of its column.
func (g *Grouping) promote(recordID string) {
	key, ok := g.ColumnOf(recordID)
	if !ok {
		return
	}
	rs := g.Assignment[key]
	out := make([]Record, 0, len(rs))
	for _, r := range rs {
		if r.ID == recordID {
			out = append([]Record{r}, out...)
			continue
		}
		out = append(out, r)
	}
	g.Assignment[key] = out
}

// Resolve derives columns for field and assigns every record to exactly one
// of them. Records whose value is missing, malformed or unknown to the
// metadata land in the unassigned column, which always sorts first. An empty
// record set yields only the unassigned column.
func Resolve(records []Record, field Field, meta *MetadataStore) Grouping {
	g := Grouping{
		Field:      field,
		Columns:    []Column{{Key: UnassignedKey, Label: UnassignedLabel}},
		Assignment: map[string][]Record{UnassignedKey: {}},
	}

	if len(records) == 0 {
		return g
	}

	switch field.Class() {
	case ClassDedup:
		resolveDedup(&g, records, meta)
	case ClassSimple:
		resolveSimple(&g, records, meta)
	case ClassTemporal:
		resolveTemporal(&g, records)
	default:
		g.Assignment[UnassignedKey] = cloneRecords(records)
	}
	return g
}

func (g *Grouping) assign(key string, r Record) {
	g.Assignment[key] = append(g.Assignment[key], r.Clone())
}

func resolveDedup(g *Grouping, records []Record, meta *MetadataStore) {
	idx := meta.Statuses()
	for _, grp := range idx.Groups() {
		g.Columns = append(g.Columns, Column{
			Key:   grp.Key,
			Label: grp.Name,
			Color: grp.Color,
			IDs:   append([]string(nil), grp.IDs...),
		})
		g.Assignment[grp.Key] = []Record{}
	}
	for _, r := range records {
		// Membership in the id set, never the cached name: names repeat
		// across projects.
		if grp, ok := idx.GroupForID(r.Value(g.Field)); ok {
			g.assign(grp.Key, r)
			continue
		}
		g.assign(UnassignedKey, r)
	}
}

func resolveSimple(g *Grouping, records []Record, meta *MetadataStore) {
	kind := g.Field.MetadataKind()
	labels := make(map[string]Column)
	for _, r := range records {
		v := r.Value(g.Field)
		if v == "" || v == UnassignedKey {
			g.assign(UnassignedKey, r)
			continue
		}
		if _, ok := labels[v]; !ok {
			col := Column{Key: v, Label: v}
			if e, ok := meta.Lookup(kind, v); ok && e.Name != "" {
				col.Label = e.Name
				col.Color = e.Color
			} else if name := strings.TrimSpace(r.DisplayName(g.Field)); name != "" {
				col.Label = name
			}
			labels[v] = col
			g.Assignment[v] = []Record{}
		}
		g.assign(v, r)
	}

	cols := make([]Column, 0, len(labels))
	for _, c := range labels {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool {
		li, lj := strings.ToLower(cols[i].Label), strings.ToLower(cols[j].Label)
		if li != lj {
			return li < lj
		}
		return cols[i].Key < cols[j].Key
	})
	g.Columns = append(g.Columns, cols...)
}

func resolveTemporal(g *Grouping, records []Record) {
	var keys []string
	labels := make(map[string]string)
	for _, r := range records {
		t, ok := ParseDate(r.Value(g.Field))
		if !ok {
			g.assign(UnassignedKey, r)
			continue
		}
		key := MonthKey(t)
		if _, ok := labels[key]; !ok {
			labels[key] = t.Format("January 2006")
			keys = append(keys, key)
			g.Assignment[key] = []Record{}
		}
		g.assign(key, r)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	for _, k := range keys {
		g.Columns = append(g.Columns, Column{Key: k, Label: labels[k]})
	}
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01",
}

// ParseDate accepts the date shapes storage is known to produce.
func ParseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// MonthKey is the normalized year-month bucket key.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// monthStart converts a bucket key to the first day of that month.
func monthStart(key string) (string, bool) {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
