package board

import (
	"sort"
	"strings"
)

const dedupKeySep = "::"

// DedupGroup is every metadata entry sharing one name.
type DedupGroup struct {
	Key   string
	Name  string
	IDs   []string
	Color string
	Order int
}

// DedupIndex groups metadata entries by name. Two entries named "Done" that
// belong to different projects become one group whose key embeds both ids.
type DedupIndex struct {
	groups       []DedupGroup
	byKey        map[string]int
	byName       map[string]int
	byID         map[string]int
	byNameParent map[string]map[string]string
}

// DedupKey derives the column key for a name and its sorted identifier set.
func DedupKey(name string, ids []string) string {
	return name + dedupKeySep + strings.Join(ids, ",")
}

// NewDedupIndex builds the name -> ids and name -> (parent -> id) maps.
// Entries without an id are ignored; entries without a name are keyed by id.
func NewDedupIndex(entries []MetadataEntry) *DedupIndex {
	d := &DedupIndex{
		byKey:        make(map[string]int),
		byName:       make(map[string]int),
		byID:         make(map[string]int),
		byNameParent: make(map[string]map[string]string),
	}

	type acc struct {
		name  string
		ids   []string
		color string
		order int
		seen  bool
	}
	var names []string
	accs := make(map[string]*acc)
	claimed := make(map[string]bool)

	for _, e := range entries {
		id := strings.TrimSpace(e.ID)
		if id == "" || claimed[id] {
			continue
		}
		claimed[id] = true

		name := strings.TrimSpace(e.Name)
		if name == "" {
			name = id
		}
		a, ok := accs[name]
		if !ok {
			a = &acc{name: name}
			accs[name] = a
			names = append(names, name)
		}
		a.ids = append(a.ids, id)
		if !a.seen || e.Order < a.order {
			a.order = e.Order
			a.color = e.Color
			a.seen = true
		}

		parents, ok := d.byNameParent[name]
		if !ok {
			parents = make(map[string]string)
			d.byNameParent[name] = parents
		}
		parent := strings.TrimSpace(e.ParentID)
		if _, taken := parents[parent]; !taken {
			parents[parent] = id
		}
	}

	for _, name := range names {
		a := accs[name]
		ids := append([]string(nil), a.ids...)
		sort.Strings(ids)
		d.groups = append(d.groups, DedupGroup{
			Key:   DedupKey(name, ids),
			Name:  name,
			IDs:   ids,
			Color: a.color,
			Order: a.order,
		})
	}
	sort.SliceStable(d.groups, func(i, j int) bool {
		if d.groups[i].Order != d.groups[j].Order {
			return d.groups[i].Order < d.groups[j].Order
		}
		return d.groups[i].Name < d.groups[j].Name
	})
	for i, g := range d.groups {
		d.byKey[g.Key] = i
		d.byName[g.Name] = i
		for _, id := range g.IDs {
			d.byID[id] = i
		}
	}
	return d
}

// Groups returns the groups ordered by their lowest order hint, then name.
func (d *DedupIndex) Groups() []DedupGroup {
	out := make([]DedupGroup, len(d.groups))
	copy(out, d.groups)
	return out
}

// GroupForKey finds the group a column key was derived from.
func (d *DedupIndex) GroupForKey(key string) (DedupGroup, bool) {
	i, ok := d.byKey[key]
	if !ok {
		return DedupGroup{}, false
	}
	return d.groups[i], true
}

// GroupForName finds the group for a display name.
func (d *DedupIndex) GroupForName(name string) (DedupGroup, bool) {
	i, ok := d.byName[strings.TrimSpace(name)]
	if !ok {
		return DedupGroup{}, false
	}
	return d.groups[i], true
}

// GroupForID finds the group whose identifier set contains id.
func (d *DedupIndex) GroupForID(id string) (DedupGroup, bool) {
	i, ok := d.byID[strings.TrimSpace(id)]
	if !ok {
		return DedupGroup{}, false
	}
	return d.groups[i], true
}

// ResolveID picks the concrete identifier named name for a parent entity.
// Entries without a parent act as a fallback for every parent.
func (d *DedupIndex) ResolveID(name, parentID string) (string, bool) {
	parents, ok := d.byNameParent[name]
	if !ok {
		return "", false
	}
	if id, ok := parents[strings.TrimSpace(parentID)]; ok {
		return id, true
	}
	id, ok := parents[""]
	return id, ok
}
