package board

// Display carries the denormalized fields derived from a metadata entry.
type Display struct {
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
}

// Patch is the optimistic change applied to a record: the backing value plus
// the display fields derived from it.
type Patch struct {
	Field   Field   `json:"field"`
	Value   string  `json:"value"`
	Display Display `json:"display"`
}

// FieldUpdate is what gets sent to storage. It never carries display fields.
type FieldUpdate struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Update strips the patch down to its backing field.
func (p Patch) Update() FieldUpdate {
	return FieldUpdate{Field: p.Field.BackingField(), Value: p.Value}
}

// DisplayFor looks up the display fields for a backing value. Temporal fields,
// empty values and values unknown to the metadata yield an empty Display.
func DisplayFor(meta *MetadataStore, f Field, value string) Display {
	kind := f.MetadataKind()
	if kind == "" || value == "" {
		return Display{}
	}
	entry, ok := meta.Lookup(kind, value)
	if !ok {
		return Display{}
	}
	return Display{Name: entry.Name, Color: entry.Color}
}

// NewPatch builds a patch for value with display fields taken from meta.
func NewPatch(meta *MetadataStore, f Field, value string) Patch {
	return Patch{Field: f, Value: value, Display: DisplayFor(meta, f, value)}
}
