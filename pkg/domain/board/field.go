// Package board implements the optimistic state engine behind the task board:
// column derivation, name-based deduplication of grouping values, the drag
// lifecycle, optimistic patching and reconciliation against authoritative data.
package board

import (
	"fmt"
	"strings"
)

// Field names a groupable attribute of a record.
type Field string

const (
	FieldStatus       Field = "status"
	FieldAssignee     Field = "assignee"
	FieldProject      Field = "project"
	FieldDeliveryDate Field = "delivery_date"
	FieldDueDate      Field = "due_date"
)

// FieldClass selects how a field is turned into columns.
type FieldClass int

const (
	// ClassDedup fields produce one column per metadata name, aggregating
	// every identifier that shares the name.
	ClassDedup FieldClass = iota + 1
	// ClassSimple fields produce one column per value present in the records.
	ClassSimple
	// ClassTemporal fields bucket records by calendar month.
	ClassTemporal
)

type fieldSpec struct {
	class   FieldClass
	backing string
	kind    MetadataKind
}

var fieldSpecs = map[Field]fieldSpec{
	FieldStatus:       {class: ClassDedup, backing: "status_id", kind: KindStatus},
	FieldAssignee:     {class: ClassSimple, backing: "assignee_id", kind: KindUser},
	FieldProject:      {class: ClassSimple, backing: "project_id", kind: KindProject},
	FieldDeliveryDate: {class: ClassTemporal, backing: "delivery_date"},
	FieldDueDate:      {class: ClassTemporal, backing: "due_date"},
}

// AllFields returns every groupable field in display order.
func AllFields() []Field {
	return []Field{
		FieldStatus,
		FieldAssignee,
		FieldProject,
		FieldDeliveryDate,
		FieldDueDate,
	}
}

// IsValid returns true if the field is groupable.
func (f Field) IsValid() bool {
	_, ok := fieldSpecs[f]
	return ok
}

func (f Field) String() string {
	return string(f)
}

// Class returns how the field is grouped. Unknown fields report zero.
func (f Field) Class() FieldClass {
	return fieldSpecs[f].class
}

// BackingField returns the raw record attribute the field is stored against.
func (f Field) BackingField() string {
	return fieldSpecs[f].backing
}

// MetadataKind returns the metadata table that describes the field's values.
// Temporal fields have none.
func (f Field) MetadataKind() MetadataKind {
	return fieldSpecs[f].kind
}

// ParseField parses a grouping field name. Backing attribute names
// ("status_id") are accepted as aliases.
func ParseField(s string) (Field, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if f := Field(name); f.IsValid() {
		return f, nil
	}
	if f, ok := FieldForBacking(name); ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// FieldForBacking maps a backing attribute name back to its field.
func FieldForBacking(backing string) (Field, bool) {
	for f, spec := range fieldSpecs {
		if spec.backing == backing {
			return f, true
		}
	}
	return "", false
}
