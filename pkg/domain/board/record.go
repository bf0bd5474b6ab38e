package board

import (
	"encoding/json"
	"strings"
)

// Record is one task on the board. Identifier fields drive grouping; the
// name/color fields next to them are display copies that must always describe
// the entity the identifier points at.
type Record struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	StatusID    string `json:"status_id,omitempty"`
	StatusName  string `json:"status_name,omitempty"`
	StatusColor string `json:"status_color,omitempty"`

	AssigneeID   string `json:"assignee_id,omitempty"`
	AssigneeName string `json:"assignee_name,omitempty"`

	ProjectID    string `json:"project_id,omitempty"`
	ProjectName  string `json:"project_name,omitempty"`
	ProjectColor string `json:"project_color,omitempty"`

	DeliveryDate string `json:"delivery_date,omitempty"`
	DueDate      string `json:"due_date,omitempty"`

	// Extra holds attributes the board does not interpret. They survive a
	// decode/encode round trip untouched.
	Extra map[string]any `json:"-"`
}

var knownRecordKeys = map[string]bool{
	"id": true, "title": true, "description": true,
	"status_id": true, "status_name": true, "status_color": true,
	"assignee_id": true, "assignee_name": true,
	"project_id": true, "project_name": true, "project_color": true,
	"delivery_date": true, "due_date": true,
}

type recordFields Record

// UnmarshalJSON decodes the typed fields and keeps the rest in Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var typed recordFields
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if knownRecordKeys[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		if typed.Extra == nil {
			typed.Extra = make(map[string]any)
		}
		typed.Extra[k] = val
	}
	*r = Record(typed)
	return nil
}

// MarshalJSON encodes the typed fields merged with Extra.
func (r Record) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(recordFields(r))
	if err != nil || len(r.Extra) == 0 {
		return data, err
	}
	var merged map[string]any
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if knownRecordKeys[k] {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Value returns the trimmed backing value for a grouping field.
func (r Record) Value(f Field) string {
	var v string
	switch f {
	case FieldStatus:
		v = r.StatusID
	case FieldAssignee:
		v = r.AssigneeID
	case FieldProject:
		v = r.ProjectID
	case FieldDeliveryDate:
		v = r.DeliveryDate
	case FieldDueDate:
		v = r.DueDate
	}
	return strings.TrimSpace(v)
}

// DisplayName returns the denormalized name cached for a grouping field.
func (r Record) DisplayName(f Field) string {
	switch f {
	case FieldStatus:
		return r.StatusName
	case FieldAssignee:
		return r.AssigneeName
	case FieldProject:
		return r.ProjectName
	}
	return ""
}

// Apply returns a copy of the record with the patch's backing value and
// display fields written.
func (r Record) Apply(p Patch) Record {
	out := r.Clone()
	switch p.Field {
	case FieldStatus:
		out.StatusID = p.Value
		out.StatusName = p.Display.Name
		out.StatusColor = p.Display.Color
	case FieldAssignee:
		out.AssigneeID = p.Value
		out.AssigneeName = p.Display.Name
	case FieldProject:
		out.ProjectID = p.Value
		out.ProjectName = p.Display.Name
		out.ProjectColor = p.Display.Color
	case FieldDeliveryDate:
		out.DeliveryDate = p.Value
	case FieldDueDate:
		out.DueDate = p.Value
	}
	return out
}

// Clone returns a copy that shares nothing mutable with r.
func (r Record) Clone() Record {
	if r.Extra != nil {
		extra := make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			extra[k] = v
		}
		r.Extra = extra
	}
	return r
}

func cloneRecords(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
