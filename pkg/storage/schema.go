package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
)

const recordSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": { "type": "string", "minLength": 1 },
    "title": { "type": "string" },
    "description": { "type": "string" },
    "status_id": { "type": "string" },
    "status_name": { "type": "string" },
    "status_color": { "type": "string" },
    "assignee_id": { "type": "string" },
    "assignee_name": { "type": "string" },
    "project_id": { "type": "string" },
    "project_name": { "type": "string" },
    "project_color": { "type": "string" },
    "delivery_date": { "type": "string" },
    "due_date": { "type": "string" }
  }
}`

// schemaRoot is the context gojsonschema reports for document-level errors.
const schemaRoot = "(root)"

var recordSchema = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(recordSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("record schema: %v", err))
	}
	return s
}()

// Issue describes a repair made while decoding a record.
type Issue struct {
	RecordID string
	Field    string
	Reason   string
}

// decodeRecords validates each element of a records document on its own.
// A record without a usable id is skipped; a known attribute with the wrong
// type is dropped, so a malformed grouping value degrades to unassigned
// instead of failing the whole board.
func decodeRecords(data []byte) ([]board.Record, []Issue, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}

	var (
		out    []board.Record
		issues []Issue
	)
	for i, item := range raw {
		result, err := recordSchema.Validate(gojsonschema.NewGoLoader(item))
		if err != nil {
			return nil, nil, fmt.Errorf("validate record %d: %w", i, err)
		}

		skip := false
		for _, desc := range result.Errors() {
			field := desc.Field()
			if desc.Type() == "required" || field == "id" || field == schemaRoot {
				skip = true
				issues = append(issues, Issue{RecordID: fmt.Sprintf("#%d", i), Field: "id", Reason: desc.Description()})
				break
			}
			field = strings.TrimPrefix(field, schemaRoot+".")
			delete(item, field)
			id, _ := item["id"].(string)
			issues = append(issues, Issue{RecordID: id, Field: field, Reason: desc.Description()})
		}
		if skip {
			continue
		}

		clean, err := json.Marshal(item)
		if err != nil {
			return nil, nil, err
		}
		var rec board.Record
		if err := json.Unmarshal(clean, &rec); err != nil {
			return nil, nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, issues, nil
}
