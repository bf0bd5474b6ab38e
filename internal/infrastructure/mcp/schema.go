package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
)

// SchemaVersion is the current MCP tool schema version (semver).
const SchemaVersion = "1.0.0"

const schemaURI = "swimlane://schema"

// FieldInfo describes one groupable field to clients.
type FieldInfo struct {
	Name    string `json:"name"`
	Backing string `json:"backing"`
	Columns string `json:"columns"`
}

type schemaResponse struct {
	SchemaVersion string      `json:"schema_version"`
	ServerVersion string      `json:"server_version"`
	Fields        []FieldInfo `json:"fields"`
}

func groupableFields() []FieldInfo {
	out := make([]FieldInfo, 0, len(board.AllFields()))
	for _, f := range board.AllFields() {
		info := FieldInfo{Name: f.String(), Backing: f.BackingField()}
		switch f.Class() {
		case board.ClassDedup:
			info.Columns = "one per metadata name, shared across parents"
		case board.ClassSimple:
			info.Columns = "one per value present"
		case board.ClassTemporal:
			info.Columns = "one per calendar month"
		}
		out = append(out, info)
	}
	return out
}

func (s *Server) registerSchemaResource() {
	s.mcpServer.Resource(schemaURI).
		Name(schemaURI).
		Description("MCP tool schema version and the fields a board can be grouped by").
		MimeType("application/json").
		Handler(func(_ context.Context, _ string, _ map[string]string) (*mcplib.ResourceContent, error) {
			data, err := json.Marshal(schemaResponse{
				SchemaVersion: SchemaVersion,
				ServerVersion: Version,
				Fields:        groupableFields(),
			})
			if err != nil {
				return nil, err
			}
			return &mcplib.ResourceContent{
				URI:      schemaURI,
				MimeType: "application/json",
				Text:     string(data),
			}, nil
		})
}
