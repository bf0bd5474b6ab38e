package sdk

import (
	"github.com/felixgeelhaar/swimlane/pkg/application"
	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
	"github.com/felixgeelhaar/swimlane/pkg/domain/events"
)

// Board, Record and MoveHistory are the server's own render and history
// types.
type (
	Board       = application.BoardView
	Record      = board.Record
	MoveHistory = events.MoveHistory
)

// Move outcomes reported by MoveResult.Outcome. "failed" means storage
// rejected the write and the board was rolled back.
const (
	OutcomeApplied = "applied"
	OutcomeNoop    = "noop"
	OutcomeFailed  = "failed"
)

// BoardRequest provides typed parameters for the Board method.
type BoardRequest struct {
	GroupBy string
	Search  string
}

// MoveResult reports a move.
type MoveResult struct {
	RecordID string `json:"record_id"`
	Outcome  string `json:"outcome"`
	Column   string `json:"column,omitempty"`
	Pending  bool   `json:"pending"`
}

// FieldInfo describes one groupable field.
type FieldInfo struct {
	Name    string `json:"name"`
	Backing string `json:"backing"`
	Columns string `json:"columns"`
}

// SchemaInfo is the content of the swimlane://schema resource.
type SchemaInfo struct {
	SchemaVersion string      `json:"schema_version"`
	ServerVersion string      `json:"server_version"`
	Fields        []FieldInfo `json:"fields"`
}
