package sdk

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoContent is returned when a tool result contains no content items.
	ErrNoContent = errors.New("swimlane: empty tool result")

	// ErrRecordNotFound matches tool errors for records absent from the board.
	ErrRecordNotFound = errors.New("swimlane: record not on the board")

	// ErrInvalidMove matches tool errors for drops the board refused.
	ErrInvalidMove = errors.New("swimlane: invalid move")
)

// ToolError is returned when a tool call returns an error result. The
// message is the server's user-facing text.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("swimlane: tool %s: %s", e.Tool, e.Message)
}

// Is classifies the server message so callers can use errors.Is.
func (e *ToolError) Is(target error) bool {
	switch target {
	case ErrRecordNotFound:
		return strings.Contains(e.Message, "is not on the board")
	case ErrInvalidMove:
		return strings.HasPrefix(e.Message, "Cannot move ")
	}
	return false
}
