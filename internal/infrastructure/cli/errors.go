package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/swimlane/pkg/application"
	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
)

// ErrNotInitialized is returned when a command needs a workspace that does
// not exist.
var ErrNotInitialized = errors.New("workspace not initialized")

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

func fieldNames() string {
	names := make([]string, 0, len(board.AllFields()))
	for _, f := range board.AllFields() {
		names = append(names, f.String())
	}
	return strings.Join(names, ", ")
}

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	var dropErr *board.InvalidDropError
	if errors.As(err, &dropErr) {
		hint := "Run 'swimlane show' to list the columns"
		if errors.Is(dropErr.Reason, board.ErrNoParentMatch) {
			hint = fmt.Sprintf("Record '%s' belongs to a project without that column; pick another one", dropErr.RecordID)
		}
		return NewCLIError("cannot move record", hint, err)
	}

	var persistErr *board.PersistenceError
	if errors.As(err, &persistErr) {
		return NewCLIError(
			fmt.Sprintf("storage rejected the move of '%s'", persistErr.RecordID),
			"The board was rolled back; check that .swimlane/records.json is writable",
			err,
		)
	}

	switch {
	case errors.Is(err, ErrNotInitialized):
		return NewCLIError("no workspace found", "Run 'swimlane init' to create one", err)
	case errors.Is(err, application.ErrAlreadyInitialized):
		return NewCLIError("workspace already exists", "Edit .swimlane/ directly or start in another directory", err)
	case errors.Is(err, board.ErrUnknownField):
		return NewCLIError("unknown grouping field", "Use one of: "+fieldNames(), err)
	case errors.Is(err, board.ErrRecordNotFound):
		return NewCLIError("record not found", "Run 'swimlane show' to list records", err)
	case errors.Is(err, board.ErrReconcileStalled):
		return NewCLIError("move was never confirmed", "Stored data did not reflect the write in time; run 'swimlane show'", err)
	}

	return err
}

func reportError(w io.Writer, err error) {
	err = MapError(err)
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		_, _ = fmt.Fprintf(w, "Error: %s\n", cliErr.Error())
		if cliErr.Hint != "" {
			_, _ = fmt.Fprintf(w, "Hint: %s\n", cliErr.Hint)
		}
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}
