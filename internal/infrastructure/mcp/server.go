// Package mcp exposes the board to MCP clients.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/swimlane/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/swimlane/pkg/application"
	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
	"github.com/felixgeelhaar/swimlane/pkg/domain/events"
)

type Server struct {
	mcpServer *mcp.Server
	services  *wiring.AppServices
	root      string
}

var (
	Version     = "dev"
	BuildCommit = "unknown"
	BuildDate   = "unknown"
)

// mcpErr returns a user-friendly error for MCP clients.
// Internal details are omitted; only the friendly message is returned.
func mcpErr(friendly string) error {
	return errors.New(friendly)
}

// NewServer wires and loads the board under root.
func NewServer(ctx context.Context, root string) (*Server, error) {
	services, err := wiring.BuildAppServices(root, wiring.BuildOptions{Actor: "ai-agent"})
	if err != nil {
		return nil, fmt.Errorf("build services: %w", err)
	}
	if err := services.Board.Load(ctx); err != nil {
		services.Close()
		return nil, fmt.Errorf("load board: %w", err)
	}

	info := mcp.ServerInfo{
		Name:    "swimlane",
		Version: Version,
	}
	s := &Server{
		mcpServer: mcp.NewServer(info,
			mcp.WithTitle("Swimlane MCP Server"),
			mcp.WithDescription("Swimlane exposes a grouped task board and lets agents move cards between columns."),
			mcp.WithWebsiteURL("https://github.com/felixgeelhaar/swimlane"),
			mcp.WithBuildInfo(BuildCommit, BuildDate),
			mcp.WithInstructions("Read the board with swimlane_board, then move records with swimlane_move using a column key or label."),
		),
		services: services,
		root:     root,
	}

	s.registerTools()
	s.registerSchemaResource()
	return s, nil
}

type BoardArgs struct {
	GroupBy string `json:"group_by,omitempty" jsonschema:"description=Field to group by: status, assignee, project, delivery_date or due_date"`
	Search  string `json:"search,omitempty" jsonschema:"description=Case-insensitive text matched against title and description"`
}

type MoveArgs struct {
	RecordID string `json:"record_id" jsonschema:"description=The record to move"`
	Target   string `json:"target" jsonschema:"description=Column key or label to move the record to"`
}

type RecordArgs struct {
	RecordID string `json:"record_id" jsonschema:"description=The record to look up"`
}

type HistoryArgs struct {
	RecordID string `json:"record_id,omitempty" jsonschema:"description=Limit the history to one record"`
}

// MoveResult reports a move to the client.
type MoveResult struct {
	RecordID string `json:"record_id"`
	Outcome  string `json:"outcome"`
	Column   string `json:"column,omitempty"`
	Pending  bool   `json:"pending"`
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("swimlane_board").
		Description("Retrieve the board as columns of cards, optionally regrouped or searched").
		Handler(s.handleBoard)

	s.mcpServer.Tool("swimlane_move").
		Description("Move a record to another column; the change is applied at once and persisted in the background").
		Handler(s.handleMove)

	s.mcpServer.Tool("swimlane_record").
		Description("Retrieve one record as currently shown on the board").
		Handler(s.handleRecord)

	s.mcpServer.Tool("swimlane_history").
		Description("Summarise past moves and their outcomes").
		Handler(s.handleHistory)
}

func (s *Server) handleBoard(ctx context.Context, args BoardArgs) (any, error) {
	svc := s.services.Board
	if args.GroupBy != "" {
		f, err := board.ParseField(args.GroupBy)
		if err != nil {
			return nil, mcpErr(fmt.Sprintf("Unknown grouping field '%s'. Use status, assignee, project, delivery_date or due_date.", args.GroupBy))
		}
		if err := svc.SetGrouping(ctx, f); err != nil {
			return nil, mcpErr("Failed to regroup the board. Check that the workspace files are readable.")
		}
	}
	if err := svc.SetQuery(ctx, args.Search, nil); err != nil {
		return nil, mcpErr("Failed to load the board. Ensure the workspace is initialized with 'swimlane init'.")
	}
	return svc.View(), nil
}

func (s *Server) handleMove(ctx context.Context, args MoveArgs) (any, error) {
	svc := s.services.Board
	res, err := svc.Move(ctx, args.RecordID, args.Target)
	if err != nil {
		return nil, mcpErr(fmt.Sprintf("Record '%s' is not on the board.", args.RecordID))
	}
	switch res.Outcome {
	case board.OutcomeInvalid:
		return nil, mcpErr(fmt.Sprintf("Cannot move '%s' to '%s': %v.", args.RecordID, args.Target, res.Err))
	case board.OutcomeApplied:
		// Let the write land so the reply reflects storage.
		svc.Wait()
	}

	state := svc.State()
	out := MoveResult{RecordID: args.RecordID, Outcome: res.Outcome.String(), Pending: state.IsPending(args.RecordID)}
	if key, ok := state.View().ColumnOf(args.RecordID); ok {
		if col, ok := state.View().Column(key); ok {
			out.Column = col.Label
		}
	}
	if res.Outcome == board.OutcomeApplied {
		if h, ok := s.services.History.History(args.RecordID); ok && h.LastOutcome == events.EventTypeMoveFailed {
			out.Outcome = "failed"
		}
	}
	return out, nil
}

func (s *Server) handleRecord(_ context.Context, args RecordArgs) (any, error) {
	r, ok := s.services.Board.State().ViewRecord(args.RecordID)
	if !ok {
		return nil, mcpErr(fmt.Sprintf("Record '%s' is not on the board.", args.RecordID))
	}
	return r, nil
}

func (s *Server) handleHistory(_ context.Context, args HistoryArgs) (any, error) {
	history := s.services.History
	if args.RecordID == "" {
		return history.All(), nil
	}
	h, ok := history.History(args.RecordID)
	if !ok {
		return events.MoveHistory{RecordID: args.RecordID}, nil
	}
	return h, nil
}

// Workspace returns the workspace the server operates on.
func (s *Server) Workspace() *wiring.Workspace {
	return s.services.Workspace
}

// Board returns the service behind the tools.
func (s *Server) Board() *application.BoardService {
	return s.services.Board
}

func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr, mcp.WithDefaultCORS())
}

func (s *Server) ServeWebSocket(ctx context.Context, addr string) error {
	return mcp.ServeWebSocket(ctx, s.mcpServer, addr)
}

// Close waits for in-flight moves and releases the workspace.
func (s *Server) Close() {
	s.services.Close()
}
