package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/mcp-go/client"
)

// SchemaURI names the schema resource.
const SchemaURI = "swimlane://schema"

// Client is a typed Go client for the Swimlane MCP server.
type Client struct {
	mcp      *client.Client
	retryCfg retry.Config
	timeout  time.Duration
}

// NewClient creates a new SDK client wrapping the given MCP transport.
func NewClient(transport client.Transport, opts ...Option) *Client {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Client{
		mcp:     client.New(transport, client.WithTimeout(o.timeout)),
		timeout: o.timeout,
		retryCfg: retry.Config{
			MaxAttempts:   o.maxAttempts,
			InitialDelay:  o.initialDelay,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Initialize performs the MCP initialize handshake.
func (c *Client) Initialize(ctx context.Context) (*client.ServerInfo, error) {
	return c.mcp.Initialize(ctx)
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.mcp.Close()
}

// call invokes a tool with retry. Tool errors are not retried.
func (c *Client) call(ctx context.Context, tool string, args map[string]any) (*client.ToolResult, error) {
	r := retry.New[*client.ToolResult](c.retryCfg)
	result, err := r.Do(ctx, func(ctx context.Context) (*client.ToolResult, error) {
		return c.mcp.CallTool(ctx, tool, args)
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", tool, err)
	}
	if result.IsError {
		msg := ""
		if len(result.Content) > 0 {
			msg = result.Content[0].Text
		}
		return nil, &ToolError{Tool: tool, Message: msg}
	}
	return result, nil
}

// unmarshalText extracts Content[0].Text from a tool result and unmarshals it as JSON.
func unmarshalText[T any](result *client.ToolResult) (*T, error) {
	text, err := textResult(result)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return &v, nil
}

// textResult extracts Content[0].Text from a tool result.
func textResult(result *client.ToolResult) (string, error) {
	if len(result.Content) == 0 {
		return "", ErrNoContent
	}
	return result.Content[0].Text, nil
}

// --- Schema ---

// GetSchema reads the schema resource from the server.
func (c *Client) GetSchema(ctx context.Context) (*SchemaInfo, error) {
	rc, err := c.mcp.ReadResource(ctx, SchemaURI)
	if err != nil {
		return nil, fmt.Errorf("read schema resource: %w", err)
	}
	var info SchemaInfo
	if err := json.Unmarshal([]byte(rc.Text), &info); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return &info, nil
}

// Compatible checks if the server schema is compatible with this SDK version.
// Returns nil if compatible, error with details if not.
func (c *Client) Compatible(ctx context.Context) error {
	info, err := c.GetSchema(ctx)
	if err != nil {
		return fmt.Errorf("check compatibility: %w", err)
	}
	serverMajor := majorVersion(info.SchemaVersion)
	if serverMajor != SupportedSchemaMajor {
		return fmt.Errorf("incompatible schema: server=%s (major %s), sdk supports major %s",
			info.SchemaVersion, serverMajor, SupportedSchemaMajor)
	}
	return nil
}

// majorVersion extracts the major version from a semver string.
func majorVersion(v string) string {
	for i, ch := range v {
		if ch == '.' {
			return v[:i]
		}
	}
	return v
}

// --- Board ---

// Board retrieves the board, optionally regrouped or searched. Regrouping
// persists on the server for later calls.
func (c *Client) Board(ctx context.Context, req BoardRequest) (*Board, error) {
	args := map[string]any{}
	if req.GroupBy != "" {
		args["group_by"] = req.GroupBy
	}
	if req.Search != "" {
		args["search"] = req.Search
	}
	res, err := c.call(ctx, "swimlane_board", args)
	if err != nil {
		return nil, err
	}
	return unmarshalText[Board](res)
}

// Move moves a record to the column whose key or label is target.
func (c *Client) Move(ctx context.Context, recordID, target string) (*MoveResult, error) {
	res, err := c.call(ctx, "swimlane_move", map[string]any{"record_id": recordID, "target": target})
	if err != nil {
		return nil, err
	}
	return unmarshalText[MoveResult](res)
}

// Record retrieves one record as shown on the board.
func (c *Client) Record(ctx context.Context, recordID string) (*Record, error) {
	res, err := c.call(ctx, "swimlane_record", map[string]any{"record_id": recordID})
	if err != nil {
		return nil, err
	}
	return unmarshalText[Record](res)
}

// History returns the move history of one record. A record that was never
// moved has zero counts.
func (c *Client) History(ctx context.Context, recordID string) (*MoveHistory, error) {
	res, err := c.call(ctx, "swimlane_history", map[string]any{"record_id": recordID})
	if err != nil {
		return nil, err
	}
	return unmarshalText[MoveHistory](res)
}

// Histories returns the move history of every record that was moved.
func (c *Client) Histories(ctx context.Context) ([]MoveHistory, error) {
	res, err := c.call(ctx, "swimlane_history", nil)
	if err != nil {
		return nil, err
	}
	all, err := unmarshalText[[]MoveHistory](res)
	if err != nil {
		return nil, err
	}
	return *all, nil
}
