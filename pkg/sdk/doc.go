// Package sdk provides a typed Go client for the Swimlane MCP server.
//
// The client wraps mcp-go/client.CallTool with one method per MCP tool,
// connection management, and automatic retry via fortify.
//
// Usage:
//
//	transport, _ := client.NewStdioTransport("swimlane", "mcp")
//	c := sdk.NewClient(transport)
//	defer c.Close()
//
//	_, _ = c.Initialize(ctx)
//	res, _ := c.Move(ctx, "SW-3", "Done")
//	fmt.Println(res.Outcome)
package sdk
