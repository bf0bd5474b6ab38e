package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	inframcp "github.com/felixgeelhaar/swimlane/internal/infrastructure/mcp"
	"github.com/felixgeelhaar/swimlane/internal/infrastructure/watch"
)

var (
	mcpTransport string
	mcpAddr      string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Swimlane MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("SWIMLANE_SKIP_MCP_START") == "true" {
			return nil
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		server, err := inframcp.NewServer(ctx, root)
		if err != nil {
			return MapError(err)
		}
		defer server.Close()

		ws := server.Workspace()
		watcher, err := watch.NewWorkspaceWatcher(ws.Repo.Dir(), ws.Config.WatchDebounce, ws.Publisher, ws.Logger)
		if err != nil {
			return fmt.Errorf("failed to watch workspace: %w", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				ws.Logger.Warn("workspace watcher stopped", "error", err)
			}
		}()

		switch strings.ToLower(mcpTransport) {
		case "stdio", "":
			err = server.ServeStdio(ctx)
		case "http":
			err = server.ServeHTTP(ctx, mcpAddr)
		case "ws", "websocket":
			err = server.ServeWebSocket(ctx, mcpAddr)
		default:
			err = NewCLIError(fmt.Sprintf("unsupported transport: %s", mcpTransport), "Use stdio, http or ws", nil)
		}
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "stdio", "Transport to use (stdio, http, ws)")
	mcpCmd.Flags().StringVar(&mcpAddr, "addr", ":8080", "Address for http/ws transports")
	RootCmd.AddCommand(mcpCmd)
}
