package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/swimlane/internal/infrastructure/sse"
	"github.com/felixgeelhaar/swimlane/internal/infrastructure/watch"
	"github.com/felixgeelhaar/swimlane/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/swimlane/pkg/infrastructure/dashboard"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the board over HTTP with live updates",
	Long: `Serve the board page, a JSON API (/api/board, /api/move), a server-sent
event stream (/events) and an interactive websocket (/ws). Edits to the
workspace files are picked up and pushed to connected clients.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		services, err := loadServicesForCurrentDir(ctx, wiring.BuildOptions{Actor: "web"})
		if err != nil {
			return MapError(err)
		}
		defer services.Close()

		ws := services.Workspace
		addr := serveAddr
		if addr == "" {
			addr = ws.Config.Addr
		}

		hub := sse.NewHub(ws.Publisher)
		defer hub.Close()

		watcher, err := watch.NewWorkspaceWatcher(ws.Repo.Dir(), ws.Config.WatchDebounce, ws.Publisher, ws.Logger)
		if err != nil {
			return fmt.Errorf("failed to watch workspace: %w", err)
		}

		server, err := dashboard.NewServer(addr, services.Board,
			dashboard.WithHandler("GET /events", sse.NewSSEHandler(hub, ws.Logger)),
			dashboard.WithHandler("GET /ws", sse.NewWSHandler(hub, services.Board, ws.Logger)),
			dashboard.WithLogger(ws.Logger),
		)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving board on %s (Ctrl+C to stop)\n", addr)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return watcher.Run(gctx) })
		g.Go(func() error { return server.Start(gctx) })
		if err := g.Wait(); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to addr in config.yaml)")
	RootCmd.AddCommand(serveCmd)
}
