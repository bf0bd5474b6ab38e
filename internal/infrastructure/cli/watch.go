package cli

import (
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/swimlane/internal/infrastructure/sse"
	"github.com/felixgeelhaar/swimlane/internal/infrastructure/watch"
	"github.com/felixgeelhaar/swimlane/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/swimlane/pkg/domain/events"
)

var watchTypes string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow workspace changes and board refreshes as they happen",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		services, err := loadServicesForCurrentDir(ctx, wiring.BuildOptions{Actor: "watch"})
		if err != nil {
			return MapError(err)
		}
		defer services.Close()

		ws := services.Workspace
		watcher, err := watch.NewWorkspaceWatcher(ws.Repo.Dir(), ws.Config.WatchDebounce, ws.Publisher, ws.Logger)
		if err != nil {
			return fmt.Errorf("failed to watch workspace: %w", err)
		}

		out := cmd.OutOrStdout()
		filter := sse.ParseTypeFilter(watchTypes)
		var mu sync.Mutex
		unsubscribe := ws.Publisher.Subscribe(func(e *events.BaseEvent) error {
			if !filter.Allows(e.Type) {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			_, _ = fmt.Fprintf(out, "%s %-18s %s\n", e.Timestamp.Local().Format(time.TimeOnly), e.Type, describeEvent(e))
			return nil
		})
		defer unsubscribe()

		_, _ = fmt.Fprintf(out, "Watching %s for changes... (Ctrl+C to stop)\n", ws.Repo.Dir())
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func describeEvent(e *events.BaseEvent) string {
	switch e.Type {
	case events.EventTypeRecordChanged, events.EventTypeMetadataChanged:
		if e.AggregateID_ != "" {
			return e.AggregateID_
		}
		return "from " + e.String("source")
	case events.EventTypeBoardRefreshed:
		return fmt.Sprintf("%d records by %s", e.Int("records"), e.String("field"))
	default:
		return fmt.Sprintf("%s %s=%s", e.AggregateID_, e.String("field"), e.String("value"))
	}
}

func init() {
	watchCmd.Flags().StringVar(&watchTypes, "types", "", "Comma separated event types to print (default all)")
	RootCmd.AddCommand(watchCmd)
}
