package cli

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/swimlane/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
)

var moveCmd = &cobra.Command{
	Use:   "move <record-id> <column>",
	Short: "Move a record to the column with the given key or label",
	Long: `Move a record to another column. Only the attribute behind the current
grouping is written; the command waits until the write is confirmed or
rolled back.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		recordID, target := args[0], args[1]

		var (
			mu      sync.Mutex
			failure error
		)
		services, err := loadServicesForCurrentDir(cmd.Context(), wiring.BuildOptions{
			Actor: "cli",
			OnFailure: func(_ board.PendingMove, err error) {
				mu.Lock()
				failure = err
				mu.Unlock()
			},
		})
		if err != nil {
			return MapError(err)
		}
		defer services.Close()

		svc := services.Board
		res, err := svc.Move(cmd.Context(), recordID, target)
		if err != nil {
			return MapError(err)
		}

		out := cmd.OutOrStdout()
		switch res.Outcome {
		case board.OutcomeInvalid:
			return MapError(res.Err)
		case board.OutcomeNoop:
			_, _ = fmt.Fprintf(out, "%s is already in %s\n", recordID, target)
			return nil
		}

		svc.Wait()
		mu.Lock()
		err = failure
		mu.Unlock()
		if err != nil {
			return MapError(err)
		}

		state := svc.State()
		label := res.Move.TargetKey
		if col, ok := state.View().Column(res.Move.TargetKey); ok {
			label = col.Label
		}
		_, _ = fmt.Fprintf(out, "Moved %s to %s (%s)\n", recordID, label, res.Move.Patch.Field.BackingField())
		if state.IsPending(recordID) {
			_, _ = fmt.Fprintln(out, subtleStyle.Render("Stored data has not caught up yet; the move stays pending."))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(moveCmd)
}
