package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/swimlane/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
)

var addRecord struct {
	id, description, status, assignee, project, delivery, due string
}

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a record to the board",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for name, v := range map[string]string{"delivery": addRecord.delivery, "due": addRecord.due} {
			if _, ok := board.ParseDate(v); v != "" && !ok {
				return NewCLIError(fmt.Sprintf("invalid --%s date %q", name, v), "Use YYYY-MM-DD", nil)
			}
		}

		ctx := cmd.Context()
		services, err := loadServicesForCurrentDir(ctx, wiring.BuildOptions{})
		if err != nil {
			return MapError(err)
		}
		defer services.Close()

		rec, err := services.Workspace.Repo.CreateRecord(ctx, board.Record{
			ID:           addRecord.id,
			Title:        strings.Join(args, " "),
			Description:  addRecord.description,
			StatusID:     addRecord.status,
			AssigneeID:   addRecord.assignee,
			ProjectID:    addRecord.project,
			DeliveryDate: addRecord.delivery,
			DueDate:      addRecord.due,
		})
		if err != nil {
			return MapError(err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added %s: %s\n", rec.ID, rec.Title)
		return nil
	},
}

// parseFilters turns repeated key=value flags into a query filter map.
func parseFilters(raw []string) (map[string][]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	filters := make(map[string][]string, len(raw))
	for _, f := range raw {
		key, value, ok := strings.Cut(f, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, NewCLIError(fmt.Sprintf("invalid filter %q", f), "Use attribute=value, e.g. project_id=web", nil)
		}
		filters[key] = append(filters[key], strings.TrimSpace(value))
	}
	return filters, nil
}

func init() {
	addCmd.Flags().StringVar(&addRecord.id, "id", "", "Record id (generated when empty)")
	addCmd.Flags().StringVar(&addRecord.description, "description", "", "Longer description")
	addCmd.Flags().StringVar(&addRecord.status, "status", "", "Status id")
	addCmd.Flags().StringVar(&addRecord.assignee, "assignee", "", "Assignee id")
	addCmd.Flags().StringVar(&addRecord.project, "project-id", "", "Project id")
	addCmd.Flags().StringVar(&addRecord.delivery, "delivery", "", "Delivery date (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&addRecord.due, "due", "", "Due date (YYYY-MM-DD)")
	RootCmd.AddCommand(addCmd)
}
