package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/swimlane/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
)

var (
	showGroupBy string
	showSearch  string
	showFilters []string
	showJSON    bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the board grouped into columns",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		services, err := loadServicesForCurrentDir(ctx, wiring.BuildOptions{})
		if err != nil {
			return MapError(err)
		}
		defer services.Close()

		svc := services.Board
		if showGroupBy != "" {
			field, err := board.ParseField(showGroupBy)
			if err != nil {
				return MapError(err)
			}
			if err := svc.SetGrouping(ctx, field); err != nil {
				return MapError(err)
			}
		}
		if showSearch != "" || len(showFilters) > 0 {
			filters, err := parseFilters(showFilters)
			if err != nil {
				return err
			}
			if err := svc.SetQuery(ctx, showSearch, filters); err != nil {
				return MapError(err)
			}
		}

		view := svc.View()
		out := cmd.OutOrStdout()
		if showJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}

		_, _ = fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Board grouped by %s", view.Field)))
		_, _ = fmt.Fprintln(out, renderBoard(view, noCursor))
		return nil
	},
}

func init() {
	showCmd.Flags().StringVar(&showGroupBy, "group-by", "", "Group by another field for this invocation")
	showCmd.Flags().StringVar(&showSearch, "search", "", "Only show records whose title or description contains the text")
	showCmd.Flags().StringArrayVar(&showFilters, "filter", nil, "Restrict an attribute to a value, e.g. --filter project_id=web (repeatable)")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the board as JSON")
	RootCmd.AddCommand(showCmd)
}
