package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/swimlane/internal/infrastructure/webhook"
	"github.com/felixgeelhaar/swimlane/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/swimlane/pkg/domain/events"
)

var (
	historyVerify      bool
	historyJSON        bool
	historyDeadLetters bool
)

var historyCmd = &cobra.Command{
	Use:   "history [record-id]",
	Short: "Show past moves and their outcomes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir(cmd.Context(), wiring.BuildOptions{})
		if err != nil {
			return MapError(err)
		}
		defer services.Close()

		history := services.History
		out := cmd.OutOrStdout()

		if historyVerify {
			violations, err := history.VerifyIntegrity()
			if err != nil {
				return fmt.Errorf("failed to verify event log: %w", err)
			}
			if len(violations) == 0 {
				_, _ = fmt.Fprintln(out, okStyle.Render("Event log intact"))
				return nil
			}
			for _, v := range violations {
				_, _ = fmt.Fprintln(out, errStyle.Render(v))
			}
			return NewCLIError(fmt.Sprintf("event log has %d integrity violations", len(violations)), "Restore .swimlane/events.jsonl from a backup", nil)
		}

		if historyDeadLetters {
			entries, err := services.DeadLetter.ReadAll()
			if err != nil {
				return fmt.Errorf("failed to read dead letters: %w", err)
			}
			if historyJSON {
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(out, "No undelivered webhooks")
				return nil
			}
			_, _ = fmt.Fprintln(out, deadLetterTable(entries))
			return nil
		}

		if len(args) == 1 {
			evs, err := history.Events(args[0])
			if err != nil {
				return fmt.Errorf("failed to read events: %w", err)
			}
			if historyJSON {
				return writeJSON(cmd, evs)
			}
			if len(evs) == 0 {
				_, _ = fmt.Fprintf(out, "No moves recorded for %s\n", args[0])
				return nil
			}
			_, _ = fmt.Fprintln(out, eventTable(evs))
			return nil
		}

		all := history.All()
		if historyJSON {
			return writeJSON(cmd, all)
		}
		if len(all) == 0 {
			_, _ = fmt.Fprintln(out, "No moves recorded yet")
			return nil
		}
		_, _ = fmt.Fprintln(out, summaryTable(all))
		return nil
	},
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func staticTable(columns []table.Column, rows []table.Row) string {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true)
	s.Selected = lipgloss.NewStyle()

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithStyles(s),
		table.WithHeight(len(rows)+2),
	)
	return t.View()
}

func summaryTable(all []events.MoveHistory) string {
	rows := make([]table.Row, 0, len(all))
	for _, h := range all {
		rows = append(rows, table.Row{
			h.RecordID,
			strconv.Itoa(h.Applied),
			strconv.Itoa(h.Settled),
			strconv.Itoa(h.Failed),
			strconv.Itoa(h.Stalled),
			h.LastOutcome,
			h.LastField + "=" + h.LastValue,
			h.LastAt.Format("2006-01-02 15:04"),
		})
	}
	return staticTable([]table.Column{
		{Title: "Record", Width: 12},
		{Title: "Applied", Width: 7},
		{Title: "Settled", Width: 7},
		{Title: "Failed", Width: 6},
		{Title: "Stalled", Width: 7},
		{Title: "Last", Width: 14},
		{Title: "Write", Width: 24},
		{Title: "When", Width: 16},
	}, rows)
}

func eventTable(evs []*events.BaseEvent) string {
	rows := make([]table.Row, 0, len(evs))
	for _, e := range evs {
		rows = append(rows, table.Row{
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Type,
			e.String("field") + "=" + e.String("value"),
			e.String("target_key"),
			e.Actor,
		})
	}
	return staticTable([]table.Column{
		{Title: "When", Width: 19},
		{Title: "Event", Width: 14},
		{Title: "Write", Width: 24},
		{Title: "Column", Width: 16},
		{Title: "Actor", Width: 10},
	}, rows)
}

func deadLetterTable(entries []webhook.DeadLetter) string {
	rows := make([]table.Row, 0, len(entries))
	for _, dl := range entries {
		rows = append(rows, table.Row{
			dl.Timestamp.Format("2006-01-02 15:04:05"),
			dl.WebhookName,
			dl.EventType,
			strconv.Itoa(dl.Attempts),
			dl.Error,
		})
	}
	return staticTable([]table.Column{
		{Title: "When", Width: 19},
		{Title: "Webhook", Width: 12},
		{Title: "Event", Width: 14},
		{Title: "Tries", Width: 5},
		{Title: "Error", Width: 40},
	}, rows)
}

func init() {
	historyCmd.Flags().BoolVar(&historyVerify, "verify", false, "Verify the hash chain of the event log")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print history as JSON")
	historyCmd.Flags().BoolVar(&historyDeadLetters, "dead-letters", false, "List webhook deliveries that exhausted their retries")
	RootCmd.AddCommand(historyCmd)
}
