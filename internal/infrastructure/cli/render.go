package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/swimlane/pkg/application"
)

const columnWidth = 28

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(1).
			PaddingRight(1)

	columnStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Width(columnWidth).
			Padding(0, 1)

	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	pickedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// namedColors maps metadata color names to ANSI 256 codes. Hex values pass
// through unchanged.
var namedColors = map[string]string{
	"gray":   "245",
	"grey":   "245",
	"red":    "196",
	"orange": "208",
	"yellow": "220",
	"green":  "42",
	"teal":   "37",
	"blue":   "33",
	"purple": "135",
	"pink":   "205",
}

func labelColor(name string) lipgloss.Color {
	if strings.HasPrefix(name, "#") {
		return lipgloss.Color(name)
	}
	if code, ok := namedColors[strings.ToLower(name)]; ok {
		return lipgloss.Color(code)
	}
	return lipgloss.Color("252")
}

// boardCursor marks what the board renderer highlights.
type boardCursor struct {
	Column int
	Card   int
	Picked string
	Hover  string
}

var noCursor = boardCursor{Column: -1, Card: -1}

func renderBoard(v application.BoardView, cur boardCursor) string {
	cols := make([]string, 0, len(v.Columns))
	for i, c := range v.Columns {
		cols = append(cols, renderColumn(c, i, cur))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func renderColumn(c application.ColumnView, idx int, cur boardCursor) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(labelColor(c.Color)).
		Render(fmt.Sprintf("%s (%d)", c.Label, len(c.Cards)))
	lines := []string{title, ""}
	if len(c.Cards) == 0 {
		lines = append(lines, subtleStyle.Render("no records"))
	}
	for j, card := range c.Cards {
		text := truncate(card.ID+" "+card.Title, columnWidth-2)
		switch {
		case idx == cur.Column && j == cur.Card:
			text = cursorStyle.Render(text)
		case card.ID == cur.Picked:
			text = pickedStyle.Render(text)
		}
		lines = append(lines, text)
		if card.Subtitle != "" {
			lines = append(lines, subtleStyle.Render("  "+truncate(card.Subtitle, columnWidth-4)))
		}
		if card.Pending {
			lines = append(lines, pendingStyle.Render("  saving…"))
		}
	}

	style := columnStyle
	if c.Key == cur.Hover {
		style = style.BorderForeground(lipgloss.Color("208"))
	} else if idx == cur.Column {
		style = style.BorderForeground(lipgloss.Color("57"))
	}
	return style.Render(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
