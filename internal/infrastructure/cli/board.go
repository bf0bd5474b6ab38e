package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/swimlane/internal/infrastructure/watch"
	"github.com/felixgeelhaar/swimlane/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/swimlane/pkg/application"
	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
)

var boardCmd = &cobra.Command{
	Use:     "board",
	Aliases: []string{"tui", "dashboard"},
	Short:   "Interactive board: pick cards up and drop them on other columns",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("SWIMLANE_SKIP_BOARD_RUN") == "true" {
			return nil
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		var p *tea.Program
		services, err := loadServicesForCurrentDir(ctx, wiring.BuildOptions{
			Actor: "tui",
			OnFailure: func(m board.PendingMove, err error) {
				if p != nil {
					go p.Send(failureMsg{recordID: m.RecordID, err: err})
				}
			},
		})
		if err != nil {
			return MapError(err)
		}
		defer services.Close()

		ws := services.Workspace
		watcher, err := watch.NewWorkspaceWatcher(ws.Repo.Dir(), ws.Config.WatchDebounce, ws.Publisher, ws.Logger)
		if err != nil {
			return fmt.Errorf("failed to watch workspace: %w", err)
		}
		go func() { _ = watcher.Run(ctx) }()

		p = tea.NewProgram(newBoardModel(ctx, services.Board), tea.WithAltScreen(), tea.WithContext(ctx))
		unsubscribe := services.Board.Store().Subscribe(func(board.State) {
			go p.Send(refreshMsg{})
		})
		defer unsubscribe()

		if _, err := p.Run(); err != nil {
			return fmt.Errorf("board run failed: %w", err)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(boardCmd)
}

// boardController is the part of the board service the TUI drives.
type boardController interface {
	View() application.BoardView
	BeginDrag(recordID string) error
	Hover(columnKey string) error
	CancelDrag() error
	Drop(ctx context.Context, columnKey string) (board.DropResult, error)
	SetGrouping(ctx context.Context, f board.Field) error
	Refresh(ctx context.Context) error
}

type (
	refreshMsg struct{}
	failureMsg struct {
		recordID string
		err      error
	}
	statusMsg struct {
		text string
		err  error
	}
)

type boardKeyMap struct {
	Left, Right, Up, Down key.Binding
	Pick, Drop, Cancel    key.Binding
	Group, Refresh        key.Binding
	Help, Quit            key.Binding
}

func (k boardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pick, k.Drop, k.Cancel, k.Group, k.Help, k.Quit}
}

func (k boardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.Pick, k.Drop, k.Cancel},
		{k.Group, k.Refresh, k.Help, k.Quit},
	}
}

var defaultBoardKeys = boardKeyMap{
	Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "column left")),
	Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "column right")),
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "card up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "card down")),
	Pick:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pick up")),
	Drop:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop")),
	Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Group:   key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "next grouping")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type boardModel struct {
	ctx    context.Context
	ctrl   boardController
	view   application.BoardView
	keys   boardKeyMap
	help   help.Model
	col    int
	card   int
	picked string
	status string
	err    error
}

func newBoardModel(ctx context.Context, ctrl boardController) boardModel {
	return boardModel{
		ctx:  ctx,
		ctrl: ctrl,
		view: ctrl.View(),
		keys: defaultBoardKeys,
		help: help.New(),
	}
}

func (m boardModel) Init() tea.Cmd { return nil }

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	case refreshMsg:
		m.sync()
	case failureMsg:
		m.sync()
		m.status, m.err = fmt.Sprintf("%s was rolled back", msg.recordID), msg.err
	case statusMsg:
		m.sync()
		m.status, m.err = msg.text, msg.err
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m boardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.picked != "" {
			_ = m.ctrl.CancelDrag()
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Left):
		m.moveColumn(-1)
	case key.Matches(msg, m.keys.Right):
		m.moveColumn(1)
	case key.Matches(msg, m.keys.Up):
		if m.picked == "" && m.card > 0 {
			m.card--
		}
	case key.Matches(msg, m.keys.Down):
		if m.picked == "" && m.card < len(m.cards())-1 {
			m.card++
		}
	case key.Matches(msg, m.keys.Pick):
		if m.picked != "" {
			return m.drop()
		}
		m.pick()
	case key.Matches(msg, m.keys.Drop):
		if m.picked != "" {
			return m.drop()
		}
	case key.Matches(msg, m.keys.Cancel):
		if m.picked != "" {
			_ = m.ctrl.CancelDrag()
			id := m.picked
			m.picked = ""
			m.status, m.err = "Move cancelled", nil
			m.locate(id)
		}
	case key.Matches(msg, m.keys.Group):
		if m.picked == "" {
			return m, m.nextGrouping()
		}
	case key.Matches(msg, m.keys.Refresh):
		ctx, ctrl := m.ctx, m.ctrl
		return m, func() tea.Msg {
			if err := ctrl.Refresh(ctx); err != nil {
				return statusMsg{text: "Refresh failed", err: err}
			}
			return statusMsg{text: "Refreshed"}
		}
	}
	return m, nil
}

func (m *boardModel) pick() {
	cards := m.cards()
	if m.card >= len(cards) {
		return
	}
	id := cards[m.card].ID
	if err := m.ctrl.BeginDrag(id); err != nil {
		m.status, m.err = "Cannot pick up "+id, err
		return
	}
	m.picked = id
	_ = m.ctrl.Hover(m.columnKey())
	m.status, m.err = fmt.Sprintf("Moving %s: choose a column and press enter", id), nil
}

func (m boardModel) drop() (tea.Model, tea.Cmd) {
	id := m.picked
	res, err := m.ctrl.Drop(m.ctx, m.columnKey())
	m.picked = ""
	switch {
	case err != nil:
		m.status, m.err = "Drop failed", err
	case res.Outcome == board.OutcomeApplied:
		m.status, m.err = fmt.Sprintf("Moved %s, saving…", id), nil
	case res.Outcome == board.OutcomeNoop:
		m.status, m.err = fmt.Sprintf("%s stays where it is", id), nil
	case res.Outcome == board.OutcomeInvalid:
		m.status, m.err = fmt.Sprintf("Cannot move %s there", id), res.Err
	}
	m.view = m.ctrl.View()
	m.locate(id)
	return m, nil
}

func (m boardModel) nextGrouping() tea.Cmd {
	fields := board.AllFields()
	next := fields[0]
	for i, f := range fields {
		if f == m.view.Field {
			next = fields[(i+1)%len(fields)]
			break
		}
	}
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		if err := ctrl.SetGrouping(ctx, next); err != nil {
			return statusMsg{text: "Regrouping failed", err: err}
		}
		return statusMsg{text: "Grouped by " + next.String()}
	}
}

func (m *boardModel) moveColumn(delta int) {
	n := len(m.view.Columns)
	if n == 0 {
		return
	}
	m.col = (m.col + delta + n) % n
	m.card = 0
	if m.picked != "" {
		_ = m.ctrl.Hover(m.columnKey())
	}
}

// sync reloads the view and keeps the cursor on the same card when it still
// exists.
func (m *boardModel) sync() {
	var current string
	if cards := m.cards(); m.card < len(cards) {
		current = cards[m.card].ID
	}
	m.view = m.ctrl.View()
	if m.picked != "" {
		m.clamp()
		return
	}
	m.locate(current)
}

func (m *boardModel) locate(id string) {
	if id != "" {
		for i, c := range m.view.Columns {
			for j, card := range c.Cards {
				if card.ID == id {
					m.col, m.card = i, j
					return
				}
			}
		}
	}
	m.clamp()
}

func (m *boardModel) clamp() {
	if m.col >= len(m.view.Columns) {
		m.col = max(len(m.view.Columns)-1, 0)
	}
	if n := len(m.cards()); m.card >= n {
		m.card = max(n-1, 0)
	}
}

func (m boardModel) cards() []application.CardView {
	if m.col < len(m.view.Columns) {
		return m.view.Columns[m.col].Cards
	}
	return nil
}

func (m boardModel) columnKey() string {
	if m.col < len(m.view.Columns) {
		return m.view.Columns[m.col].Key
	}
	return ""
}

func (m boardModel) View() string {
	cur := boardCursor{Column: m.col, Card: m.card, Picked: m.picked}
	if m.picked != "" {
		cur.Card = -1
		cur.Hover = m.columnKey()
	}

	header := headerStyle.Render(fmt.Sprintf("Swimlane · grouped by %s", m.view.Field))
	if m.view.Pending > 0 {
		header += pendingStyle.Render(fmt.Sprintf("  %d saving", m.view.Pending))
	}

	status := subtleStyle.Render(m.status)
	if m.err != nil {
		status = errStyle.Render(fmt.Sprintf("%s: %v", m.status, m.err))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		renderBoard(m.view, cur),
		status,
		m.help.View(m.keys),
	) + "\n"
}
