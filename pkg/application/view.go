package application

import "github.com/felixgeelhaar/swimlane/pkg/domain/board"

// CardView is one record as rendered in a column.
type CardView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Pending  bool   `json:"pending,omitempty"`
}

// ColumnView is one rendered column.
type ColumnView struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Color string     `json:"color,omitempty"`
	Cards []CardView `json:"cards"`
}

// BoardView is the render model shared by the terminal, push and tool
// surfaces.
type BoardView struct {
	Field   board.Field  `json:"field"`
	Columns []ColumnView `json:"columns"`
	Pending int          `json:"pending"`
}

// NewBoardView flattens the state's current view into columns of cards.
func NewBoardView(s board.State) BoardView {
	g := s.View()
	v := BoardView{Field: s.Field, Columns: make([]ColumnView, 0, len(g.Columns)), Pending: len(s.Pending)}
	for _, c := range g.Columns {
		col := ColumnView{Key: c.Key, Label: c.Label, Color: c.Color, Cards: []CardView{}}
		for _, r := range g.Assignment[c.Key] {
			col.Cards = append(col.Cards, CardView{
				ID:       r.ID,
				Title:    r.Title,
				Subtitle: subtitle(s.Field, r),
				Pending:  s.IsPending(r.ID),
			})
		}
		v.Columns = append(v.Columns, col)
	}
	return v
}

// subtitle shows the attribute most useful next to the grouping one.
func subtitle(f board.Field, r board.Record) string {
	switch f {
	case board.FieldStatus:
		if r.AssigneeName != "" {
			return r.AssigneeName
		}
		return r.ProjectName
	case board.FieldAssignee, board.FieldProject:
		return r.StatusName
	default:
		return r.StatusName
	}
}

// Column returns the column with key.
func (v BoardView) Column(key string) (ColumnView, bool) {
	for _, c := range v.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return ColumnView{}, false
}
