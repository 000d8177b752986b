package history

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"apiscope/internal/storage"
	"apiscope/internal/tui/styles"
)

const listLimit = 200

type Model struct {
	Store *storage.RunStore
	Table table.Model
	Err   error

	items []storage.HistoryItem

	Width  int
	Height int
}

func NewModel(store *storage.RunStore) Model {
	columns := []table.Column{
		{Title: "Time", Width: 20},
		{Title: "Target", Width: 8},
		{Title: "Workers", Width: 8},
		{Title: "Reqs", Width: 8},
		{Title: "Success", Width: 8},
		{Title: "Fail", Width: 6},
		{Title: "P99 ms", Width: 9},
		{Title: "Elapsed", Width: 9},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	m := Model{
		Store: store,
		Table: t,
	}
	m.Refresh()
	return m
}

func (m *Model) Refresh() {
	if m.Store == nil {
		return
	}
	items, err := m.Store.List(listLimit)
	m.Err = err
	m.items = items

	rows := make([]table.Row, len(items))
	for i, item := range items {
		rows[i] = table.Row{
			item.Timestamp.Format(time.RFC822),
			string(item.Config.Target),
			fmt.Sprintf("%d", item.Summary.Workers),
			fmt.Sprintf("%d", item.Summary.TotalRequests),
			fmt.Sprintf("%d", item.Summary.Success),
			fmt.Sprintf("%d", item.Summary.Fail),
			fmt.Sprintf("%.2f", item.Summary.P99LatencyMs),
			time.Duration(item.Summary.ElapsedMs * float64(time.Millisecond)).Round(time.Millisecond).String(),
		}
	}
	m.Table.SetRows(rows)
}

// Selected returns the highlighted run, or nil when the table is empty.
func (m Model) Selected() *storage.HistoryItem {
	i := m.Table.Cursor()
	if i < 0 || i >= len(m.items) {
		return nil
	}
	item := m.items[i]
	return &item
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetWidth(msg.Width - 4)
		if msg.Height > 8 {
			m.Table.SetHeight(msg.Height - 8)
		}
	}

	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Err != nil {
		return styles.Error.Render(fmt.Sprintf("history unavailable: %v", m.Err))
	}
	if len(m.items) == 0 {
		return styles.Subtle.Render("No load runs recorded yet. Run `apiscope load` first.")
	}
	return styles.Box.Render(m.Table.View())
}
