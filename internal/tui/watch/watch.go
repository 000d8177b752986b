// Package watch renders observer rounds as they are recorded.
package watch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"apiscope/internal/observer"
	"apiscope/internal/tui/components"
	"apiscope/internal/tui/styles"
)

const keepRows = 100

type Model struct {
	Records []observer.SampleRecord
	Table   table.Model

	restLine components.Sparkline
	gqlLine  components.Sparkline

	Width  int
	Height int
}

func NewModel() Model {
	columns := []table.Column{
		{Title: "Time", Width: 12},
		{Title: "REST ms", Width: 9},
		{Title: "GQL ms", Width: 9},
		{Title: "REST KB", Width: 9},
		{Title: "GQL KB", Width: 9},
		{Title: "CPU%", Width: 6},
		{Title: "MEM%", Width: 6},
		{Title: "Load", Width: 6},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(8),
	)

	return Model{
		Table:    t,
		restLine: components.NewSparkline(40, "REST duration (ms)", styles.REST),
		gqlLine:  components.NewSparkline(40, "GraphQL duration (ms)", styles.GraphQL),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case observer.SampleRecord:
		m.Records = append(m.Records, msg)
		if len(m.Records) > keepRows {
			m.Records = m.Records[len(m.Records)-keepRows:]
		}
		m.restLine.Add(millis(msg.REST.Duration))
		m.gqlLine.Add(millis(msg.GraphQL.Duration))
		m.refreshRows()
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		half := (msg.Width / 2) - 8
		if half < 10 {
			half = 10
		}
		m.restLine.Resize(half)
		m.gqlLine.Resize(half)
		m.Table.SetWidth(msg.Width - 4)
		if msg.Height > 14 {
			m.Table.SetHeight(msg.Height - 14)
		}
	}

	var cmd tea.Cmd
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

// refreshRows lists the newest round first.
func (m *Model) refreshRows() {
	rows := make([]table.Row, 0, len(m.Records))
	for i := len(m.Records) - 1; i >= 0; i-- {
		r := m.Records[i]
		rows = append(rows, table.Row{
			clock(r.Timestamp),
			cell(r.REST, func(p observer.ProtocolSample) string { return fmt.Sprintf("%.1f", millis(p.Duration)) }),
			cell(r.GraphQL, func(p observer.ProtocolSample) string { return fmt.Sprintf("%.1f", millis(p.Duration)) }),
			cell(r.REST, kb),
			cell(r.GraphQL, kb),
			fmt.Sprintf("%.1f", r.System.CPUPercent),
			fmt.Sprintf("%.1f", r.System.MemoryPercent),
			fmt.Sprintf("%d", r.ScalabilityUsers),
		})
	}
	m.Table.SetRows(rows)
}

func (m Model) View() string {
	if len(m.Records) == 0 {
		return styles.Subtle.Render("Waiting for the first round...")
	}
	last := m.Records[len(m.Records)-1]

	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(protocolSummary("REST", styles.REST, last.REST)),
		styles.Box.Render(protocolSummary("GraphQL", styles.GraphQL, last.GraphQL)),
		styles.Box.Render(fmt.Sprintf("ROUNDS: %d\nLOAD: %d users", len(m.Records), last.ScalabilityUsers)),
	)
	lines := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.restLine.View()),
		styles.Box.Render(m.gqlLine.View()),
	)
	return lipgloss.JoinVertical(lipgloss.Left, summary, lines, styles.Box.Render(m.Table.View()))
}

func protocolSummary(name string, style lipgloss.Style, p observer.ProtocolSample) string {
	var b strings.Builder
	b.WriteString(style.Render(name))
	b.WriteString("\n")
	if !p.Success {
		b.WriteString(styles.Error.Render("FAIL: " + p.Error))
		return b.String()
	}
	fmt.Fprintf(&b, "%.1f ms (ttfb %.1f)  %d users\nCPU %.1f%%  RSS %.1f MB",
		millis(p.Duration), millis(p.TTFB), p.Count, p.CPUPercent, p.MemoryMB)
	if p.Error != "" {
		b.WriteString("\n")
		b.WriteString(styles.Warn.Render(p.Error))
	}
	return b.String()
}

func cell(p observer.ProtocolSample, format func(observer.ProtocolSample) string) string {
	if !p.Success {
		return "err"
	}
	return format(p)
}

func kb(p observer.ProtocolSample) string {
	if p.Size == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", float64(*p.Size)/1024)
}

func millis(seconds *float64) float64 {
	if seconds == nil {
		return 0
	}
	return *seconds * 1000
}

// clock trims an RFC3339 timestamp to its time of day.
func clock(ts string) string {
	if i := strings.IndexByte(ts, 'T'); i >= 0 && len(ts) >= i+9 {
		return ts[i+1 : i+9]
	}
	return ts
}
