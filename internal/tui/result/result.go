package result

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"apiscope/internal/runner"
	"apiscope/internal/tui/styles"
)

// Model shows a finished load run.
type Model struct {
	Summary runner.Summary
	Saved   string

	Width  int
	Height int
}

func NewModel(sum runner.Summary) Model {
	return Model{Summary: sum}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
	}
	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}
	sum := m.Summary

	s.WriteString(styles.Title.Render("📊 Load Run Complete"))
	s.WriteString("\n\n")

	overview := fmt.Sprintf(
		"Workers:  %d\nRequests: %d\nSuccess:  %d\nFailed:   %d\nElapsed:  %s",
		sum.Workers, sum.Requests, sum.Success, sum.Fail, sum.Elapsed.Round(time.Millisecond),
	)
	s.WriteString(styles.Active.Render("Overview"))
	s.WriteString("\n")
	s.WriteString(styles.Box.Render(overview))
	s.WriteString("\n\n")

	var boxes []string
	for _, p := range []runner.Protocol{runner.ProtocolREST, runner.ProtocolGraphQL} {
		ps, ok := sum.Protocol[p]
		if !ok {
			continue
		}
		body := fmt.Sprintf("%s\nReqs: %d  Fail: %d\nP50: %.2f ms\nP99: %.2f ms\nMax: %.0f ms\nKB:  %d",
			styles.ForProtocol(string(p)).Render(strings.ToUpper(string(p))),
			ps.Requests, ps.Fail, ps.P50Ms, ps.P99Ms, ps.MaxMs, ps.Bytes/1024)
		boxes = append(boxes, styles.Box.Render(body))
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))

	if m.Saved != "" {
		s.WriteString("\n\n")
		s.WriteString(styles.Success.Render(m.Saved))
	}
	s.WriteString("\n\n")
	s.WriteString(styles.Subtle.Render("Press q to quit"))

	return s.String()
}
