// Package live renders a running load generator.
package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"apiscope/internal/runner"
	"apiscope/internal/tui/components"
	"apiscope/internal/tui/styles"
)

type protocolLines struct {
	rps     components.Sparkline
	latency components.Sparkline
	last    uint64
}

type Model struct {
	Stats    runner.StatsSnapshot
	Progress progress.Model

	lines map[runner.Protocol]*protocolLines
	order []runner.Protocol

	StartTime  time.Time
	LastUpdate time.Time

	Width  int
	Height int
}

func NewModel(cfg runner.Config) Model {
	m := Model{
		Progress:   progress.New(progress.WithDefaultGradient()),
		lines:      make(map[runner.Protocol]*protocolLines),
		order:      cfg.Protocols(),
		StartTime:  time.Now(),
		LastUpdate: time.Now(),
	}
	for _, p := range m.order {
		style := styles.ForProtocol(string(p))
		m.lines[p] = &protocolLines{
			rps:     components.NewSparkline(40, strings.ToUpper(string(p))+" req/s", style),
			latency: components.NewSparkline(40, strings.ToUpper(string(p))+" P90 (ms)", style),
		}
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.StatsSnapshot:
		now := time.Now()
		dt := now.Sub(m.LastUpdate).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}

		for _, ps := range msg.Protocols {
			l, ok := m.lines[ps.Protocol]
			if !ok {
				continue
			}
			l.rps.Add(float64(ps.Requests-l.last) / dt)
			l.latency.Add(ps.P90ServiceMs)
			l.last = ps.Requests
		}

		m.Stats = msg
		m.LastUpdate = now

		pct := 0.0
		if msg.Total > 0 {
			pct = float64(msg.Completed) / float64(msg.Total)
		}
		return m, m.Progress.SetPercent(pct)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 8

		half := (msg.Width / 2) - 8
		if half < 10 {
			half = 10
		}
		for _, l := range m.lines {
			l.rps.Resize(half)
			l.latency.Resize(half)
		}
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	header := fmt.Sprintf("DONE: %d / %d   INF: %d   ELAPSED: %s",
		m.Stats.Completed, m.Stats.Total, m.Stats.Inflight,
		time.Since(m.StartTime).Round(time.Second))
	s.WriteString(styles.Text.Render(header))
	s.WriteString("\n\n")

	for _, ps := range m.Stats.Protocols {
		s.WriteString(m.protocolView(ps))
		s.WriteString("\n")
	}

	s.WriteString(m.Progress.View())
	return s.String()
}

func (m Model) protocolView(ps runner.ProtocolSnapshot) string {
	errRate := 0.0
	if ps.Requests > 0 {
		errRate = float64(ps.Fail) / float64(ps.Requests) * 100
	}
	errColor := styles.Active
	if errRate > 5.0 {
		errColor = styles.Error
	} else if errRate > 1.0 {
		errColor = styles.Warn
	}

	lagStyle := styles.Active
	if ps.AvgQueueWaitMs > 10.0 {
		lagStyle = styles.Error
	} else if ps.AvgQueueWaitMs > 2.0 {
		lagStyle = styles.Warn
	}

	name := styles.ForProtocol(string(ps.Protocol)).Render(strings.ToUpper(string(ps.Protocol)))
	counts := fmt.Sprintf("REQ: %d\nOK: %d", ps.Requests, ps.Success)
	errs := errColor.Render(fmt.Sprintf("ERR: %.2f%%\nFAIL: %d", errRate, ps.Fail))
	lat := fmt.Sprintf("P50 %.1f  P99 %.1f ms\nLAG: %s  KB: %d",
		ps.P50ServiceMs, ps.P99ServiceMs,
		lagStyle.Render(fmt.Sprintf("%.2f ms", ps.AvgQueueWaitMs)),
		ps.Bytes/1024)

	row := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(name),
		styles.Box.Render(counts),
		styles.Box.Render(errs),
		styles.Box.Render(lat),
	)
	if l, ok := m.lines[ps.Protocol]; ok {
		row = lipgloss.JoinVertical(lipgloss.Left, row, lipgloss.JoinHorizontal(lipgloss.Top,
			styles.Box.Render(l.rps.View()),
			styles.Box.Render(l.latency.View()),
		))
	}
	return row
}
