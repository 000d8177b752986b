// Package app hosts the terminal UI: a live load run, the observer watch
// and the run history, each as a tab when its source is available.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"apiscope/internal/observer"
	"apiscope/internal/runner"
	"apiscope/internal/storage"
	"apiscope/internal/tui/history"
	"apiscope/internal/tui/live"
	"apiscope/internal/tui/result"
	"apiscope/internal/tui/styles"
	"apiscope/internal/tui/watch"
)

type ClearStatusMsg struct{}

func clearStatusCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(_ time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}

// View Enum
type ViewID int

const (
	ViewLive ViewID = iota
	ViewWatch
	ViewHistory
)

var viewNames = map[ViewID]string{
	ViewLive:    "Load",
	ViewWatch:   "Observe",
	ViewHistory: "History",
}

type StatsMsg runner.StatsSnapshot

// RunDoneMsg carries the summary once the load run returns.
type RunDoneMsg runner.Summary

type SampleMsg observer.SampleRecord

// SamplesClosedMsg means the observer loop has finished.
type SamplesClosedMsg struct{}

type Model struct {
	Runner  *runner.Runner
	Store   *storage.RunStore
	Updates runner.StatsUpdateChan
	Samples <-chan observer.SampleRecord

	// Core State
	RunActive bool
	RunCtx    context.Context
	RunCancel context.CancelFunc
	Finished  *runner.Summary

	// Layout
	Width  int
	Height int

	CurrentView ViewID
	Tabs        []ViewID

	LiveView    live.Model
	ResultView  result.Model
	WatchView   watch.Model
	HistoryView history.Model

	// Feedback
	StatusMsg string
}

type Option func(*Model)

// WithLoad adds the live tab and starts r when the program starts.
func WithLoad(r *runner.Runner) Option {
	return func(m *Model) {
		m.Runner = r
		m.Updates = r.Updates
		m.LiveView = live.NewModel(r.Cfg)
		m.Tabs = append(m.Tabs, ViewLive)
	}
}

// WithSamples adds the observe tab fed by samples.
func WithSamples(samples <-chan observer.SampleRecord) Option {
	return func(m *Model) {
		m.Samples = samples
		m.WatchView = watch.NewModel()
		m.Tabs = append(m.Tabs, ViewWatch)
	}
}

// WithHistory adds the history tab backed by store. Finished load runs are
// saved to it.
func WithHistory(store *storage.RunStore) Option {
	return func(m *Model) {
		m.Store = store
		m.HistoryView = history.NewModel(store)
		m.Tabs = append(m.Tabs, ViewHistory)
	}
}

func NewModel(opts ...Option) Model {
	m := Model{}
	for _, opt := range opts {
		opt(&m)
	}
	if len(m.Tabs) > 0 {
		m.CurrentView = m.Tabs[0]
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.Runner != nil {
		ctx, cancel := context.WithCancel(context.Background())
		m.RunCtx = ctx
		m.RunCancel = cancel
		m.RunActive = true
		cmds = append(cmds, runCmd(ctx, m.Runner), waitForUpdate(m.Updates))
	}
	if m.Samples != nil {
		cmds = append(cmds, waitForSample(m.Samples))
	}
	return tea.Batch(cmds...)
}

func runCmd(ctx context.Context, r *runner.Runner) tea.Cmd {
	return func() tea.Msg {
		return RunDoneMsg(r.Run(ctx))
	}
}

func waitForUpdate(sub runner.StatsUpdateChan) tea.Cmd {
	return func() tea.Msg {
		return StatsMsg(<-sub)
	}
}

func waitForSample(sub <-chan observer.SampleRecord) tea.Cmd {
	return func() tea.Msg {
		rec, ok := <-sub
		if !ok {
			return SamplesClosedMsg{}
		}
		return SampleMsg(rec)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case ClearStatusMsg:
		m.StatusMsg = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.RunCancel != nil {
				m.RunCancel()
			}
			return m, tea.Quit

		case "tab", "ctrl+right":
			m.cycle(1)
			return m, nil
		case "shift+tab", "ctrl+left":
			m.cycle(-1)
			return m, nil

		case "ctrl+s": // Stop
			if m.RunActive && m.RunCancel != nil {
				m.RunCancel()
				m.StatusMsg = "Stopping run..."
				return m, clearStatusCmd()
			}
			return m, nil

		case "ctrl+p": // Export
			if m.CurrentView == ViewHistory {
				m.exportSelected()
				return m, clearStatusCmd()
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		inner := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 7}

		m.ResultView, _ = m.ResultView.Update(inner)
		if m.Runner != nil {
			m.LiveView, _ = m.LiveView.Update(inner)
		}
		if m.Samples != nil {
			m.WatchView, _ = m.WatchView.Update(inner)
		}
		if m.Store != nil {
			m.HistoryView, _ = m.HistoryView.Update(inner)
		}
		return m, nil

	case StatsMsg:
		var c tea.Cmd
		m.LiveView, c = m.LiveView.Update(runner.StatsSnapshot(msg))
		cmds = append(cmds, c)
		if m.RunActive {
			cmds = append(cmds, waitForUpdate(m.Updates))
		}
		return m, tea.Batch(cmds...)

	case RunDoneMsg:
		sum := runner.Summary(msg)
		m.RunActive = false
		m.Finished = &sum
		m.ResultView = result.NewModel(sum)
		m.ResultView.Width = m.Width
		m.saveHistory(sum)
		return m, nil

	case SampleMsg:
		m.WatchView, _ = m.WatchView.Update(observer.SampleRecord(msg))
		return m, waitForSample(m.Samples)

	case SamplesClosedMsg:
		m.StatusMsg = "Observer stopped."
		return m, nil
	}

	// Forward everything else (FrameMsg, table keys) to the active view
	var defaultCmd tea.Cmd
	switch m.CurrentView {
	case ViewLive:
		if m.Finished == nil {
			m.LiveView, defaultCmd = m.LiveView.Update(msg)
		}
	case ViewWatch:
		m.WatchView, defaultCmd = m.WatchView.Update(msg)
	case ViewHistory:
		m.HistoryView, defaultCmd = m.HistoryView.Update(msg)
	}
	cmds = append(cmds, defaultCmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) cycle(step int) {
	if len(m.Tabs) < 2 {
		return
	}
	idx := 0
	for i, v := range m.Tabs {
		if v == m.CurrentView {
			idx = i
		}
	}
	idx = (idx + step + len(m.Tabs)) % len(m.Tabs)
	m.CurrentView = m.Tabs[idx]
	if m.CurrentView == ViewHistory {
		m.HistoryView.Refresh()
	}
}

func (m *Model) saveHistory(sum runner.Summary) {
	if m.Store == nil || m.Runner == nil {
		return
	}
	item := storage.NewHistoryItem(m.Runner.Cfg, sum, time.Now())
	if err := m.Store.Save(item); err != nil {
		m.StatusMsg = fmt.Sprintf("Error saving history: %v", err)
		return
	}
	m.ResultView.Saved = "Saved as run " + item.ID
	m.HistoryView.Refresh()
}

func (m *Model) exportSelected() {
	item := m.HistoryView.Selected()
	if item == nil {
		m.StatusMsg = "No run selected."
		return
	}
	base := fmt.Sprintf("apiscope_run_%s", item.ID)
	if err := ExportRun(*item, base); err != nil {
		m.StatusMsg = fmt.Sprintf("Export Failed: %v", err)
		return
	}
	m.StatusMsg = fmt.Sprintf("Exported to %s.{csv,json}", base)
}

func (m *Model) View() string {
	if m.Width == 0 {
		return "Loading..."
	}

	nav := strings.Builder{}
	for _, v := range m.Tabs {
		if v == m.CurrentView {
			nav.WriteString(styles.TabActive.Render(viewNames[v]))
		} else {
			nav.WriteString(styles.TabBase.Render(viewNames[v]))
		}
	}
	navBar := styles.FooterBase.Width(m.Width).Render(nav.String())

	contentStr := ""
	switch m.CurrentView {
	case ViewLive:
		if m.Finished != nil {
			contentStr = m.ResultView.View()
		} else {
			contentStr = m.LiveView.View()
		}
	case ViewWatch:
		contentStr = m.WatchView.View()
	case ViewHistory:
		contentStr = m.HistoryView.View()
	}

	content := styles.Panel.Width(m.Width - 2).Height(m.Height - 6).Render(contentStr)

	keys := []string{styles.RenderKey("Tab", "View")}
	if m.RunActive {
		keys = append(keys, styles.RenderKey("Ctrl+S", "Stop"))
	}
	if m.CurrentView == ViewHistory {
		keys = append(keys, styles.RenderKey("Ctrl+P", "Export"))
	}
	keys = append(keys, styles.RenderKey("Q", "Quit"))
	footer := styles.FooterBase.Width(m.Width).Render(strings.Join(keys, "   "))

	if m.StatusMsg != "" {
		status := styles.Box.BorderForeground(styles.ColorHighlight).Render(m.StatusMsg)
		return lipgloss.JoinVertical(lipgloss.Left, navBar, content, status, footer)
	}

	return lipgloss.JoinVertical(lipgloss.Left, navBar, content, footer)
}
