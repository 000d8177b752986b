package watch

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiscope/internal/observer"
)

func f64(v float64) *float64 { return &v }

func TestUpdate_RecordsRounds(t *testing.T) {
	m := NewModel()
	assert.Contains(t, m.View(), "Waiting")

	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = m.Update(observer.SampleRecord{
		Timestamp:        "2026-10-19T10:11:12.5+02:00",
		REST:             observer.ProtocolSample{Success: true, Duration: f64(0.012), Count: 3},
		GraphQL:          observer.ProtocolSample{Success: false, Error: "connection refused"},
		ScalabilityUsers: 20,
	})
	m, _ = m.Update(observer.SampleRecord{
		Timestamp: "2026-10-19T10:11:22.5+02:00",
		REST:      observer.ProtocolSample{Success: true, Duration: f64(0.020), Count: 3},
		GraphQL:   observer.ProtocolSample{Success: true, Duration: f64(0.030), Count: 3},
	})

	require.Len(t, m.Records, 2)
	rows := m.Table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "10:11:22", rows[0][0], "newest round first")
	assert.Equal(t, "20.0", rows[0][1])
	assert.Equal(t, "err", rows[1][2])
	assert.InDelta(t, 20.0, m.restLine.Last(), 1e-9)
	assert.Contains(t, m.View(), "ROUNDS: 2")
}

func TestUpdate_KeepsBoundedHistory(t *testing.T) {
	m := NewModel()
	for i := 0; i < keepRows+5; i++ {
		m, _ = m.Update(observer.SampleRecord{})
	}
	assert.Len(t, m.Records, keepRows)
}

func TestClock(t *testing.T) {
	assert.Equal(t, "10:11:12", clock("2026-10-19T10:11:12.123456+02:00"))
	assert.Equal(t, "garbage", clock("garbage"))
}
