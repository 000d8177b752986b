package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiscope/internal/observer"
	"apiscope/internal/runner"
	"apiscope/internal/storage"
)

func TestRunDone_SavesHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	store, err := storage.NewRunStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	logger, _ := test.NewNullLogger()
	r := runner.NewRunner(runner.Config{
		Target: runner.TargetREST, Concurrency: 1, RequestsPerWorker: 2, RESTURL: srv.URL,
	}, nil, logger)

	m := NewModel(WithLoad(r), WithHistory(store))
	assert.Equal(t, []ViewID{ViewLive, ViewHistory}, m.Tabs)

	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.Update(RunDoneMsg(runner.Summary{Workers: 1, Requests: 2, Success: 2}))

	require.NotNil(t, m.Finished)
	assert.False(t, m.RunActive)
	assert.Contains(t, m.View(), "Load Run Complete")

	items, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.EqualValues(t, 2, items[0].Summary.Success)

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, ViewHistory, m.CurrentView)
}

func TestSamples_FeedWatchView(t *testing.T) {
	samples := make(chan observer.SampleRecord, 1)
	m := NewModel(WithSamples(samples))
	assert.Equal(t, ViewWatch, m.CurrentView)

	_, cmd := m.Update(SampleMsg(observer.SampleRecord{ScalabilityUsers: 7}))
	require.NotNil(t, cmd)
	assert.Len(t, m.WatchView.Records, 1)

	close(samples)
	assert.IsType(t, SamplesClosedMsg{}, cmd())
}
