package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiscope/internal/runner"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := NewRunStore(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunStore_ListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	cfg := runner.Config{Target: runner.TargetREST, Concurrency: 1, RequestsPerWorker: 1}

	var ids []string
	for i := 0; i < 3; i++ {
		item := NewHistoryItem(cfg, runner.Summary{Requests: uint64(i)}, time.Now())
		require.NoError(t, s.Save(item))
		ids = append(ids, item.ID)
	}

	items, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, ids[2], items[0].ID)
	assert.Equal(t, ids[0], items[2].ID)

	items, err = s.List(2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestRunStore_GetAndOverwrite(t *testing.T) {
	s := newTestStore(t)
	item := NewHistoryItem(runner.Config{Target: runner.TargetBoth}, runner.Summary{
		Workers:  4,
		Requests: 10,
		Success:  9,
		Fail:     1,
		Elapsed:  1500 * time.Millisecond,
		Protocol: map[runner.Protocol]runner.ProtocolSummary{
			runner.ProtocolREST:    {P50Ms: 2, P99Ms: 7},
			runner.ProtocolGraphQL: {P50Ms: 3, P99Ms: 5},
		},
	}, time.Now())

	assert.Equal(t, 3.0, item.Summary.P50LatencyMs)
	assert.Equal(t, 7.0, item.Summary.P99LatencyMs)
	assert.Equal(t, 1500.0, item.Summary.ElapsedMs)

	require.NoError(t, s.Save(item))
	item.Summary.Fail = 2
	require.NoError(t, s.Save(item))

	got, err := s.Get(item.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Summary.Fail)
	assert.Equal(t, runner.TargetBoth, got.Config.Target)

	items, err := s.List(0)
	require.NoError(t, err)
	assert.Len(t, items, 1, "saving the same id replaces the run")

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := NewRunStore(path)
	require.NoError(t, err)
	item := NewHistoryItem(runner.Config{}, runner.Summary{}, time.Now())
	require.NoError(t, s.Save(item))
	require.NoError(t, s.Close())

	s, err = NewRunStore(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(item.ID)
	assert.NoError(t, err)
}

func TestRunStore_SaveRequiresID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.Save(HistoryItem{}))
}
