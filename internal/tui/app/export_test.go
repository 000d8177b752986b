package app

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiscope/internal/runner"
	"apiscope/internal/storage"
)

func TestExportRun(t *testing.T) {
	item := storage.NewHistoryItem(
		runner.Config{Target: runner.TargetBoth, Concurrency: 2, RequestsPerWorker: 5},
		runner.Summary{
			Workers:  4,
			Requests: 20,
			Success:  20,
			Protocol: map[runner.Protocol]runner.ProtocolSummary{
				runner.ProtocolREST:    {Requests: 10, Success: 10, P50Ms: 1.5},
				runner.ProtocolGraphQL: {Requests: 10, Success: 10, P50Ms: 2.5},
			},
		},
		time.Now(),
	)
	prefix := filepath.Join(t.TempDir(), "run")
	require.NoError(t, ExportRun(item, prefix))

	f, err := os.Open(prefix + ".csv")
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "rest", rows[1][2])
	assert.Equal(t, "graphql", rows[2][2])
	assert.Equal(t, "2.500", rows[2][9])

	data, err := os.ReadFile(prefix + ".json")
	require.NoError(t, err)
	var back storage.HistoryItem
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, item.ID, back.ID)
}
