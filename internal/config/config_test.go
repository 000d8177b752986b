package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10000, cfg.DatasetSize)
	assert.Equal(t, ":5001", cfg.REST.Addr)
	assert.Equal(t, "graphql_api.pid", cfg.GraphQL.PIDFile)
	assert.Equal(t, "report.json", cfg.Dashboard.Report)
	assert.Equal(t, "http://localhost:5002/graphql", cfg.Observer.GraphQLURL)
	assert.Equal(t, 10*time.Second, cfg.Observer.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Observer.SystemWindow)
	assert.Equal(t, EstimatorCmdline, cfg.Observer.LoadEstimator)
	assert.Equal(t, "runs.db", cfg.HistoryPath)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("APISCOPE_OBSERVER_TIMEOUT", "3s")
	t.Setenv("APISCOPE_REST_ADDR", ":7001")

	v := viper.New()
	BindEnv(v)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Observer.Timeout)
	assert.Equal(t, ":7001", cfg.REST.Addr)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apiscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dataset:
  size: 50
observer:
  load_estimator: redis
redis:
  addr: localhost:6379
`), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.DatasetSize)
	assert.Equal(t, EstimatorRedis, cfg.Observer.LoadEstimator)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestValidate(t *testing.T) {
	base, err := Load(viper.New())
	require.NoError(t, err)

	c := base
	c.Observer.LoadEstimator = EstimatorRedis
	assert.Error(t, c.Validate(), "redis estimator needs an address")

	c = base
	c.Observer.LoadEstimator = "ps"
	assert.Error(t, c.Validate())

	c = base
	c.Observer.Timeout = 0
	assert.Error(t, c.Validate())
}
