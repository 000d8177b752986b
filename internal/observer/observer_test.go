package observer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiscope/internal/dataset"
	"apiscope/internal/graphqlapi"
	"apiscope/internal/loadest"
	"apiscope/internal/probe"
	"apiscope/internal/restapi"
)

type fakeProcess struct {
	mu      sync.Mutex
	sampled []int
	metrics map[int]probe.ProcessMetrics
}

func (f *fakeProcess) Sample(_ context.Context, pid int) probe.ProcessMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sampled = append(f.sampled, pid)
	return f.metrics[pid]
}

type fakeSystem probe.SystemMetrics

func (f fakeSystem) Sample(context.Context) probe.SystemMetrics { return probe.SystemMetrics(f) }

type fixture struct {
	rest    *httptest.Server
	graphql *httptest.Server
	process *fakeProcess
	cfg     Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	data := dataset.NewProvider(3)

	rest := httptest.NewServer(restapi.NewServer(data, logger).Router())
	t.Cleanup(rest.Close)
	gql := httptest.NewServer(graphqlapi.NewServer(data, logger).Router())
	t.Cleanup(gql.Close)

	dir := t.TempDir()
	return &fixture{
		rest:    rest,
		graphql: gql,
		process: &fakeProcess{metrics: map[int]probe.ProcessMetrics{}},
		cfg: Config{
			RESTURL:        rest.URL + "/users",
			GraphQLURL:     gql.URL + "/graphql",
			RESTPIDFile:    filepath.Join(dir, "rest_api.pid"),
			GraphQLPIDFile: filepath.Join(dir, "graphql_api.pid"),
			Timeout:        2 * time.Second,
		},
	}
}

func (f *fixture) observer(t *testing.T, opts ...Option) *Observer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	system := fakeSystem{CPUPercent: 12.5, MemoryPercent: 40}
	return New(f.cfg, f.process, system, loadest.Static(20), logger, opts...)
}

func writePID(t *testing.T, path string, pid int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644))
}

func closedURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr
}

func assertPopulated(t *testing.T, s ProtocolSample) {
	t.Helper()
	assert.True(t, s.Success)
	assert.Empty(t, s.Error)
	require.NotNil(t, s.Duration)
	require.NotNil(t, s.TTFB)
	require.NotNil(t, s.Size)
	require.NotNil(t, s.StatusCode)
	assert.Greater(t, *s.Duration, 0.0)
	assert.LessOrEqual(t, *s.TTFB, *s.Duration)
	assert.Greater(t, *s.Size, int64(0))
	assert.Equal(t, http.StatusOK, *s.StatusCode)
	assert.Contains(t, s.Headers["Content-Type"], "application/json")
}

func TestRunRound_BothAdaptersHealthy(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	rec := f.observer(t, WithClock(func() time.Time { return fixed })).RunRound(context.Background())

	assert.Equal(t, "2026-10-19T12:00:00Z", rec.Timestamp)
	assert.Equal(t, 3, rec.REST.Count)
	assert.Equal(t, 3, rec.GraphQL.Count)
	assertPopulated(t, rec.REST)
	assertPopulated(t, rec.GraphQL)
	assert.Equal(t, probe.SystemMetrics{CPUPercent: 12.5, MemoryPercent: 40}, rec.System)
	assert.Equal(t, 20, rec.ScalabilityUsers)
}

func TestRunRound_GraphQLUnreachable(t *testing.T) {
	f := newFixture(t)
	f.cfg.GraphQLURL = closedURL(t) + "/graphql"

	rec := f.observer(t).RunRound(context.Background())

	assert.False(t, rec.GraphQL.Success)
	assert.Zero(t, rec.GraphQL.Count)
	assert.NotEmpty(t, rec.GraphQL.Error)
	assert.Nil(t, rec.GraphQL.Duration)
	assert.Nil(t, rec.GraphQL.TTFB)
	assert.Nil(t, rec.GraphQL.Size)
	assert.Nil(t, rec.GraphQL.StatusCode)
	assert.NotNil(t, rec.GraphQL.Headers)

	assert.Equal(t, 3, rec.REST.Count)
	assertPopulated(t, rec.REST)
}

func TestRunRound_TimeoutIsAFailure(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(slow.Close)
	t.Cleanup(func() { close(release) })

	f.cfg.RESTURL = slow.URL + "/users"
	f.cfg.Timeout = 100 * time.Millisecond

	start := time.Now()
	rec := f.observer(t).RunRound(context.Background())
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.False(t, rec.REST.Success)
	assert.NotEmpty(t, rec.REST.Error)
	assert.Nil(t, rec.REST.Duration)
	assert.Equal(t, 3, rec.GraphQL.Count)
}

func TestRunRound_NonJSONBody(t *testing.T) {
	f := newFixture(t)
	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	t.Cleanup(html.Close)
	f.cfg.RESTURL = html.URL

	rec := f.observer(t).RunRound(context.Background())
	assert.False(t, rec.REST.Success)
	assert.Zero(t, rec.REST.Count)
	assert.Contains(t, rec.REST.Error, "decode users array")
}

func TestRunRound_GraphQLErrorsOnly(t *testing.T) {
	f := newFixture(t)
	f.cfg.GraphQLQuery = "{ nothing }"

	rec := f.observer(t).RunRound(context.Background())
	assert.True(t, rec.GraphQL.Success)
	assert.Zero(t, rec.GraphQL.Count)
	assert.Contains(t, rec.GraphQL.Error, "graphql:")
	require.NotNil(t, rec.GraphQL.StatusCode)
}

func TestRunRound_GraphQLStringErrors(t *testing.T) {
	f := newFixture(t)
	gql := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors": ["Cannot query field 'x' on type 'Query'."]}`))
	}))
	t.Cleanup(gql.Close)
	f.cfg.GraphQLURL = gql.URL + "/graphql"

	rec := f.observer(t).RunRound(context.Background())
	assert.True(t, rec.GraphQL.Success)
	assert.Zero(t, rec.GraphQL.Count)
	assert.Contains(t, rec.GraphQL.Error, "Cannot query field 'x'")
	require.NotNil(t, rec.GraphQL.StatusCode)
	assert.Equal(t, http.StatusOK, *rec.GraphQL.StatusCode)
	require.NotNil(t, rec.GraphQL.Duration)
}

func TestDecodeGraphQLUsers_ErrorShapes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		count int
		note  string
	}{
		{"object errors", `{"errors":[{"message":"boom"}]}`, 0, "graphql: boom"},
		{"string errors", `{"errors":["bad field"]}`, 0, "graphql: bad field"},
		{"mixed errors", `{"errors":[{"message":"a"},"b"]}`, 0, "graphql: a; b"},
		{"data with errors", `{"data":{"users":[{},{}]},"errors":["partial"]}`, 2, "graphql: partial"},
		{"data only", `{"data":{"users":[{}]}}`, 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, note, err := decodeGraphQLUsers([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.count, count)
			assert.Equal(t, tt.note, note)
		})
	}
}

func TestRunRound_ProcessMetricsFromPIDFiles(t *testing.T) {
	f := newFixture(t)
	writePID(t, f.cfg.RESTPIDFile, 101)
	f.process.metrics[101] = probe.ProcessMetrics{CPUPercent: 3.5, MemoryMB: 42.25}

	rec := f.observer(t).RunRound(context.Background())

	assert.Equal(t, []int{101}, f.process.sampled, "graphql pid file is missing")
	assert.Equal(t, 3.5, rec.REST.CPUPercent)
	assert.Equal(t, 42.25, rec.REST.MemoryMB)
	assert.Zero(t, rec.GraphQL.CPUPercent)
	assert.Zero(t, rec.GraphQL.MemoryMB)
}

func TestRunRound_StableCounts(t *testing.T) {
	f := newFixture(t)
	o := f.observer(t)

	first := o.RunRound(context.Background())
	second := o.RunRound(context.Background())
	assert.Equal(t, first.REST.Count, second.REST.Count)
	assert.Equal(t, first.GraphQL.Count, second.GraphQL.Count)
}

func TestSampleRecord_JSONShape(t *testing.T) {
	f := newFixture(t)
	f.cfg.GraphQLURL = closedURL(t)
	rec := f.observer(t).RunRound(context.Background())

	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &top))
	assert.Contains(t, top, "timestamp")
	assert.Contains(t, top, "scalability_users")

	raw := map[string]map[string]any{}
	for _, key := range []string{"rest", "graphql", "system"} {
		var section map[string]any
		require.NoError(t, json.Unmarshal(top[key], &section))
		raw[key] = section
	}
	for _, key := range []string{"duration", "ttfb", "count", "size", "status_code", "headers", "success", "cpu_percent", "memory_mb"} {
		assert.Contains(t, raw["rest"], key)
		assert.Contains(t, raw["graphql"], key)
	}
	assert.NotContains(t, raw["rest"], "error")
	assert.Nil(t, raw["graphql"]["duration"])
	assert.Contains(t, raw["graphql"], "error")
	assert.Contains(t, raw["system"], "memory_percent")
}

type memorySink struct {
	mu      sync.Mutex
	records []any
	err     error
}

func (m *memorySink) Append(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, v)
	return nil
}

func TestLoop_FixedRounds(t *testing.T) {
	f := newFixture(t)
	o := f.observer(t)

	sink := &memorySink{}
	var seen []SampleRecord
	n, err := o.Loop(context.Background(), 3, time.Millisecond, sink, func(r SampleRecord) {
		seen = append(seen, r)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, sink.records, 3)
	assert.Len(t, seen, 3)
}

func TestLoop_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	o := f.observer(t)

	ctx, cancel := context.WithCancel(context.Background())
	sink := &memorySink{}
	n, err := o.Loop(ctx, 0, time.Hour, sink, func(SampleRecord) { cancel() })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, sink.records, 1)
}

func TestLoop_SinkError(t *testing.T) {
	f := newFixture(t)
	o := f.observer(t)

	n, err := o.Loop(context.Background(), 2, time.Millisecond, &memorySink{err: os.ErrPermission}, nil)
	assert.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Zero(t, n)
}
