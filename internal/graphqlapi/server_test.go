package graphqlapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiscope/internal/dataset"
)

func newHandler(t *testing.T) http.Handler {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewServer(dataset.NewProvider(3), logger).Router()
}

type usersEnvelope struct {
	Data struct {
		Users []map[string]any `json:"users"`
	} `json:"data"`
}

func TestPostJSON(t *testing.T) {
	h := newHandler(t)
	body, err := json.Marshal(Request{Query: DefaultQuery})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var out usersEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Len(t, out.Data.Users, 3)
}

func TestPostForm(t *testing.T) {
	h := newHandler(t)
	form := url.Values{"query": {"{ users { id } }"}}

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":{"users":[{"id":1},{"id":2},{"id":3}]}}`, rr.Body.String())
}

func TestPostMalformedJSON(t *testing.T) {
	h := newHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestQueryErrorsAreReported(t *testing.T) {
	h := newHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ nope }"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var out struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.NotEmpty(t, out.Errors)
	assert.Contains(t, out.Errors[0].Message, "nope")
}

func TestGetPlayground(t *testing.T) {
	h := newHandler(t)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/graphql", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "GraphQL Query Tester")
}
