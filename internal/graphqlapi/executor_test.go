package graphqlapi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiscope/internal/dataset"
)

func execute(t *testing.T, req Request) (string, Response) {
	t.Helper()
	resp := NewExecutor(dataset.NewProvider(3)).Execute(context.Background(), req)
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(b), resp
}

func TestExecute_DefaultQuery(t *testing.T) {
	body, resp := execute(t, Request{Query: DefaultQuery})
	require.Empty(t, resp.Errors)

	var out struct {
		Data struct {
			Users []dataset.UserRecord `json:"users"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.Len(t, out.Data.Users, 3)
	assert.Equal(t, "User1", out.Data.Users[0].Name)
	assert.Equal(t, "Sampleville", out.Data.Users[0].Address.City)
	assert.Empty(t, out.Data.Users[0].Address.Street, "street was not selected")
	assert.Equal(t, "Engineering", out.Data.Users[2].Company.Department)
}

func TestExecute_KeysFollowSelectionOrder(t *testing.T) {
	body, _ := execute(t, Request{Query: `{ user(id: 2) { name id __typename } }`})
	assert.Equal(t, `{"data":{"user":{"name":"User2","id":2,"__typename":"User"}}}`, body)
}

func TestExecute_UserNotFoundIsNull(t *testing.T) {
	body, resp := execute(t, Request{Query: `{ user(id: 42) { id } }`})
	assert.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"data":{"user":null}}`, body)
}

func TestExecute_AliasesFragmentsVariables(t *testing.T) {
	query := `
query Pick($id: Int!) {
  first: user(id: $id) { ...who }
  second: user(id: 3) { ... on User { email } }
}
fragment who on User { id name }`
	body, resp := execute(t, Request{
		Query:         query,
		OperationName: "Pick",
		Variables:     map[string]any{"id": float64(1)},
	})
	require.Empty(t, resp.Errors)
	assert.Equal(t, `{"data":{"first":{"id":1,"name":"User1"},"second":{"email":"user3@mail.com"}}}`, body)
}

func TestExecute_ValidationErrors(t *testing.T) {
	cases := map[string]Request{
		"empty":          {Query: ""},
		"syntax":         {Query: "{ users { id "},
		"unknown field":  {Query: "{ users { password } }"},
		"missing arg":    {Query: "{ user { id } }"},
		"mutation":       {Query: "mutation { users { id } }"},
		"unknown op":     {Query: "query A { users { id } }", OperationName: "B"},
		"bad variable":   {Query: "query($id: Int!) { user(id: $id) { id } }", Variables: map[string]any{"id": true}},
		"missing leaves": {Query: "{ users }"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			body, resp := execute(t, req)
			assert.NotEmpty(t, resp.Errors)
			assert.Nil(t, resp.Data)
			assert.Contains(t, body, `"errors"`)
			assert.NotContains(t, body, `"data"`)
		})
	}
}
