package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_IDsAndFields(t *testing.T) {
	for _, n := range []int{0, 1, 3, 250} {
		users := Generate(n)
		require.Len(t, users, n)

		seen := make(map[int]struct{}, n)
		for i, u := range users {
			assert.Equal(t, i+1, u.ID)
			_, dup := seen[u.ID]
			assert.False(t, dup, "duplicate id %d", u.ID)
			seen[u.ID] = struct{}{}

			assert.NotEmpty(t, u.Name)
			assert.NotEmpty(t, u.Email)
			assert.NotEmpty(t, u.Address.Street)
			assert.NotEmpty(t, u.Address.City)
			assert.NotEmpty(t, u.Address.Zipcode)
			assert.NotEmpty(t, u.Company.Name)
			assert.NotEmpty(t, u.Company.Department)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	assert.Equal(t, Generate(50), Generate(50))

	u := Generate(123)[122]
	assert.Equal(t, "User123", u.Name)
	assert.Equal(t, "user123@mail.com", u.Email)
	assert.Equal(t, "123 Main St", u.Address.Street)
	assert.Equal(t, "00023", u.Address.Zipcode)
	assert.Equal(t, "Company3", u.Company.Name)
}

func TestGenerate_NegativeIsEmpty(t *testing.T) {
	assert.Empty(t, Generate(-5))
}

func TestProvider_Lookup(t *testing.T) {
	p := NewProvider(10)
	require.Equal(t, 10, p.Len())

	u, ok := p.Lookup(7)
	require.True(t, ok)
	assert.Equal(t, 7, u.ID)

	for _, id := range []int{0, -1, 11} {
		_, ok := p.Lookup(id)
		assert.False(t, ok, "id %d", id)
	}
}
