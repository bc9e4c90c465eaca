package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogEntriesAreComplete(t *testing.T) {
	all := All()
	require.NotEmpty(t, all)

	seen := map[string]bool{}
	for _, p := range all {
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.Category, "provider %s", p.Name)
		assert.NotEmpty(t, p.Query, "provider %s", p.Name)
		assert.NotEmpty(t, p.Domains, "provider %s", p.Name)
		assert.False(t, seen[p.Name], "duplicate provider %s", p.Name)
		seen[p.Name] = true
	}
}

func TestByName(t *testing.T) {
	p, ok := ByName("Netflix")
	require.True(t, ok)
	assert.Equal(t, "entertainment", p.Category)
	assert.Equal(t, 10, p.Priority)

	_, ok = ByName("netflix")
	assert.False(t, ok, "lookup is case-sensitive")

	_, ok = ByName("No Such Service")
	assert.False(t, ok)
}
