package uuid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDProducesUniqueIDs(t *testing.T) {
	t.Parallel()

	g := New()
	first, err := g.NewID()
	require.NoError(t, err)
	second, err := g.NewID()
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
