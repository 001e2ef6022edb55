package sha256

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIsStable(t *testing.T) {
	t.Parallel()

	h := New()
	first, err := h.Hash([]byte("https://example.com/story"))
	require.NoError(t, err)
	second, err := h.Hash([]byte("https://example.com/story"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestHashDiffersPerInput(t *testing.T) {
	t.Parallel()

	h := New()
	a, err := h.Hash([]byte("https://example.com/a"))
	require.NoError(t, err)
	b, err := h.Hash([]byte("https://example.com/b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
