package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osamaeid908/pigweed/cache"
)

func TestGetPut(t *testing.T) {
	c, err := cache.New(4)
	require.NoError(t, err)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Put("k", []byte("value"))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)
	assert.Equal(t, 1, c.Len())
}

func TestCopiesBothWays(t *testing.T) {
	c, err := cache.New(4)
	require.NoError(t, err)

	original := []byte("value")
	c.Put("k", original)

	// Mutating the caller's slice after Put does not reach the cache.
	original[0] = 'X'
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	// Mutating a returned slice does not either.
	got[0] = 'Y'
	again, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), again)
}

func TestEviction(t *testing.T) {
	c, err := cache.New(2)
	require.NoError(t, err)

	c.Put("a", []byte{1})
	c.Put("b", []byte{2})

	// Touch "a" so "b" is the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", []byte{3})
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestInvalidate(t *testing.T) {
	c, err := cache.New(4)
	require.NoError(t, err)

	c.Put("k", []byte{1})
	c.Invalidate("k")
	_, ok := c.Get("k")
	assert.False(t, ok)

	// Absent keys are fine.
	c.Invalidate("never-stored")
}

func TestPurge(t *testing.T) {
	c, err := cache.New(4)
	require.NoError(t, err)

	c.Put("a", []byte{1})
	c.Put("b", []byte{2})
	c.Purge()
	assert.Zero(t, c.Len())
}

func TestInvalidSize(t *testing.T) {
	_, err := cache.New(0)
	assert.Error(t, err)
}
