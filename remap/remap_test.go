package remap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemapAssignLookup(t *testing.T) {
	rm := New()

	require.NoError(t, rm.Assign(10, 3))
	require.NoError(t, rm.Assign(7, 5))

	internal, ok := rm.Internal(10)
	assert.True(t, ok)
	assert.Equal(t, int32(3), internal)

	external, ok := rm.External(5)
	assert.True(t, ok)
	assert.Equal(t, int32(7), external)

	_, ok = rm.Internal(99)
	assert.False(t, ok)

	assert.Equal(t, 2, rm.Len())
	assert.Equal(t, int32(10), rm.MaxExternalID())
}

func TestRemapRejectsInvalid(t *testing.T) {
	rm := New()

	assert.ErrorIs(t, rm.Assign(0, 3), ErrNonPositiveID)
	assert.ErrorIs(t, rm.Assign(-1, 3), ErrNonPositiveID)
	assert.ErrorIs(t, rm.Assign(1, 0), ErrNonPositiveID)

	require.NoError(t, rm.Assign(10, 3))
	assert.ErrorIs(t, rm.Assign(10, 4), ErrDuplicateID)
	assert.ErrorIs(t, rm.Assign(11, 3), ErrDuplicateID)

	// Failed assigns must not leave half a pair behind.
	_, ok := rm.Internal(11)
	assert.False(t, ok)
	assert.Equal(t, 1, rm.Len())
}

func TestRemapRemove(t *testing.T) {
	rm := New()
	require.NoError(t, rm.Assign(10, 3))
	require.NoError(t, rm.Assign(20, 6))

	rm.RemoveByExternal(10)
	_, ok := rm.Internal(10)
	assert.False(t, ok)
	_, ok = rm.External(3)
	assert.False(t, ok)

	rm.RemoveByInternal(6)
	assert.Equal(t, 0, rm.Len())
	assert.Equal(t, int32(0), rm.MaxExternalID())

	// Removing unknown ids is a no-op.
	rm.RemoveByExternal(42)
	rm.RemoveByInternal(42)
}

func TestRemapSortedExternalIDs(t *testing.T) {
	rm := New()
	for _, pair := range [][2]int32{{30, 1}, {10, 2}, {20, 3}} {
		require.NoError(t, rm.Assign(pair[0], pair[1]))
	}
	assert.Equal(t, []int32{10, 20, 30}, rm.SortedExternalIDs())
}
