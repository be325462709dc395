package tablx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fidsync/blockfile"
	"github.com/hupe1980/fidsync/remap"
)

func TestPresence(t *testing.T) {
	src := buildTable(t, 3000, 4, map[int32]uint64{1: 10, 3: 30, 2500: 99}, true)

	bm, err := Presence(src)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), bm.GetCardinality())
	assert.True(t, bm.Contains(1))
	assert.True(t, bm.Contains(3))
	assert.True(t, bm.Contains(2500))
	assert.False(t, bm.Contains(2))
}

func TestPresenceCardinalityPreservedByRewrite(t *testing.T) {
	src := buildTable(t, 3000, 4, map[int32]uint64{1: 10, 3: 30, 2500: 99}, true)

	rm := remap.New()
	require.NoError(t, rm.Assign(4000, 2500))
	require.NoError(t, rm.Assign(9, 3))

	dst := blockfile.NewMemory(nil)
	require.NoError(t, Rewrite(src, dst, rm, Options{}))

	before, err := Presence(src)
	require.NoError(t, err)
	after, err := Presence(dst)
	require.NoError(t, err)

	assert.Equal(t, before.GetCardinality(), after.GetCardinality())
	assert.True(t, after.Contains(4000))
	assert.True(t, after.Contains(9))
	assert.False(t, after.Contains(2500))
	assert.False(t, after.Contains(3))
}
