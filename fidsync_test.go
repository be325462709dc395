package fidsync

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fidsync/pageidx"
	"github.com/hupe1980/fidsync/remap"
)

const testRecordSize = 5

// writeSlotFile writes a dense slot file: rows 1..maxRowID, occupied slots
// holding the given record offsets.
func writeSlotFile(t *testing.T, path string, maxRowID int32, slots map[int32]uint64) {
	t.Helper()

	blocks := (maxRowID + 1023) / 1024
	data := make([]byte, 16+int64(blocks)*1024*testRecordSize+16)

	binary.LittleEndian.PutUint32(data[4:8], uint32(blocks))
	binary.LittleEndian.PutUint32(data[8:12], uint32(maxRowID))
	binary.LittleEndian.PutUint32(data[12:16], testRecordSize)

	for id, offset := range slots {
		require.LessOrEqual(t, id, maxRowID)
		slot := data[16+int64(id-1)*testRecordSize:]
		for i := 0; i < testRecordSize; i++ {
			slot[i] = byte(offset >> (8 * i))
		}
	}

	trailer := data[len(data)-16:]
	binary.LittleEndian.PutUint32(trailer[4:8], uint32(blocks))
	binary.LittleEndian.PutUint32(trailer[8:12], uint32(blocks))

	require.NoError(t, os.WriteFile(path, data, 0644))
}

func slotValue(t *testing.T, path string, rowID int32) uint64 {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, int32(binary.LittleEndian.Uint32(data[8:12])), rowID)

	var v uint64
	slot := data[16+int64(rowID-1)*testRecordSize:]
	for i := 0; i < testRecordSize; i++ {
		v |= uint64(slot[i]) << (8 * i)
	}
	return v
}

// writeIndexFile writes a single-leaf ordered index over one-byte values.
func writeIndexFile(t *testing.T, path string, ids []int32, value byte) {
	t.Helper()

	const maxPerPage = (4096 - 12) / 5
	data := make([]byte, 4096+22)

	binary.LittleEndian.PutUint32(data[4:8], uint32(len(ids)))
	for i, id := range ids {
		binary.LittleEndian.PutUint32(data[12+4*i:], uint32(id))
		data[12+4*maxPerPage+i] = value
	}

	data[4096] = 1 // value width
	binary.LittleEndian.PutUint32(data[4096+6:], 1)

	require.NoError(t, os.WriteFile(path, data, 0644))
}

func indexIDs(t *testing.T, path string, n int) []int32 {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	ids := make([]int32, n)
	for i := range ids {
		ids[i] = int32(binary.LittleEndian.Uint32(data[12+4*i:]))
	}
	return ids
}

func setupTable(t *testing.T, dir string) (tablePath, slotPath, atxPath string) {
	t.Helper()

	tablePath = filepath.Join(dir, "a001.gdbtable")
	require.NoError(t, os.WriteFile(tablePath, []byte("data"), 0644))

	slotPath = filepath.Join(dir, "a001.gdbtablx")
	writeSlotFile(t, slotPath, 3, map[int32]uint64{1: 100, 2: 200, 3: 300})

	atxPath = filepath.Join(dir, "a001.kind.atx")
	writeIndexFile(t, atxPath, []int32{2, 3}, 'X')

	return tablePath, slotPath, atxPath
}

func TestResyncEndToEnd(t *testing.T) {
	dir := t.TempDir()
	tablePath, slotPath, atxPath := setupTable(t, dir)

	rm := remap.New()
	require.NoError(t, rm.Assign(10, 3))

	r := New(WithBackup(true), WithVerify(true))
	require.NoError(t, r.Resync(context.Background(), tablePath, rm))

	// Row 3 moved to its caller id 10; the table grew to cover it.
	assert.Equal(t, uint64(100), slotValue(t, slotPath, 1))
	assert.Equal(t, uint64(0), slotValue(t, slotPath, 3))
	assert.Equal(t, uint64(300), slotValue(t, slotPath, 10))

	// The attribute index follows, keeping ascending order per value.
	assert.Equal(t, []int32{2, 10}, indexIDs(t, atxPath, 2))

	assert.FileExists(t, slotPath+backupSuffix)
	assert.NoFileExists(t, slotPath+tmpSuffix)
	assert.NoFileExists(t, slotPath+oldSuffix)
}

func TestResyncReportsUnpatchableIndex(t *testing.T) {
	dir := t.TempDir()
	tablePath, slotPath, atxPath := setupTable(t, dir)

	badPath := filepath.Join(dir, "a001.broken.spx")
	require.NoError(t, os.WriteFile(badPath, []byte("short"), 0644))

	rm := remap.New()
	require.NoError(t, rm.Assign(10, 3))

	err := New().Resync(context.Background(), tablePath, rm)
	assert.ErrorIs(t, err, pageidx.ErrCorrupt)

	// The failure does not stop the resync: the slot file is swapped in, the
	// healthy index is patched, and the unreadable one is dropped for an
	// out-of-band rebuild.
	assert.Equal(t, uint64(300), slotValue(t, slotPath, 10))
	assert.Equal(t, []int32{2, 10}, indexIDs(t, atxPath, 2))
	assert.NoFileExists(t, badPath)
}

func TestResyncMmap(t *testing.T) {
	dir := t.TempDir()
	tablePath, slotPath, atxPath := setupTable(t, dir)

	rm := remap.New()
	require.NoError(t, rm.Assign(10, 3))

	r := New(WithMmap(true))
	require.NoError(t, r.Resync(context.Background(), tablePath, rm))

	assert.Equal(t, uint64(300), slotValue(t, slotPath, 10))
	assert.Equal(t, []int32{2, 10}, indexIDs(t, atxPath, 2))
}

func TestResyncEmptyRemapNoop(t *testing.T) {
	dir := t.TempDir()
	tablePath, slotPath, _ := setupTable(t, dir)

	before, err := os.ReadFile(slotPath)
	require.NoError(t, err)

	r := New()
	require.NoError(t, r.Resync(context.Background(), tablePath, remap.New()))

	after, err := os.ReadFile(slotPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestResyncMissingSlotFile(t *testing.T) {
	dir := t.TempDir()
	tablePath := filepath.Join(dir, "a001.gdbtable")
	require.NoError(t, os.WriteFile(tablePath, []byte("data"), 0644))

	rm := remap.New()
	require.NoError(t, rm.Assign(10, 3))

	err := New().Resync(context.Background(), tablePath, rm)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRestoreBackup(t *testing.T) {
	dir := t.TempDir()
	tablePath, slotPath, _ := setupTable(t, dir)

	before, err := os.ReadFile(slotPath)
	require.NoError(t, err)

	rm := remap.New()
	require.NoError(t, rm.Assign(10, 3))

	r := New(WithBackup(true))
	require.NoError(t, r.Resync(context.Background(), tablePath, rm))
	require.NotEqual(t, before, mustRead(t, slotPath))

	require.NoError(t, RestoreBackup(tablePath))
	assert.Equal(t, before, mustRead(t, slotPath))
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestShouldResync(t *testing.T) {
	r := New(WithResyncThreshold(2))

	rm := remap.New()
	assert.False(t, r.ShouldResync(rm))

	require.NoError(t, rm.Assign(10, 3))
	assert.False(t, r.ShouldResync(rm))

	require.NoError(t, rm.Assign(11, 4))
	assert.True(t, r.ShouldResync(rm))
}

func TestResyncMetrics(t *testing.T) {
	dir := t.TempDir()
	tablePath, _, _ := setupTable(t, dir)

	badPath := filepath.Join(dir, "a001.broken.spx")
	require.NoError(t, os.WriteFile(badPath, []byte("short"), 0644))

	rm := remap.New()
	require.NoError(t, rm.Assign(10, 3))

	metrics := &BasicMetricsCollector{}
	r := New(WithMetricsCollector(metrics))
	require.Error(t, r.Resync(context.Background(), tablePath, rm))

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.ResyncCount)
	assert.Equal(t, int64(1), stats.ResyncErrors)
	assert.Equal(t, int64(1), stats.RemappedRows)
	assert.Equal(t, int64(2), stats.IndexPatchCount)
	assert.Equal(t, int64(1), stats.IndexesDropped)
}

func TestSlotFilePath(t *testing.T) {
	assert.Equal(t, "/data/a001.gdbtablx", slotFilePath("/data/a001.gdbtable"))
	assert.Equal(t, "/data/a001.gdbtablx", slotFilePath("/data/a001"))
}
