package blockfile

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReadWrite(t *testing.T) {
	st := NewMemory([]byte{1, 2, 3, 4})

	buf := make([]byte, 2)
	n, err := st.ReadAt(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{2, 3}, buf)

	// Short read at the tail reports EOF.
	n, err = st.ReadAt(buf, 3)
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = st.ReadAt(buf, 10)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMemoryGrowsOnWrite(t *testing.T) {
	st := NewMemory(nil)

	_, err := st.WriteAt([]byte{9, 8}, 4)
	require.NoError(t, err)

	size, err := st.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)
	assert.Equal(t, []byte{0, 0, 0, 0, 9, 8}, st.Bytes())
}

func TestMemoryClosed(t *testing.T) {
	st := NewMemory([]byte{1})
	require.NoError(t, st.Close())

	_, err := st.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = st.WriteAt([]byte{1}, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.bin")

	st, err := Create(path)
	require.NoError(t, err)

	_, err = st.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)
	_, err = st.WriteAt([]byte("!"), 5)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st2, err := Open(path)
	require.NoError(t, err)
	defer st2.Close()

	size, err := st2.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)

	buf := make([]byte, 6)
	_, err = st2.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello!", string(buf))
}

func TestMappedPatchInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapped.bin")
	require.NoError(t, os.WriteFile(path, []byte("abcdef"), 0644))

	st, err := OpenMapped(path)
	require.NoError(t, err)

	_, err = st.WriteAt([]byte("XY"), 2)
	require.NoError(t, err)

	// Fixed-size mapping refuses to grow.
	_, err = st.WriteAt([]byte("zz"), 5)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	buf := make([]byte, 6)
	_, err = st.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "abXYef", string(buf))

	require.NoError(t, st.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abXYef", string(data))
}
