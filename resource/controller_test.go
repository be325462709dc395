package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fidsync/blockfile"
)

func TestNilControllerIsPassThrough(t *testing.T) {
	var c *Controller

	require.NoError(t, c.AcquireResync(context.Background()))
	c.ReleaseResync()
	require.NoError(t, c.AcquireIO(context.Background(), 1<<20))
}

func TestResyncSlots(t *testing.T) {
	c := NewController(Config{MaxConcurrentResyncs: 1})

	require.NoError(t, c.AcquireResync(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.AcquireResync(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c.ReleaseResync()
	require.NoError(t, c.AcquireResync(context.Background()))
	c.ReleaseResync()
}

func TestLimitedStoreUnwrappedWithoutLimit(t *testing.T) {
	st := blockfile.NewMemory([]byte{1, 2, 3})

	wrapped := NewLimitedStore(context.Background(), st, nil)
	assert.Same(t, blockfile.Store(st), wrapped)

	wrapped = NewLimitedStore(context.Background(), st, NewController(Config{}))
	assert.Same(t, blockfile.Store(st), wrapped)
}

func TestLimitedStoreThrottles(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 30})
	st := NewLimitedStore(context.Background(), blockfile.NewMemory(nil), c)

	_, err := st.WriteAt([]byte{1, 2, 3, 4}, 0)
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = st.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)

	// A canceled context must surface from the limiter.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st2 := NewLimitedStore(ctx, blockfile.NewMemory(nil), c)
	_, err = st2.WriteAt([]byte{1}, 0)
	assert.Error(t, err)
}
