package resource

import (
	"context"

	"github.com/hupe1980/fidsync/blockfile"
)

// LimitedStore wraps a blockfile.Store with I/O rate limiting.
//
// The context is captured at construction because Store methods carry no
// context of their own; the wrapper exists to throttle a single resync pass,
// whose context outlives every store access.
type LimitedStore struct {
	st  blockfile.Store
	rc  *Controller
	ctx context.Context
}

// NewLimitedStore wraps st. With a nil Controller the store is returned
// unwrapped.
func NewLimitedStore(ctx context.Context, st blockfile.Store, rc *Controller) blockfile.Store {
	if rc == nil || rc.ioLimiter == nil {
		return st
	}
	return &LimitedStore{st: st, rc: rc, ctx: ctx}
}

func (s *LimitedStore) ReadAt(p []byte, off int64) (int, error) {
	if err := s.rc.AcquireIO(s.ctx, len(p)); err != nil {
		return 0, err
	}
	return s.st.ReadAt(p, off)
}

func (s *LimitedStore) WriteAt(p []byte, off int64) (int, error) {
	if err := s.rc.AcquireIO(s.ctx, len(p)); err != nil {
		return 0, err
	}
	return s.st.WriteAt(p, off)
}

// Size returns the size of the wrapped store.
func (s *LimitedStore) Size() (int64, error) {
	return s.st.Size()
}

func (s *LimitedStore) Close() error {
	return s.st.Close()
}
