package blockfile

import (
	"io"
	"os"
)

// Mapped is a Store backed by a read-write memory mapping of a file.
//
// The mapping is fixed-size: in-place patching never grows an index file, so
// writes past the end fail with ErrOutOfBounds. Close flushes dirty pages,
// unmaps, and closes the underlying file.
type Mapped struct {
	f    *os.File
	data []byte
}

// OpenMapped maps the file at path read-write.
func OpenMapped(path string) (*Mapped, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	size := st.Size()
	if size == 0 {
		return &Mapped{f: f}, nil
	}
	data, err := osMapRW(f, int(size))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Mapped{f: f, data: data}, nil
}

func (s *Mapped) ReadAt(p []byte, off int64) (int, error) {
	if s.f == nil {
		return 0, ErrClosed
	}
	if off < 0 || off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *Mapped) WriteAt(p []byte, off int64) (int, error) {
	if s.f == nil {
		return 0, ErrClosed
	}
	if off < 0 || off+int64(len(p)) > int64(len(s.data)) {
		return 0, ErrOutOfBounds
	}
	return copy(s.data[off:], p), nil
}

// Size returns the mapped length.
func (s *Mapped) Size() (int64, error) {
	if s.f == nil {
		return 0, ErrClosed
	}
	return int64(len(s.data)), nil
}

// Sync flushes dirty mapped pages back to the file.
func (s *Mapped) Sync() error {
	if s.f == nil {
		return ErrClosed
	}
	if s.data == nil {
		return nil
	}
	return osFlush(s.data)
}

func (s *Mapped) Close() error {
	if s.f == nil {
		return nil
	}
	var err error
	if s.data != nil {
		err = osFlush(s.data)
		if unmapErr := osUnmap(s.data); unmapErr != nil && err == nil {
			err = unmapErr
		}
		s.data = nil
	}
	if closeErr := s.f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	s.f = nil
	return err
}
