// Package blockfile abstracts the random-access byte stores the rewrite
// engine operates on.
//
// The index algorithms never touch the filesystem directly; they read and
// write through Store so that format code can be tested against an in-memory
// buffer and production code can choose between plain file I/O and a
// read-write memory mapping.
package blockfile

import (
	"errors"
	"io"
	"os"
)

var (
	// ErrClosed is returned when accessing a closed store.
	ErrClosed = errors.New("blockfile: store is closed")

	// ErrOutOfBounds is returned by fixed-size stores on access past the end.
	ErrOutOfBounds = errors.New("blockfile: offset out of bounds")
)

// Store is a random-access byte store.
//
// ReadAt must fill the whole buffer or fail, per the io.ReaderAt contract.
// Implementations are not required to be safe for concurrent use; the resync
// protocol is single-writer.
type Store interface {
	io.ReaderAt
	io.WriterAt
	io.Closer

	// Size returns the current size of the store in bytes.
	Size() (int64, error)
}

// File is a Store backed by an *os.File.
type File struct {
	f *os.File
}

// Open opens an existing file for reading and in-place writing.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &File{f: f}, nil
}

// OpenReadOnly opens an existing file for reading only.
func OpenReadOnly(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{f: f}, nil
}

// Create creates (or truncates) a file open for reading and writing.
func Create(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	return &File{f: f}, nil
}

func (s *File) ReadAt(p []byte, off int64) (int, error) {
	if s.f == nil {
		return 0, ErrClosed
	}
	return s.f.ReadAt(p, off)
}

func (s *File) WriteAt(p []byte, off int64) (int, error) {
	if s.f == nil {
		return 0, ErrClosed
	}
	return s.f.WriteAt(p, off)
}

// Size returns the current file size.
func (s *File) Size() (int64, error) {
	if s.f == nil {
		return 0, ErrClosed
	}
	st, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

// Sync flushes file contents to stable storage.
func (s *File) Sync() error {
	if s.f == nil {
		return ErrClosed
	}
	return s.f.Sync()
}

func (s *File) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// Memory is a growable in-memory Store used in tests and format tooling.
type Memory struct {
	data   []byte
	closed bool
}

// NewMemory creates a Memory store seeded with data. The slice is used
// directly, not copied.
func NewMemory(data []byte) *Memory {
	return &Memory{data: data}
}

func (s *Memory) ReadAt(p []byte, off int64) (int, error) {
	if s.closed {
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

func (s *Memory) WriteAt(p []byte, off int64) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrOutOfBounds
	}
	if end := off + int64(len(p)); end > int64(len(s.data)) {
		grown := make([]byte, end)
		copy(grown, s.data)
		s.data = grown
	}
	return copy(s.data[off:], p), nil
}

// Size returns the current length of the buffer.
func (s *Memory) Size() (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	return int64(len(s.data)), nil
}

// Bytes returns the underlying buffer. Valid until the next WriteAt that
// grows the store.
func (s *Memory) Bytes() []byte {
	return s.data
}

func (s *Memory) Close() error {
	s.closed = true
	return nil
}
