// Package stream provides the byte-stream backends that an archive is read from and written to.
//
// The archive engine only ever talks to the Stream interface so the same engine works over regular files, raw file
// descriptors, in-memory buffers, or remote objects.
package stream

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Origin is the reference point of Stream.Seek.
type Origin int

const (
	// Start seeks relative to the first byte of the stream.
	Start Origin = iota
	// End seeks relative to the end of the stream.
	End
)

func (o Origin) whence() (int, error) {
	switch o {
	case Start:
		return io.SeekStart, nil
	case End:
		return io.SeekEnd, nil
	default:
		return 0, fmt.Errorf("invalid seek origin: %d", o)
	}
}

// Stream is the capability set that an archive needs from its storage.
//
// Implementations are not required to be safe for concurrent use.
type Stream interface {
	// Seek moves the cursor to offset relative to origin.
	Seek(offset int64, origin Origin) error
	// Tell returns the current cursor offset from Start.
	Tell() (int64, error)
	// ReadExact fills p entirely, failing if fewer than len(p) bytes are available.
	ReadExact(p []byte) error
	// WriteExact writes all of p, failing on a short write.
	WriteExact(p []byte) error
	// Close releases the underlying resource.
	Close() error
}

// Truncater is implemented by streams that can change their size.
//
// Streams that wrap something without a Truncate method return an error matching errors.ErrUnsupported.
type Truncater interface {
	Truncate(size int64) error
}

// New adapts rs into a Stream.
//
// Writes require rs to implement io.Writer, Close calls io.Closer if implemented, and Truncate calls Truncate(int64)
// error if implemented.
func New(rs io.ReadSeeker) Stream {
	return &seekerStream{rs: rs}
}

// OpenFile opens the named file with os.OpenFile and returns it as a Stream.
func OpenFile(name string, flag int, perm os.FileMode) (Stream, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}

	return New(f), nil
}

// NewDescriptor wraps an already-open file descriptor.
//
// The descriptor is owned by the returned Stream and closed with it. The name is only used in error messages.
func NewDescriptor(fd uintptr, name string) (Stream, error) {
	f := os.NewFile(fd, name)
	if f == nil {
		return nil, fmt.Errorf(`invalid file descriptor %d for "%s"`, fd, name)
	}

	return New(f), nil
}

// seekerStream implements Stream on top of an io.ReadSeeker.
type seekerStream struct {
	rs io.ReadSeeker
}

func (s *seekerStream) Seek(offset int64, origin Origin) error {
	whence, err := origin.whence()
	if err != nil {
		return err
	}

	_, err = s.rs.Seek(offset, whence)
	return err
}

func (s *seekerStream) Tell() (int64, error) {
	return s.rs.Seek(0, io.SeekCurrent)
}

func (s *seekerStream) ReadExact(p []byte) error {
	_, err := io.ReadFull(s.rs, p)
	return err
}

func (s *seekerStream) WriteExact(p []byte) error {
	w, ok := s.rs.(io.Writer)
	if !ok {
		return fmt.Errorf("stream is read-only: %w", errors.ErrUnsupported)
	}

	switch n, err := w.Write(p); {
	case err != nil:
		return err
	case n != len(p):
		return io.ErrShortWrite
	default:
		return nil
	}
}

func (s *seekerStream) Truncate(size int64) error {
	t, ok := s.rs.(interface{ Truncate(int64) error })
	if !ok {
		return fmt.Errorf("stream cannot be truncated: %w", errors.ErrUnsupported)
	}

	return t.Truncate(size)
}

func (s *seekerStream) Close() error {
	if c, ok := s.rs.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
