package stream

import (
	"errors"
	"io"
)

// ErrNegativeOffset is returned when seeking or truncating before the first byte.
var ErrNegativeOffset = errors.New("negative offset")

// Memory is a growable in-memory io.ReadWriteSeeker.
//
// Writing past the end extends the buffer, filling any gap with zeros. The zero value is an empty buffer ready to use.
// Wrap it with New to use it as a Stream; Close is a no-op so Bytes remains valid after the archive is closed.
type Memory struct {
	buf []byte
	off int64
}

// NewMemory returns a Memory whose initial content is b. Memory takes ownership of b.
func NewMemory(b []byte) *Memory {
	return &Memory{buf: b}
}

// Bytes returns the current content.
func (m *Memory) Bytes() []byte {
	return m.buf
}

// Len returns the current size.
func (m *Memory) Len() int {
	return len(m.buf)
}

func (m *Memory) Read(p []byte) (int, error) {
	if m.off >= int64(len(m.buf)) {
		return 0, io.EOF
	}

	n := copy(p, m.buf[m.off:])
	m.off += int64(n)
	return n, nil
}

func (m *Memory) Write(p []byte) (int, error) {
	if end := m.off + int64(len(p)); end > int64(len(m.buf)) {
		if end > int64(cap(m.buf)) {
			buf := make([]byte, end, max(end, 2*int64(cap(m.buf))))
			copy(buf, m.buf)
			m.buf = buf
		} else {
			// re-slicing may expose stale bytes from an earlier Truncate.
			clear(m.buf[len(m.buf):end])
			m.buf = m.buf[:end]
		}
	}

	n := copy(m.buf[m.off:], p)
	m.off += int64(n)
	return n, nil
}

func (m *Memory) Seek(offset int64, whence int) (int64, error) {
	var off int64
	switch whence {
	case io.SeekStart:
		off = offset
	case io.SeekCurrent:
		off = m.off + offset
	case io.SeekEnd:
		off = int64(len(m.buf)) + offset
	default:
		return m.off, errors.New("invalid whence")
	}

	if off < 0 {
		return m.off, ErrNegativeOffset
	}

	m.off = off
	return off, nil
}

// Truncate changes the size to n bytes, zero-extending if n is larger. The offset is not changed.
func (m *Memory) Truncate(n int64) error {
	if n < 0 {
		return ErrNegativeOffset
	}

	if n <= int64(len(m.buf)) {
		m.buf = m.buf[:n]
		return nil
	}

	m.buf = append(m.buf, make([]byte, n-int64(len(m.buf)))...)
	return nil
}
