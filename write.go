package ustar

import (
	"errors"
	"fmt"
	"io"

	"github.com/nguyengg/ustar/header"
	"github.com/nguyengg/ustar/stream"
)

// WriteHeader encodes h and writes it at the end of the archive, priming the archive to accept h.Size bytes of data
// via WriteData.
//
// In ModeAppend, the first write lands on the existing end-of-archive marker (or at the start of a non-tar stream)
// rather than after it. The returned error matches ErrIncompleteEntry if the previous entry's data was not fully
// written, and header.ErrFieldTooLong or header.ErrFieldOverflow if h cannot be encoded.
func (a *Archive) WriteHeader(h *header.Header) error {
	if err := a.checkWrite(); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("%w: nil header", ErrInvalidArgument)
	}
	if a.writing {
		return fmt.Errorf("%w: previous entry is missing %d bytes", ErrIncompleteEntry, a.bytesLeft)
	}

	b, err := header.Encode(h)
	if err != nil {
		return fmt.Errorf(`encode header for "%s" error: %w`, h.Path(), err)
	}

	if err = a.prepareWrite(); err != nil {
		return err
	}

	pos := a.writeAt
	if err = a.s.WriteExact(b[:]); err != nil {
		return &IOError{Op: "write", Offset: pos, Err: err}
	}

	a.lastHeaderPos = pos
	a.writeAt = pos + header.BlockSize
	a.bytesLeft = h.Size
	a.writing = h.Size > 0
	a.written++
	return nil
}

// WriteData writes the next chunk of the current entry's data and returns the number of bytes written.
//
// At most the number of bytes still owed to the entry is written; the excess of p is ignored. Once the entry's last
// byte is written, its data is zero-padded to a block boundary, so data may be written in chunks of any size.
func (a *Archive) WriteData(p []byte) (int, error) {
	if err := a.checkWrite(); err != nil {
		return 0, err
	}
	if !a.writing {
		return 0, nil
	}

	if err := a.prepareWrite(); err != nil {
		return 0, err
	}

	n := int(min(int64(len(p)), a.bytesLeft))
	if err := a.s.WriteExact(p[:n]); err != nil {
		return 0, &IOError{Op: "write", Offset: a.writeAt, Err: err}
	}
	a.writeAt += int64(n)

	if a.bytesLeft -= int64(n); a.bytesLeft > 0 {
		return n, nil
	}
	a.writing = false

	pos, err := a.tell()
	if err != nil {
		return n, err
	}

	if pad := roundUp(pos) - pos; pad > 0 {
		if err = a.s.WriteExact(zeroBlocks[:pad]); err != nil {
			return n, &IOError{Op: "write", Offset: pos, Err: err}
		}
	}
	a.writeAt = roundUp(pos)

	return n, nil
}

// EntryWriter returns an io.Writer over the data of the entry whose header was just written.
//
// Unlike WriteData, writing more than the entry's remaining size writes what fits and returns ErrWriteTooLong.
func (a *Archive) EntryWriter() io.Writer {
	return &entryWriter{a: a}
}

type entryWriter struct {
	a *Archive
}

func (w *entryWriter) Write(p []byte) (int, error) {
	n, err := w.a.WriteData(p)
	if err == nil && n < len(p) {
		err = ErrWriteTooLong
	}

	return n, err
}

func (a *Archive) checkWrite() error {
	if err := a.check(); err != nil {
		return err
	}

	if a.mode == ModeRead {
		return fmt.Errorf("%w: archive is opened for reading", ErrInvalidArgument)
	}

	return nil
}

// prepareWrite moves the cursor back to writeAt if it was moved by reads or if this is the first write of an append.
func (a *Archive) prepareWrite() error {
	if !a.moved {
		return nil
	}

	if err := a.seek(a.writeAt); err != nil {
		return err
	}

	if a.truncate {
		if t, ok := a.s.(stream.Truncater); ok {
			if err := t.Truncate(a.writeAt); err != nil && !errors.Is(err, errors.ErrUnsupported) {
				return &IOError{Op: "write", Offset: a.writeAt, Err: err}
			}
		}

		a.truncate = false
	}

	a.moved = false
	return nil
}
