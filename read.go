package ustar

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/nguyengg/ustar/header"
)

// ReadHeader decodes the header at the cursor without consuming it.
//
// The cursor is restored to the start of the header afterward, so calling ReadHeader repeatedly returns the same
// header. The returned error matches ErrNullRecord at the end-of-archive marker, ErrBadChecksum on corrupt data,
// and ErrReadFail (and io.EOF) if the stream ends exactly at the cursor.
func (a *Archive) ReadHeader() (*header.Header, error) {
	if err := a.checkRead(); err != nil {
		return nil, err
	}

	pos, err := a.tell()
	if err != nil {
		return nil, err
	}
	a.lastHeaderPos = pos

	var b header.Block
	rerr := a.s.ReadExact(b[:])
	serr := a.seek(pos)

	switch {
	case rerr != nil:
		return nil, &IOError{Op: "read", Offset: pos, Err: rerr}
	case serr != nil:
		return nil, serr
	}

	h, err := header.Decode(&b)
	if err != nil {
		return nil, fmt.Errorf("read header at offset %d error: %w", pos, err)
	}

	return h, nil
}

// Next moves the cursor past the current entry (header and padded data) to the next header.
//
// If the current entry was only partially read with ReadData, the rest of its data is skipped.
func (a *Archive) Next() error {
	if err := a.checkRead(); err != nil {
		return err
	}

	if a.bytesLeft > 0 {
		if err := a.seek(a.lastHeaderPos); err != nil {
			return err
		}
		a.bytesLeft = 0
	}

	h, err := a.ReadHeader()
	if err != nil {
		return err
	}

	return a.skip(h)
}

// skip moves the cursor past the entry whose header h was just read at lastHeaderPos.
func (a *Archive) skip(h *header.Header) error {
	return a.seek(a.lastHeaderPos + header.BlockSize + roundUp(h.Size))
}

// Find rewinds the archive and scans for the entry whose full path (see header.Header.Path) equals path.
//
// On success, the cursor is left at the matching header so ReadData streams its data. The error matches ErrNotFound
// if the archive ends without a match, or ErrNullRecord if path cannot be represented in a USTAR header and so cannot
// be in the archive.
func (a *Archive) Find(path string) (*header.Header, error) {
	if _, _, err := header.SplitPath(path); err != nil {
		return nil, fmt.Errorf(`%w: "%s" cannot be stored in an archive: %w`, ErrNullRecord, path, err)
	}

	if err := a.Rewind(); err != nil {
		return nil, err
	}

	for {
		h, err := a.ReadHeader()
		switch {
		case errors.Is(err, ErrNullRecord), errors.Is(err, io.EOF):
			return nil, fmt.Errorf(`%w: "%s"`, ErrNotFound, path)
		case err != nil:
			return nil, err
		}

		if h.Path() == path {
			return h, nil
		}

		if err = a.skip(h); err != nil {
			return nil, err
		}
	}
}

// ReadData reads the next chunk of the current entry's data into p and returns the number of bytes read.
//
// The first call for an entry decodes the header at the cursor to learn its size. Each call reads
// min(len(p), remaining) bytes. Once the last byte is read, the cursor returns to the entry's header so that Next
// moves on to the following entry; a further ReadData call starts the same entry over. Entries without data always
// read 0 bytes.
func (a *Archive) ReadData(p []byte) (int, error) {
	if err := a.checkRead(); err != nil {
		return 0, err
	}

	if a.bytesLeft == 0 {
		h, err := a.ReadHeader()
		if err != nil {
			return 0, err
		}

		a.bytesLeft = h.Size
		if err = a.seek(a.lastHeaderPos + header.BlockSize); err != nil {
			a.bytesLeft = 0
			return 0, err
		}
	}

	n := int(min(int64(len(p)), a.bytesLeft))
	if err := a.s.ReadExact(p[:n]); err != nil {
		return 0, &IOError{Op: "read", Offset: -1, Err: err}
	}

	if a.bytesLeft -= int64(n); a.bytesLeft == 0 {
		if err := a.seek(a.lastHeaderPos); err != nil {
			return n, err
		}
	}

	return n, nil
}

// Entries returns an iterator over every header from the start of the archive.
//
// Iteration stops at the end-of-archive marker or at the end of the stream; any other error is yielded once and ends
// the iteration. The cursor is at the yielded entry's header during each iteration, so ReadData or EntryReader may be
// used to stream its data.
func (a *Archive) Entries() iter.Seq2[*header.Header, error] {
	return func(yield func(*header.Header, error) bool) {
		if err := a.Rewind(); err != nil {
			yield(nil, err)
			return
		}

		for {
			h, err := a.ReadHeader()
			switch {
			case errors.Is(err, ErrNullRecord), errors.Is(err, io.EOF):
				return
			case err != nil:
				yield(nil, err)
				return
			}

			if !yield(h, nil) {
				return
			}

			if err = a.Next(); err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// EntryReader returns an io.Reader over the data of the entry at the cursor.
//
// The reader returns io.EOF once the entry's data is exhausted, leaving the cursor at the entry's header.
func (a *Archive) EntryReader() io.Reader {
	return &entryReader{a: a}
}

type entryReader struct {
	a    *Archive
	done bool
}

func (r *entryReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}

	n, err := r.a.ReadData(p)
	if err != nil {
		return n, err
	}

	if r.a.bytesLeft == 0 {
		r.done = true
		if n == 0 {
			return 0, io.EOF
		}
	}

	return n, nil
}
