// Package ustar reads, writes, and appends to USTAR tape archives over a pluggable stream.Stream backend.
//
// An Archive has exactly one cursor. Reading iterates headers with ReadHeader and Next (or Find) and streams the
// current entry's data with ReadData; writing emits WriteHeader followed by WriteData for each entry. Data can be
// streamed in chunks of any size because the Archive tracks how many bytes of the current entry remain.
//
// An Archive is not safe for concurrent use.
package ustar

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/nguyengg/ustar/header"
	"github.com/nguyengg/ustar/stream"
)

// closingRecordSize is the size of the end-of-archive marker: two zero blocks.
const closingRecordSize = 2 * header.BlockSize

var zeroBlocks [closingRecordSize]byte

// Mode is the open mode of an Archive.
type Mode int

const (
	// ModeRead opens an existing archive for reading. The first header is validated on open.
	ModeRead Mode = iota
	// ModeWrite creates a new archive, discarding any existing content.
	ModeWrite
	// ModeAppend adds entries to an existing archive, overwriting its end-of-archive marker.
	//
	// A missing, empty, or non-tar file is overwritten from the start instead.
	ModeAppend
)

// ParseMode parses "r", "w", or "a" (or their long forms "read", "write", "append").
func ParseMode(s string) (Mode, error) {
	switch s {
	case "r", "read":
		return ModeRead, nil
	case "w", "write":
		return ModeWrite, nil
	case "a", "append":
		return ModeAppend, nil
	default:
		return 0, fmt.Errorf(`%w: unknown mode "%s"`, ErrInvalidArgument, s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	case ModeAppend:
		return "append"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Options customises Open and OpenStream.
type Options struct {
	// Logger receives notices about decisions made on behalf of the caller, such as where appending starts.
	//
	// By default, nothing is logged.
	Logger *log.Logger

	// Perm is the permission used when Open creates a new file.
	//
	// Default to 0666 (before umask).
	Perm os.FileMode
}

// Archive is an open archive.
type Archive struct {
	s      stream.Stream
	mode   Mode
	logger *log.Logger

	// lastHeaderPos is the offset of the most recently read or written header.
	lastHeaderPos int64
	// bytesLeft is the number of data bytes of the current entry not yet read or written.
	bytesLeft int64
	// writing is true while bytesLeft counts bytes to be written rather than read.
	writing bool
	// finalize is true if Close must write the end-of-archive marker.
	finalize bool
	// written is the number of headers written since open.
	written int

	// writeAt is where the next write goes; moved is true if reads have moved the cursor away from it.
	writeAt int64
	moved   bool
	// truncate is true if the stream should be cut at writeAt before the first write.
	truncate bool

	closed bool
}

// Open opens the named file as an archive in the given mode.
//
// ModeRead opens the file read-only, ModeWrite creates or truncates it, and ModeAppend opens it for reading and
// writing, creating it if absent.
func Open(name string, mode Mode, optFns ...func(*Options)) (*Archive, error) {
	opts := &Options{Perm: 0666}
	for _, fn := range optFns {
		fn(opts)
	}

	var flag int
	switch mode {
	case ModeRead:
		flag = os.O_RDONLY
	case ModeWrite:
		flag = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	case ModeAppend:
		flag = os.O_RDWR | os.O_CREATE
	default:
		return nil, fmt.Errorf("%w: unknown mode %v", ErrInvalidArgument, mode)
	}

	s, err := stream.OpenFile(name, flag, opts.Perm)
	if err != nil {
		return nil, &IOError{Op: "open", Offset: -1, Err: err}
	}

	return openStream(s, mode, opts)
}

// OpenStream opens s as an archive in the given mode.
//
// The returned Archive owns s and closes it on Close. If OpenStream fails, s is closed before returning.
//
// In ModeWrite, s is truncated if it implements stream.Truncater, then written from offset 0.
func OpenStream(s stream.Stream, mode Mode, optFns ...func(*Options)) (*Archive, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil stream", ErrInvalidArgument)
	}

	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}

	return openStream(s, mode, opts)
}

func openStream(s stream.Stream, mode Mode, opts *Options) (*Archive, error) {
	a := &Archive{
		s:      s,
		mode:   mode,
		logger: opts.Logger,
	}
	if a.logger == nil {
		a.logger = log.New(io.Discard, "", 0)
	}

	var err error
	switch mode {
	case ModeRead:
		err = a.openRead()
	case ModeWrite:
		err = a.openWrite()
	case ModeAppend:
		err = a.openAppend()
	default:
		err = fmt.Errorf("%w: unknown mode %v", ErrInvalidArgument, mode)
	}

	if err != nil {
		if cerr := s.Close(); cerr != nil {
			err = errors.Join(err, &IOError{Op: "close", Offset: -1, Err: cerr})
		}

		return nil, err
	}

	return a, nil
}

// openRead validates that the stream starts with a valid header.
func (a *Archive) openRead() error {
	if _, err := a.ReadHeader(); err != nil {
		return fmt.Errorf("validate archive error: %w", err)
	}

	return nil
}

func (a *Archive) openWrite() error {
	a.finalize = true

	if t, ok := a.s.(stream.Truncater); ok {
		if err := t.Truncate(0); err != nil && !errors.Is(err, errors.ErrUnsupported) {
			return &IOError{Op: "write", Offset: 0, Err: err}
		}
	}

	return a.seek(0)
}

// openAppend decides where appending starts. The cursor is left at offset 0 so the existing entries can be read; the
// first write moves it to writeAt.
func (a *Archive) openAppend() error {
	a.finalize = true

	if err := a.s.Seek(0, stream.End); err != nil {
		return &IOError{Op: "seek", Offset: -1, Err: err}
	}
	size, err := a.tell()
	if err != nil {
		return err
	}
	if err = a.seek(0); err != nil {
		return err
	}

	if size < closingRecordSize {
		a.logger.Printf("archive has only %d bytes, will write from the start", size)
		a.appendFrom(0)
		return nil
	}

	switch _, err = a.ReadHeader(); {
	case errors.Is(err, ErrNullRecord), errors.Is(err, ErrBadChecksum):
		a.logger.Printf("archive does not start with a valid header (%v), will write from the start", err)
		a.appendFrom(0)
		return nil
	case err != nil:
		return fmt.Errorf("validate archive error: %w", err)
	}

	off, err := a.skipClosingRecord(size)
	if err != nil {
		return err
	}

	a.appendFrom(off)
	return a.seek(0)
}

// skipClosingRecord returns the offset at which appending should start: the start of the end-of-archive marker if
// the stream ends with one, the end of the stream otherwise.
//
// An unfinalized archive whose last entry ends with 1024 zero bytes is indistinguishable from a finalized one.
func (a *Archive) skipClosingRecord(size int64) (int64, error) {
	if err := a.s.Seek(-closingRecordSize, stream.End); err != nil {
		return 0, &IOError{Op: "seek", Offset: size - closingRecordSize, Err: err}
	}

	var buf [closingRecordSize]byte
	if err := a.s.ReadExact(buf[:]); err != nil {
		return 0, &IOError{Op: "read", Offset: size - closingRecordSize, Err: err}
	}

	if buf != zeroBlocks {
		a.logger.Printf("archive is not finalized, will append after the last %d bytes", size)
		return size, nil
	}

	off, err := a.firstNullRecord(size - closingRecordSize)
	if err != nil {
		return 0, err
	}

	if n := size - closingRecordSize - off; n > 0 {
		a.logger.Printf("will overwrite end-of-archive marker and %d bytes of trailing zero blocks at offset %d", n, off)
	} else {
		a.logger.Printf("will overwrite end-of-archive marker at offset %d", off)
	}
	return off, nil
}

// firstNullRecord walks the headers from the start and returns the offset of the first null record, which is where
// the end-of-archive marker really starts if the archive was padded to a larger record size (e.g. GNU tar's 10240
// bytes).
//
// limit is returned if no null record is found before it, or if a header fails its checksum on the way.
func (a *Archive) firstNullRecord(limit int64) (int64, error) {
	var off int64
	for off < limit {
		if err := a.seek(off); err != nil {
			return 0, err
		}

		h, err := a.ReadHeader()
		switch {
		case errors.Is(err, ErrNullRecord):
			return off, nil
		case errors.Is(err, ErrBadChecksum):
			return limit, nil
		case err != nil:
			return 0, err
		}

		off += header.BlockSize + roundUp(h.Size)
	}

	return limit, nil
}

func (a *Archive) appendFrom(off int64) {
	a.writeAt = off
	a.moved = true
	a.truncate = true
}

// Mode returns the mode the archive was opened with.
func (a *Archive) Mode() Mode {
	return a.mode
}

// Close writes the end-of-archive marker if the archive was opened for writing or appending and at least one header
// was written, then closes the stream.
//
// Close must be called exactly once; subsequent calls return ErrClosed. If the last entry's data was not fully
// written, no marker is written and the returned error matches ErrIncompleteEntry.
func (a *Archive) Close() error {
	if err := a.check(); err != nil {
		return err
	}
	a.closed = true

	var errs []error
	if a.finalize && a.written > 0 {
		if a.writing {
			errs = append(errs, fmt.Errorf("%w: last entry is missing %d bytes", ErrIncompleteEntry, a.bytesLeft))
		} else if err := a.prepareWrite(); err != nil {
			errs = append(errs, err)
		} else if err = a.s.WriteExact(zeroBlocks[:]); err != nil {
			errs = append(errs, &IOError{Op: "write", Offset: a.writeAt, Err: err})
		}
	}

	if err := a.s.Close(); err != nil {
		errs = append(errs, &IOError{Op: "close", Offset: -1, Err: err})
	}

	return errors.Join(errs...)
}

// Rewind moves the cursor back to the first header.
func (a *Archive) Rewind() error {
	if err := a.checkRead(); err != nil {
		return err
	}

	a.lastHeaderPos = 0
	a.bytesLeft = 0
	return a.seek(0)
}

func (a *Archive) check() error {
	switch {
	case a == nil || a.s == nil:
		return fmt.Errorf("%w: nil archive", ErrInvalidArgument)
	case a.closed:
		return ErrClosed
	default:
		return nil
	}
}

// checkRead is check plus refusing to move the cursor away from an entry that is still being written.
func (a *Archive) checkRead() error {
	if err := a.check(); err != nil {
		return err
	}

	if a.writing {
		return fmt.Errorf("%w: current entry is missing %d bytes", ErrIncompleteEntry, a.bytesLeft)
	}

	a.moved = true
	return nil
}

func (a *Archive) seek(off int64) error {
	if err := a.s.Seek(off, stream.Start); err != nil {
		return &IOError{Op: "seek", Offset: off, Err: err}
	}

	return nil
}

func (a *Archive) tell() (int64, error) {
	off, err := a.s.Tell()
	if err != nil {
		return 0, &IOError{Op: "tell", Offset: -1, Err: err}
	}

	return off, nil
}

// roundUp rounds n up to the next multiple of header.BlockSize.
func roundUp(n int64) int64 {
	return (n + header.BlockSize - 1) / header.BlockSize * header.BlockSize
}
