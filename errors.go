package ustar

import (
	"errors"
	"fmt"

	"github.com/nguyengg/ustar/header"
)

var (
	// ErrInvalidArgument is returned for nil arguments, unknown modes, and operations the open mode does not allow.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOpenFail is the kind of IOError returned when the backend cannot be opened.
	ErrOpenFail = errors.New("failed to open")
	// ErrReadFail is the kind of IOError returned when the backend cannot supply the requested bytes.
	ErrReadFail = errors.New("failed to read data")
	// ErrWriteFail is the kind of IOError returned when the backend cannot accept all bytes.
	ErrWriteFail = errors.New("failed to write data")
	// ErrSeekFail is the kind of IOError returned when the backend cannot seek or report its offset.
	ErrSeekFail = errors.New("failed to seek")
	// ErrCloseFail is the kind of IOError returned when the backend cannot be closed.
	ErrCloseFail = errors.New("failed to close")
	// ErrNotFound is returned by Find if no entry has the requested path.
	ErrNotFound = errors.New("record not found")

	// ErrBadChecksum is header.ErrBadChecksum.
	ErrBadChecksum = header.ErrBadChecksum
	// ErrNullRecord is header.ErrNullRecord.
	ErrNullRecord = header.ErrNullRecord
	// ErrFieldTooLong is header.ErrFieldTooLong.
	ErrFieldTooLong = header.ErrFieldTooLong
	// ErrFieldOverflow is header.ErrFieldOverflow.
	ErrFieldOverflow = header.ErrFieldOverflow

	// ErrClosed is returned by every method after Close.
	ErrClosed = fmt.Errorf("%w: archive already closed", ErrInvalidArgument)
	// ErrWriteTooLong is returned by EntryWriter when writing more than the entry's declared size.
	ErrWriteTooLong = errors.New("write too long")
	// ErrIncompleteEntry is returned when an operation would abandon an entry whose data was not fully written.
	ErrIncompleteEntry = errors.New("entry data incomplete")
)

// IOError is returned when the Stream backend fails.
//
// errors.Is matches an IOError against the sentinel of its kind (ErrOpenFail, ErrReadFail, ErrWriteFail,
// ErrSeekFail, or ErrCloseFail) as well as against the underlying cause.
type IOError struct {
	// Op is one of "open", "read", "write", "seek", "tell", or "close".
	Op string
	// Offset is where the operation was attempted, or -1 if unknown.
	Offset int64
	// Err is the error returned by the backend.
	Err error
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == e.Kind()
}

// Kind returns the sentinel error matching Op.
func (e *IOError) Kind() error {
	switch e.Op {
	case "open":
		return ErrOpenFail
	case "read":
		return ErrReadFail
	case "write":
		return ErrWriteFail
	case "seek", "tell":
		return ErrSeekFail
	case "close":
		return ErrCloseFail
	default:
		return nil
	}
}

func (e *IOError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%s error: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s error at offset %d: %v", e.Op, e.Offset, e.Err)
}
