package internal

import (
	"context"
	"fmt"
	"io"
)

// CopyN copies exactly n bytes from src to dst, checking ctx for cancellation after every write.
//
// Unlike io.CopyN, it does not matter if src implements [io.WriterTo] or dst implements [io.ReaderFrom] because those
// interfaces do not support context. io.ErrUnexpectedEOF is returned if src ends before n bytes were copied.
func CopyN(ctx context.Context, dst io.Writer, src io.Reader, n int64, buf []byte) (written int64, err error) {
	if buf == nil {
		buf = make([]byte, 32*1024)
	}

	var nr, nw int
	for written < n {
		nr, err = src.Read(buf[:min(int64(len(buf)), n-written)])

		if nr > 0 {
			switch nw, err = dst.Write(buf[0:nr]); {
			case err != nil:
				return written + int64(nw), err
			case nr != nw:
				return written + int64(nw), fmt.Errorf("invalid write: expected to write %d bytes, wrote %d bytes instead", nr, nw)
			}
			written += int64(nw)

			select {
			case <-ctx.Done():
				return written, ctx.Err()
			default:
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return written, err
		}
	}

	if written < n {
		return written, io.ErrUnexpectedEOF
	}

	return written, nil
}
