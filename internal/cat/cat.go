package cat

import (
	"context"
	"fmt"
	"io"

	"github.com/nguyengg/ustar"
	"github.com/nguyengg/ustar/internal"
)

// Cat finds the entry with the given path and copies its data to w.
//
// Only regular files can be printed. The returned error matches ustar.ErrNotFound if no entry has that path.
func Cat(ctx context.Context, a *ustar.Archive, path string, w io.Writer) (int64, error) {
	h, err := a.Find(path)
	if err != nil {
		return 0, err
	}

	if !h.Typeflag.IsRegular() {
		return 0, fmt.Errorf(`"%s" is a %s, not a file`, path, h.Typeflag)
	}

	return internal.CopyN(ctx, w, a.EntryReader(), h.Size, nil)
}
