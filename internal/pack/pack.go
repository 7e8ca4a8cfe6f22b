package pack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/ustar"
	"github.com/nguyengg/ustar/header"
	"github.com/nguyengg/ustar/internal"
	"github.com/nguyengg/ustar/internal/config"
	"golang.org/x/time/rate"
)

// Options customises Pack.
type Options struct {
	// Defaults overrides ownership and permissions of every entry.
	Defaults config.HeaderConfig

	// Logger receives progress and skipped-file notices.
	//
	// By default, nothing is logged.
	Logger *log.Logger

	// Progress is where the per-file progress bar is rendered.
	//
	// By default, no progress bar is shown.
	Progress io.Writer

	// Exclude is a local file that must never be added, usually the archive being written.
	Exclude string
}

// Stats summarises a Pack call.
type Stats struct {
	Entries int
	Bytes   int64
}

// Pack recursively adds the named file or directory to the archive.
//
// Entries are named relative to the parent of name, so packing "path/to/dir" produces "dir/", "dir/a.txt", etc. The
// walk emits a directory's header before its children. Sockets, files whose path or metadata cannot be represented in
// a USTAR header, and Options.Exclude are skipped and logged.
func Pack(ctx context.Context, a *ustar.Archive, name string, optFns ...func(*Options)) (stats Stats, err error) {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}

	var exclude fs.FileInfo
	if opts.Exclude != "" {
		exclude, _ = os.Stat(opts.Exclude)
	}

	root := filepath.Dir(filepath.Clean(name))
	buf := make([]byte, 32*1024)
	sometimes := rate.Sometimes{Interval: 5 * time.Second}

	err = filepath.WalkDir(name, func(srcPath string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return fmt.Errorf("walk dir error: %w", err)
		}

		rel, err := filepath.Rel(root, srcPath)
		if err != nil {
			return fmt.Errorf(`compute name in archive for "%s" error: %w`, srcPath, err)
		}

		path := internal.CleanPath(rel, d.IsDir())
		if path == "" {
			return nil
		}

		if exclude != nil {
			if fi, err := d.Info(); err == nil && os.SameFile(fi, exclude) {
				opts.Logger.Printf(`skipping "%s": file is the archive itself`, srcPath)
				return nil
			}
		}

		h, err := newHeader(srcPath, path, d, opts.Defaults)
		if err == nil {
			err = add(ctx, a, srcPath, h, buf, opts)
		}
		switch {
		case errors.Is(err, errUnsupported), errors.Is(err, header.ErrFieldTooLong), errors.Is(err, header.ErrFieldOverflow):
			// nothing was written for this entry.
			opts.Logger.Printf(`skipping "%s": %v`, srcPath, err)
			return nil
		case err != nil:
			return err
		}

		stats.Entries++
		stats.Bytes += h.Size
		sometimes.Do(func() {
			opts.Logger.Printf("added %d entries (%s) so far", stats.Entries, humanize.IBytes(uint64(stats.Bytes)))
		})
		return nil
	})

	return stats, err
}

var errUnsupported = errors.New("unsupported file type")

// newHeader creates the header for srcPath stored as path.
func newHeader(srcPath, path string, d fs.DirEntry, defaults config.HeaderConfig) (*header.Header, error) {
	fi, err := d.Info()
	if err != nil {
		return nil, fmt.Errorf(`stat "%s" error: %w`, srcPath, err)
	}

	var link string
	if fi.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(srcPath); err != nil {
			return nil, fmt.Errorf(`read link "%s" error: %w`, srcPath, err)
		}
	}

	if fi.Mode()&(fs.ModeSocket|fs.ModeIrregular) != 0 {
		return nil, fmt.Errorf("%w: %v", errUnsupported, fi.Mode())
	}

	h, err := header.FileInfoHeader(fi, path, filepath.ToSlash(link))
	if err != nil {
		return nil, fmt.Errorf(`create header for "%s" error: %w`, srcPath, err)
	}

	owner(h, fi)
	applyDefaults(h, defaults)
	return h, nil
}

func applyDefaults(h *header.Header, defaults config.HeaderConfig) {
	if defaults.Uname != "" {
		h.Uname = defaults.Uname
	}
	if defaults.Gname != "" {
		h.Gname = defaults.Gname
	}
	if defaults.Uid != nil {
		h.Uid = *defaults.Uid
	}
	if defaults.Gid != nil {
		h.Gid = *defaults.Gid
	}

	switch {
	case h.Typeflag == header.TypeDir && defaults.DirMode != 0:
		h.Mode = int64(defaults.DirMode)
	case h.Typeflag.IsRegular() && defaults.FileMode != 0:
		h.Mode = int64(defaults.FileMode)
	}
}

// add writes h and, for regular files, the content of srcPath.
func add(ctx context.Context, a *ustar.Archive, srcPath string, h *header.Header, buf []byte, opts *Options) error {
	if err := a.WriteHeader(h); err != nil {
		return fmt.Errorf(`write header for "%s" error: %w`, h.Path(), err)
	}

	if h.Size == 0 {
		return nil
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf(`open file "%s" error: %w`, srcPath, err)
	}
	defer src.Close()

	bar := internal.DefaultBytes(opts.Progress, h.Size, filepath.Base(srcPath))
	defer bar.Close()

	// a file that shrinks after stat leaves the entry incomplete, which Close reports.
	if _, err = internal.CopyN(ctx, io.MultiWriter(a.EntryWriter(), bar), src, h.Size, buf); err != nil {
		return fmt.Errorf(`add file "%s" to archive error: %w`, srcPath, err)
	}

	return nil
}
