package unpack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/ustar"
	"github.com/nguyengg/ustar/header"
	"github.com/nguyengg/ustar/internal"
	"golang.org/x/time/rate"
)

// Options customises Unpack.
type Options struct {
	// StripRoot is the top-level directory to remove from every entry's path.
	//
	// Entries outside StripRoot are rejected.
	StripRoot string

	// Logger receives progress and skipped-entry notices.
	//
	// By default, nothing is logged.
	Logger *log.Logger

	// Progress is where the per-file progress bar is rendered.
	//
	// By default, no progress bar is shown.
	Progress io.Writer
}

// Stats summarises an Unpack call.
type Stats struct {
	Files, Dirs, Links, Skipped int
	Bytes                       int64
}

// Unpack extracts every entry of the archive into the existing directory dst.
//
// Parent directories are created as needed even if the archive lacks their headers. Entries that would land outside dst
// are refused with an error before anything is written for them, including paths whose parent directories are symlinks
// created by earlier entries. Device and FIFO entries are skipped.
func Unpack(ctx context.Context, a *ustar.Archive, dst string, optFns ...func(*Options)) (stats Stats, err error) {
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

	x := &extractor{dst: dst, opts: opts, buf: make([]byte, 32*1024)}
	sometimes := rate.Sometimes{Interval: 5 * time.Second}

	for h, err := range a.Entries() {
		if err != nil {
			return stats, fmt.Errorf("read entry error: %w", err)
		}

		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		rel, ok := x.strip(h.Path())
		if !ok {
			return stats, fmt.Errorf(`"%s" is outside root directory "%s"`, h.Path(), opts.StripRoot)
		}
		if rel == "" {
			continue
		}

		target, err := internal.SafeJoin(dst, rel)
		if err != nil {
			return stats, err
		}
		if err = internal.CheckNoSymlinks(dst, rel); err != nil {
			return stats, err
		}

		switch h.Typeflag {
		case header.TypeDir:
			err = os.MkdirAll(target, h.FileMode().Perm()|0700)
			stats.Dirs++
		case header.TypeReg, header.TypeRegA, header.TypeCont:
			err = x.file(ctx, a, h, target)
			stats.Files++
			stats.Bytes += h.Size
		case header.TypeSymlink:
			err = x.symlink(h, rel, target)
			stats.Links++
		case header.TypeLink:
			err = x.hardlink(h, target)
			stats.Links++
		default:
			opts.Logger.Printf(`skipping %s "%s"`, h.Typeflag, h.Path())
			stats.Skipped++
		}
		if err != nil {
			return stats, fmt.Errorf(`extract "%s" error: %w`, h.Path(), err)
		}

		sometimes.Do(func() {
			opts.Logger.Printf("extracted %d files (%s) so far", stats.Files, humanize.IBytes(uint64(stats.Bytes)))
		})
	}

	return stats, nil
}

type extractor struct {
	dst  string
	opts *Options
	buf  []byte
}

// strip removes StripRoot from p; false is returned if p is not under StripRoot.
func (x *extractor) strip(p string) (string, bool) {
	if x.opts.StripRoot == "" {
		return p, true
	}

	root := strings.TrimSuffix(x.opts.StripRoot, "/") + "/"
	if p == root {
		return "", true
	}

	return strings.CutPrefix(p, root)
}

func (x *extractor) file(ctx context.Context, a *ustar.Archive, h *header.Header, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	// an existing symlink is replaced rather than written through.
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
		if err = os.Remove(target); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, h.FileMode().Perm())
	if err != nil {
		return err
	}

	bar := internal.DefaultBytes(x.opts.Progress, h.Size, path.Base(h.Name))
	_, err = internal.CopyN(ctx, io.MultiWriter(f, bar), a.EntryReader(), h.Size, x.buf)
	if err = errors.Join(err, f.Close(), bar.Close()); err != nil {
		return err
	}

	if !h.ModTime.IsZero() {
		return os.Chtimes(target, h.ModTime, h.ModTime)
	}

	return nil
}

// symlink creates target pointing at h.Linkname, which must resolve inside dst.
func (x *extractor) symlink(h *header.Header, rel, target string) error {
	resolved := h.Linkname
	if !path.IsAbs(resolved) {
		resolved = path.Join(path.Dir(strings.TrimSuffix(rel, "/")), resolved)
	}
	if _, err := internal.SafeJoin(x.dst, resolved); err != nil {
		return fmt.Errorf("link target: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	return os.Symlink(filepath.FromSlash(h.Linkname), target)
}

func (x *extractor) hardlink(h *header.Header, target string) error {
	rel, ok := x.strip(h.Linkname)
	if !ok {
		return fmt.Errorf(`link target "%s" is outside root directory "%s"`, h.Linkname, x.opts.StripRoot)
	}

	oldname, err := internal.SafeJoin(x.dst, rel)
	if err != nil {
		return fmt.Errorf("link target: %w", err)
	}
	if err = internal.CheckNoSymlinks(x.dst, rel); err != nil {
		return fmt.Errorf("link target: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	return os.Link(oldname, target)
}
