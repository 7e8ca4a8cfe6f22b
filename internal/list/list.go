package list

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/ustar"
	"github.com/nguyengg/ustar/header"
	"github.com/nguyengg/ustar/internal"
)

// Options customises List.
type Options struct {
	// Long prints mode, owner, size, and modification time alongside each path.
	Long bool

	// Human prints sizes with go-humanize instead of exact byte counts.
	Human bool

	// Checksum, if given, is the hash function (sha1, sha224, sha256, sha384, or sha512) used to print the Subresource
	// Integrity digest of each regular file in front of its path. Other entries get "-" instead.
	Checksum string
}

// Summary is the tally of a List call.
type Summary struct {
	Entries int
	Bytes   int64
}

// List writes one line per entry of the archive to w.
func List(ctx context.Context, a *ustar.Archive, w io.Writer, optFns ...func(*Options)) (s Summary, err error) {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}

	if opts.Checksum != "" {
		if _, err = newDigest(opts.Checksum); err != nil {
			return s, err
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	defer func() {
		if ferr := tw.Flush(); err == nil {
			err = ferr
		}
	}()

	for h, err := range a.Entries() {
		if err != nil {
			return s, err
		}

		select {
		case <-ctx.Done():
			return s, ctx.Err()
		default:
		}

		s.Entries++
		s.Bytes += h.Size

		if opts.Checksum != "" {
			sum, err := checksum(ctx, a, h, opts.Checksum)
			if err != nil {
				return s, fmt.Errorf(`hash "%s" error: %w`, h.Path(), err)
			}

			if _, err = fmt.Fprintf(tw, "%s\t ", sum); err != nil {
				return s, err
			}
		}

		if !opts.Long {
			_, err = fmt.Fprintf(tw, "%s\n", h.Path())
		} else {
			_, err = fmt.Fprintf(tw, "%s\t %s/%s\t %s\t %s\t %s\n", h.FileMode(), owner(h.Uname, h.Uid), owner(h.Gname, h.Gid), size(h.Size, opts.Human), modTime(h.ModTime), name(h))
		}
		if err != nil {
			return s, err
		}
	}

	return s, nil
}

func checksum(ctx context.Context, a *ustar.Archive, h *header.Header, name string) (string, error) {
	if !h.Typeflag.IsRegular() {
		return "-", nil
	}

	d, err := newDigest(name)
	if err != nil {
		return "", err
	}

	if _, err = internal.CopyN(ctx, d, a.EntryReader(), h.Size, nil); err != nil {
		return "", err
	}

	return d.String(), nil
}

func owner(name string, id int) string {
	if name != "" {
		return name
	}

	return fmt.Sprintf("%d", id)
}

func size(n int64, human bool) string {
	if human {
		return humanize.IBytes(uint64(n))
	}

	return fmt.Sprintf("%d", n)
}

func modTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.UTC().Format("2006-01-02 15:04")
}

// name is the path with the link target of link entries.
func name(h *header.Header) string {
	switch h.Typeflag {
	case header.TypeSymlink:
		return h.Path() + " -> " + h.Linkname
	case header.TypeLink:
		return h.Path() + " link to " + h.Linkname
	default:
		return h.Path()
	}
}
