package unpack

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/ustar"
	"github.com/nguyengg/ustar/internal"
)

type Command struct {
	Directory string `short:"C" long:"directory" description:"extract into this directory instead of a new one named after the archive"`
	Args      struct {
		Archives []string `positional-arg-name:"archive" description:"local paths or s3://bucket/key of the archives to be extracted" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	success := 0
	n := len(c.Args.Archives)
	for i, name := range c.Args.Archives {
		ctx := internal.WithPrefixLogger(ctx, internal.Prefix(i, n, name))
		logger := internal.MustLogger(ctx)

		output, stats, err := c.unpack(ctx, name)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}

			logger.Printf("unpack error: %v", err)
			continue
		}

		success++
		logger.Printf(`extracted %d files (%s) and %d directories to "%s"`, stats.Files, humanize.IBytes(uint64(stats.Bytes)), stats.Dirs, output)
	}

	log.Printf("successfully unpacked %d/%d archives", success, n)
	return nil
}

// unpack extracts the named archive and returns the output directory.
//
// Without --directory, the output is a new directory next to the working directory. If every entry shares the same
// top-level directory, that directory becomes the output; otherwise the output is named after the archive.
func (c *Command) unpack(ctx context.Context, name string) (output string, stats Stats, err error) {
	logger := internal.MustLogger(ctx)

	a, err := internal.OpenArchive(ctx, name, ustar.ModeRead, logger)
	if err != nil {
		return "", stats, err
	}
	defer a.Close()

	var root string
	if output = c.Directory; output != "" {
		if err = os.MkdirAll(output, 0755); err != nil {
			return "", stats, err
		}
	} else {
		if root, err = rootDir(a); err != nil {
			return "", stats, err
		}

		stem := root
		if stem == "" {
			stem = internal.Stem(name)
		}

		if output, err = internal.MkExclDir(".", stem, 0755); err != nil {
			return "", stats, err
		}
	}

	stats, err = Unpack(ctx, a, output, func(opts *Options) {
		opts.StripRoot = root
		opts.Logger = logger
		opts.Progress = os.Stderr
	})
	return output, stats, err
}

// rootDir returns the top-level directory shared by every entry, or an empty string if there is none.
func rootDir(a *ustar.Archive) (string, error) {
	fn := internal.NewRootDirFinder()

	var (
		root string
		ok   bool
	)
	for h, err := range a.Entries() {
		if err != nil {
			return "", err
		}

		if root, ok = fn(h.Path()); !ok {
			return "", nil
		}
	}

	return root, nil
}
