package pack

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/ustar"
	"github.com/nguyengg/ustar/internal"
	"github.com/nguyengg/ustar/internal/config"
)

type Command struct {
	Append bool `short:"a" long:"append" description:"append to the archive instead of overwriting it"`
	Args   struct {
		Archive string           `positional-arg-name:"archive" description:"local path or s3://bucket/key of the archive" required:"yes"`
		Files   []flags.Filename `positional-arg-name:"file" description:"the files/directories to be added" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Command) Execute(args []string) (err error) {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	mode := ustar.ModeWrite
	if c.Append {
		mode = ustar.ModeAppend
	}

	a, err := internal.OpenArchive(ctx, c.Args.Archive, mode, log.Default())
	if err != nil {
		return fmt.Errorf(`open archive "%s" error: %w`, c.Args.Archive, err)
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf(`close archive "%s" error: %w`, c.Args.Archive, cerr))
		}
	}()

	defaults := config.ForHeader()

	var total Stats
	n := len(c.Args.Files)
	for i, file := range c.Args.Files {
		ctx := internal.WithPrefixLogger(ctx, internal.Prefix(i, n, string(file)))
		logger := internal.MustLogger(ctx)

		stats, err := Pack(ctx, a, string(file), func(opts *Options) {
			opts.Defaults = defaults
			opts.Logger = logger
			opts.Progress = os.Stderr
			if !internal.IsS3URI(c.Args.Archive) {
				opts.Exclude = c.Args.Archive
			}
		})
		total.Entries += stats.Entries
		total.Bytes += stats.Bytes

		if err != nil {
			// the archive cannot take more entries if one was left incomplete.
			if errors.Is(err, context.Canceled) || errors.Is(err, ustar.ErrIncompleteEntry) {
				return err
			}

			logger.Printf("pack error: %v", err)
			continue
		}

		logger.Printf("added %d entries (%s)", stats.Entries, humanize.IBytes(uint64(stats.Bytes)))
	}

	log.Printf(`packed %d entries (%s) into "%s"`, total.Entries, humanize.IBytes(uint64(total.Bytes)), c.Args.Archive)
	return nil
}
