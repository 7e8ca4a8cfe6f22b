package list

import (
	"context"
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
	Long     bool   `short:"l" long:"long" description:"print mode, owner, size, and modification time of each entry"`
	Human    bool   `short:"H" long:"human-readable" description:"print sizes in human-readable format"`
	Checksum string `short:"c" long:"checksum" choice:"sha1" choice:"sha224" choice:"sha256" choice:"sha384" choice:"sha512" description:"print the Subresource Integrity digest of each file"`
	Args     struct {
		Archives []string `positional-arg-name:"archive" description:"local paths or s3://bucket/key of the archives to be listed" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	n := len(c.Args.Archives)
	for i, name := range c.Args.Archives {
		ctx := internal.WithPrefixLogger(ctx, internal.Prefix(i, n, name))
		logger := internal.MustLogger(ctx)

		if n > 1 {
			_, _ = fmt.Fprintf(os.Stdout, "%s:\n", name)
		}

		s, err := c.list(ctx, name)
		if err != nil {
			logger.Printf("list error: %v", err)
			continue
		}

		logger.Printf("%d entries, %s of data", s.Entries, humanize.IBytes(uint64(s.Bytes)))
	}

	return nil
}

func (c *Command) list(ctx context.Context, name string) (Summary, error) {
	a, err := internal.OpenArchive(ctx, name, ustar.ModeRead, log.Default())
	if err != nil {
		return Summary{}, err
	}
	defer a.Close()

	return List(ctx, a, os.Stdout, func(opts *Options) {
		opts.Long = c.Long
		opts.Human = c.Human
	})
}
