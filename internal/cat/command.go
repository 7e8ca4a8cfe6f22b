package cat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/nguyengg/ustar"
	"github.com/nguyengg/ustar/internal"
)

type Command struct {
	Args struct {
		Archive string   `positional-arg-name:"archive" description:"local path or s3://bucket/key of the archive" required:"yes"`
		Paths   []string `positional-arg-name:"path" description:"paths of the entries to print, in order" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Command) Execute(args []string) (err error) {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	a, err := internal.OpenArchive(ctx, c.Args.Archive, ustar.ModeRead, log.Default())
	if err != nil {
		return fmt.Errorf(`open archive "%s" error: %w`, c.Args.Archive, err)
	}
	defer a.Close()

	var errs []error
	for _, p := range c.Args.Paths {
		if _, err = Cat(ctx, a, p, os.Stdout); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}

			log.Printf(`cat "%s" error: %v`, p, err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
