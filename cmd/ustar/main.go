package main

import (
	"context"
	"log"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/ustar/internal/cat"
	"github.com/nguyengg/ustar/internal/config"
	"github.com/nguyengg/ustar/internal/list"
	"github.com/nguyengg/ustar/internal/pack"
	"github.com/nguyengg/ustar/internal/unpack"
)

var opts struct {
	Profile string         `short:"p" long:"profile" description:"override the AWS profile from .ustar and AWS_PROFILE"`
	Pack    pack.Command   `command:"pack" alias:"c" description:"create or append to an archive from files and directories"`
	Unpack  unpack.Command `command:"unpack" alias:"x" description:"extract archives into new directories"`
	List    list.Command   `command:"list" alias:"t" alias:"ls" description:"list the entries of archives"`
	Cat     cat.Command    `command:"cat" description:"print entries of an archive to standard output"`
}

func main() {
	log.SetFlags(0)

	p := flags.NewParser(&opts, flags.Default)
	p.CommandHandler = func(command flags.Commander, args []string) error {
		if name, err := config.LoadProfile(context.Background(), opts.Profile); err != nil {
			return err
		} else if name != "" {
			log.Printf(`using configuration from "%s"`, name)
		}

		return command.Execute(args)
	}

	_, err := p.Parse()
	exit(err)
}
