package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

// exit terminates with status 1 unless the command succeeded or only printed help.
func exit(err error) {
	pause()

	if err != nil && !flags.WroteHelp(err) {
		os.Exit(1)
	}
}
