//go:build windows

package main

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/term"
)

// pause keeps the console open when launched from Explorer.
func pause() {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		_, _ = fmt.Fprintf(os.Stderr, "Press any key to close console\n")
		_, _, _ = bufio.NewReader(os.Stdin).ReadRune()
	}
}
