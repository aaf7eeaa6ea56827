// Package tty provides TTY detection helpers for vchain commands.
package tty

import (
	"os"

	"github.com/mattn/go-isatty"
)

// IsTTY returns true if the given file is a terminal, including Cygwin and
// MSYS pseudo-terminals.
func IsTTY(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ColorEnabled reports whether styled output should be written to f.
// NO_COLOR (https://no-color.org) disables styling for any value.
func ColorEnabled(f *os.File, lookup func(string) (string, bool)) bool {
	if _, ok := lookup("NO_COLOR"); ok {
		return false
	}
	return IsTTY(f)
}
