package ui

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether ANSI colors should be written to stdout.
// NO_COLOR wins over CLICOLOR_FORCE, which wins over CLICOLOR and TTY
// detection.
func ShouldUseColor() bool {
	return shouldUseColor(os.Getenv, os.Stdout)
}

func shouldUseColor(getenv func(string) string, out io.Writer) bool {
	if getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(getenv("CLICOLOR")) == "0" {
		return false
	}
	return IsTerminal(out)
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}
