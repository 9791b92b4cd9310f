// Package ui renders terminal output for the odm CLI.
package ui

import (
	"fmt"
	"sync/atomic"
)

// Style is an ANSI 256-color foreground.
type Style int

// Palette used by the CLI.
const (
	Accent  Style = 74  // section headers, schema names
	Command Style = 250 // command names in help
	Muted   Style = 245 // types, defaults, secondary text
	Pass    Style = 114 // successful validation
	Fail    Style = 203 // failures
	Field   Style = 180 // field paths in error listings
)

var noColor atomic.Bool

// Render returns s wrapped in st unless color is disabled.
func (st Style) Render(s string) string {
	if noColor.Load() || s == "" {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", int(st), s)
}

func RenderAccent(s string) string  { return Accent.Render(s) }
func RenderCommand(s string) string { return Command.Render(s) }
func RenderMuted(s string) string   { return Muted.Render(s) }
func RenderPass(s string) string    { return Pass.Render(s) }
func RenderFail(s string) string    { return Fail.Render(s) }
func RenderField(s string) string   { return Field.Render(s) }

// SetColor turns color output on or off globally.
func SetColor(enabled bool) {
	noColor.Store(!enabled)
}
