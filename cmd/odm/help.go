package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/odm/internal/ui"
)

// helpRule restyles every match of re. Submatch 1 is kept as is and
// submatch 2 is styled; a pattern with no groups styles the whole match.
type helpRule struct {
	re    *regexp.Regexp
	style func(string) string
}

var helpRules = []helpRule{
	// Group and section headers such as "Documents:" or "Flags:".
	{regexp.MustCompile(`(?m)^()([A-Z][^\n]*:)[ \t]*$`), ui.RenderAccent},
	// Command names in the command listing.
	{regexp.MustCompile(`(?m)^(  )([a-z][\w-]*)(?:  )`), ui.RenderCommand},
	// Flag value types, e.g. "--store string".
	{regexp.MustCompile(`(--?[\w-]+ )(string|strings|int|duration|bool)\b`), ui.RenderMuted},
	{regexp.MustCompile(`\(default [^)]*\)`), ui.RenderMuted},
}

// colorizedHelpFunc renders cobra's usage text through helpRules when the
// terminal supports color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if noColor || !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	for _, r := range helpRules {
		s = r.apply(s)
	}
	return s
}

func (r helpRule) apply(s string) string {
	return r.re.ReplaceAllStringFunc(s, func(match string) string {
		parts := r.re.FindStringSubmatch(match)
		if len(parts) < 3 {
			return r.style(match)
		}
		return parts[1] + r.style(parts[2]) + strings.TrimPrefix(match, parts[1]+parts[2])
	})
}
