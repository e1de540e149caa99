// Package normalize collapses the structural whitespace of markup text.
package normalize

import "regexp"

// Replacements used by the two call sites.
const (
	// ClassSeparator joins the lines of a multi-line class body.
	ClassSeparator = " "
	// Compact drops source line wrapping and indentation from rendered text.
	Compact = ""
)

// lineBreakRun matches a maximal whitespace run containing at least one line
// break. Whitespace is the Unicode White_Space set, not just ASCII.
var lineBreakRun = regexp.MustCompile(`(?:[\s\x0B\x{85}\p{Z}]*\r?\n[\s\x0B\x{85}\p{Z}]*)+`)

// Collapse replaces every whitespace run that contains a line break with
// replacement. Text without line breaks is returned unchanged.
func Collapse(text, replacement string) string {
	return lineBreakRun.ReplaceAllLiteralString(text, replacement)
}
