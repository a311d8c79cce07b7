// Package strings holds text helpers for terminal output.
package strings

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
)

// DefaultCellWidth is the widest a free-text table cell is rendered.
const DefaultCellWidth = 60

// ellipsis marks text cut by OneLine.
const ellipsis = "..."

// OneLine collapses every run of whitespace, newlines included, into a
// single space and snips the result to width display columns, ending it
// with "..." when it was cut. A width below 4 is raised to 4.
func OneLine(s string, width int) string {
	if width < len(ellipsis)+1 {
		width = len(ellipsis) + 1
	}
	return text.Snip(strings.Join(strings.Fields(s), " "), width, ellipsis)
}
