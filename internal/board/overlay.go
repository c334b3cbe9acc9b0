package board

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Overlay draws fg on top of base with fg's top-left cell at (x, y).
// Parts of fg outside base are clipped. Styling in base is preserved on
// both sides of the overlaid span.
func Overlay(base, fg string, x, y int) string {
	lines := strings.Split(base, "\n")
	fgLines := strings.Split(fg, "\n")

	width := 0
	for _, l := range lines {
		width = max(width, ansi.StringWidth(l))
	}

	for i, fl := range fgLines {
		row := y + i
		if row < 0 || row >= len(lines) {
			continue
		}
		col := x
		if col < 0 {
			fl = ansi.TruncateLeft(fl, -col, "")
			col = 0
		}
		if col >= width {
			continue
		}
		if col+ansi.StringWidth(fl) > width {
			fl = ansi.Truncate(fl, width-col, "")
		}
		fw := ansi.StringWidth(fl)

		line := lines[row]
		lw := ansi.StringWidth(line)
		if lw < col+fw {
			line += strings.Repeat(" ", col+fw-lw)
		}
		left := ansi.Truncate(line, col, "")
		right := ansi.TruncateLeft(line, col+fw, "")
		lines[row] = left + fl + right
	}
	return strings.Join(lines, "\n")
}
