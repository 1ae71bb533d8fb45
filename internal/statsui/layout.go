package statsui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// curveWindows are the moving-average windows the -/= keys step through.
var curveWindows = []int{1, 3, 5, 10, 20}

// stepCurveWindow moves to the neighbouring window in curveWindows. A value
// between two steps snaps to the nearer step in the direction of travel.
func stepCurveWindow(n, dir int) int {
	if dir > 0 {
		for _, w := range curveWindows {
			if w > n {
				return w
			}
		}
		return curveWindows[len(curveWindows)-1]
	}
	for i := len(curveWindows) - 1; i >= 0; i-- {
		if curveWindows[i] < n {
			return curveWindows[i]
		}
	}
	return curveWindows[0]
}

// fitBlock pads or cuts s to exactly height lines, each padded to width cells.
func fitBlock(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, line := range lines {
		if gap := width - lipgloss.Width(line); gap > 0 {
			lines[i] = line + strings.Repeat(" ", gap)
		}
	}
	return strings.Join(lines, "\n")
}

func ellipsize(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
