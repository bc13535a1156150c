package tui

import "strings"

var revealer = strings.NewReplacer(
	" ", "·",
	"\t", "→   ",
	"\r", "␍",
	"\n", "⏎\n",
)

// RevealHidden makes whitespace and line terminators visible.
func RevealHidden(s string) string {
	return revealer.Replace(s)
}

// TrafficFormatter returns the formatter for device traffic lines, or nil when lines are shown as-is.
func TrafficFormatter(reveal bool) func(string) string {
	if !reveal {
		return nil
	}
	return RevealHidden
}
