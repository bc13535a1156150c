package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the startup banner, coloured when w is a terminal that supports it.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{`  ___  ___ _ __(_) __ _| |`, "#22d3ee"},
		{` / __|/ _ \ '__| |/ _' | |`, "#38bdf8"},
		{` \__ \  __/ |  | | (_| | |`, "#60a5fa"},
		{` |___/\___|_|  |_|\__,_|_|  macro`, "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  v"+version).Faint())
	fmt.Fprintln(w)
}

// Notice formats a highlighted one-line message, e.g. the virtual port path.
func Notice(w io.Writer, msg string) string {
	out := termenv.NewOutput(w)
	return out.String(msg).Bold().Foreground(out.Color("#fbbf24")).String()
}
