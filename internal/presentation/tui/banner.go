package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the redo banner followed by the version line.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct{ text, color string }{
		{`                  _      `, "#34d399"},
		{`   _ __ ___  __| | ___  `, "#2dd4bf"},
		{`  | '__/ _ \/ _` + "`" + ` |/ _ \ `, "#22d3ee"},
		{`  | | |  __/ (_| | (_) |`, "#38bdf8"},
		{`  |_|  \___|\__,_|\___/ `, "#60a5fa"},
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintf(w, "\n  version %s\n\n", version)
}
