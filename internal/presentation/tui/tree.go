package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aretw0/redo/pkg/domain"
	"github.com/muesli/termenv"
)

// TreePrinter draws a log as an indented tree, one line per leaf, marked by
// the outcome of its last run.
type TreePrinter struct {
	out    *termenv.Output
	events map[string]domain.TaskEvent
}

// NewTreePrinter creates a printer writing to w. Without color every style
// is dropped.
func NewTreePrinter(w io.Writer, color bool) *TreePrinter {
	profile := termenv.Ascii
	if color {
		profile = termenv.EnvColorProfile()
	}
	return &TreePrinter{out: termenv.NewOutput(w, termenv.WithProfile(profile))}
}

// WithEvents annotates leaves with what the last run did to them.
func (p *TreePrinter) WithEvents(events []domain.TaskEvent) *TreePrinter {
	p.events = make(map[string]domain.TaskEvent, len(events))
	for _, e := range events {
		p.events[e.Index.String()] = e
	}
	return p
}

// Print writes the title and the tree.
func (p *TreePrinter) Print(title string, log domain.Log) {
	fmt.Fprintln(p.out, p.out.String(title).Bold())
	if len(log) == 0 {
		fmt.Fprintln(p.out, p.out.String("(empty)").Faint())
		return
	}
	p.print(log, nil, "")
}

func (p *TreePrinter) print(log domain.Log, index domain.Index, prefix string) {
	for i, e := range log {
		idx := index.Child(i)
		branch, indent := "├── ", "│   "
		if i == len(log)-1 {
			branch, indent = "└── ", "    "
		}
		if e.IsGroup() {
			fmt.Fprintf(p.out, "%s%s%s\n", prefix, branch, p.out.String(idx.String()).Faint())
			p.print(e.Group, idx, prefix+indent)
			continue
		}
		fmt.Fprintf(p.out, "%s%s%s %s %s%s\n",
			prefix, branch, p.marker(e.Record), p.out.String(idx.String()).Faint(), e.Record.TaskClass, p.note(idx))
	}
}

func (p *TreePrinter) marker(r *domain.Record) termenv.Style {
	switch {
	case r.LastRunSuccess == nil:
		return p.out.String("·").Faint()
	case *r.LastRunSuccess:
		return p.out.String("✓").Foreground(p.out.Color("2"))
	default:
		return p.out.String("✗").Foreground(p.out.Color("1")).Bold()
	}
}

func (p *TreePrinter) note(idx domain.Index) string {
	e, ok := p.events[idx.String()]
	if !ok {
		return ""
	}
	var parts []string
	switch e.Type {
	case domain.EventTaskSkip:
		parts = append(parts, "up to date")
	case domain.EventTaskFinish:
		parts = append(parts, "ran in "+e.Duration.Round(time.Millisecond).String())
		if e.InputsChanged {
			parts = append(parts, "inputs changed")
		}
		if e.OutputsChanged {
			parts = append(parts, "outputs changed")
		}
	default:
		return ""
	}
	return " " + p.out.String("("+strings.Join(parts, ", ")+")").Faint().String()
}
