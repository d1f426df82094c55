package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/redo"
	"github.com/aretw0/redo/pkg/domain"
)

// Report renders a run result as markdown: a summary line and one table row
// per leaf in depth-first order.
func Report(res *redo.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", res.Workflow)

	status := "succeeded"
	if !res.Success {
		status = "failed"
	}
	fmt.Fprintf(&sb, "**%s** in %s: %d reran, %d up to date.\n\n",
		status, res.Duration.Round(time.Millisecond), res.Reran(), res.Skipped())

	events := make(map[string]domain.TaskEvent, len(res.Events))
	for _, e := range res.Events {
		events[e.Index.String()] = e
	}

	sb.WriteString("| Index | Task | Outcome | Decision | Duration |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	res.Log.Walk(func(r *domain.Record) {
		e, seen := events[r.Index.String()]
		decision, took := "", ""
		switch {
		case !seen:
		case e.Type == domain.EventTaskSkip:
			decision = "skipped"
		default:
			decision = "rerun"
			took = e.Duration.Round(time.Millisecond).String()
		}
		fmt.Fprintf(&sb, "| `%s` | %s | %s | %s | %s |\n",
			r.Index, escapeCell(r.TaskClass), outcome(r), decision, took)
	})

	var failed []*domain.Record
	for _, r := range res.Log.Leaves() {
		if r.LastRunSuccess != nil && !*r.LastRunSuccess {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		sb.WriteString("\n## Failed\n\n")
		for _, r := range failed {
			fmt.Fprintf(&sb, "- `%s` %s", r.Index, escapeCell(r.TaskClass))
			if code, ok := r.Info["exit_code"]; ok {
				fmt.Fprintf(&sb, " (exit code %v)", code)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func outcome(r *domain.Record) string {
	switch {
	case r.LastRunSuccess == nil:
		return "never ran"
	case *r.LastRunSuccess:
		return "ok"
	default:
		return "**failed**"
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
