package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/redo/pkg/domain"
)

// GenerateMermaid produces a Mermaid flowchart of a log tree.
// Leaves become boxes linked in execution order, groups become subgraphs,
// and every leaf is styled by the outcome of its last run:
// - succeeded: green
// - failed: red
// - never ran: grey, dashed
func GenerateMermaid(title string, log domain.Log) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString(fmt.Sprintf("    start((\"%s\"))\n", escapeLabel(title)))

	var classes []string
	last := writeEntries(&sb, log, nil, "    ", "start", &classes)
	if last == "start" {
		sb.WriteString("    start --> done((\"empty\"))\n")
	}

	sb.WriteString("\n    %% Outcome Styles\n")
	sb.WriteString("    classDef succeeded fill:#dcfce7,stroke:#15803d,color:#000;\n")
	sb.WriteString("    classDef failed fill:#fee2e2,stroke:#b91c1c,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef unknown fill:#f3f4f6,stroke:#6b7280,stroke-dasharray: 4 2,color:#000;\n")
	for _, c := range classes {
		sb.WriteString(c)
	}
	return sb.String()
}

// writeEntries writes the entries of one group and returns the id of the
// last node written, which the next sibling links from.
func writeEntries(sb *strings.Builder, log domain.Log, index domain.Index, indent, prev string, classes *[]string) string {
	for i, e := range log {
		idx := index.Child(i)
		id := nodeID(idx)
		if e.IsGroup() {
			sb.WriteString(fmt.Sprintf("%ssubgraph %s [\"%s\"]\n", indent, id, idx))
			inner := writeEntries(sb, e.Group, idx, indent+"    ", "", classes)
			sb.WriteString(indent + "end\n")
			if prev != "" {
				sb.WriteString(fmt.Sprintf("%s%s --> %s\n", indent, prev, id))
			}
			if inner != "" {
				prev = inner
			} else {
				prev = id
			}
			continue
		}

		sb.WriteString(fmt.Sprintf("%s%s[\"%s %s\"]\n", indent, id, idx, escapeLabel(e.Record.TaskClass)))
		if prev != "" {
			sb.WriteString(fmt.Sprintf("%s%s --> %s\n", indent, prev, id))
		}
		*classes = append(*classes, fmt.Sprintf("    class %s %s;\n", id, outcomeClass(e.Record)))
		prev = id
	}
	return prev
}

func outcomeClass(r *domain.Record) string {
	switch {
	case r.LastRunSuccess == nil:
		return "unknown"
	case *r.LastRunSuccess:
		return "succeeded"
	default:
		return "failed"
	}
}

func nodeID(idx domain.Index) string {
	return "t" + idx.Underscore()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
