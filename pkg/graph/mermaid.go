package graph

import (
	"fmt"
	"strings"

	"github.com/serviceops/conveyor/pkg/domain"
)

// Mermaid renders the graph as a Mermaid flowchart.
// Shapes carry semantics:
//   - entry stage: ((circle))
//   - terminal stages: [[subroutine]]
//   - everything else: [rectangle]
//
// Guarded rules render their guard name on the arrow.
func Mermaid(g *Graph) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, stage := range g.Stages() {
		opener, closer := "[", "]"
		switch {
		case stage == g.Entry():
			opener, closer = "((", "))"
		case g.IsTerminal(stage):
			opener, closer = "[[", "]]"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(stage), opener, stage, closer))

		for _, r := range g.RulesFrom(stage) {
			label := fmt.Sprintf("%s (%s)", r.Action, r.Role)
			if r.Guard.Name != "" {
				label += fmt.Sprintf(" [%s]", r.Guard.Name)
			}
			arrow := fmt.Sprintf("-- \"%s\" -->", label)
			if r.To == r.From {
				// Self-transitions (e.g. EXPEDITE) as dotted loops.
				arrow = fmt.Sprintf("-. \"%s\" .->", label)
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(stage), arrow, sanitizeMermaidID(r.To)))
		}
	}
	return sb.String()
}

func sanitizeMermaidID(s domain.Stage) string {
	id := strings.NewReplacer("/", "_", " ", "_", "-", "_", ".", "_").Replace(string(s))
	if id == "" {
		return "_"
	}
	return id
}
