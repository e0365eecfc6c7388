package export

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/segmerge/internal/merge"
)

// GenerateMermaid produces a Mermaid graph LR diagram of a merge run.
// Groups with more than one cell become subgraphs; overlap edges that
// merged their cells are solid, the others dotted. Every edge is labelled
// with its IOU.
func GenerateMermaid(res *merge.Result) string {
	g := res.Graph

	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for i, grp := range res.Unified.Groups {
		if len(grp.Members) < 2 {
			continue
		}
		sb.WriteString(fmt.Sprintf("  subgraph G%d[\"%.40s\"]\n", i, res.Labels[i]))
		for _, m := range grp.Members {
			sb.WriteString(fmt.Sprintf("    C%d[\"%s\"]\n", m, escape(g.CellID(m))))
		}
		sb.WriteString("  end\n")
	}

	// Unmerged cells that still overlap something.
	drawn := make(map[int]bool)
	for _, grp := range res.Unified.Groups {
		if len(grp.Members) > 1 {
			for _, m := range grp.Members {
				drawn[m] = true
			}
		}
	}
	for _, e := range g.Edges {
		for _, c := range []int{e.A, e.B} {
			if !drawn[c] {
				drawn[c] = true
				sb.WriteString(fmt.Sprintf("  C%d[\"%s\"]\n", c, escape(g.CellID(c))))
			}
		}
	}

	for i, e := range g.Edges {
		arrow := "-.-"
		if res.Unified.Merged[i] {
			arrow = "---"
		}
		sb.WriteString(fmt.Sprintf("  C%d %s|%.2f| C%d\n", e.A, arrow, e.IOU, e.B))
	}

	return sb.String()
}

// escape keeps cell ids from closing a quoted Mermaid label.
func escape(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
