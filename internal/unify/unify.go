// Package unify partitions overlapping cells into merge groups and gives
// every group a reproducible label.
package unify

import (
	"fmt"
	"strconv"

	"github.com/dusk-indust/segmerge/internal/overlap"
	"github.com/dusk-indust/segmerge/internal/segment"
)

// LabelFormat selects how merge groups are labelled in the output.
type LabelFormat string

const (
	// LabelPrefixed labels a group "<source>:<label>" after its canonical cell.
	LabelPrefixed LabelFormat = "prefixed"

	// LabelNumeric labels groups 1..K in canonical order.
	LabelNumeric LabelFormat = "numeric"
)

// ParseLabelFormat validates a label format name. The empty string selects
// LabelPrefixed.
func ParseLabelFormat(s string) (LabelFormat, error) {
	switch LabelFormat(s) {
	case "", LabelPrefixed:
		return LabelPrefixed, nil
	case LabelNumeric:
		return LabelNumeric, nil
	default:
		return "", &segment.ConfigurationError{
			Field: "labelFormat",
			Msg:   fmt.Sprintf("unknown label format %q, want %q or %q", s, LabelPrefixed, LabelNumeric),
		}
	}
}

// Options controls which edges merge their cells.
type Options struct {
	// Threshold is exclusive: an edge merges only when IOU > Threshold.
	Threshold float64

	// MutualBest keeps an edge only if it is the best qualifying match of
	// each endpoint within the other endpoint's source.
	MutualBest bool
}

// Group is one merge group. Canonical is its smallest member, which is
// also the smallest (source, label) pair in the group.
type Group struct {
	Canonical int
	Members   []int
}

// Result is the partition of all cells of a graph.
type Result struct {
	Groups  []Group // ordered by Canonical
	GroupOf []int   // cell -> position in Groups
	Merged  []bool  // graph edge -> whether it joined its cells
}

// Unify unions the endpoints of every qualifying edge and derives the groups
// in a separate pass over the cells, so group identity and order depend only
// on group membership and never on union order.
func Unify(g *overlap.Graph, opts Options) *Result {
	merged := Qualify(g, opts)

	ds := NewDisjointSet(len(g.Cells))
	for i, e := range g.Edges {
		if merged[i] {
			ds.Union(e.A, e.B)
		}
	}

	res := &Result{
		Groups:  make([]Group, 0, ds.Sets()),
		GroupOf: make([]int, len(g.Cells)),
		Merged:  merged,
	}
	byRoot := make(map[int]int, ds.Sets())
	for cell := range g.Cells {
		root := ds.Find(cell)
		pos, ok := byRoot[root]
		if !ok {
			pos = len(res.Groups)
			byRoot[root] = pos
			res.Groups = append(res.Groups, Group{Canonical: cell})
		}
		res.Groups[pos].Members = append(res.Groups[pos].Members, cell)
		res.GroupOf[cell] = pos
	}
	return res
}

// Qualify reports for every edge of g whether it passes the threshold and,
// if enabled, the mutual-best filter.
func Qualify(g *overlap.Graph, opts Options) []bool {
	ok := make([]bool, len(g.Edges))
	for i, e := range g.Edges {
		ok[i] = e.IOU > opts.Threshold
	}
	if !opts.MutualBest {
		return ok
	}

	type side struct{ cell, source int }
	best := make(map[side]float64)
	for i, e := range g.Edges {
		if !ok[i] {
			continue
		}
		sa := side{e.A, g.Cells[e.B].Source}
		sb := side{e.B, g.Cells[e.A].Source}
		best[sa] = max(best[sa], e.IOU)
		best[sb] = max(best[sb], e.IOU)
	}
	for i, e := range g.Edges {
		if !ok[i] {
			continue
		}
		ok[i] = e.IOU == best[side{e.A, g.Cells[e.B].Source}] &&
			e.IOU == best[side{e.B, g.Cells[e.A].Source}]
	}
	return ok
}

// Labels returns the output label of every group.
func (r *Result) Labels(g *overlap.Graph, format LabelFormat) []string {
	labels := make([]string, len(r.Groups))
	for i, grp := range r.Groups {
		if format == LabelNumeric {
			labels[i] = strconv.Itoa(i + 1)
			continue
		}
		labels[i] = g.CellID(grp.Canonical)
	}
	return labels
}

// MergedEdges counts the edges that joined two cells.
func (r *Result) MergedEdges() int {
	n := 0
	for _, m := range r.Merged {
		if m {
			n++
		}
	}
	return n
}

// LargestGroup returns the member count of the biggest group.
func (r *Result) LargestGroup() int {
	n := 0
	for _, grp := range r.Groups {
		n = max(n, len(grp.Members))
	}
	return n
}
