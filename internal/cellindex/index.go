// Package cellindex groups the points of one source table by cell label.
package cellindex

import (
	"fmt"
	"sort"

	"github.com/dusk-indust/segmerge/internal/segment"
)

// Index maps the cell labels of one source to their points. It is built
// once and read-only afterwards, so it may be shared between goroutines.
type Index struct {
	Source segment.Source

	// Labels holds the assigned cell labels in segment.CompareLabels order.
	Labels []string

	// Points holds the point ids of Labels[i], in file order.
	Points [][]string

	// Order lists every distinct point id of the source in file order,
	// unassigned points included.
	Order []string

	labelPos map[string]int
	points   map[string]pointEntry
}

type pointEntry struct {
	label    string
	assigned bool
	row      int
	extra    []string
}

// Build indexes a loaded table. A point id that repeats with a different
// label is rejected; an exact repeat is ignored and keeps the first row's
// passthrough values. Points carrying an unassigned label are recorded but
// belong to no cell.
func Build(t *segment.Table, unassigned segment.LabelSet) (*Index, error) {
	idx := &Index{
		Source:   t.Source,
		labelPos: make(map[string]int),
		points:   make(map[string]pointEntry, len(t.Records)),
	}

	cells := make(map[string][]string)
	for _, rec := range t.Records {
		assigned := !unassigned.Contains(rec.Label)
		if prev, ok := idx.points[rec.PointID]; ok {
			if prev.label == rec.Label || (!prev.assigned && !assigned) {
				continue
			}
			return nil, &segment.MalformedInputError{
				Source: t.Source.Path,
				Row:    rec.Row,
				Msg: fmt.Sprintf("point %q is assigned to cell %q here and to cell %q on row %d",
					rec.PointID, rec.Label, prev.label, prev.row),
			}
		}

		idx.points[rec.PointID] = pointEntry{
			label:    rec.Label,
			assigned: assigned,
			row:      rec.Row,
			extra:    rec.Extra,
		}
		idx.Order = append(idx.Order, rec.PointID)
		if assigned {
			cells[rec.Label] = append(cells[rec.Label], rec.PointID)
		}
	}

	idx.Labels = make([]string, 0, len(cells))
	for label := range cells {
		idx.Labels = append(idx.Labels, label)
	}
	sort.Slice(idx.Labels, func(i, j int) bool {
		return segment.CompareLabels(idx.Labels[i], idx.Labels[j]) < 0
	})

	idx.Points = make([][]string, len(idx.Labels))
	for i, label := range idx.Labels {
		idx.labelPos[label] = i
		idx.Points[i] = cells[label]
	}
	return idx, nil
}

// Len returns the number of cells.
func (x *Index) Len() int { return len(x.Labels) }

// PointCount returns the number of distinct points, assigned or not.
func (x *Index) PointCount() int { return len(x.Order) }

// UnassignedCount returns the number of points that belong to no cell.
func (x *Index) UnassignedCount() int {
	n := 0
	for _, p := range x.points {
		if !p.assigned {
			n++
		}
	}
	return n
}

// CellPoints returns the points of the cell with the given label, or nil.
func (x *Index) CellPoints(label string) []string {
	i, ok := x.labelPos[label]
	if !ok {
		return nil
	}
	return x.Points[i]
}

// Position returns the position of label in Labels.
func (x *Index) Position(label string) (int, bool) {
	i, ok := x.labelPos[label]
	return i, ok
}

// LabelOf returns the label of a point and whether it belongs to a cell.
// found is false when the point does not occur in this source.
func (x *Index) LabelOf(pointID string) (label string, assigned, found bool) {
	p, ok := x.points[pointID]
	if !ok {
		return "", false, false
	}
	return p.label, p.assigned, true
}

// Extra returns the passthrough values recorded for a point.
func (x *Index) Extra(pointID string) []string {
	return x.points[pointID].extra
}
