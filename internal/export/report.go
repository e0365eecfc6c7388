// Package export renders a finished merge run as a JSON report or a
// Mermaid diagram.
package export

import (
	"encoding/json"
	"io"
	"sort"
	"time"

	"github.com/dusk-indust/segmerge/internal/merge"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

// Report is the top-level JSON summary of a merge run.
type Report struct {
	RunID       string         `json:"runId"`
	CreatedAt   string         `json:"createdAt"`
	Threshold   float64        `json:"threshold"`
	MutualBest  bool           `json:"mutualBest"`
	LabelFormat string         `json:"labelFormat"`
	Sources     []SourceReport `json:"sources"`

	Points           int `json:"points"`
	UnassignedPoints int `json:"unassignedPoints"`
	Cells            int `json:"cells"`
	Edges            int `json:"edges"`
	MergedEdges      int `json:"mergedEdges"`
	Groups           int `json:"groups"`
	MergedGroups     int `json:"mergedGroups"` // groups with more than one cell
	LargestGroup     int `json:"largestGroup"`

	IOU IOUStats `json:"iou"`
}

// SourceReport describes one input table.
type SourceReport struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Points     int    `json:"points"`
	Cells      int    `json:"cells"`
	Unassigned int    `json:"unassigned"`
}

// IOUStats summarizes the IOU of all overlap edges. All fields are zero
// when there are no edges.
type IOUStats struct {
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
}

// BuildReport summarizes res. Each call gets a fresh run id.
func BuildReport(res *merge.Result) *Report {
	r := &Report{
		RunID:        uuid.NewString(),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		Threshold:    res.Config.Threshold,
		MutualBest:   res.Config.MutualBest,
		LabelFormat:  string(res.Config.LabelFormat),
		Points:       len(res.Rows),
		Cells:        len(res.Graph.Cells),
		Edges:        len(res.Graph.Edges),
		MergedEdges:  res.Unified.MergedEdges(),
		Groups:       len(res.Unified.Groups),
		LargestGroup: res.Unified.LargestGroup(),
		IOU:          iouStats(res),
	}

	for _, idx := range res.Indexes {
		r.Sources = append(r.Sources, SourceReport{
			Name:       idx.Source.Name,
			Path:       idx.Source.Path,
			Points:     idx.PointCount(),
			Cells:      idx.Len(),
			Unassigned: idx.UnassignedCount(),
		})
	}
	for _, row := range res.Rows {
		if row.Label == "" {
			r.UnassignedPoints++
		}
	}
	for _, grp := range res.Unified.Groups {
		if len(grp.Members) > 1 {
			r.MergedGroups++
		}
	}
	return r
}

func iouStats(res *merge.Result) IOUStats {
	edges := res.Graph.Edges
	if len(edges) == 0 {
		return IOUStats{}
	}
	x := make([]float64, len(edges))
	for i, e := range edges {
		x[i] = e.IOU
	}
	sort.Float64s(x)

	s := IOUStats{
		Min:    x[0],
		Median: stat.Quantile(0.5, stat.Empirical, x, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, x, nil),
		Max:    x[len(x)-1],
		Mean:   stat.Mean(x, nil),
	}
	if len(x) > 1 {
		s.StdDev = stat.StdDev(x, nil)
	}
	return s
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(out, '\n'))
	return err
}
