package mcptools

import (
	"github.com/dusk-indust/segmerge/internal/export"
	"github.com/dusk-indust/segmerge/internal/graph"
)

// --- MCP Tool Input Types ---
// The MCP Go SDK derives each tool's JSON schema from these struct tags.
// Relative paths are resolved against the server's working directory.

// MergeSegmentationsInput is the input for the merge_segmentations MCP tool.
type MergeSegmentationsInput struct {
	Files            []string `json:"files" jsonschema:"segmentation tables to merge (CSV, optionally gzipped)"`
	Threshold        *float64 `json:"threshold,omitempty" jsonschema:"IOU a pair of cells must exceed to merge (default: 0.2)"`
	Columns          []string `json:"columns,omitempty" jsonschema:"columns copied from the inputs to the output"`
	Outfile          string   `json:"outfile,omitempty" jsonschema:"path of the merged table (default: out.csv)"`
	IDColumn         string   `json:"idColumn,omitempty" jsonschema:"point id column (default: transcript_id)"`
	CellColumn       string   `json:"cellColumn,omitempty" jsonschema:"cell label column (default: cell)"`
	UnassignedLabels []string `json:"unassignedLabels,omitempty" jsonschema:"labels meaning no cell (default: empty and 0)"`
	LabelFormat      string   `json:"labelFormat,omitempty" jsonschema:"prefixed or numeric (default: prefixed)"`
	MutualBest       bool     `json:"mutualBest,omitempty" jsonschema:"only merge pairs that are each other's best match"`
}

// MergeSegmentationsOutput is the result of the merge_segmentations MCP tool.
type MergeSegmentationsOutput struct {
	Outfile string        `json:"outfile"`
	Report  export.Report `json:"report"`
}

// ComputeOverlapsInput is the input for the compute_overlaps MCP tool.
type ComputeOverlapsInput struct {
	Files            []string `json:"files" jsonschema:"segmentation tables to compare (CSV, optionally gzipped)"`
	Threshold        *float64 `json:"threshold,omitempty" jsonschema:"IOU a pair of cells must exceed to merge (default: 0.2)"`
	IDColumn         string   `json:"idColumn,omitempty" jsonschema:"point id column (default: transcript_id)"`
	CellColumn       string   `json:"cellColumn,omitempty" jsonschema:"cell label column (default: cell)"`
	UnassignedLabels []string `json:"unassignedLabels,omitempty" jsonschema:"labels meaning no cell (default: empty and 0)"`
	LabelFormat      string   `json:"labelFormat,omitempty" jsonschema:"prefixed or numeric (default: prefixed)"`
	MutualBest       bool     `json:"mutualBest,omitempty" jsonschema:"only merge pairs that are each other's best match"`
	Limit            int      `json:"limit,omitempty" jsonschema:"maximum number of groups and edges returned (default: 100)"`
}

// ComputeOverlapsOutput is the result of the compute_overlaps MCP tool.
type ComputeOverlapsOutput struct {
	Report    export.Report  `json:"report"`
	Groups    []GroupSummary `json:"groups"` // groups with more than one cell
	Edges     []EdgeSummary  `json:"edges"`
	Truncated bool           `json:"truncated"`
}

// GroupSummary lists the cells of one merge group.
type GroupSummary struct {
	Label   string   `json:"label"`
	Members []string `json:"members"`
}

// EdgeSummary is one overlap between cells of different sources.
type EdgeSummary struct {
	CellA        string  `json:"cellA"`
	CellB        string  `json:"cellB"`
	Intersection int     `json:"intersection"`
	Union        int     `json:"union"`
	IOU          float64 `json:"iou"`
	Merged       bool    `json:"merged"`
}

// DescribeCellInput is the input for the describe_cell MCP tool.
type DescribeCellInput struct {
	CellID string `json:"cellId" jsonschema:"cell id of the last run, as source:label"`
}

// DescribeCellOutput is the result of the describe_cell MCP tool.
type DescribeCellOutput struct {
	Cell     graph.CellNode   `json:"cell"`
	Group    string           `json:"group"`
	Members  []graph.CellNode `json:"members"`
	Overlaps []graph.Edge     `json:"overlaps"`
	Stats    graph.GraphStats `json:"stats"`
}
