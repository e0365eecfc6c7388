package graph

// EdgeKind classifies relationships between nodes.
type EdgeKind string

const (
	// EdgeKindOverlaps links two cells of different sources sharing points.
	EdgeKindOverlaps EdgeKind = "OVERLAPS"

	// EdgeKindMemberOf links a cell to its merge group.
	EdgeKindMemberOf EdgeKind = "MEMBER_OF"
)

// --- Models ---

// CellNode is one cell of one source.
type CellNode struct {
	ID     string `json:"id"` // "<source>:<label>"
	Source string `json:"source"`
	Label  string `json:"label"`
	Size   int    `json:"size"` // point count
}

// GroupNode is a merge group, identified by its output label.
type GroupNode struct {
	ID        string `json:"id"`
	Canonical string `json:"canonical"` // id of the canonical cell
	Members   int    `json:"members"`
}

// Edge is a relationship between two nodes. The overlap fields are only set
// for EdgeKindOverlaps.
type Edge struct {
	SourceID     string   `json:"sourceId"`
	TargetID     string   `json:"targetId"`
	Kind         EdgeKind `json:"kind"`
	IOU          float64  `json:"iou,omitempty"`
	Intersection int      `json:"intersection,omitempty"`
	Union        int      `json:"union,omitempty"`
	Merged       bool     `json:"merged,omitempty"`
}

// GraphStats summarizes a stored overlap graph.
type GraphStats struct {
	CellCount    int `json:"cellCount"`
	GroupCount   int `json:"groupCount"`
	OverlapCount int `json:"overlapCount"`
	MergedCount  int `json:"mergedCount"`
}
