package mcptools

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dusk-indust/segmerge/internal/export"
	"github.com/dusk-indust/segmerge/internal/graph"
	"github.com/dusk-indust/segmerge/internal/merge"
	"github.com/dusk-indust/segmerge/internal/unify"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultLimit = 100

// MergeService handles MCP tool calls. It keeps the overlap graph of the
// most recent run in a MemStore for describe_cell.
type MergeService struct {
	base merge.Config
	root string

	mu    sync.Mutex
	last  *merge.Result
	store *graph.MemStore
}

// NewMergeService creates a MergeService. base supplies the settings a tool
// call leaves unset; relative paths are resolved against root.
func NewMergeService(base merge.Config, root string) *MergeService {
	return &MergeService{base: base, root: root}
}

// runOptions is the part of a tool input shared by both merge tools.
type runOptions struct {
	files            []string
	threshold        *float64
	columns          []string
	idColumn         string
	cellColumn       string
	unassignedLabels []string
	labelFormat      string
	mutualBest       bool
}

func (s *MergeService) config(in runOptions) merge.Config {
	cfg := s.base
	cfg.Files = make([]string, len(in.files))
	for i, f := range in.files {
		cfg.Files[i] = s.resolve(f)
	}
	if in.threshold != nil {
		cfg.Threshold = *in.threshold
	}
	if in.columns != nil {
		cfg.Columns = in.columns
	}
	if in.idColumn != "" {
		cfg.IDColumn = in.idColumn
	}
	if in.cellColumn != "" {
		cfg.CellColumn = in.cellColumn
	}
	if in.unassignedLabels != nil {
		cfg.Unassigned = in.unassignedLabels
	}
	if in.labelFormat != "" {
		cfg.LabelFormat = unify.LabelFormat(in.labelFormat)
	}
	cfg.MutualBest = cfg.MutualBest || in.mutualBest
	return cfg
}

func (s *MergeService) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || s.root == "" {
		return path
	}
	return filepath.Join(s.root, path)
}

// run executes one merge and remembers its graph.
func (s *MergeService) run(ctx context.Context, cfg merge.Config) (*merge.Result, error) {
	res, err := merge.NewPipeline(cfg, nil).Run(ctx)
	if err != nil {
		return nil, err
	}

	store := graph.NewMemStore()
	if err := graph.Persist(ctx, store, res.Graph, res.Unified, res.Labels); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last, s.store = res, store
	s.mu.Unlock()
	return res, nil
}

// MergeSegmentations runs a full merge and writes the merged table.
func (s *MergeService) MergeSegmentations(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MergeSegmentationsInput,
) (*mcp.CallToolResult, MergeSegmentationsOutput, error) {
	if len(input.Files) == 0 {
		return nil, MergeSegmentationsOutput{}, fmt.Errorf("files is required")
	}

	cfg := s.config(runOptions{
		files:            input.Files,
		threshold:        input.Threshold,
		columns:          input.Columns,
		idColumn:         input.IDColumn,
		cellColumn:       input.CellColumn,
		unassignedLabels: input.UnassignedLabels,
		labelFormat:      input.LabelFormat,
		mutualBest:       input.MutualBest,
	})
	outfile := input.Outfile
	if outfile == "" {
		outfile = merge.DefaultOutfile
	}
	outfile = s.resolve(outfile)

	res, err := s.run(ctx, cfg)
	if err != nil {
		return nil, MergeSegmentationsOutput{}, err
	}
	if err := merge.WriteFile(outfile, res.WriteCSV); err != nil {
		return nil, MergeSegmentationsOutput{}, err
	}

	return nil, MergeSegmentationsOutput{
		Outfile: outfile,
		Report:  *export.BuildReport(res),
	}, nil
}

// ComputeOverlaps runs a merge without writing anything and returns the
// merged groups and overlap edges.
func (s *MergeService) ComputeOverlaps(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ComputeOverlapsInput,
) (*mcp.CallToolResult, ComputeOverlapsOutput, error) {
	if len(input.Files) == 0 {
		return nil, ComputeOverlapsOutput{}, fmt.Errorf("files is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	cfg := s.config(runOptions{
		files:            input.Files,
		threshold:        input.Threshold,
		idColumn:         input.IDColumn,
		cellColumn:       input.CellColumn,
		unassignedLabels: input.UnassignedLabels,
		labelFormat:      input.LabelFormat,
		mutualBest:       input.MutualBest,
	})
	// Passthrough columns do not affect grouping.
	cfg.Columns = nil

	res, err := s.run(ctx, cfg)
	if err != nil {
		return nil, ComputeOverlapsOutput{}, err
	}

	out := ComputeOverlapsOutput{
		Report: *export.BuildReport(res),
		Groups: []GroupSummary{},
		Edges:  []EdgeSummary{},
	}
	g := res.Graph
	for i, grp := range res.Unified.Groups {
		if len(grp.Members) < 2 {
			continue
		}
		if len(out.Groups) == limit {
			out.Truncated = true
			break
		}
		members := make([]string, len(grp.Members))
		for j, m := range grp.Members {
			members[j] = g.CellID(m)
		}
		out.Groups = append(out.Groups, GroupSummary{Label: res.Labels[i], Members: members})
	}
	for i, e := range g.Edges {
		if len(out.Edges) == limit {
			out.Truncated = true
			break
		}
		out.Edges = append(out.Edges, EdgeSummary{
			CellA:        g.CellID(e.A),
			CellB:        g.CellID(e.B),
			Intersection: e.Intersection,
			Union:        e.Union,
			IOU:          e.IOU,
			Merged:       res.Unified.Merged[i],
		})
	}
	return nil, out, nil
}

// DescribeCell reports the merge group and overlaps of one cell of the
// most recent run.
func (s *MergeService) DescribeCell(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DescribeCellInput,
) (*mcp.CallToolResult, DescribeCellOutput, error) {
	if input.CellID == "" {
		return nil, DescribeCellOutput{}, fmt.Errorf("cellId is required")
	}

	s.mu.Lock()
	res, store := s.last, s.store
	s.mu.Unlock()
	if res == nil {
		return nil, DescribeCellOutput{}, fmt.Errorf("no merge has run yet; call merge_segmentations or compute_overlaps first")
	}

	cell, err := store.GetCell(ctx, input.CellID)
	if err != nil {
		return nil, DescribeCellOutput{}, fmt.Errorf("get cell: %w", err)
	}
	if cell == nil {
		return nil, DescribeCellOutput{}, fmt.Errorf("unknown cell %q", input.CellID)
	}

	group := ""
	for i := range res.Graph.Cells {
		if res.Graph.CellID(i) == cell.ID {
			group = res.CellLabel(i)
			break
		}
	}

	members, err := store.GetGroupMembers(ctx, group)
	if err != nil {
		return nil, DescribeCellOutput{}, fmt.Errorf("get group members: %w", err)
	}
	overlaps, err := store.GetOverlaps(ctx, cell.ID)
	if err != nil {
		return nil, DescribeCellOutput{}, fmt.Errorf("get overlaps: %w", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, DescribeCellOutput{}, fmt.Errorf("stats: %w", err)
	}

	out := DescribeCellOutput{
		Cell:     *cell,
		Group:    group,
		Members:  members,
		Overlaps: overlaps,
		Stats:    *stats,
	}
	if out.Members == nil {
		out.Members = []graph.CellNode{}
	}
	if out.Overlaps == nil {
		out.Overlaps = []graph.Edge{}
	}
	return nil, out, nil
}
