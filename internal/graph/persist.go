package graph

import (
	"context"
	"fmt"

	"github.com/dusk-indust/segmerge/internal/overlap"
	"github.com/dusk-indust/segmerge/internal/unify"
)

// Persist writes the cells, merge groups and overlap edges of a run into
// store. labels are the group labels returned by unify.Result.Labels.
func Persist(ctx context.Context, store Store, g *overlap.Graph, res *unify.Result, labels []string) error {
	if err := store.InitSchema(ctx); err != nil {
		return err
	}

	for i, grp := range res.Groups {
		node := GroupNode{
			ID:        labels[i],
			Canonical: g.CellID(grp.Canonical),
			Members:   len(grp.Members),
		}
		if err := store.AddGroup(ctx, node); err != nil {
			return fmt.Errorf("graph: add group %s: %w", node.ID, err)
		}
	}

	for i, c := range g.Cells {
		id := g.CellID(i)
		node := CellNode{
			ID:     id,
			Source: g.Sources[c.Source].Name,
			Label:  c.Label,
			Size:   c.Size,
		}
		if err := store.AddCell(ctx, node); err != nil {
			return fmt.Errorf("graph: add cell %s: %w", id, err)
		}
		member := Edge{SourceID: id, TargetID: labels[res.GroupOf[i]], Kind: EdgeKindMemberOf}
		if err := store.AddEdge(ctx, member); err != nil {
			return fmt.Errorf("graph: add membership of %s: %w", id, err)
		}
	}

	for i, e := range g.Edges {
		edge := Edge{
			SourceID:     g.CellID(e.A),
			TargetID:     g.CellID(e.B),
			Kind:         EdgeKindOverlaps,
			IOU:          e.IOU,
			Intersection: e.Intersection,
			Union:        e.Union,
			Merged:       res.Merged[i],
		}
		if err := store.AddEdge(ctx, edge); err != nil {
			return fmt.Errorf("graph: add overlap %s-%s: %w", edge.SourceID, edge.TargetID, err)
		}
	}
	return nil
}
