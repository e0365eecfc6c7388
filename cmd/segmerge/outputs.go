package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dusk-indust/segmerge/internal/export"
	"github.com/dusk-indust/segmerge/internal/graph"
	"github.com/dusk-indust/segmerge/internal/merge"
)

// writeOutputs stages the merged table and every optional artifact, and
// only moves them into place once all of them were written. A graph
// database that fails to fill is removed; checkOutputs made sure the path
// did not exist before the run.
func writeOutputs(ctx context.Context, res *merge.Result, opts options) error {
	var out merge.Output
	defer out.Discard()

	if err := out.Stage(opts.outfile, res.WriteCSV); err != nil {
		return err
	}
	if opts.edgesOut != "" {
		if err := out.Stage(opts.edgesOut, res.WriteEdgesCSV); err != nil {
			return err
		}
	}
	if opts.report != "" {
		if err := out.Stage(opts.report, export.BuildReport(res).WriteJSON); err != nil {
			return err
		}
	}
	if opts.diagram != "" {
		err := out.Stage(opts.diagram, func(w io.Writer) error {
			_, err := io.WriteString(w, export.GenerateMermaid(res))
			return err
		})
		if err != nil {
			return err
		}
	}

	if opts.graphDB != "" {
		if err := persistGraph(ctx, res, opts.graphDB); err != nil {
			os.RemoveAll(opts.graphDB)
			return err
		}
	}

	if err := out.Commit(); err != nil {
		if opts.graphDB != "" {
			os.RemoveAll(opts.graphDB)
		}
		return err
	}
	log.Printf("segmerge: wrote %d rows to %s", len(res.Rows), opts.outfile)
	return nil
}

func persistGraph(ctx context.Context, res *merge.Result, path string) error {
	store, err := graph.Open(path)
	if err != nil {
		return fmt.Errorf("open graph: %w", err)
	}
	defer store.Close()

	if err := graph.Persist(ctx, store, res.Graph, res.Unified, res.Labels); err != nil {
		return err
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("graph stats: %w", err)
	}
	log.Printf("segmerge: graph %s: cells=%d groups=%d overlaps=%d merged=%d",
		path, stats.CellCount, stats.GroupCount, stats.OverlapCount, stats.MergedCount)
	return nil
}
