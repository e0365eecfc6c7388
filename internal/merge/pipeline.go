// Package merge runs a whole segmentation merge: it loads and indexes every
// source, builds the overlap graph, unifies cell identities and assembles
// the relabelled point table.
package merge

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"github.com/dusk-indust/segmerge/internal/cellindex"
	"github.com/dusk-indust/segmerge/internal/overlap"
	"github.com/dusk-indust/segmerge/internal/segment"
	"github.com/dusk-indust/segmerge/internal/unify"
	"golang.org/x/sync/errgroup"
)

// Result owns all state of a completed run.
type Result struct {
	Config  Config
	Sources []segment.Source
	Indexes []*cellindex.Index
	Graph   *overlap.Graph
	Unified *unify.Result

	// Labels holds the output label of every merge group.
	Labels []string

	// Rows is the merged point table, one row per distinct point id.
	Rows []Row
}

// Pipeline executes merge runs for one Config.
type Pipeline struct {
	cfg        Config
	onProgress func(ProgressEvent)
}

// NewPipeline creates a Pipeline. onProgress may be nil; it is called from
// several goroutines during StageLoad.
func NewPipeline(cfg Config, onProgress func(ProgressEvent)) *Pipeline {
	return &Pipeline{cfg: cfg, onProgress: onProgress}
}

// Run merges the configured files. Any malformed or unreadable input aborts
// the run; no partial result is returned.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	cfg := p.cfg
	if cfg.LabelFormat == "" {
		cfg.LabelFormat = unify.LabelPrefixed
	}
	sources, err := segment.NameSources(cfg.Files)
	if err != nil {
		return nil, err
	}

	res := &Result{Config: cfg, Sources: sources}

	res.Indexes, err = p.load(ctx, sources)
	if err != nil {
		return nil, err
	}

	err = p.stage(StageOverlap, func() (string, error) {
		g, err := overlap.Build(ctx, res.Indexes, overlap.Options{Workers: p.workers()})
		if err != nil {
			return "", err
		}
		res.Graph = g
		return fmt.Sprintf("%d cells, %d candidate pairs", len(res.Graph.Cells), len(res.Graph.Edges)), nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(StageUnify, func() (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		res.Unified = unify.Unify(res.Graph, unify.Options{
			Threshold:  cfg.Threshold,
			MutualBest: cfg.MutualBest,
		})
		res.Labels = res.Unified.Labels(res.Graph, cfg.LabelFormat)
		return fmt.Sprintf("%d merged edges, %d groups", res.Unified.MergedEdges(), len(res.Unified.Groups)), nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(StageAssemble, func() (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		res.Rows = assemble(res)
		return fmt.Sprintf("%d points", len(res.Rows)), nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("merge: sources=%d cells=%d edges=%d merged=%d groups=%d points=%d",
		len(res.Sources), len(res.Graph.Cells), len(res.Graph.Edges),
		res.Unified.MergedEdges(), len(res.Unified.Groups), len(res.Rows))
	return res, nil
}

// load reads and indexes every source concurrently. The first failure
// cancels the remaining loads.
func (p *Pipeline) load(ctx context.Context, sources []segment.Source) ([]*cellindex.Index, error) {
	opts := p.cfg.LoadOptions()
	indexes := make([]*cellindex.Index, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i, src := range sources {
		p.emit(ProgressEvent{Stage: StageLoad, Section: src.Path, Status: ProgressPending})

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p.emit(ProgressEvent{Stage: StageLoad, Section: src.Path, Status: ProgressWorking})

			idx, err := loadSource(src, opts)
			if err != nil {
				p.emit(ProgressEvent{Stage: StageLoad, Section: src.Path, Status: ProgressFailed, Message: err.Error()})
				return err
			}
			indexes[i] = idx
			p.emit(ProgressEvent{
				Stage:   StageLoad,
				Section: src.Path,
				Status:  ProgressComplete,
				Message: fmt.Sprintf("%d points, %d cells", idx.PointCount(), idx.Len()),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return indexes, nil
}

func loadSource(src segment.Source, opts segment.LoadOptions) (*cellindex.Index, error) {
	tbl, err := segment.LoadFile(src, opts)
	if err != nil {
		return nil, err
	}
	idx, err := cellindex.Build(tbl, opts.Unassigned)
	if err != nil {
		return nil, err
	}
	if idx.Len() == 0 {
		log.Printf("merge: source %s has no cells, its points pass through unassigned", src.Path)
	}
	return idx, nil
}

// stage runs fn between working and complete/failed progress events.
func (p *Pipeline) stage(s Stage, fn func() (string, error)) error {
	p.emit(ProgressEvent{Stage: s, Section: s.String(), Status: ProgressWorking})
	msg, err := fn()
	if err != nil {
		p.emit(ProgressEvent{Stage: s, Section: s.String(), Status: ProgressFailed, Message: err.Error()})
		return err
	}
	p.emit(ProgressEvent{Stage: s, Section: s.String(), Status: ProgressComplete, Message: msg})
	return nil
}

func (p *Pipeline) workers() int {
	if p.cfg.Workers > 0 {
		return p.cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (p *Pipeline) emit(ev ProgressEvent) {
	if p.onProgress != nil {
		p.onProgress(ev)
	}
}
