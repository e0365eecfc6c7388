// Package overlap builds the sparse IOU graph between cells of different
// source tables.
package overlap

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/dusk-indust/segmerge/internal/cellindex"
	"github.com/dusk-indust/segmerge/internal/segment"
	"golang.org/x/sync/errgroup"
)

// Cell is one entry of the cell arena. Cells are numbered by source order
// and then by label order within the source.
type Cell struct {
	Source int
	Label  string
	Size   int
}

// Edge links two cells of different sources that share at least one point.
// A is always less than B.
type Edge struct {
	A, B         int
	Intersection int
	Union        int
	IOU          float64
}

// Graph is the cell arena plus the overlap edges, sorted by (A, B).
type Graph struct {
	Sources []segment.Source
	Cells   []Cell
	Edges   []Edge

	first   []int
	indexes []*cellindex.Index
}

// Options tunes Build.
type Options struct {
	// Workers is the number of point shards counted in parallel.
	// Zero means GOMAXPROCS.
	Workers int
}

// Build computes the overlap graph of indexes, which must already be in
// source order. Candidate pairs come from an inverted point index, so only
// cells that actually share points are ever compared. The inverted index is
// sharded by point id hash; shards are counted concurrently and combined.
func Build(ctx context.Context, indexes []*cellindex.Index, opts Options) (*Graph, error) {
	g := newGraph(indexes)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	buckets, err := g.partition(ctx, workers)
	if err != nil {
		return nil, fmt.Errorf("overlap: %w", err)
	}

	shards := make([]map[pairKey]int, workers)
	eg, ectx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			counts, err := countShard(ectx, g.Cells, buckets, w)
			if err != nil {
				return err
			}
			shards[w] = counts
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("overlap: %w", err)
	}

	counts := shards[0]
	for _, s := range shards[1:] {
		for k, n := range s {
			counts[k] += n
		}
	}

	keys := make([]pairKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	g.Edges = make([]Edge, 0, len(keys))
	for _, k := range keys {
		inter := counts[k]
		if inter <= 0 {
			continue
		}
		a, b := k.cells()
		union := g.Cells[a].Size + g.Cells[b].Size - inter
		g.Edges = append(g.Edges, Edge{
			A:            a,
			B:            b,
			Intersection: inter,
			Union:        union,
			IOU:          float64(inter) / float64(union),
		})
	}
	return g, nil
}

func newGraph(indexes []*cellindex.Index) *Graph {
	g := &Graph{
		Sources: make([]segment.Source, len(indexes)),
		first:   make([]int, len(indexes)),
		indexes: indexes,
	}
	for s, idx := range indexes {
		g.Sources[s] = idx.Source
		g.first[s] = len(g.Cells)
		for i, label := range idx.Labels {
			g.Cells = append(g.Cells, Cell{
				Source: s,
				Label:  label,
				Size:   len(idx.Points[i]),
			})
		}
	}
	return g
}

// membership is one point of one cell.
type membership struct {
	point string
	cell  int32
}

// partition hashes every point once and files it under its shard.
// buckets[s][w] holds the memberships of source s that fall into shard w,
// in arena order. Sources are partitioned concurrently.
func (g *Graph) partition(ctx context.Context, n int) ([][][]membership, error) {
	buckets := make([][][]membership, len(g.indexes))

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(n)
	for s, idx := range g.indexes {
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			shards := make([][]membership, n)
			for ci, points := range idx.Points {
				cell := int32(g.first[s] + ci)
				for _, p := range points {
					w := shardOf(p, n)
					shards[w] = append(shards[w], membership{point: p, cell: cell})
				}
			}
			buckets[s] = shards
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return buckets, nil
}

// countShard counts shared points per candidate pair for shard w.
func countShard(ctx context.Context, cells []Cell, buckets [][][]membership, w int) (map[pairKey]int, error) {
	owners := make(map[string][]int32)
	for _, shards := range buckets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, m := range shards[w] {
			owners[m.point] = append(owners[m.point], m.cell)
		}
	}

	counts := make(map[pairKey]int)
	for _, owned := range owners {
		if len(owned) < 2 {
			continue
		}
		// owned is ascending because buckets are in arena order.
		for i := 0; i < len(owned); i++ {
			for j := i + 1; j < len(owned); j++ {
				a, b := owned[i], owned[j]
				if cells[a].Source == cells[b].Source {
					continue
				}
				counts[newPairKey(a, b)]++
			}
		}
	}
	return counts, nil
}

// shardOf is FNV-1a of point, modulo n.
func shardOf(point string, n int) int {
	if n <= 1 {
		return 0
	}
	h := uint32(2166136261)
	for i := 0; i < len(point); i++ {
		h ^= uint32(point[i])
		h *= 16777619
	}
	return int(h % uint32(n))
}

// pairKey packs an ordered cell pair into one map key.
type pairKey uint64

func newPairKey(a, b int32) pairKey {
	return pairKey(uint64(uint32(a))<<32 | uint64(uint32(b)))
}

func (k pairKey) cells() (int, int) {
	return int(uint32(k >> 32)), int(uint32(k))
}

// Lookup returns the arena index of a source's cell.
func (g *Graph) Lookup(source int, label string) (int, bool) {
	if source < 0 || source >= len(g.indexes) {
		return 0, false
	}
	pos, ok := g.indexes[source].Position(label)
	if !ok {
		return 0, false
	}
	return g.first[source] + pos, true
}

// CellID names a cell as "<source name>:<label>".
func (g *Graph) CellID(cell int) string {
	c := g.Cells[cell]
	return g.Sources[c.Source].Name + segment.LabelSeparator + c.Label
}

// Index returns the cell index of a source.
func (g *Graph) Index(source int) *cellindex.Index {
	return g.indexes[source]
}
