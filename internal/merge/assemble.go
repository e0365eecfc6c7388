package merge

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dusk-indust/segmerge/internal/segment"
)

// Row is one point of the merged table. Label is empty for points that are
// unassigned in every source.
type Row struct {
	PointID string
	Label   string
	Extra   []string
}

// assemble relabels every point. Sources are visited in order: the first
// occurrence of a point supplies its passthrough values and the first
// source assigning it to a cell supplies its merged label.
func assemble(res *Result) []Row {
	var rows []Row
	var labelled []bool
	pos := make(map[string]int)

	for s, idx := range res.Indexes {
		for _, point := range idx.Order {
			i, ok := pos[point]
			if !ok {
				i = len(rows)
				pos[point] = i
				rows = append(rows, Row{PointID: point, Extra: idx.Extra(point)})
				labelled = append(labelled, false)
			}
			if labelled[i] {
				continue
			}
			label, assigned, _ := idx.LabelOf(point)
			if !assigned {
				continue
			}
			cell, _ := res.Graph.Lookup(s, label)
			rows[i].Label = res.Labels[res.Unified.GroupOf[cell]]
			labelled[i] = true
		}
	}
	return rows
}

// CellLabel returns the merged label of an arena cell.
func (r *Result) CellLabel(cell int) string {
	return r.Labels[r.Unified.GroupOf[cell]]
}

// WriteCSV writes the merged table: point id, merged cell label, then the
// passthrough columns.
func (r *Result) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{r.Config.IDColumn, r.Config.CellColumn}, r.Config.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, 0, len(header))
	for _, row := range r.Rows {
		record = append(record[:0], row.PointID, row.Label)
		record = append(record, row.Extra...)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEdgesCSV writes every overlap edge with its IOU and whether it
// merged its cells.
func (r *Result) WriteEdgesCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"source_a", "cell_a", "source_b", "cell_b", "intersection", "union", "iou", "merged"}); err != nil {
		return err
	}
	g := r.Graph
	for i, e := range g.Edges {
		a, b := g.Cells[e.A], g.Cells[e.B]
		err := cw.Write([]string{
			g.Sources[a.Source].Name, a.Label,
			g.Sources[b.Source].Name, b.Label,
			strconv.Itoa(e.Intersection),
			strconv.Itoa(e.Union),
			strconv.FormatFloat(e.IOU, 'g', -1, 64),
			strconv.FormatBool(r.Unified.Merged[i]),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Output stages files next to their destinations. Nothing appears at a
// destination path until Commit, so a run that fails part way through its
// outputs leaves none of them behind.
type Output struct {
	staged []stagedFile
}

type stagedFile struct {
	tmp  string
	path string
}

// Stage writes one file to a temporary path in the directory of path.
func (o *Output) Stage(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return &segment.IOError{Path: path, Op: "create", Err: err}
	}

	err = write(tmp)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return &segment.IOError{Path: path, Op: "write", Err: err}
	}

	o.staged = append(o.staged, stagedFile{tmp: tmp.Name(), path: path})
	return nil
}

// Commit renames every staged file into place, in staging order.
func (o *Output) Commit() error {
	for i, f := range o.staged {
		if err := os.Rename(f.tmp, f.path); err != nil {
			o.staged = o.staged[i:]
			return &segment.IOError{Path: f.path, Op: "write", Err: err}
		}
	}
	o.staged = nil
	return nil
}

// Discard removes every staged file that was not committed.
func (o *Output) Discard() {
	for _, f := range o.staged {
		os.Remove(f.tmp)
	}
	o.staged = nil
}

// WriteFile writes a single file through an Output.
func WriteFile(path string, write func(io.Writer) error) error {
	var out Output
	defer out.Discard()

	if err := out.Stage(path, write); err != nil {
		return err
	}
	return out.Commit()
}
