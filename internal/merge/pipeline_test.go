package merge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dusk-indust/segmerge/internal/segment"
	"github.com/dusk-indust/segmerge/internal/unify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile writes content into dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(files ...string) Config {
	cfg := DefaultConfig()
	cfg.Files = files
	cfg.Columns = []string{"gene"}
	cfg.Workers = 2
	return cfg
}

func run(t *testing.T, cfg Config) *Result {
	t.Helper()
	res, err := NewPipeline(cfg, nil).Run(context.Background())
	require.NoError(t, err)
	return res
}

func labelsByPoint(res *Result) map[string]string {
	out := make(map[string]string, len(res.Rows))
	for _, row := range res.Rows {
		out[row.PointID] = row.Label
	}
	return out
}

const (
	fov1 = "transcript_id,cell,gene\n1,A,g1\n2,A,g2\n3,A,g3\n5,,g5\n"
	fov2 = "transcript_id,cell,gene\n2,B,g2\n3,B,g3\n4,B,g4\n6,0,g6\n"
)

func TestPipeline_MergesOverlappingCells(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "fov1.csv", fov1)
	b := writeFile(t, dir, "fov2.csv", fov2)

	res := run(t, testConfig(a, b))

	require.Len(t, res.Graph.Edges, 1)
	assert.InDelta(t, 0.5, res.Graph.Edges[0].IOU, 1e-12)
	assert.Equal(t, map[string]string{
		"1": "fov1:A", "2": "fov1:A", "3": "fov1:A", "4": "fov1:A",
		"5": "", "6": "",
	}, labelsByPoint(res))

	var buf bytes.Buffer
	require.NoError(t, res.WriteCSV(&buf))
	assert.Equal(t, "transcript_id,cell,gene\n"+
		"1,fov1:A,g1\n2,fov1:A,g2\n3,fov1:A,g3\n5,,g5\n4,fov1:A,g4\n6,,g6\n", buf.String())
}

func TestPipeline_BelowThresholdKeepsCellsApart(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(writeFile(t, dir, "fov1.csv", fov1), writeFile(t, dir, "fov2.csv", fov2))
	cfg.Threshold = 0.6

	labels := labelsByPoint(run(t, cfg))
	assert.Equal(t, "fov1:A", labels["1"])
	assert.Equal(t, "fov1:A", labels["2"], "first source that assigns the point wins")
	assert.Equal(t, "fov2:B", labels["4"])
}

func TestPipeline_FileOrderDoesNotMatter(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "fov1.csv", fov1)
	b := writeFile(t, dir, "fov2.csv", fov2)
	c := writeFile(t, dir, "fov3.csv", "transcript_id,cell,gene\n4,9,g4\n7,9,g7\n8,3,g8\n")

	forward := run(t, testConfig(a, b, c))
	backward := run(t, testConfig(c, a, b))

	assert.Equal(t, forward.Rows, backward.Rows)
	assert.Equal(t, forward.Labels, backward.Labels)
}

func TestPipeline_SingleSourceKeepsLabels(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "only.csv", "transcript_id,cell,gene\n1,7,a\n2,7,b\n3,12,c\n4,0,d\n")

	for _, th := range []float64{-1, 0, 0.2, 1} {
		cfg := testConfig(path)
		cfg.Threshold = th
		assert.Equal(t, map[string]string{
			"1": "only:7", "2": "only:7", "3": "only:12", "4": "",
		}, labelsByPoint(run(t, cfg)))
	}
}

func TestPipeline_NumericLabels(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(writeFile(t, dir, "fov1.csv", fov1), writeFile(t, dir, "fov2.csv", fov2))
	cfg.Threshold = 0.6
	cfg.LabelFormat = unify.LabelNumeric

	labels := labelsByPoint(run(t, cfg))
	assert.Equal(t, "1", labels["1"])
	assert.Equal(t, "2", labels["4"])
}

func TestPipeline_PartitionOfAssignedPoints(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "a.csv", "transcript_id,cell,gene\n1,1,x\n2,1,x\n3,2,x\n4,2,x\n5,,x\n"),
		writeFile(t, dir, "b.csv", "transcript_id,cell,gene\n2,1,x\n3,1,x\n6,2,x\n7,2,x\n"),
		writeFile(t, dir, "c.csv", "transcript_id,cell,gene\n6,5,x\n7,5,x\n8,5,x\n5,6,x\n"),
	}
	res := run(t, testConfig(files...))

	seen := make(map[string]int)
	for _, row := range res.Rows {
		seen[row.PointID]++
	}
	assert.Len(t, seen, 8, "every point appears once")
	for p, n := range seen {
		assert.Equal(t, 1, n, "point %s", p)
	}

	labels := labelsByPoint(res)
	assert.Equal(t, labels["1"], labels["4"], "a:1 and a:2 joined through b:1")
	assert.Equal(t, labels["6"], labels["8"])
	assert.Equal(t, "c:6", labels["5"], "assigned in c only")
}

func TestPipeline_MutualBest(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "transcript_id,cell,gene\n1,A,x\n2,A,x\n3,A,x\n4,A,x\n")
	b := writeFile(t, dir, "b.csv", "transcript_id,cell,gene\n1,B1,x\n2,B1,x\n9,B1,x\n10,B1,x\n3,B2,x\n4,B2,x\n")

	cfg := testConfig(a, b)
	labels := labelsByPoint(run(t, cfg))
	assert.Equal(t, labels["9"], labels["3"])

	cfg.MutualBest = true
	labels = labelsByPoint(run(t, cfg))
	assert.Equal(t, "a:A", labels["3"])
	assert.Equal(t, "b:B1", labels["9"])
}

func TestPipeline_Errors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.csv", fov1)
	conflict := writeFile(t, dir, "conflict.csv", "transcript_id,cell,gene\n1,A,x\n1,B,x\n")
	noCell := writeFile(t, dir, "nocell.csv", "transcript_id,gene\n1,x\n")

	var mie *segment.MalformedInputError
	var ioe *segment.IOError
	var ce *segment.ConfigurationError

	_, err := NewPipeline(testConfig(good, conflict), nil).Run(context.Background())
	require.True(t, errors.As(err, &mie), "got %v", err)
	assert.Equal(t, conflict, mie.Source)
	assert.Equal(t, 3, mie.Row)

	_, err = NewPipeline(testConfig(good, noCell), nil).Run(context.Background())
	require.True(t, errors.As(err, &mie), "got %v", err)
	assert.Equal(t, "cell", mie.Column)

	_, err = NewPipeline(testConfig(good, filepath.Join(dir, "missing.csv")), nil).Run(context.Background())
	require.True(t, errors.As(err, &ioe), "got %v", err)

	cfg := testConfig(good)
	cfg.Threshold = math.NaN()
	_, err = NewPipeline(cfg, nil).Run(context.Background())
	require.True(t, errors.As(err, &ce), "got %v", err)

	_, err = NewPipeline(testConfig(), nil).Run(context.Background())
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, "files", ce.Field)
}

func TestPipeline_EmptyLabelFormatIsPrefixed(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(writeFile(t, dir, "fov1.csv", fov1), writeFile(t, dir, "fov2.csv", fov2))
	cfg.LabelFormat = ""

	res := run(t, cfg)
	assert.Equal(t, unify.LabelPrefixed, res.Config.LabelFormat)
	assert.Equal(t, []string{"fov1:A"}, res.Labels)
}

func TestPipeline_Cancelled(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(writeFile(t, dir, "fov1.csv", fov1), writeFile(t, dir, "fov2.csv", fov2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewPipeline(cfg, nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestPipeline_CellIDsStayUnique(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "transcript_id,cell\n1,b:c\n2,b:c\n")
	ab := writeFile(t, dir, "a:b.csv", "transcript_id,cell\n3,c\n4,c\n")

	cfg := testConfig(a, ab)
	cfg.Columns = nil
	_, err := NewPipeline(cfg, nil).Run(context.Background())
	var ce *segment.ConfigurationError
	require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
	assert.Equal(t, "files", ce.Field)

	// A separator inside a label is fine: the source name ends at the first one.
	other := writeFile(t, dir, "ab.csv", "transcript_id,cell\n3,c\n4,c\n")
	cfg = testConfig(a, other)
	cfg.Columns = nil
	res := run(t, cfg)
	assert.Equal(t, []string{"a:b:c", "ab:c"}, res.Labels)
	assert.Equal(t, map[string]string{"1": "a:b:c", "2": "a:b:c", "3": "ab:c", "4": "ab:c"}, labelsByPoint(res))
}

func TestPipeline_ProgressEvents(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(writeFile(t, dir, "fov1.csv", fov1), writeFile(t, dir, "fov2.csv", fov2))

	var mu sync.Mutex
	var events []ProgressEvent
	_, err := NewPipeline(cfg, func(ev ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}).Run(context.Background())
	require.NoError(t, err)

	completed := make(map[string]bool)
	for _, ev := range events {
		if ev.Status == ProgressComplete {
			completed[ev.Section] = true
		}
	}
	assert.True(t, completed[cfg.Files[0]])
	assert.True(t, completed[cfg.Files[1]])
	assert.True(t, completed["overlap"])
	assert.True(t, completed["unify"])
	assert.True(t, completed["assemble"])
}

func TestResult_WriteEdgesCSV(t *testing.T) {
	dir := t.TempDir()
	res := run(t, testConfig(writeFile(t, dir, "fov1.csv", fov1), writeFile(t, dir, "fov2.csv", fov2)))

	var buf bytes.Buffer
	require.NoError(t, res.WriteEdgesCSV(&buf))
	assert.Equal(t, "source_a,cell_a,source_b,cell_b,intersection,union,iou,merged\n"+
		"fov1,A,fov2,B,2,4,0.5,true\n", buf.String())
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	require.NoError(t, WriteFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "a,b\n")
		return err
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	err = WriteFile(path, func(w io.Writer) error { return errors.New("disk full") })
	var ioe *segment.IOError
	require.True(t, errors.As(err, &ioe))
	assert.Equal(t, "write", ioe.Op)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data), "failed write leaves the previous file intact")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are removed")

	err = WriteFile(filepath.Join(dir, "missing", "out.csv"), func(io.Writer) error { return nil })
	require.True(t, errors.As(err, &ioe))
	assert.Equal(t, "create", ioe.Op)
}

func TestOutput_StagesUntilCommit(t *testing.T) {
	dir := t.TempDir()
	writeString := func(s string) func(io.Writer) error {
		return func(w io.Writer) error {
			_, err := io.WriteString(w, s)
			return err
		}
	}

	var out Output
	require.NoError(t, out.Stage(filepath.Join(dir, "out.csv"), writeString("rows\n")))
	require.NoError(t, out.Stage(filepath.Join(dir, "edges.csv"), writeString("edges\n")))

	_, err := os.Stat(filepath.Join(dir, "out.csv"))
	assert.True(t, os.IsNotExist(err), "staged files stay hidden")

	require.NoError(t, out.Commit())
	out.Discard()
	data, err := os.ReadFile(filepath.Join(dir, "out.csv"))
	require.NoError(t, err)
	assert.Equal(t, "rows\n", string(data))
	data, err = os.ReadFile(filepath.Join(dir, "edges.csv"))
	require.NoError(t, err)
	assert.Equal(t, "edges\n", string(data))
}

func TestOutput_DiscardAfterFailedStage(t *testing.T) {
	dir := t.TempDir()

	var out Output
	require.NoError(t, out.Stage(filepath.Join(dir, "out.csv"), func(io.Writer) error { return nil }))
	err := out.Stage(filepath.Join(dir, "nope", "edges.csv"), func(io.Writer) error { return nil })
	var ioe *segment.IOError
	require.True(t, errors.As(err, &ioe))
	assert.Equal(t, "create", ioe.Op)

	out.Discard()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is left behind")
}

func TestFormatProgress(t *testing.T) {
	assert.True(t, strings.HasSuffix(FormatProgress(ProgressEvent{Section: "a.csv", Status: ProgressPending}), "a.csv (pending)"))
	assert.Contains(t, FormatProgress(ProgressEvent{Section: "unify", Status: ProgressComplete, Message: "3 groups"}), "unify complete: 3 groups")
	assert.Contains(t, FormatProgress(ProgressEvent{Section: "x", Status: ProgressFailed, Message: "boom"}), "x failed: boom")
	assert.Equal(t, "overlap", StageOverlap.String())
	assert.Equal(t, "unknown", Stage(42).String())
}
