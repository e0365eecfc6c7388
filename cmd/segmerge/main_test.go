package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dusk-indust/segmerge/internal/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupDir writes two overlapping sources into a temp dir and makes it the
// working directory.
func setupDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write(t, dir, "fov1.csv", "transcript_id,cell,gene\n1,A,g1\n2,A,g2\n3,A,g3\n5,,g5\n")
	write(t, dir, "fov2.csv", "transcript_id,cell,gene\n2,B,g2\n3,B,g3\n4,B,g4\n6,0,g6\n")
	t.Chdir(dir)
	return dir
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func read(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestRun_Merge(t *testing.T) {
	dir := setupDir(t)

	err := run([]string{
		"--columns", "gene",
		"--edges-out", "edges.csv",
		"--report", "report.json",
		"--diagram", "groups.mmd",
		"fov2.csv", "fov1.csv",
	})
	require.NoError(t, err)

	assert.Equal(t,
		"transcript_id,cell,gene\n1,fov1:A,g1\n2,fov1:A,g2\n3,fov1:A,g3\n5,,g5\n4,fov1:A,g4\n6,,g6\n",
		read(t, dir, "out.csv"))
	assert.Equal(t,
		"source_a,cell_a,source_b,cell_b,intersection,union,iou,merged\nfov1,A,fov2,B,2,4,0.5,true\n",
		read(t, dir, "edges.csv"))

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(read(t, dir, "report.json")), &report))
	assert.EqualValues(t, 1, report["groups"])
	assert.EqualValues(t, 6, report["points"])

	assert.Contains(t, read(t, dir, "groups.mmd"), "C0 ---|0.50| C1")
}

func TestRun_ConfigPrecedence(t *testing.T) {
	dir := setupDir(t)
	write(t, dir, "segmerge.yml", "threshold: 0.6\ncolumns: [gene]\noutfile: merged.csv\n")

	require.NoError(t, run([]string{"fov1.csv", "fov2.csv"}))
	assert.Equal(t,
		"transcript_id,cell,gene\n1,fov1:A,g1\n2,fov1:A,g2\n3,fov1:A,g3\n5,,g5\n4,fov2:B,g4\n6,,g6\n",
		read(t, dir, "merged.csv"), "0.5 does not exceed the configured threshold")

	require.NoError(t, run([]string{"--threshold", "0.4", "--label-format", "numeric", "fov1.csv", "fov2.csv"}))
	assert.Equal(t,
		"transcript_id,cell,gene\n1,1,g1\n2,1,g2\n3,1,g3\n5,,g5\n4,1,g4\n6,,g6\n",
		read(t, dir, "merged.csv"), "flags override the config file")
}

func TestRun_ExplicitConfig(t *testing.T) {
	dir := setupDir(t)
	write(t, dir, "other.yml", "columns: []\nidColumn: transcript_id\n")

	require.NoError(t, run([]string{"--config", "other.yml", "--outfile", "plain.csv", "fov1.csv"}))
	assert.Equal(t, "transcript_id,cell\n1,fov1:A\n2,fov1:A\n3,fov1:A\n5,\n", read(t, dir, "plain.csv"))
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		field string // expected ConfigurationError field, empty for other errors
	}{
		{name: "non-numeric threshold", args: []string{"--threshold", "abc", "fov1.csv"}, field: "threshold"},
		{name: "NaN threshold", args: []string{"--threshold", "NaN", "fov1.csv"}, field: "threshold"},
		{name: "unknown label format", args: []string{"--label-format", "roman", "fov1.csv"}, field: "labelFormat"},
		{name: "negative workers", args: []string{"--workers", "-1", "fov1.csv"}, field: "workers"},
		{name: "duplicate column", args: []string{"--columns", "gene,gene", "fov1.csv"}, field: "columns"},
		{name: "no files", args: []string{"--columns", "gene"}, field: "files"},
		{name: "missing config", args: []string{"--config", "nope.yml", "fov1.csv"}, field: "config"},
		{name: "existing graph db", args: []string{"--columns", "gene", "--graph-db", ".", "fov1.csv"}, field: "graphDB"},
		{name: "report overwrites outfile", args: []string{"--columns", "gene", "--report", "out.csv", "fov1.csv"}, field: "reportOut"},
		{name: "missing edges dir", args: []string{"--columns", "gene", "--edges-out", "nope/e.csv", "fov1.csv", "fov2.csv"}},
		{name: "missing input", args: []string{"--columns", "gene", "fov1.csv", "fov9.csv"}},
		{name: "unknown flag", args: []string{"--bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupDir(t)

			err := run(tt.args)
			require.Error(t, err)
			if tt.field != "" {
				var cfgErr *segment.ConfigurationError
				require.True(t, errors.As(err, &cfgErr), "got %T: %v", err, err)
				assert.Equal(t, tt.field, cfgErr.Field)
			}

			_, statErr := os.Stat(filepath.Join(dir, "out.csv"))
			assert.True(t, os.IsNotExist(statErr), "no output after a failed run")
		})
	}
}

func TestRun_FailedArtifactLeavesNoOutput(t *testing.T) {
	dir := setupDir(t)

	err := run([]string{
		"--columns", "gene",
		"--edges-out", "edges.csv",
		"--report", filepath.Join("nope", "report.json"),
		"fov1.csv", "fov2.csv",
	})
	var ioErr *segment.IOError
	require.True(t, errors.As(err, &ioErr), "got %T: %v", err, err)
	assert.Equal(t, "create", ioErr.Op)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.ElementsMatch(t, []string{"fov1.csv", "fov2.csv"}, names, "neither outputs nor temp files remain")
}

func TestRun_MissingInputIsIOError(t *testing.T) {
	setupDir(t)

	err := run([]string{"--columns", "gene", "fov9.csv"})
	var ioErr *segment.IOError
	require.True(t, errors.As(err, &ioErr), "got %T: %v", err, err)
}

func TestRun_Version(t *testing.T) {
	assert.NoError(t, run([]string{"--version"}))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"x", "y", "gene"}, splitList(" x, y ,gene,", true))
	assert.Equal(t, []string{}, splitList("", true))
	assert.Equal(t, []string{"", "0"}, splitList(",0", false))
	assert.Equal(t, []string{""}, splitList("", false))
}
