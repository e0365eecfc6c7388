package segment

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Default column names of a Baysor-style segmentation table.
const (
	DefaultIDColumn   = "transcript_id"
	DefaultCellColumn = "cell"
)

// DefaultColumns are the passthrough columns copied to the merged output
// when the caller does not choose any.
var DefaultColumns = []string{"x", "y", "z", "qv", "overlaps_nucleus", "gene"}

// DefaultUnassigned lists the cell labels that mark a point as not belonging
// to any cell.
var DefaultUnassigned = []string{"", "0"}

// Source is one independently segmented input table (e.g. one field of view).
type Source struct {
	Name string `json:"name"` // unique, used to prefix merged cell labels
	Path string `json:"path"`
}

// Record is one data row of a source table.
type Record struct {
	Row     int // 1-based line number, the header is row 1
	PointID string
	Label   string
	Extra   []string // passthrough values, in LoadOptions.Columns order
}

// Table is the loaded content of one source file.
type Table struct {
	Source  Source
	Columns []string
	Records []Record
}

// LabelSet is a set of cell labels.
type LabelSet map[string]struct{}

// NewLabelSet builds a LabelSet from labels. Labels are trimmed.
func NewLabelSet(labels ...string) LabelSet {
	s := make(LabelSet, len(labels))
	for _, l := range labels {
		s[strings.TrimSpace(l)] = struct{}{}
	}
	return s
}

// Contains reports whether label is in the set.
func (s LabelSet) Contains(label string) bool {
	_, ok := s[label]
	return ok
}

// LoadOptions selects the columns read from each source table.
type LoadOptions struct {
	IDColumn   string
	CellColumn string
	Columns    []string
	Unassigned LabelSet
}

// DefaultLoadOptions returns options matching Baysor output files.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		IDColumn:   DefaultIDColumn,
		CellColumn: DefaultCellColumn,
		Columns:    append([]string(nil), DefaultColumns...),
		Unassigned: NewLabelSet(DefaultUnassigned...),
	}
}

// IsUnassigned reports whether label designates "no cell".
func (o LoadOptions) IsUnassigned(label string) bool {
	return o.Unassigned.Contains(label)
}

// LabelSeparator joins a source name and a cell label into a cell id.
// Source names never contain it, so the first separator in an id always
// ends the source name.
const LabelSeparator = ":"

// NameSources turns input paths into Sources sorted by cleaned path. A source
// is named after its file stem; when two stems collide, the colliding
// sources are named after their cleaned paths instead. Duplicate paths are
// rejected because a file merged with itself would collapse every cell, and
// names containing LabelSeparator are rejected because their cell ids could
// collide with those of another source.
func NameSources(paths []string) ([]Source, error) {
	if len(paths) == 0 {
		return nil, &ConfigurationError{Field: "files", Msg: "at least one input file is required"}
	}

	cleaned := make([]string, len(paths))
	seen := make(map[string]bool, len(paths))
	for i, p := range paths {
		c := filepath.Clean(p)
		if seen[c] {
			return nil, &ConfigurationError{Field: "files", Msg: "duplicate input file " + strconv.Quote(c)}
		}
		seen[c] = true
		cleaned[i] = c
	}
	sort.Strings(cleaned)

	stems := make(map[string]int, len(cleaned))
	for _, c := range cleaned {
		stems[stem(c)]++
	}

	sources := make([]Source, len(cleaned))
	names := make(map[string]string, len(cleaned))
	for i, c := range cleaned {
		name := stem(c)
		if stems[name] > 1 {
			name = filepath.ToSlash(c)
		}
		if strings.Contains(name, LabelSeparator) {
			return nil, &ConfigurationError{
				Field: "files",
				Msg:   fmt.Sprintf("source name %q of %s contains %q, which separates source and cell in merged labels", name, c, LabelSeparator),
			}
		}
		if prev, ok := names[name]; ok {
			return nil, &ConfigurationError{Field: "files", Msg: fmt.Sprintf("%s and %s would both be named %q", prev, c, name)}
		}
		names[name] = c
		sources[i] = Source{Name: name, Path: c}
	}
	return sources, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".gz", ".csv", ".tsv"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// CompareLabels orders two cell labels. Labels that both parse as integers
// compare numerically, anything else compares lexicographically.
func CompareLabels(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
	}
	return strings.Compare(a, b)
}
