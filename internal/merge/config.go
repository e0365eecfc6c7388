package merge

import (
	"fmt"
	"math"
	"strings"

	"github.com/dusk-indust/segmerge/internal/segment"
	"github.com/dusk-indust/segmerge/internal/unify"
)

// DefaultThreshold is the IOU a pair of cells must exceed to merge.
const DefaultThreshold = 0.2

// DefaultOutfile is where the merged table is written.
const DefaultOutfile = "out.csv"

// Config holds the settings of one merge run.
type Config struct {
	// Files lists the source tables. Order does not matter.
	Files []string

	// Threshold is exclusive: cells merge when their IOU is greater.
	Threshold float64

	// Columns are copied from the inputs to the output.
	Columns []string

	IDColumn   string
	CellColumn string

	// Unassigned lists the labels meaning "no cell".
	Unassigned []string

	LabelFormat unify.LabelFormat
	MutualBest  bool

	// Workers bounds concurrent file loads and overlap shards.
	// Zero means GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Threshold:   DefaultThreshold,
		Columns:     append([]string(nil), segment.DefaultColumns...),
		IDColumn:    segment.DefaultIDColumn,
		CellColumn:  segment.DefaultCellColumn,
		Unassigned:  append([]string(nil), segment.DefaultUnassigned...),
		LabelFormat: unify.LabelPrefixed,
	}
}

// Validate checks the settings that do not depend on the input files.
func (c Config) Validate() error {
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
		return &segment.ConfigurationError{Field: "threshold", Msg: fmt.Sprintf("must be a finite number, got %v", c.Threshold)}
	}
	if strings.TrimSpace(c.IDColumn) == "" {
		return &segment.ConfigurationError{Field: "idColumn", Msg: "must not be empty"}
	}
	if strings.TrimSpace(c.CellColumn) == "" {
		return &segment.ConfigurationError{Field: "cellColumn", Msg: "must not be empty"}
	}
	if c.IDColumn == c.CellColumn {
		return &segment.ConfigurationError{Field: "cellColumn", Msg: fmt.Sprintf("must differ from idColumn %q", c.IDColumn)}
	}

	seen := make(map[string]bool, len(c.Columns))
	for _, col := range c.Columns {
		switch {
		case strings.TrimSpace(col) == "":
			return &segment.ConfigurationError{Field: "columns", Msg: "column names must not be empty"}
		case col == c.IDColumn || col == c.CellColumn:
			return &segment.ConfigurationError{Field: "columns", Msg: fmt.Sprintf("%q is always written and cannot be a passthrough column", col)}
		case seen[col]:
			return &segment.ConfigurationError{Field: "columns", Msg: fmt.Sprintf("duplicate column %q", col)}
		}
		seen[col] = true
	}

	if _, err := unify.ParseLabelFormat(string(c.LabelFormat)); err != nil {
		return err
	}
	if c.Workers < 0 {
		return &segment.ConfigurationError{Field: "workers", Msg: fmt.Sprintf("must not be negative, got %d", c.Workers)}
	}
	return nil
}

// LoadOptions derives the loader settings.
func (c Config) LoadOptions() segment.LoadOptions {
	return segment.LoadOptions{
		IDColumn:   c.IDColumn,
		CellColumn: c.CellColumn,
		Columns:    c.Columns,
		Unassigned: segment.NewLabelSet(c.Unassigned...),
	}
}
