package segment

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadFile reads a source table from disk. Files ending in ".gz" are
// decompressed transparently.
func LoadFile(src Source, opts LoadOptions) (*Table, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, &IOError{Path: src.Path, Op: "open", Err: err}
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(src.Path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, &IOError{Path: src.Path, Op: "read", Err: err}
		}
		defer gz.Close()
		r = gz
	}
	return ReadTable(r, src, opts)
}

// ReadTable parses a CSV table with a header row, or a tab-separated one
// when src.Path ends in ".tsv" or ".tsv.gz". The id and cell columns are
// required, as is every passthrough column in opts.Columns. Ids and labels
// are trimmed; an empty point id is rejected.
func ReadTable(r io.Reader, src Source, opts LoadOptions) (*Table, error) {
	cr := csv.NewReader(r)
	if isTSV(src.Path) {
		// TrimLeadingSpace would swallow the tab after an empty field.
		cr.Comma = '\t'
	} else {
		cr.TrimLeadingSpace = true
	}

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &MalformedInputError{Source: src.Path, Msg: "empty file, expected a header row"}
	}
	if err != nil {
		return nil, readError(src, err)
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	lookup := func(col string) (int, error) {
		i, ok := pos[col]
		if !ok {
			return 0, &MalformedInputError{Source: src.Path, Row: 1, Column: col, Msg: "required column is missing"}
		}
		return i, nil
	}
	idCol, err := lookup(opts.IDColumn)
	if err != nil {
		return nil, err
	}
	cellCol, err := lookup(opts.CellColumn)
	if err != nil {
		return nil, err
	}
	extraCols := make([]int, len(opts.Columns))
	for i, c := range opts.Columns {
		if extraCols[i], err = lookup(c); err != nil {
			return nil, err
		}
	}

	t := &Table{
		Source:  src,
		Columns: append([]string(nil), opts.Columns...),
	}
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, readError(src, err)
		}
		line, _ := cr.FieldPos(0)

		id := strings.TrimSpace(fields[idCol])
		if id == "" {
			return nil, &MalformedInputError{Source: src.Path, Row: line, Column: opts.IDColumn, Msg: "empty point identifier"}
		}
		rec := Record{
			Row:     line,
			PointID: id,
			Label:   strings.TrimSpace(fields[cellCol]),
			Extra:   make([]string, len(extraCols)),
		}
		for i, c := range extraCols {
			rec.Extra[i] = fields[c]
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

func isTSV(path string) bool {
	return strings.HasSuffix(strings.TrimSuffix(path, ".gz"), ".tsv")
}

func readError(src Source, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &MalformedInputError{Source: src.Path, Row: pe.Line, Msg: pe.Err.Error()}
	}
	return &IOError{Path: src.Path, Op: "read", Err: fmt.Errorf("csv: %w", err)}
}
