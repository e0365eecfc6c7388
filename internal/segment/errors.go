package segment

import (
	"fmt"
	"strings"
)

// MalformedInputError reports a source table that cannot be merged safely:
// a missing column, an unparsable row, or a point assigned to two cells.
type MalformedInputError struct {
	Source string // file path
	Row    int    // 1-based line, 0 when not row specific
	Column string
	Msg    string
}

func (e *MalformedInputError) Error() string {
	var b strings.Builder
	b.WriteString("malformed input")
	if e.Source != "" {
		fmt.Fprintf(&b, " %s", e.Source)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	return b.String()
}

// IOError reports an unreadable input or unwritable output path.
type IOError struct {
	Path string
	Op   string // "open", "read", "create", "write"
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid run setting such as a non-numeric
// threshold or an empty column name.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Msg)
}
