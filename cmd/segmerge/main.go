package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/dusk-indust/segmerge/internal/config"
	"github.com/dusk-indust/segmerge/internal/graph"
	"github.com/dusk-indust/segmerge/internal/merge"
	"github.com/dusk-indust/segmerge/internal/segment"
	"github.com/dusk-indust/segmerge/internal/unify"
)

// CLI flags parsed from command line.
type cliFlags struct {
	Threshold   string
	Columns     string
	Outfile     string
	IDColumn    string
	CellColumn  string
	Unassigned  string
	LabelFormat string
	MutualBest  bool
	Workers     int
	Config      string
	EdgesOut    string
	Report      string
	GraphDB     string
	Diagram     string
	Verbose     bool
	ServeMCP    bool
	MCPAddr     string
	Version     bool
}

// options is everything a run needs after defaults, the project config and
// flags have been merged.
type options struct {
	merge    merge.Config
	outfile  string
	edgesOut string
	report   string
	graphDB  string
	diagram  string
	verbose  bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	fs := flag.NewFlagSet("segmerge", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: segmerge [flags] file.csv [file.csv ...]\n\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&flags.Threshold, "threshold", strconv.FormatFloat(merge.DefaultThreshold, 'g', -1, 64), "IOU two cells must exceed to merge")
	fs.StringVar(&flags.Columns, "columns", strings.Join(segment.DefaultColumns, ","), "comma-separated columns copied to the output")
	fs.StringVar(&flags.Outfile, "outfile", merge.DefaultOutfile, "path of the merged table")
	fs.StringVar(&flags.IDColumn, "id-column", segment.DefaultIDColumn, "point id column")
	fs.StringVar(&flags.CellColumn, "cell-column", segment.DefaultCellColumn, "cell label column")
	fs.StringVar(&flags.Unassigned, "unassigned", strings.Join(segment.DefaultUnassigned, ","), "comma-separated labels meaning no cell")
	fs.StringVar(&flags.LabelFormat, "label-format", string(unify.LabelPrefixed), "merged label format: prefixed or numeric")
	fs.BoolVar(&flags.MutualBest, "mutual-best", false, "only merge cells that are each other's best match")
	fs.IntVar(&flags.Workers, "workers", 0, "concurrent loads and overlap shards (0: GOMAXPROCS)")
	fs.StringVar(&flags.Config, "config", "", "config file (default: segmerge.yml in the working directory)")
	fs.StringVar(&flags.EdgesOut, "edges-out", "", "write every overlap edge to this CSV")
	fs.StringVar(&flags.Report, "report", "", "write a JSON run report to this path")
	fs.StringVar(&flags.GraphDB, "graph-db", "", "persist the overlap graph to a new Kuzu database at this path")
	fs.StringVar(&flags.Diagram, "diagram", "", "write a Mermaid diagram of the merge groups to this path")
	fs.BoolVar(&flags.Verbose, "verbose", false, "print progress to stderr")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as MCP server on stdio")
	fs.StringVar(&flags.MCPAddr, "mcp-addr", "", "with --serve-mcp, serve streamable HTTP on this address instead of stdio")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	opts, err := resolveOptions(fs, flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if flags.ServeMCP {
		return serveMCP(ctx, opts, flags.MCPAddr)
	}
	return runMerge(ctx, opts)
}

// resolveOptions layers defaults, the project config and explicitly set
// flags, in that order.
func resolveOptions(fs *flag.FlagSet, flags cliFlags) (options, error) {
	opts := options{
		merge:   merge.DefaultConfig(),
		outfile: merge.DefaultOutfile,
	}

	var pc *config.ProjectConfig
	var err error
	if flags.Config != "" {
		pc, err = config.LoadFile(flags.Config)
	} else {
		pc, err = config.Load(".")
	}
	if err != nil {
		return options{}, err
	}
	pc.Apply(&opts.merge)
	if pc.Outfile != "" {
		opts.outfile = pc.Outfile
	}
	opts.edgesOut = pc.EdgesOut
	opts.report = pc.ReportOut
	opts.graphDB = pc.GraphDB
	opts.diagram = pc.Diagram
	opts.verbose = pc.Verbose

	var visitErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "threshold":
			t, err := strconv.ParseFloat(strings.TrimSpace(flags.Threshold), 64)
			if err != nil {
				visitErr = &segment.ConfigurationError{Field: "threshold", Msg: fmt.Sprintf("%q is not a number", flags.Threshold)}
				return
			}
			opts.merge.Threshold = t
		case "columns":
			opts.merge.Columns = splitList(flags.Columns, true)
		case "outfile":
			opts.outfile = flags.Outfile
		case "id-column":
			opts.merge.IDColumn = flags.IDColumn
		case "cell-column":
			opts.merge.CellColumn = flags.CellColumn
		case "unassigned":
			opts.merge.Unassigned = splitList(flags.Unassigned, false)
		case "label-format":
			opts.merge.LabelFormat = unify.LabelFormat(flags.LabelFormat)
		case "mutual-best":
			opts.merge.MutualBest = flags.MutualBest
		case "workers":
			opts.merge.Workers = flags.Workers
		case "edges-out":
			opts.edgesOut = flags.EdgesOut
		case "report":
			opts.report = flags.Report
		case "graph-db":
			opts.graphDB = flags.GraphDB
		case "diagram":
			opts.diagram = flags.Diagram
		case "verbose":
			opts.verbose = flags.Verbose
		}
	})
	if visitErr != nil {
		return options{}, visitErr
	}

	opts.merge.Files = fs.Args()
	return opts, nil
}

// splitList splits a comma-separated flag value. Labels keep empty entries
// so that "" can be named as unassigned; column lists drop them.
func splitList(s string, dropEmpty bool) []string {
	out := []string{}
	if strings.TrimSpace(s) == "" && dropEmpty {
		return out
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" && dropEmpty {
			continue
		}
		out = append(out, part)
	}
	return out
}

// checkOutputs rejects output settings that would only fail after the
// merge, so a bad invocation never leaves partial output behind.
func checkOutputs(opts options) error {
	if opts.outfile == "" {
		return &segment.ConfigurationError{Field: "outfile", Msg: "must not be empty"}
	}
	seen := make(map[string]string)
	for _, o := range []struct{ field, path string }{
		{"outfile", opts.outfile},
		{"edgesOut", opts.edgesOut},
		{"reportOut", opts.report},
		{"diagram", opts.diagram},
		{"graphDB", opts.graphDB},
	} {
		if o.path == "" {
			continue
		}
		p := filepath.Clean(o.path)
		if prev, ok := seen[p]; ok {
			return &segment.ConfigurationError{Field: o.field, Msg: fmt.Sprintf("%s is also the %s path", o.path, prev)}
		}
		seen[p] = o.field
	}
	if opts.graphDB == "" {
		return nil
	}
	if !graph.Supported {
		return &segment.ConfigurationError{Field: "graphDB", Msg: "this build has no graph database support (built without cgo)"}
	}
	if _, err := os.Stat(opts.graphDB); err == nil {
		return &segment.ConfigurationError{Field: "graphDB", Msg: opts.graphDB + " already exists"}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &segment.IOError{Path: opts.graphDB, Op: "stat", Err: err}
	}
	return nil
}

func runMerge(ctx context.Context, opts options) error {
	if err := checkOutputs(opts); err != nil {
		return err
	}

	var onProgress func(merge.ProgressEvent)
	if opts.verbose {
		var mu sync.Mutex
		onProgress = func(ev merge.ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintln(os.Stderr, merge.FormatProgress(ev))
		}
	}

	res, err := merge.NewPipeline(opts.merge, onProgress).Run(ctx)
	if err != nil {
		return err
	}
	return writeOutputs(ctx, res, opts)
}
