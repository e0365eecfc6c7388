package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is reported to MCP clients. The CLI overrides it with its own.
var version = "dev"

// SetVersion sets the version reported by servers created afterwards.
func SetVersion(v string) {
	version = v
}

// NewMergeMCPServer creates an MCP server with the merge tools registered:
// merge_segmentations, compute_overlaps and describe_cell.
func NewMergeMCPServer(svc *MergeService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "segmerge",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merge_segmentations",
		Description: "Merge cell segmentations of overlapping fields of view. Cells of different files whose point sets overlap with an IOU above the threshold are unified; the relabelled point table is written to outfile.",
	}, svc.MergeSegmentations)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compute_overlaps",
		Description: "Dry run of merge_segmentations. Returns the merge groups and every overlap edge with its IOU without writing any file.",
	}, svc.ComputeOverlaps)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "describe_cell",
		Description: "Look up one cell (source:label) of the most recent run: its merge group, the other members and its overlaps.",
	}, svc.DescribeCell)

	return server
}

// RunMergeMCPServerStdio runs the MCP server on stdio transport, blocking
// until stdin is closed or the context is cancelled.
func RunMergeMCPServerStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunMergeMCPServerHTTP serves the MCP server over streamable HTTP on addr.
func RunMergeMCPServerHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
