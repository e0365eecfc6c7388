package graph

import (
	"context"
	"io"
)

// Store persists the overlap graph of a merge run.
// Implementations: KuzuStore (on disk, cgo), MemStore (testing).
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations. Groups and cells must exist before edges that
	// reference them.
	AddCell(ctx context.Context, node CellNode) error
	AddGroup(ctx context.Context, node GroupNode) error
	AddEdge(ctx context.Context, edge Edge) error

	// Read operations.
	GetCell(ctx context.Context, id string) (*CellNode, error)
	GetGroupMembers(ctx context.Context, groupID string) ([]CellNode, error)

	// GetOverlaps returns the overlap edges touching a cell, oriented so
	// that SourceID is the requested cell.
	GetOverlaps(ctx context.Context, cellID string) ([]Edge, error)

	// Stats.
	Stats(ctx context.Context) (*GraphStats, error)
}
