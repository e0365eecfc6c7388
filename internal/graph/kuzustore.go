//go:build cgo

package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	kuzu "github.com/kuzudb/go-kuzu"
)

// Supported reports whether this build can open a graph database.
const Supported = true

// KuzuStore implements the Store interface using KuzuDB as the graph backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given path, so the overlap graph can be inspected after the run.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	// Ensure parent directory exists (KuzuDB creates the leaf itself).
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

// Open returns a file-backed Store.
func Open(dbPath string) (Store, error) {
	s, err := NewKuzuFileStore(dbPath)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Order matters: node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Cell(
		id STRING,
		source STRING,
		label STRING,
		size INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS MergeGroup(
		id STRING,
		canonical STRING,
		members INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS OVERLAPS(
		FROM Cell TO Cell,
		iou DOUBLE,
		intersection INT64,
		union_size INT64,
		merged BOOLEAN
	)`,
	`CREATE REL TABLE IF NOT EXISTS MEMBER_OF(FROM Cell TO MergeGroup)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// AddCell inserts a Cell node.
func (s *KuzuStore) AddCell(_ context.Context, node CellNode) error {
	return s.exec(
		"CREATE (c:Cell {id: $id, source: $source, label: $label, size: $size})",
		map[string]any{
			"id":     node.ID,
			"source": node.Source,
			"label":  node.Label,
			"size":   int64(node.Size),
		},
	)
}

// AddGroup inserts a MergeGroup node.
func (s *KuzuStore) AddGroup(_ context.Context, node GroupNode) error {
	return s.exec(
		"CREATE (g:MergeGroup {id: $id, canonical: $canonical, members: $members})",
		map[string]any{
			"id":        node.ID,
			"canonical": node.Canonical,
			"members":   int64(node.Members),
		},
	)
}

// AddEdge inserts a relationship edge between two nodes.
// The Cypher statement is chosen based on the EdgeKind.
func (s *KuzuStore) AddEdge(_ context.Context, edge Edge) error {
	switch edge.Kind {
	case EdgeKindOverlaps:
		return s.exec(
			`MATCH (a:Cell {id: $src}), (b:Cell {id: $dst})
			 CREATE (a)-[:OVERLAPS {iou: $iou, intersection: $inter, union_size: $unionSize, merged: $merged}]->(b)`,
			map[string]any{
				"src":       edge.SourceID,
				"dst":       edge.TargetID,
				"iou":       edge.IOU,
				"inter":     int64(edge.Intersection),
				"unionSize": int64(edge.Union),
				"merged":    edge.Merged,
			},
		)
	case EdgeKindMemberOf:
		return s.exec(
			`MATCH (a:Cell {id: $src}), (b:MergeGroup {id: $dst})
			 CREATE (a)-[:MEMBER_OF]->(b)`,
			map[string]any{"src": edge.SourceID, "dst": edge.TargetID},
		)
	default:
		return fmt.Errorf("kuzu: unsupported edge kind: %s", edge.Kind)
	}
}

// ---------- Read operations ----------

// GetCell retrieves a single Cell node by id, or returns nil if not found.
func (s *KuzuStore) GetCell(_ context.Context, id string) (*CellNode, error) {
	rows, err := s.query(
		"MATCH (c:Cell {id: $id}) RETURN c.id, c.source, c.label, c.size",
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	c := rowToCell(rows[0])
	return &c, nil
}

// GetGroupMembers returns the cells of a group sorted by id.
func (s *KuzuStore) GetGroupMembers(_ context.Context, groupID string) ([]CellNode, error) {
	rows, err := s.query(
		`MATCH (c:Cell)-[:MEMBER_OF]->(g:MergeGroup {id: $id})
		 RETURN c.id, c.source, c.label, c.size
		 ORDER BY c.id`,
		map[string]any{"id": groupID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]CellNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToCell(r))
	}
	return out, nil
}

// GetOverlaps returns the overlap edges touching cellID in either direction.
func (s *KuzuStore) GetOverlaps(_ context.Context, cellID string) ([]Edge, error) {
	rows, err := s.query(
		`MATCH (a:Cell {id: $id})-[r:OVERLAPS]-(b:Cell)
		 RETURN a.id, b.id, r.iou, r.intersection, r.union_size, r.merged
		 ORDER BY b.id`,
		map[string]any{"id": cellID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]Edge, 0, len(rows))
	for _, r := range rows {
		out = append(out, Edge{
			SourceID:     toString(r[0]),
			TargetID:     toString(r[1]),
			Kind:         EdgeKindOverlaps,
			IOU:          toFloat64(r[2]),
			Intersection: toInt(r[3]),
			Union:        toInt(r[4]),
			Merged:       toBool(r[5]),
		})
	}
	return out, nil
}

// Stats returns node and edge counts.
func (s *KuzuStore) Stats(_ context.Context) (*GraphStats, error) {
	cells, err := s.count("MATCH (n:Cell) RETURN count(n)")
	if err != nil {
		return nil, err
	}
	groups, err := s.count("MATCH (n:MergeGroup) RETURN count(n)")
	if err != nil {
		return nil, err
	}
	overlaps, err := s.count("MATCH ()-[r:OVERLAPS]->() RETURN count(r)")
	if err != nil {
		return nil, err
	}
	merged, err := s.count("MATCH ()-[r:OVERLAPS]->() WHERE r.merged = true RETURN count(r)")
	if err != nil {
		return nil, err
	}
	return &GraphStats{
		CellCount:    cells,
		GroupCount:   groups,
		OverlapCount: overlaps,
		MergedCount:  merged,
	}, nil
}

// ---------- Helpers ----------

// exec runs a parameterized Cypher statement that returns no rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// count runs a single-value count query.
func (s *KuzuStore) count(cypher string) (int, error) {
	rows, err := s.query(cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// rowToCell converts a 4-column result row into a CellNode.
// Column order: id, source, label, size.
func rowToCell(r []any) CellNode {
	return CellNode{
		ID:     toString(r[0]),
		Source: toString(r[1]),
		Label:  toString(r[2]),
		Size:   toInt(r[3]),
	}
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).
// These helpers safely coerce any -> concrete type.

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
