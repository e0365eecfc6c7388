package graph

import (
	"context"
	"sort"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu     sync.RWMutex
	cells  map[string]CellNode
	groups map[string]GroupNode
	edges  []Edge
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		cells:  make(map[string]CellNode),
		groups: make(map[string]GroupNode),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// AddCell stores a cell keyed by its id.
func (m *MemStore) AddCell(_ context.Context, node CellNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cells[node.ID] = node
	return nil
}

// AddGroup stores a group keyed by its id.
func (m *MemStore) AddGroup(_ context.Context, node GroupNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[node.ID] = node
	return nil
}

// AddEdge appends an edge to the internal slice.
func (m *MemStore) AddEdge(_ context.Context, edge Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, edge)
	return nil
}

// GetCell returns the cell with the given id, or nil if not found.
func (m *MemStore) GetCell(_ context.Context, id string) (*CellNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cells[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// GetGroupMembers returns the cells of a group sorted by id.
func (m *MemStore) GetGroupMembers(_ context.Context, groupID string) ([]CellNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []CellNode
	for _, e := range m.edges {
		if e.Kind == EdgeKindMemberOf && e.TargetID == groupID {
			if c, ok := m.cells[e.SourceID]; ok {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetOverlaps returns the overlap edges touching cellID.
func (m *MemStore) GetOverlaps(_ context.Context, cellID string) ([]Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Edge
	for _, e := range m.edges {
		if e.Kind != EdgeKindOverlaps {
			continue
		}
		switch cellID {
		case e.SourceID:
			out = append(out, e)
		case e.TargetID:
			e.SourceID, e.TargetID = e.TargetID, e.SourceID
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out, nil
}

// Stats returns node and edge counts.
func (m *MemStore) Stats(_ context.Context) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &GraphStats{
		CellCount:  len(m.cells),
		GroupCount: len(m.groups),
	}
	for _, e := range m.edges {
		if e.Kind != EdgeKindOverlaps {
			continue
		}
		stats.OverlapCount++
		if e.Merged {
			stats.MergedCount++
		}
	}
	return stats, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}
