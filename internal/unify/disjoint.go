package unify

// DisjointSet is a union-find forest over the integers [0, n). Parents and
// ranks live in flat slices indexed by element.
type DisjointSet struct {
	parent []int32
	rank   []uint8
	sets   int
}

// NewDisjointSet returns n singleton sets.
func NewDisjointSet(n int) *DisjointSet {
	d := &DisjointSet{
		parent: make([]int32, n),
		rank:   make([]uint8, n),
		sets:   n,
	}
	for i := range d.parent {
		d.parent[i] = int32(i)
	}
	return d
}

// Find returns the representative of x, halving the path on the way.
func (d *DisjointSet) Find(x int) int {
	for int(d.parent[x]) != x {
		d.parent[x] = d.parent[d.parent[x]]
		x = int(d.parent[x])
	}
	return x
}

// Union joins the sets of a and b by rank. It reports whether they were
// separate.
func (d *DisjointSet) Union(a, b int) bool {
	ra, rb := d.Find(a), d.Find(b)
	if ra == rb {
		return false
	}
	switch {
	case d.rank[ra] < d.rank[rb]:
		ra, rb = rb, ra
	case d.rank[ra] == d.rank[rb]:
		d.rank[ra]++
	}
	d.parent[rb] = int32(ra)
	d.sets--
	return true
}

// Sets returns the number of disjoint sets.
func (d *DisjointSet) Sets() int { return d.sets }

// Len returns the number of elements.
func (d *DisjointSet) Len() int { return len(d.parent) }
