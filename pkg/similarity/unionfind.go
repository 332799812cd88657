package similarity

import (
	"sort"

	"github.com/CBPFGMS/GOmapping/pkg/models"
)

// Clusterer groups organization ids transitively connected by edges.
// Ids are mapped to dense indices up front so the union-find runs on
// array-backed parent and size slices.
type Clusterer struct {
	index    map[int64]int
	ids      []int64
	parent   []int
	size     []int
	maxScore []float64
	hasEdge  []bool
	dropped  int
}

// NewClusterer builds a clusterer over the full id universe
func NewClusterer(ids []int64) *Clusterer {
	c := &Clusterer{
		index:    make(map[int64]int, len(ids)),
		ids:      make([]int64, len(ids)),
		parent:   make([]int, len(ids)),
		size:     make([]int, len(ids)),
		maxScore: make([]float64, len(ids)),
		hasEdge:  make([]bool, len(ids)),
	}
	copy(c.ids, ids)
	for i, id := range ids {
		c.index[id] = i
		c.parent[i] = i
		c.size[i] = 1
	}
	return c
}

// AddEdge unions the two endpoints. An edge referencing an id outside
// the universe is dropped and reported via the return value; it never
// fails the pass.
func (c *Clusterer) AddEdge(sourceID, targetID int64, score float64) bool {
	a, ok := c.index[sourceID]
	if !ok {
		c.dropped++
		return false
	}
	b, ok := c.index[targetID]
	if !ok {
		c.dropped++
		return false
	}

	c.hasEdge[a] = true
	c.hasEdge[b] = true

	ra, rb := c.find(a), c.find(b)
	if ra == rb {
		if score > c.maxScore[ra] {
			c.maxScore[ra] = score
		}
		return true
	}

	// union by size
	if c.size[ra] < c.size[rb] {
		ra, rb = rb, ra
	}
	c.parent[rb] = ra
	c.size[ra] += c.size[rb]
	if c.maxScore[rb] > c.maxScore[ra] {
		c.maxScore[ra] = c.maxScore[rb]
	}
	if score > c.maxScore[ra] {
		c.maxScore[ra] = score
	}
	return true
}

// find with path halving
func (c *Clusterer) find(i int) int {
	for c.parent[i] != i {
		c.parent[i] = c.parent[c.parent[i]]
		i = c.parent[i]
	}
	return i
}

// DroppedEdges reports how many edges referenced unknown ids
func (c *Clusterer) DroppedEdges() int {
	return c.dropped
}

// Groups returns every cluster of size >= 2, members sorted by id.
// Group ids are dense labels valid only for this pass.
func (c *Clusterer) Groups() []models.DuplicateGroup {
	members := make(map[int][]int64)
	for i, id := range c.ids {
		if !c.hasEdge[i] {
			continue
		}
		root := c.find(i)
		members[root] = append(members[root], id)
	}

	roots := make([]int, 0, len(members))
	for root, ids := range members {
		if len(ids) < 2 {
			continue
		}
		roots = append(roots, root)
	}
	sort.Ints(roots)

	groups := make([]models.DuplicateGroup, 0, len(roots))
	for gid, root := range roots {
		ids := members[root]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		groups = append(groups, models.DuplicateGroup{
			GroupID:          gid + 1,
			MemberIDs:        ids,
			MaxInternalScore: c.maxScore[root],
		})
	}
	return groups
}

// GroupedIDs returns the set of ids that ended up in an emitted group
func GroupedIDs(groups []models.DuplicateGroup) map[int64]struct{} {
	grouped := make(map[int64]struct{})
	for _, g := range groups {
		for _, id := range g.MemberIDs {
			grouped[id] = struct{}{}
		}
	}
	return grouped
}
