package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClustererTransitivity(t *testing.T) {
	c := NewClusterer([]int64{1, 2, 3, 4, 5})
	assert.True(t, c.AddEdge(1, 2, 80))
	assert.True(t, c.AddEdge(2, 3, 75))
	assert.True(t, c.AddEdge(4, 5, 90))

	groups := c.Groups()
	require.Len(t, groups, 2)

	assert.Equal(t, []int64{1, 2, 3}, groups[0].MemberIDs)
	assert.Equal(t, 80.0, groups[0].MaxInternalScore)

	assert.Equal(t, []int64{4, 5}, groups[1].MemberIDs)
	assert.Equal(t, 90.0, groups[1].MaxInternalScore)
}

func TestClustererUnknownIDDropped(t *testing.T) {
	c := NewClusterer([]int64{1, 2})
	assert.False(t, c.AddEdge(1, 99, 80))
	assert.False(t, c.AddEdge(99, 1, 80))
	assert.Equal(t, 2, c.DroppedEdges())

	assert.Empty(t, c.Groups())
}

func TestClustererSingletonsExcluded(t *testing.T) {
	c := NewClusterer([]int64{1, 2, 3})
	c.AddEdge(1, 2, 70)

	groups := c.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, []int64{1, 2}, groups[0].MemberIDs)
}

func TestClustererSymmetricRowsNoOp(t *testing.T) {
	// stored edges carry both directions; the second union is a no-op
	c := NewClusterer([]int64{1, 2})
	c.AddEdge(1, 2, 85)
	c.AddEdge(2, 1, 85)

	groups := c.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, 85.0, groups[0].MaxInternalScore)
}

func TestClustererMaxScoreMerging(t *testing.T) {
	c := NewClusterer([]int64{1, 2, 3, 4})
	c.AddEdge(1, 2, 72)
	c.AddEdge(3, 4, 95)
	c.AddEdge(2, 3, 71)

	groups := c.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, []int64{1, 2, 3, 4}, groups[0].MemberIDs)
	assert.Equal(t, 95.0, groups[0].MaxInternalScore)
}

func TestClustererGroupIDsDense(t *testing.T) {
	c := NewClusterer([]int64{10, 20, 30, 40})
	c.AddEdge(10, 20, 70)
	c.AddEdge(30, 40, 70)

	groups := c.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, 1, groups[0].GroupID)
	assert.Equal(t, 2, groups[1].GroupID)
}

func TestGroupedIDs(t *testing.T) {
	c := NewClusterer([]int64{1, 2, 3})
	c.AddEdge(1, 2, 70)

	grouped := GroupedIDs(c.Groups())
	assert.Contains(t, grouped, int64(1))
	assert.Contains(t, grouped, int64(2))
	assert.NotContains(t, grouped, int64(3))
}
