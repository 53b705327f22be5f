package dirty

import (
	"testing"

	"github.com/joeycumines/factorial/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerInitiallyClean(t *testing.T) {
	tr := New()
	assert.False(t, tr.IsDirty())
	assert.False(t, tr.IsGraphDirty())
	assert.Empty(t, tr.DirtyNodes())
	assert.Empty(t, tr.DirtyEdges())
}

func TestMarkNodeMakesDirty(t *testing.T) {
	tr := New()
	n := ids.NewNodeId(1, 0)
	tr.MarkNode(n)
	assert.True(t, tr.IsDirty())
	assert.True(t, tr.IsNodeDirty(n))
}

func TestMarkEdgeMakesDirty(t *testing.T) {
	tr := New()
	e := ids.NewEdgeId(1, 0)
	tr.MarkEdge(e)
	assert.True(t, tr.IsDirty())
	assert.True(t, tr.IsEdgeDirty(e))
}

func TestMarkGraphMakesDirty(t *testing.T) {
	tr := New()
	tr.MarkGraph()
	assert.True(t, tr.IsDirty())
	assert.True(t, tr.IsGraphDirty())
}

func TestMarkCleanResetsAll(t *testing.T) {
	tr := New()
	n0, n1 := ids.NewNodeId(0, 0), ids.NewNodeId(1, 0)
	e0 := ids.NewEdgeId(0, 0)

	tr.MarkNode(n0)
	tr.MarkNode(n1)
	tr.MarkEdge(e0)
	tr.MarkGraph()
	require.True(t, tr.IsDirty())

	tr.MarkClean()

	assert.False(t, tr.IsDirty())
	assert.False(t, tr.IsNodeDirty(n0))
	assert.False(t, tr.IsNodeDirty(n1))
	assert.False(t, tr.IsEdgeDirty(e0))
	assert.False(t, tr.IsGraphDirty())
	assert.Empty(t, tr.DirtyNodes())
	assert.Empty(t, tr.DirtyEdges())
}

func TestDirtyNodesSetIsSortedAndDeduplicated(t *testing.T) {
	tr := New()
	n0, n1, n2 := ids.NewNodeId(0, 0), ids.NewNodeId(1, 0), ids.NewNodeId(2, 0)
	tr.MarkNode(n2)
	tr.MarkNode(n0)
	tr.MarkNode(n0) // duplicate mark is idempotent

	dirty := tr.DirtyNodes()
	assert.Equal(t, []ids.NodeId{n0, n2}, dirty)
	assert.False(t, tr.IsNodeDirty(n1))
}

func TestPartitionInitiallyClean(t *testing.T) {
	tr := New()
	assert.False(t, tr.AnyPartitionDirty())
	for _, p := range tr.DirtyPartitions() {
		assert.False(t, p)
	}
}

func TestMarkPartitionMakesDirty(t *testing.T) {
	tr := New()
	tr.MarkPartition(PartitionProcessors)
	assert.True(t, tr.AnyPartitionDirty())
	assert.True(t, tr.DirtyPartitions()[PartitionProcessors])
	assert.False(t, tr.DirtyPartitions()[PartitionGraph])
}

func TestMarkCleanDoesNotClearPartitions(t *testing.T) {
	tr := New()
	tr.MarkPartition(PartitionInventories)
	tr.MarkNode(ids.NewNodeId(0, 0))
	tr.MarkClean()

	assert.False(t, tr.IsDirty())
	assert.True(t, tr.DirtyPartitions()[PartitionInventories])
}

func TestClearPartitionsResetsAll(t *testing.T) {
	tr := New()
	tr.MarkAllPartitions()
	require.True(t, tr.AnyPartitionDirty())
	tr.ClearPartitions()
	assert.False(t, tr.AnyPartitionDirty())
}

func TestPartitionAccumulatesAcrossMarkCleanCycles(t *testing.T) {
	tr := New()
	tr.MarkPartition(PartitionGraph)
	tr.MarkClean()
	tr.MarkPartition(PartitionTransports)
	tr.MarkClean()

	assert.True(t, tr.DirtyPartitions()[PartitionGraph])
	assert.True(t, tr.DirtyPartitions()[PartitionTransports])
}
