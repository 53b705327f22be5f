// Package dirty tracks which nodes, edges, and serialization partitions
// have changed since the last clean point, so the engine can skip
// unnecessary re-sorting or serialization work when nothing changed.
package dirty

import (
	"sort"

	"github.com/joeycumines/factorial/ids"
)

// Partition identifies one of the five independently tracked serialization
// partitions.
type Partition int

const (
	PartitionGraph Partition = iota
	PartitionProcessors
	PartitionInventories
	PartitionTransports
	PartitionJunctions

	partitionCount
)

// Tracker holds two independent tiers of dirty state: per-tick node/edge/
// graph flags (cleared by MarkClean, typically once per tick) and
// per-partition flags (cleared only by ClearPartitions, typically once per
// snapshot), so a caller can track "what changed this tick" and "what
// needs re-serializing" on separate schedules.
type Tracker struct {
	dirtyNodes      map[ids.NodeId]struct{}
	dirtyEdges      map[ids.EdgeId]struct{}
	graphDirty      bool
	anyDirty        bool
	dirtyPartitions [partitionCount]bool
}

// New returns a Tracker with nothing dirty.
func New() *Tracker {
	return &Tracker{
		dirtyNodes: make(map[ids.NodeId]struct{}),
		dirtyEdges: make(map[ids.EdgeId]struct{}),
	}
}

// MarkPartition marks a single serialization partition dirty.
func (t *Tracker) MarkPartition(p Partition) {
	t.dirtyPartitions[p] = true
}

// DirtyPartitions returns the current per-partition dirty flags.
func (t *Tracker) DirtyPartitions() [5]bool {
	return t.dirtyPartitions
}

// AnyPartitionDirty reports whether any partition is dirty.
func (t *Tracker) AnyPartitionDirty() bool {
	for _, d := range t.dirtyPartitions {
		if d {
			return true
		}
	}
	return false
}

// ClearPartitions resets all partition flags.
func (t *Tracker) ClearPartitions() {
	t.dirtyPartitions = [partitionCount]bool{}
}

// MarkAllPartitions marks every partition dirty.
func (t *Tracker) MarkAllPartitions() {
	for i := range t.dirtyPartitions {
		t.dirtyPartitions[i] = true
	}
}

// MarkNode marks a node dirty (its processor or inventory changed).
func (t *Tracker) MarkNode(node ids.NodeId) {
	t.dirtyNodes[node] = struct{}{}
	t.anyDirty = true
}

// MarkEdge marks an edge dirty (its transport state changed).
func (t *Tracker) MarkEdge(edge ids.EdgeId) {
	t.dirtyEdges[edge] = struct{}{}
	t.anyDirty = true
}

// MarkGraph marks the graph topology dirty (a node or edge was added or removed).
func (t *Tracker) MarkGraph() {
	t.graphDirty = true
	t.anyDirty = true
}

// IsDirty reports whether anything has been marked dirty since the last
// MarkClean.
func (t *Tracker) IsDirty() bool {
	return t.anyDirty
}

// IsNodeDirty reports whether node has been marked dirty.
func (t *Tracker) IsNodeDirty(node ids.NodeId) bool {
	_, ok := t.dirtyNodes[node]
	return ok
}

// IsEdgeDirty reports whether edge has been marked dirty.
func (t *Tracker) IsEdgeDirty(edge ids.EdgeId) bool {
	_, ok := t.dirtyEdges[edge]
	return ok
}

// IsGraphDirty reports whether the graph topology has been marked dirty.
func (t *Tracker) IsGraphDirty() bool {
	return t.graphDirty
}

// DirtyNodes returns the set of dirty node ids, in ascending order.
func (t *Tracker) DirtyNodes() []ids.NodeId {
	out := make([]ids.NodeId, 0, len(t.dirtyNodes))
	for n := range t.dirtyNodes {
		out = append(out, n)
	}
	sortNodeIDs(out)
	return out
}

// DirtyEdges returns the set of dirty edge ids, in ascending order.
func (t *Tracker) DirtyEdges() []ids.EdgeId {
	out := make([]ids.EdgeId, 0, len(t.dirtyEdges))
	for e := range t.dirtyEdges {
		out = append(out, e)
	}
	sortEdgeIDs(out)
	return out
}

// MarkClean resets per-tick dirty state: dirty nodes, dirty edges, and the
// graph-dirty flag. Partition flags are untouched; they survive until
// ClearPartitions.
func (t *Tracker) MarkClean() {
	clear(t.dirtyNodes)
	clear(t.dirtyEdges)
	t.graphDirty = false
	t.anyDirty = false
}

func sortNodeIDs(s []ids.NodeId) {
	sort.Slice(s, func(i, j int) bool { return s[i].Less(s[j]) })
}

func sortEdgeIDs(s []ids.EdgeId) {
	sort.Slice(s, func(i, j int) bool { return s[i].Less(s[j]) })
}
