// Package graph implements the production graph: a directed graph of
// building nodes and transport-link edges, stored in generational arenas,
// with queued atomic mutations and cached topological orderings.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/joeycumines/factorial/ids"
	"github.com/joeycumines/factorial/internal/ringbuf"
)

// Errors returned by graph operations.
var (
	// ErrCycleDetected is returned by TopologicalOrder when the graph
	// contains a cycle.
	ErrCycleDetected = errors.New("graph: cycle detected in production graph")
)

// NodeNotFoundError is returned when an operation references a node id that
// does not exist (or has been removed).
type NodeNotFoundError struct{ Node ids.NodeId }

func (e *NodeNotFoundError) Error() string { return fmt.Sprintf("graph: node not found: %s", e.Node) }

// EdgeNotFoundError is returned when an operation references an edge id
// that does not exist (or has been removed).
type EdgeNotFoundError struct{ Edge ids.EdgeId }

func (e *EdgeNotFoundError) Error() string { return fmt.Sprintf("graph: edge not found: %s", e.Edge) }

// NodeData is the minimal per-node data owned by the graph itself; richer
// per-node simulation state lives in parallel mappings owned by the engine.
type NodeData struct {
	BuildingType ids.BuildingTypeId
}

// EdgeData is the minimal per-edge data owned by the graph itself.
type EdgeData struct {
	From       ids.NodeId
	To         ids.NodeId
	ItemFilter *ids.ItemTypeId // nil means "no filter"
}

type nodeSlot struct {
	alive bool
	gen   uint32
	data  NodeData
	in    []ids.EdgeId
	out   []ids.EdgeId
}

type edgeSlot struct {
	alive bool
	gen   uint32
	data  EdgeData
}

// mutationKind tags a queued mutation.
type mutationKind int

const (
	mutAddNode mutationKind = iota
	mutRemoveNode
	mutConnect
	mutConnectFiltered
	mutDisconnect
)

type mutation struct {
	kind         mutationKind
	buildingType ids.BuildingTypeId
	pendingNode  ids.PendingNodeId
	from, to     ids.NodeId
	pendingEdge  ids.PendingEdgeId
	itemFilter   *ids.ItemTypeId
	node         ids.NodeId
	edge         ids.EdgeId
}

// MutationResult maps each pending id allocated during a mutation batch to
// the real id materialized for it by ApplyMutations.
type MutationResult struct {
	AddedNodes []struct {
		Pending ids.PendingNodeId
		Node    ids.NodeId
	}
	AddedEdges []struct {
		Pending ids.PendingEdgeId
		Edge    ids.EdgeId
	}
	// RemovedNodes/RemovedEdges list every node/edge actually removed by this
	// batch, including edges cascade-removed by a node removal, so callers
	// owning parallel per-node/per-edge state (the engine's processor/
	// inventory/transport mappings) know what to clear.
	RemovedNodes []ids.NodeId
	RemovedEdges []ids.EdgeId
}

// ResolveNode looks up the real NodeId assigned to a pending node id.
func (r *MutationResult) ResolveNode(pending ids.PendingNodeId) (ids.NodeId, bool) {
	for _, e := range r.AddedNodes {
		if e.Pending == pending {
			return e.Node, true
		}
	}
	return ids.NodeId{}, false
}

// ResolveEdge looks up the real EdgeId assigned to a pending edge id.
func (r *MutationResult) ResolveEdge(pending ids.PendingEdgeId) (ids.EdgeId, bool) {
	for _, e := range r.AddedEdges {
		if e.Pending == pending {
			return e.Edge, true
		}
	}
	return ids.EdgeId{}, false
}

// ProductionGraph owns the node/edge arenas, adjacency lists, the queued
// mutation list, and cached topological orderings.
type ProductionGraph struct {
	nodes []nodeSlot
	edges []edgeSlot

	nodeFree []uint32
	edgeFree []uint32

	queue          []mutation
	nextPendingN   ids.PendingNodeId
	nextPendingE   ids.PendingEdgeId

	topoDirty         bool
	topoCache         []ids.NodeId
	feedbackDirty     bool
	feedbackCache     []ids.NodeId
	feedbackBackEdges []ids.EdgeId
	levelDirty        bool
	levelCache        [][]ids.NodeId
}

// New constructs an empty ProductionGraph.
func New() *ProductionGraph {
	return &ProductionGraph{
		topoDirty:     true,
		feedbackDirty: true,
		levelDirty:    true,
	}
}

// RestoredNode pairs a node id with its data for RestoreGraph.
type RestoredNode struct {
	Id   ids.NodeId
	Data NodeData
}

// RestoredEdge pairs an edge id with its data for RestoreGraph.
type RestoredEdge struct {
	Id   ids.EdgeId
	Data EdgeData
}

// RestoreGraph rebuilds a ProductionGraph directly from recorded nodes and
// edges, preserving each id's exact index and generation rather than
// reallocating through QueueAddNode/QueueConnect. Used only by the snapshot
// codec when loading a captured engine state. Arena slots not covered by a
// record (gaps left by nodes/edges removed before capture) are left dead and
// placed on the free list; their original generation is not recoverable from
// a snapshot, so future allocations at that index start from generation 0
// rather than the generation the original graph would have reached.
func RestoreGraph(nodes []RestoredNode, edges []RestoredEdge) *ProductionGraph {
	g := New()

	maxNodeIdx := -1
	for _, n := range nodes {
		if idx := int(n.Id.Index()); idx > maxNodeIdx {
			maxNodeIdx = idx
		}
	}
	if maxNodeIdx >= 0 {
		g.nodes = make([]nodeSlot, maxNodeIdx+1)
	}
	for _, n := range nodes {
		g.nodes[n.Id.Index()] = nodeSlot{alive: true, gen: n.Id.Generation(), data: n.Data}
	}

	maxEdgeIdx := -1
	for _, e := range edges {
		if idx := int(e.Id.Index()); idx > maxEdgeIdx {
			maxEdgeIdx = idx
		}
	}
	if maxEdgeIdx >= 0 {
		g.edges = make([]edgeSlot, maxEdgeIdx+1)
	}
	for _, e := range edges {
		g.edges[e.Id.Index()] = edgeSlot{alive: true, gen: e.Id.Generation(), data: e.Data}
		if fs := g.nodeSlot(e.Data.From); fs != nil {
			fs.out = append(fs.out, e.Id)
		}
		if ts := g.nodeSlot(e.Data.To); ts != nil {
			ts.in = append(ts.in, e.Id)
		}
	}

	for idx := range g.nodes {
		if !g.nodes[idx].alive {
			g.nodeFree = append(g.nodeFree, uint32(idx))
		}
	}
	for idx := range g.edges {
		if !g.edges[idx].alive {
			g.edgeFree = append(g.edgeFree, uint32(idx))
		}
	}

	g.invalidateCaches()
	return g
}

// QueueAddNode queues a node-creation mutation, returning a dense pending id
// that apply_mutations will later resolve to a real NodeId.
func (g *ProductionGraph) QueueAddNode(buildingType ids.BuildingTypeId) ids.PendingNodeId {
	p := g.nextPendingN
	g.nextPendingN++
	g.queue = append(g.queue, mutation{kind: mutAddNode, buildingType: buildingType, pendingNode: p})
	return p
}

// QueueRemoveNode queues a node-removal mutation. Removing a non-existent
// node is a no-op when applied.
func (g *ProductionGraph) QueueRemoveNode(node ids.NodeId) {
	g.queue = append(g.queue, mutation{kind: mutRemoveNode, node: node})
}

// QueueConnect queues an unfiltered edge-creation mutation.
func (g *ProductionGraph) QueueConnect(from, to ids.NodeId) ids.PendingEdgeId {
	return g.QueueConnectFiltered(from, to, nil)
}

// QueueConnectFiltered queues an edge-creation mutation with an optional
// item-type filter.
func (g *ProductionGraph) QueueConnectFiltered(from, to ids.NodeId, itemFilter *ids.ItemTypeId) ids.PendingEdgeId {
	p := g.nextPendingE
	g.nextPendingE++
	g.queue = append(g.queue, mutation{kind: mutConnectFiltered, from: from, to: to, pendingEdge: p, itemFilter: itemFilter})
	return p
}

// QueueDisconnect queues an edge-removal mutation. Removing a non-existent
// edge is a no-op when applied.
func (g *ProductionGraph) QueueDisconnect(edge ids.EdgeId) {
	g.queue = append(g.queue, mutation{kind: mutDisconnect, edge: edge})
}

// ApplyMutations applies all queued mutations in insertion order, returning
// the pending-to-real id maps. Queued mutations do not affect visible state
// until this is called.
func (g *ProductionGraph) ApplyMutations() MutationResult {
	var result MutationResult
	queue := g.queue
	g.queue = nil

	structural := false

	for _, m := range queue {
		switch m.kind {
		case mutAddNode:
			id := g.allocNode(m.buildingType)
			result.AddedNodes = append(result.AddedNodes, struct {
				Pending ids.PendingNodeId
				Node    ids.NodeId
			}{m.pendingNode, id})
			structural = true

		case mutRemoveNode:
			if cascaded, ok := g.removeNode(m.node); ok {
				result.RemovedNodes = append(result.RemovedNodes, m.node)
				result.RemovedEdges = append(result.RemovedEdges, cascaded...)
				structural = true
			}

		case mutConnectFiltered:
			id, ok := g.addEdge(m.from, m.to, m.itemFilter)
			if ok {
				result.AddedEdges = append(result.AddedEdges, struct {
					Pending ids.PendingEdgeId
					Edge    ids.EdgeId
				}{m.pendingEdge, id})
				structural = true
			}

		case mutDisconnect:
			if g.removeEdge(m.edge) {
				result.RemovedEdges = append(result.RemovedEdges, m.edge)
				structural = true
			}
		}
	}

	if structural {
		g.invalidateCaches()
	}

	return result
}

func (g *ProductionGraph) allocNode(buildingType ids.BuildingTypeId) ids.NodeId {
	if n := len(g.nodeFree); n > 0 {
		idx := g.nodeFree[n-1]
		g.nodeFree = g.nodeFree[:n-1]
		slot := &g.nodes[idx]
		slot.alive = true
		slot.data = NodeData{BuildingType: buildingType}
		slot.in = nil
		slot.out = nil
		return ids.NewNodeId(idx, slot.gen)
	}
	idx := uint32(len(g.nodes))
	g.nodes = append(g.nodes, nodeSlot{alive: true, data: NodeData{BuildingType: buildingType}})
	return ids.NewNodeId(idx, 0)
}

func (g *ProductionGraph) nodeSlot(id ids.NodeId) *nodeSlot {
	idx := id.Index()
	if int(idx) >= len(g.nodes) {
		return nil
	}
	slot := &g.nodes[idx]
	if !slot.alive || slot.gen != id.Generation() {
		return nil
	}
	return slot
}

func (g *ProductionGraph) edgeSlot(id ids.EdgeId) *edgeSlot {
	idx := id.Index()
	if int(idx) >= len(g.edges) {
		return nil
	}
	slot := &g.edges[idx]
	if !slot.alive || slot.gen != id.Generation() {
		return nil
	}
	return slot
}

// removeNode removes a node and cascades removal to all incident edges,
// returning the cascaded edge ids. ok is false (no-op) if the node does not
// exist.
func (g *ProductionGraph) removeNode(id ids.NodeId) (cascaded []ids.EdgeId, ok bool) {
	slot := g.nodeSlot(id)
	if slot == nil {
		return nil, false
	}
	// cascade: remove all incident edges (copy first, removeEdge mutates slot.in/out)
	incident := make([]ids.EdgeId, 0, len(slot.in)+len(slot.out))
	incident = append(incident, slot.in...)
	incident = append(incident, slot.out...)
	for _, e := range incident {
		if g.removeEdge(e) {
			cascaded = append(cascaded, e)
		}
	}

	slot.alive = false
	slot.gen++
	slot.in = nil
	slot.out = nil
	g.nodeFree = append(g.nodeFree, id.Index())
	return cascaded, true
}

func (g *ProductionGraph) addEdge(from, to ids.NodeId, itemFilter *ids.ItemTypeId) (ids.EdgeId, bool) {
	fromSlot := g.nodeSlot(from)
	toSlot := g.nodeSlot(to)
	if fromSlot == nil || toSlot == nil {
		return ids.EdgeId{}, false
	}

	var id ids.EdgeId
	if n := len(g.edgeFree); n > 0 {
		idx := g.edgeFree[n-1]
		g.edgeFree = g.edgeFree[:n-1]
		slot := &g.edges[idx]
		slot.alive = true
		slot.data = EdgeData{From: from, To: to, ItemFilter: itemFilter}
		id = ids.NewEdgeId(idx, slot.gen)
	} else {
		idx := uint32(len(g.edges))
		g.edges = append(g.edges, edgeSlot{alive: true, data: EdgeData{From: from, To: to, ItemFilter: itemFilter}})
		id = ids.NewEdgeId(idx, 0)
	}

	fromSlot.out = append(fromSlot.out, id)
	toSlot.in = append(toSlot.in, id)
	return id, true
}

// removeEdge removes an edge, returning false (no-op) if it does not exist.
func (g *ProductionGraph) removeEdge(id ids.EdgeId) bool {
	slot := g.edgeSlot(id)
	if slot == nil {
		return false
	}
	from, to := slot.data.From, slot.data.To
	if fs := g.nodeSlot(from); fs != nil {
		fs.out = removeEdgeFromSlice(fs.out, id)
	}
	if ts := g.nodeSlot(to); ts != nil {
		ts.in = removeEdgeFromSlice(ts.in, id)
	}
	slot.alive = false
	slot.gen++
	g.edgeFree = append(g.edgeFree, id.Index())
	return true
}

func removeEdgeFromSlice(s []ids.EdgeId, target ids.EdgeId) []ids.EdgeId {
	for i, e := range s {
		if e == target {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func (g *ProductionGraph) invalidateCaches() {
	g.topoDirty = true
	g.feedbackDirty = true
	g.levelDirty = true
}

// NodeExists reports whether id refers to a live node.
func (g *ProductionGraph) NodeExists(id ids.NodeId) bool { return g.nodeSlot(id) != nil }

// EdgeExists reports whether id refers to a live edge.
func (g *ProductionGraph) EdgeExists(id ids.EdgeId) bool { return g.edgeSlot(id) != nil }

// Node returns the NodeData for id.
func (g *ProductionGraph) Node(id ids.NodeId) (NodeData, error) {
	slot := g.nodeSlot(id)
	if slot == nil {
		return NodeData{}, &NodeNotFoundError{Node: id}
	}
	return slot.data, nil
}

// Edge returns the EdgeData for id.
func (g *ProductionGraph) Edge(id ids.EdgeId) (EdgeData, error) {
	slot := g.edgeSlot(id)
	if slot == nil {
		return EdgeData{}, &EdgeNotFoundError{Edge: id}
	}
	return slot.data, nil
}

// InEdges returns the edges whose destination is id, in insertion order.
func (g *ProductionGraph) InEdges(id ids.NodeId) []ids.EdgeId {
	slot := g.nodeSlot(id)
	if slot == nil {
		return nil
	}
	return append([]ids.EdgeId(nil), slot.in...)
}

// OutEdges returns the edges whose source is id, in insertion order.
func (g *ProductionGraph) OutEdges(id ids.NodeId) []ids.EdgeId {
	slot := g.nodeSlot(id)
	if slot == nil {
		return nil
	}
	return append([]ids.EdgeId(nil), slot.out...)
}

// NodeCount returns the number of live nodes.
func (g *ProductionGraph) NodeCount() int {
	n := 0
	for _, s := range g.nodes {
		if s.alive {
			n++
		}
	}
	return n
}

// EdgeCount returns the number of live edges.
func (g *ProductionGraph) EdgeCount() int {
	n := 0
	for _, s := range g.edges {
		if s.alive {
			n++
		}
	}
	return n
}

// AllNodeIDs returns every live node id, in arena iteration order (stable,
// increasing slot index).
func (g *ProductionGraph) AllNodeIDs() []ids.NodeId {
	out := make([]ids.NodeId, 0, len(g.nodes))
	for i, s := range g.nodes {
		if s.alive {
			out = append(out, ids.NewNodeId(uint32(i), s.gen))
		}
	}
	return out
}

// AllEdgeIDs returns every live edge id, in arena iteration order.
func (g *ProductionGraph) AllEdgeIDs() []ids.EdgeId {
	out := make([]ids.EdgeId, 0, len(g.edges))
	for i, s := range g.edges {
		if s.alive {
			out = append(out, ids.NewEdgeId(uint32(i), s.gen))
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Topological orderings
// ---------------------------------------------------------------------------

// TopologicalOrder returns the strict topological order of live nodes,
// failing with ErrCycleDetected if the graph contains any cycle (including
// self-loops).
func (g *ProductionGraph) TopologicalOrder() ([]ids.NodeId, error) {
	if !g.topoDirty {
		out := make([]ids.NodeId, len(g.topoCache))
		copy(out, g.topoCache)
		return out, nil
	}

	order, complete := g.kahn()
	if !complete {
		return nil, ErrCycleDetected
	}

	g.topoCache = order
	g.topoDirty = false
	out := make([]ids.NodeId, len(order))
	copy(out, order)
	return out, nil
}

// TopologicalOrderWithFeedback always succeeds: it returns a topological
// order of the acyclic portion of the graph followed by any nodes involved
// in cycles (appended in deterministic node-id order), plus the list of
// back-edges (edges whose destination is at or before its source's final
// position).
func (g *ProductionGraph) TopologicalOrderWithFeedback() ([]ids.NodeId, []ids.EdgeId) {
	if !g.feedbackDirty {
		order := make([]ids.NodeId, len(g.feedbackCache))
		copy(order, g.feedbackCache)
		back := make([]ids.EdgeId, len(g.feedbackBackEdges))
		copy(back, g.feedbackBackEdges)
		return order, back
	}

	order, visited := g.kahnPartial()

	all := g.AllNodeIDs()
	remaining := make([]ids.NodeId, 0, len(all)-len(order))
	for _, n := range all {
		if !visited[n] {
			remaining = append(remaining, n)
		}
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].Less(remaining[j]) })
	order = append(order, remaining...)

	position := make(map[ids.NodeId]int, len(order))
	for i, n := range order {
		position[n] = i
	}

	var backEdges []ids.EdgeId
	for _, e := range g.AllEdgeIDs() {
		data, _ := g.Edge(e)
		if position[data.To] <= position[data.From] {
			backEdges = append(backEdges, e)
		}
	}

	g.feedbackCache = order
	g.feedbackBackEdges = backEdges
	g.feedbackDirty = false

	outOrder := make([]ids.NodeId, len(order))
	copy(outOrder, order)
	outBack := make([]ids.EdgeId, len(backEdges))
	copy(outBack, backEdges)
	return outOrder, outBack
}

// TopologicalOrderByLevel groups live nodes by depth (a root has depth 0;
// otherwise depth is one more than the maximum depth of its predecessors),
// sorting within each level by node id. Any nodes involved in cycles are
// appended as a final catch-all level, sorted by node id.
func (g *ProductionGraph) TopologicalOrderByLevel() [][]ids.NodeId {
	if !g.levelDirty {
		out := make([][]ids.NodeId, len(g.levelCache))
		for i, lvl := range g.levelCache {
			out[i] = append([]ids.NodeId(nil), lvl...)
		}
		return out
	}

	order, visited := g.kahnPartial()

	depth := make(map[ids.NodeId]int, len(order))
	for _, n := range order {
		maxPred := -1
		for _, e := range g.InEdges(n) {
			data, _ := g.Edge(e)
			if d, ok := depth[data.From]; ok && d > maxPred {
				maxPred = d
			}
		}
		depth[n] = maxPred + 1
	}

	var maxDepth int
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}
	levels := make([][]ids.NodeId, maxDepth+1)
	for _, n := range order {
		d := depth[n]
		levels[d] = append(levels[d], n)
	}
	for _, lvl := range levels {
		sort.Slice(lvl, func(i, j int) bool { return lvl[i].Less(lvl[j]) })
	}

	all := g.AllNodeIDs()
	var cyclic []ids.NodeId
	for _, n := range all {
		if !visited[n] {
			cyclic = append(cyclic, n)
		}
	}
	if len(cyclic) > 0 {
		sort.Slice(cyclic, func(i, j int) bool { return cyclic[i].Less(cyclic[j]) })
		levels = append(levels, cyclic)
	}

	g.levelCache = levels
	g.levelDirty = false

	out := make([][]ids.NodeId, len(levels))
	for i, lvl := range levels {
		out[i] = append([]ids.NodeId(nil), lvl...)
	}
	return out
}

// kahn runs Kahn's algorithm to completion, returning (order, true) if every
// live node was emitted, or (partialOrder, false) if a cycle prevented full
// emission.
func (g *ProductionGraph) kahn() ([]ids.NodeId, bool) {
	order, visited := g.kahnPartial()
	return order, len(order) == len(visited) && allTrue(visited)
}

func allTrue(m map[ids.NodeId]bool) bool {
	for _, v := range m {
		if !v {
			return false
		}
	}
	return true
}

// kahnPartial runs Kahn's algorithm once, returning the nodes it was able to
// emit (in deterministic order) and a set recording which live nodes were
// visited. The queue is FIFO: the initial zero-in-degree nodes, and each
// node's newly ready children, are queued in ascending NodeId order.
func (g *ProductionGraph) kahnPartial() ([]ids.NodeId, map[ids.NodeId]bool) {
	all := g.AllNodeIDs()
	inDegree := make(map[ids.NodeId]int, len(all))
	for _, n := range all {
		inDegree[n] = len(g.InEdges(n))
	}

	frontier := make([]ids.NodeId, 0, len(all))
	for _, n := range all {
		if inDegree[n] == 0 {
			frontier = append(frontier, n)
		}
	}
	sort.Slice(frontier, func(i, j int) bool { return frontier[i].Less(frontier[j]) })

	queue := ringbuf.New[ids.NodeId](nextPow2(len(frontier) + 1))
	for _, n := range frontier {
		queue.PushGrow(n)
	}

	visited := make(map[ids.NodeId]bool, len(all))
	for _, n := range all {
		visited[n] = false
	}

	order := make([]ids.NodeId, 0, len(all))
	for queue.Len() > 0 {
		// pop the oldest queued node; to keep output deterministic without
		// re-sorting the whole queue each time, the children this node makes
		// ready are sorted by id before being appended (each newly-zero node
		// is appended once, so duplicates cannot occur).
		n, _ := queue.PopFront()
		if visited[n] {
			continue
		}
		visited[n] = true
		order = append(order, n)

		var ready []ids.NodeId
		for _, e := range g.OutEdges(n) {
			data, _ := g.Edge(e)
			inDegree[data.To]--
			if inDegree[data.To] == 0 {
				ready = append(ready, data.To)
			}
		}
		sort.Slice(ready, func(i, j int) bool { return ready[i].Less(ready[j]) })
		for _, r := range ready {
			queue.PushGrow(r)
		}
	}

	return order, visited
}

func nextPow2(n int) int {
	if n < 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
