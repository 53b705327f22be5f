package engine

import (
	"github.com/joeycumines/factorial/dirty"
	"github.com/joeycumines/factorial/event"
	"github.com/joeycumines/factorial/graph"
	"github.com/joeycumines/factorial/ids"
	"github.com/joeycumines/factorial/inventory"
	"github.com/joeycumines/factorial/processor"
	"github.com/joeycumines/factorial/prng"
	"github.com/joeycumines/factorial/snapshot"
	"github.com/joeycumines/factorial/transport"
)

// ExportState captures the engine's full serializable state into an
// EngineState value, the shape snapshot.Serialize/SerializePartitioned
// encode. The event bus and dirty tracker are excluded by design: a decoded
// engine always starts with a fresh bus and a clean tracker.
func (e *Engine) ExportState() *snapshot.EngineState {
	out := snapshot.NewEngineState()

	nodeIDs := e.graph.AllNodeIDs()
	out.Nodes = make([]snapshot.NodeRecord, 0, len(nodeIDs))
	for _, n := range nodeIDs {
		data, err := e.graph.Node(n)
		if err != nil {
			continue
		}
		out.Nodes = append(out.Nodes, snapshot.NodeRecord{Node: n, BuildingType: data.BuildingType})
	}

	edgeIDs := e.graph.AllEdgeIDs()
	out.Edges = make([]snapshot.EdgeRecord, 0, len(edgeIDs))
	for _, edgeID := range edgeIDs {
		data, err := e.graph.Edge(edgeID)
		if err != nil {
			continue
		}
		out.Edges = append(out.Edges, snapshot.EdgeRecord{
			Edge:       edgeID,
			From:       data.From,
			To:         data.To,
			ItemFilter: data.ItemFilter,
		})
	}

	out.Strategy = e.strategy
	out.SimState = e.simState
	out.Paused = e.paused
	out.RngState = e.rng.State()
	out.LastStateHash = e.lastStateHash

	for n, p := range e.processors {
		out.Processors[n] = p
	}
	for n, s := range e.processorStates {
		out.ProcessorStates[n] = s
	}
	for n, m := range e.modifiers {
		out.Modifiers[n] = m
	}
	for n, inv := range e.inventories {
		out.Inventories[n] = inv
	}
	for edgeID, t := range e.transports {
		out.Transports[edgeID] = t
	}
	for edgeID, s := range e.transportStates {
		out.TransportStates[edgeID] = s
	}

	return out
}

// ImportState replaces the engine's entire state with state's contents,
// rebuilding the production graph from scratch and reinitializing a fresh
// event bus and dirty tracker, per the deserialize contract (no subscribers,
// no stale dirtiness survive a load).
func (e *Engine) ImportState(state *snapshot.EngineState) {
	restoredNodes := make([]graph.RestoredNode, len(state.Nodes))
	for i, n := range state.Nodes {
		restoredNodes[i] = graph.RestoredNode{Id: n.Node, Data: graph.NodeData{BuildingType: n.BuildingType}}
	}
	restoredEdges := make([]graph.RestoredEdge, len(state.Edges))
	for i, ed := range state.Edges {
		restoredEdges[i] = graph.RestoredEdge{
			Id:   ed.Edge,
			Data: graph.EdgeData{From: ed.From, To: ed.To, ItemFilter: ed.ItemFilter},
		}
	}
	e.graph = graph.RestoreGraph(restoredNodes, restoredEdges)

	e.strategy = state.Strategy
	e.simState = state.SimState
	e.paused = state.Paused
	e.rng.SetState(state.RngState)

	e.processors = make(map[ids.NodeId]processor.Processor, len(state.Processors))
	for n, p := range state.Processors {
		e.processors[n] = p
	}
	e.processorStates = make(map[ids.NodeId]processor.State, len(state.ProcessorStates))
	for n, s := range state.ProcessorStates {
		e.processorStates[n] = s
	}
	e.modifiers = make(map[ids.NodeId][]processor.Modifier, len(state.Modifiers))
	for n, m := range state.Modifiers {
		e.modifiers[n] = append([]processor.Modifier(nil), m...)
	}
	e.inventories = make(map[ids.NodeId]*inventory.Inventory, len(state.Inventories))
	for n, inv := range state.Inventories {
		e.inventories[n] = inv
	}
	e.transports = make(map[ids.EdgeId]transport.Transport, len(state.Transports))
	for edgeID, t := range state.Transports {
		e.transports[edgeID] = t
	}
	e.transportStates = make(map[ids.EdgeId]transport.State, len(state.TransportStates))
	for edgeID, s := range state.TransportStates {
		e.transportStates[edgeID] = s
	}

	e.streams = make(map[ids.NodeId]*prng.Stream)
	e.dirty = dirty.New()
	e.bus = event.New(e.eventCapacity)
	e.lastStateHash, e.lastSubHashes = e.computeHashes()

	e.log.Info().
		Uint64("tick", e.simState.Tick).
		Int("nodes", len(state.Nodes)).
		Int("edges", len(state.Edges)).
		Msg("engine state imported")
}

// Serialize encodes the engine's current state as a legacy monolithic
// snapshot.
func (e *Engine) Serialize() []byte {
	return snapshot.Serialize(e.ExportState())
}

// SerializePartitioned encodes the engine's current state as five
// independently addressable partition blobs.
func (e *Engine) SerializePartitioned() []byte {
	return snapshot.SerializePartitioned(e.ExportState())
}

// SerializeIncremental encodes only the partitions the dirty tracker marked
// since the last snapshot, reusing baseline's bytes for the rest. baseline
// must be a partitioned-format blob previously produced by this engine.
// The partition flags are cleared once the encoding succeeds.
func (e *Engine) SerializeIncremental(baseline []byte) ([]byte, error) {
	out, err := snapshot.SerializeIncremental(e.ExportState(), baseline, e.dirty.DirtyPartitions())
	if err != nil {
		return nil, err
	}
	e.dirty.ClearPartitions()
	return out, nil
}

// LoadSnapshot decodes a legacy monolithic snapshot and replaces the
// engine's state with it.
func (e *Engine) LoadSnapshot(data []byte) error {
	state, err := snapshot.Deserialize(data)
	if err != nil {
		return err
	}
	e.ImportState(state)
	return nil
}

// LoadPartitionedSnapshot decodes a partitioned snapshot and replaces the
// engine's state with it.
func (e *Engine) LoadPartitionedSnapshot(data []byte) error {
	state, err := snapshot.DeserializePartitioned(data)
	if err != nil {
		return err
	}
	e.ImportState(state)
	return nil
}

// LoadSnapshotWithMigrations decodes a legacy snapshot, first bringing it
// forward through reg if it predates the current format version, then
// replaces the engine's state with it.
func (e *Engine) LoadSnapshotWithMigrations(data []byte, reg *snapshot.MigrationRegistry) error {
	state, err := snapshot.DeserializeWithMigrations(data, reg)
	if err != nil {
		return err
	}
	e.ImportState(state)
	return nil
}

// DetectSnapshotFormat inspects data's magic number to determine which
// wire format it holds, without decoding the rest of it.
func DetectSnapshotFormat(data []byte) (snapshot.Format, error) {
	return snapshot.DetectFormat(data)
}
