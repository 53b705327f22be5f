package engine

import (
	"github.com/joeycumines/factorial/fixedpoint"
	"github.com/joeycumines/factorial/ids"
	"github.com/joeycumines/factorial/inventory"
	"github.com/joeycumines/factorial/processor"
	"github.com/joeycumines/factorial/transport"
)

// NodeCount returns the number of live nodes.
func (e *Engine) NodeCount() int { return e.graph.NodeCount() }

// EdgeCount returns the number of live edges.
func (e *Engine) EdgeCount() int { return e.graph.EdgeCount() }

// TransportUtilization returns edge's current transport fill ratio, clamped
// to [0, 1]: Flow is buffered/capacity, Item belt is occupied/total slots,
// Batch is pending/batch_size, Vehicle is cargo/capacity.
func (e *Engine) TransportUtilization(edge ids.EdgeId) (fixedpoint.Fixed64, bool) {
	tr, ok := e.transports[edge]
	if !ok {
		return fixedpoint.Zero, false
	}
	st, ok := e.transportStates[edge]
	if !ok {
		return fixedpoint.Zero, false
	}

	switch tr.Kind {
	case transport.KindFlow:
		if tr.Flow.BufferCapacity.IsZero() {
			return fixedpoint.Zero, true
		}
		return clampUnit(st.Flow.Buffered.Div(tr.Flow.BufferCapacity)), true
	case transport.KindItem:
		total := len(st.Item.Occupied)
		if total == 0 {
			return fixedpoint.Zero, true
		}
		occupied := 0
		for _, o := range st.Item.Occupied {
			if o {
				occupied++
			}
		}
		return clampUnit(fixedpoint.FromInt(int64(occupied)).Div(fixedpoint.FromInt(int64(total)))), true
	case transport.KindBatch:
		if tr.Batch.BatchSize == 0 {
			return fixedpoint.Zero, true
		}
		return clampUnit(fixedpoint.FromInt(int64(st.Batch.Pending)).Div(fixedpoint.FromInt(int64(tr.Batch.BatchSize)))), true
	case transport.KindVehicle:
		if tr.Vehicle.Capacity == 0 {
			return fixedpoint.Zero, true
		}
		return clampUnit(fixedpoint.FromInt(int64(st.Vehicle.CargoQuantity)).Div(fixedpoint.FromInt(int64(tr.Vehicle.Capacity)))), true
	default:
		return fixedpoint.Zero, true
	}
}

func clampUnit(f fixedpoint.Fixed64) fixedpoint.Fixed64 {
	if f < fixedpoint.Zero {
		return fixedpoint.Zero
	}
	if f > fixedpoint.One {
		return fixedpoint.One
	}
	return f
}

// ProcessorProgress returns progress/duration for a FixedRecipe (or the
// active recipe of a MultiRecipe) node currently Working; 0 for every other
// state or processor kind.
func (e *Engine) ProcessorProgress(node ids.NodeId) fixedpoint.Fixed64 {
	p, ok := e.processors[node]
	if !ok {
		return fixedpoint.Zero
	}
	state, ok := e.processorStates[node]
	if !ok || state.Kind != processor.StateWorking {
		return fixedpoint.Zero
	}

	var cfg *processor.FixedRecipeConfig
	switch p.Kind {
	case processor.KindFixedRecipe:
		cfg = p.Fixed
	case processor.KindMultiRecipe:
		if p.MultiRecipe != nil && state.ActiveRecipe >= 0 && state.ActiveRecipe < len(p.MultiRecipe.Recipes) {
			cfg = &p.MultiRecipe.Recipes[state.ActiveRecipe]
		}
	}
	if cfg == nil || cfg.Duration == 0 {
		return fixedpoint.Zero
	}

	mods := e.modifiers[node]
	duration := effectiveDurationFor(cfg.Duration, mods)
	if duration == 0 {
		return fixedpoint.Zero
	}
	return fixedpoint.FromInt(int64(state.Progress)).Div(fixedpoint.FromInt(int64(duration)))
}

func effectiveDurationFor(base uint32, mods []processor.Modifier) uint32 {
	resolved := processor.ResolveModifiers(mods)
	speed := resolved.Speed
	if speed <= fixedpoint.Zero {
		speed = fixedpoint.One
	}
	d := fixedpoint.FromInt(int64(base)).Div(speed)
	whole := d.Floor()
	if d.Frac() > fixedpoint.Zero {
		whole++
	}
	if whole < 1 {
		whole = 1
	}
	return uint32(whole)
}

// NodeSnapshot is a composite, read-only view of one node's committed state.
type NodeSnapshot struct {
	Node            ids.NodeId
	BuildingType    ids.BuildingTypeId
	ProcessorState  processor.State
	Progress        fixedpoint.Fixed64
	InputContents   []inventory.ItemStack
	OutputContents  []inventory.ItemStack
	InputEdges      []ids.EdgeId
	OutputEdges     []ids.EdgeId
}

// SnapshotNode returns a composite read-only view of node, or ok=false if it
// does not exist.
func (e *Engine) SnapshotNode(node ids.NodeId) (NodeSnapshot, bool) {
	data, err := e.graph.Node(node)
	if err != nil {
		return NodeSnapshot{}, false
	}

	snap := NodeSnapshot{
		Node:         node,
		BuildingType: data.BuildingType,
		InputEdges:   e.graph.InEdges(node),
		OutputEdges:  e.graph.OutEdges(node),
		Progress:     e.ProcessorProgress(node),
	}
	if state, ok := e.processorStates[node]; ok {
		snap.ProcessorState = state
	}
	if inv := e.inventories[node]; inv != nil {
		for _, s := range inv.Input {
			snap.InputContents = append(snap.InputContents, s.Stacks()...)
		}
		for _, s := range inv.Output {
			snap.OutputContents = append(snap.OutputContents, s.Stacks()...)
		}
	}
	return snap, true
}

// SnapshotAllNodes returns a NodeSnapshot for every live node, in arena
// iteration order.
func (e *Engine) SnapshotAllNodes() []NodeSnapshot {
	ids := e.graph.AllNodeIDs()
	out := make([]NodeSnapshot, 0, len(ids))
	for _, n := range ids {
		if snap, ok := e.SnapshotNode(n); ok {
			out = append(out, snap)
		}
	}
	return out
}
