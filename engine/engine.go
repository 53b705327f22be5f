// Package engine implements the simulation engine: it owns the production
// graph, per-node/per-edge simulation state, the event bus, the dirty
// tracker, and the deterministic PRNG, and runs the six-phase tick pipeline
// described by the design document (pre-tick mutations, transport, process,
// component, post-tick event delivery, bookkeeping).
package engine

import (
	"sort"

	"github.com/joeycumines/factorial/dirty"
	"github.com/joeycumines/factorial/event"
	"github.com/joeycumines/factorial/fixedpoint"
	"github.com/joeycumines/factorial/graph"
	"github.com/joeycumines/factorial/ids"
	"github.com/joeycumines/factorial/internal/enginelog"
	"github.com/joeycumines/factorial/inventory"
	"github.com/joeycumines/factorial/prng"
	"github.com/joeycumines/factorial/processor"
	"github.com/joeycumines/factorial/sim"
	"github.com/joeycumines/factorial/transport"
)

// DefaultEventBufferCapacity is the per-kind ring buffer size used when a
// Config does not specify one.
const DefaultEventBufferCapacity = 64

// Config configures a new Engine. The zero value is valid: it produces a
// Tick-strategy engine seeded at 0 with the default event buffer capacity,
// matching microbatch.BatcherConfig's "documented zero-value defaults"
// convention.
type Config struct {
	Strategy            sim.Strategy
	Seed                uint64
	EventBufferCapacity int

	// Log receives tick/mutation diagnostics. A nil Log is valid and
	// discards everything (enginelog.Context methods are nil-safe).
	Log *enginelog.Logger
}

// Component is an optional engine module (power networks, fluid networks,
// tech tree, etc.) invoked once per tick during phase 4, in registration
// order. It may read and emit events and mutate its own state, but may not
// restructure the production graph directly during this phase — any
// structural change must go through the event bus's reactive-mutation path
// so it takes effect at the next tick's phase 1.
type Component interface {
	Tick(e *Engine)
}

// AdvanceResult reports what happened during one Advance call.
type AdvanceResult struct {
	StepsRun        int
	MutationResults []graph.MutationResult
}

// Engine owns every entity in the simulation. External modules receive it by
// reference for ticking; they may not retain raw node/edge state between
// ticks.
type Engine struct {
	graph    *graph.ProductionGraph
	strategy sim.Strategy
	simState sim.State
	paused   bool

	processors      map[ids.NodeId]processor.Processor
	processorStates map[ids.NodeId]processor.State
	modifiers       map[ids.NodeId][]processor.Modifier
	inventories     map[ids.NodeId]*inventory.Inventory

	transports      map[ids.EdgeId]transport.Transport
	transportStates map[ids.EdgeId]transport.State

	bus           *event.Bus
	eventCapacity int
	dirty         *dirty.Tracker
	rng           *prng.Stream
	streams       map[ids.NodeId]*prng.Stream

	components []Component

	log *enginelog.Logger

	lastStateHash uint64
	lastSubHashes sim.SubsystemHashes
}

// New constructs an Engine using strategy with the default seed and event
// buffer capacity.
func New(strategy sim.Strategy) *Engine {
	return NewWithConfig(Config{Strategy: strategy})
}

// NewWithConfig constructs an Engine from a fully specified Config.
func NewWithConfig(cfg Config) *Engine {
	capacity := cfg.EventBufferCapacity
	if capacity <= 0 {
		capacity = DefaultEventBufferCapacity
	}
	return &Engine{
		graph:           graph.New(),
		strategy:        cfg.Strategy,
		processors:      make(map[ids.NodeId]processor.Processor),
		processorStates: make(map[ids.NodeId]processor.State),
		modifiers:       make(map[ids.NodeId][]processor.Modifier),
		inventories:     make(map[ids.NodeId]*inventory.Inventory),
		transports:      make(map[ids.EdgeId]transport.Transport),
		transportStates: make(map[ids.EdgeId]transport.State),
		bus:             event.New(capacity),
		eventCapacity:   capacity,
		dirty:           dirty.New(),
		rng:             prng.New(cfg.Seed),
		streams:         make(map[ids.NodeId]*prng.Stream),
		log:             cfg.Log,
	}
}

// Graph returns the engine's production graph, for queueing mutations.
func (e *Engine) Graph() *graph.ProductionGraph { return e.graph }

// Events returns the engine's event bus, for registering subscribers and
// adjusting suppression.
func (e *Engine) Events() *event.Bus { return e.bus }

// Dirty returns the engine's dirty tracker.
func (e *Engine) Dirty() *dirty.Tracker { return e.dirty }

// Tick returns the current tick counter.
func (e *Engine) Tick() uint64 { return e.simState.Tick }

// Paused reports whether the engine is paused. A paused engine still
// accepts mutations and queries but Advance/Step are no-ops.
func (e *Engine) Paused() bool { return e.paused }

// SetPaused sets the paused flag.
func (e *Engine) SetPaused(p bool) {
	e.paused = p
	e.log.Info().Bool("paused", p).Uint64("tick", e.simState.Tick).Msg("pause state changed")
}

// RegisterComponent appends a tickable engine module, invoked in
// registration order during phase 4 of every future tick.
func (e *Engine) RegisterComponent(c Component) { e.components = append(e.components, c) }

// ---------------------------------------------------------------------------
// Per-node / per-edge setters
// ---------------------------------------------------------------------------

// SetProcessor assigns node's processor configuration, initializing its
// runtime state to Idle if none exists yet.
func (e *Engine) SetProcessor(node ids.NodeId, p processor.Processor) {
	e.processors[node] = p
	if _, ok := e.processorStates[node]; !ok {
		e.processorStates[node] = processor.NewState()
	}
}

// ProcessorState returns node's current runtime state.
func (e *Engine) ProcessorState(node ids.NodeId) (processor.State, bool) {
	s, ok := e.processorStates[node]
	return s, ok
}

// nodeInventory returns node's inventory, allocating an empty one on first
// use so SetInputInventory/SetOutputInventory can be called independently
// and in either order.
func (e *Engine) nodeInventory(node ids.NodeId) *inventory.Inventory {
	inv, ok := e.inventories[node]
	if !ok {
		inv = &inventory.Inventory{}
		e.inventories[node] = inv
	}
	return inv
}

// SetInputInventory replaces node's input slot list, leaving output slots
// untouched.
func (e *Engine) SetInputInventory(node ids.NodeId, slots []*inventory.Slot) {
	e.nodeInventory(node).Input = slots
}

// SetOutputInventory replaces node's output slot list, leaving input slots
// untouched.
func (e *Engine) SetOutputInventory(node ids.NodeId, slots []*inventory.Slot) {
	e.nodeInventory(node).Output = slots
}

// Inventory returns node's inventory (nil if never set).
func (e *Engine) Inventory(node ids.NodeId) *inventory.Inventory { return e.inventories[node] }

// SetModifiers replaces node's modifier list.
func (e *Engine) SetModifiers(node ids.NodeId, mods []processor.Modifier) {
	e.modifiers[node] = mods
}

// RemoveNodeState clears all per-node simulation state (processor,
// processor state, modifiers, inventory, RNG sub-stream). Called by the
// engine itself when a node is removed via ApplyMutations, and exposed for
// hosts that manage node state outside the mutation queue.
func (e *Engine) RemoveNodeState(node ids.NodeId) {
	delete(e.processors, node)
	delete(e.processorStates, node)
	delete(e.modifiers, node)
	delete(e.inventories, node)
	delete(e.streams, node)
}

// SetTransport assigns edge's transport configuration and (re)initializes
// its runtime state to match.
func (e *Engine) SetTransport(edge ids.EdgeId, t transport.Transport) {
	e.transports[edge] = t
	e.transportStates[edge] = transport.NewState(&t)
}

// TransportState returns edge's current runtime state.
func (e *Engine) TransportState(edge ids.EdgeId) (transport.State, bool) {
	s, ok := e.transportStates[edge]
	return s, ok
}

// RemoveEdgeState clears all per-edge simulation state.
func (e *Engine) RemoveEdgeState(edge ids.EdgeId) {
	delete(e.transports, edge)
	delete(e.transportStates, edge)
}

// nodeStream returns a per-node deterministic PRNG sub-stream, splitting one
// from the engine's root stream on first use so bonus-output rolls for
// different nodes never interfere with each other's sequence regardless of
// tick-to-tick iteration changes elsewhere.
func (e *Engine) nodeStream(node ids.NodeId) *prng.Stream {
	s, ok := e.streams[node]
	if !ok {
		s = e.rng.Split(node.Bits())
		e.streams[node] = s
	}
	return s
}

// ---------------------------------------------------------------------------
// Advance
// ---------------------------------------------------------------------------

// Step is shorthand for Advance(0) under StrategyTick; it runs exactly one
// tick regardless of strategy, and none while the engine is paused.
func (e *Engine) Step() AdvanceResult {
	var result AdvanceResult
	if e.paused {
		return result
	}
	e.runOneTick(&result)
	return result
}

// Advance runs the engine forward by dt, interpreted according to the
// configured Strategy: StrategyTick ignores dt and runs exactly one step;
// StrategyDelta accumulates dt and runs as many whole FixedTimestep steps as
// fit.
func (e *Engine) Advance(dt fixedpoint.Ticks) AdvanceResult {
	var result AdvanceResult
	if e.paused {
		return result
	}

	switch e.strategy.Kind {
	case sim.StrategyTick:
		e.runOneTick(&result)
	case sim.StrategyDelta:
		e.simState.Accumulator += dt
		step := e.strategy.FixedTimestep
		if step == 0 {
			return result
		}
		for e.simState.Accumulator >= step {
			e.simState.Accumulator -= step
			e.runOneTick(&result)
		}
	}
	return result
}

func (e *Engine) runOneTick(result *AdvanceResult) {
	mutResult := e.phasePreTick()
	e.phaseTransport()
	e.phaseProcess()
	e.phaseComponent()
	e.phasePostTick()
	e.phaseBookkeeping()

	result.StepsRun++
	result.MutationResults = append(result.MutationResults, mutResult)

	e.log.Trace().
		Uint64("tick", e.simState.Tick).
		Int("added_nodes", len(mutResult.AddedNodes)).
		Int("added_edges", len(mutResult.AddedEdges)).
		Uint64("state_hash", e.lastStateHash).
		Msg("tick complete")
}

// ---------------------------------------------------------------------------
// Phase 1: pre-tick
// ---------------------------------------------------------------------------

func (e *Engine) phasePreTick() graph.MutationResult {
	for _, m := range e.bus.DrainMutations() {
		switch m.Kind {
		case event.MutationAddNode:
			e.graph.QueueAddNode(m.Building)
		case event.MutationRemoveNode:
			e.graph.QueueRemoveNode(m.Node)
		case event.MutationConnect:
			e.graph.QueueConnect(m.From, m.To)
		case event.MutationDisconnect:
			e.graph.QueueDisconnect(m.Edge)
		}
	}

	result := e.graph.ApplyMutations()

	for _, added := range result.AddedNodes {
		e.bus.Emit(event.Event{Kind: event.KindNodeAdded, Tick: fixedpoint.Ticks(e.simState.Tick), Node: added.Node})
	}
	for _, added := range result.AddedEdges {
		data, err := e.graph.Edge(added.Edge)
		if err == nil {
			e.bus.Emit(event.Event{Kind: event.KindEdgeAdded, Tick: fixedpoint.Ticks(e.simState.Tick), Edge: added.Edge, From: data.From, To: data.To})
		}
		e.dirty.MarkGraph()
	}
	for _, node := range result.RemovedNodes {
		e.RemoveNodeState(node)
		e.bus.Emit(event.Event{Kind: event.KindNodeRemoved, Tick: fixedpoint.Ticks(e.simState.Tick), Node: node})
	}
	for _, edge := range result.RemovedEdges {
		e.RemoveEdgeState(edge)
		e.bus.Emit(event.Event{Kind: event.KindEdgeRemoved, Tick: fixedpoint.Ticks(e.simState.Tick), Edge: edge})
	}
	if len(result.AddedNodes) > 0 || len(result.RemovedNodes) > 0 || len(result.AddedEdges) > 0 || len(result.RemovedEdges) > 0 {
		e.dirty.MarkGraph()
		e.dirty.MarkPartition(dirty.PartitionGraph)
	}

	return result
}

// ---------------------------------------------------------------------------
// Phase 2: transport
// ---------------------------------------------------------------------------

func (e *Engine) phaseTransport() {
	for _, edgeID := range e.graph.AllEdgeIDs() {
		e.advanceEdge(edgeID)
	}
}

func (e *Engine) advanceEdge(edgeID ids.EdgeId) {
	data, err := e.graph.Edge(edgeID)
	if err != nil {
		return
	}
	tr, ok := e.transports[edgeID]
	if !ok {
		return
	}
	state, ok := e.transportStates[edgeID]
	if !ok {
		return
	}

	srcInv := e.inventories[data.From]
	dstInv := e.inventories[data.To]
	if srcInv == nil || dstInv == nil {
		return
	}

	var available uint32
	if data.ItemFilter != nil {
		available = srcInv.OutputQuantityOf(*data.ItemFilter)
	} else {
		available = srcInv.OutputTotal()
	}

	res := tr.Advance(&state, available)
	e.transportStates[edgeID] = state

	if res.ItemsMoved > 0 || res.ItemsDelivered > 0 {
		e.dirty.MarkEdge(edgeID)
		e.dirty.MarkPartition(dirty.PartitionTransports)
	}

	if available > 0 && res.ItemsMoved == 0 {
		e.bus.Emit(event.Event{Kind: event.KindTransportFull, Tick: fixedpoint.Ticks(e.simState.Tick), Edge: edgeID, From: data.From, To: data.To})
	}

	itemType := e.chooseTransportItemType(data, srcInv)

	if res.ItemsMoved > 0 {
		if data.ItemFilter != nil {
			srcInv.RemoveOutput(*data.ItemFilter, res.ItemsMoved)
		} else {
			srcInv.RemoveOutput(itemType, res.ItemsMoved)
		}
		e.dirty.MarkNode(data.From)
		e.dirty.MarkPartition(dirty.PartitionInventories)
	}
	if res.ItemsDelivered > 0 {
		dstInv.AddInput(itemType, res.ItemsDelivered, nil)
		e.bus.Emit(event.Event{Kind: event.KindItemDelivered, Tick: fixedpoint.Ticks(e.simState.Tick), Edge: edgeID, From: data.From, To: data.To, ItemType: itemType, Quantity: res.ItemsDelivered})
		e.dirty.MarkNode(data.To)
		e.dirty.MarkPartition(dirty.PartitionInventories)
	}
}

// chooseTransportItemType implements the item-identity-at-receiver
// heuristic for fungible, untyped transports: the source processor's
// declared output type (Source/Property's OutputType, or a FixedRecipe's
// first declared output), else the first non-empty output stack, else
// ItemTypeId(0).
func (e *Engine) chooseTransportItemType(data graph.EdgeData, srcInv *inventory.Inventory) ids.ItemTypeId {
	if data.ItemFilter != nil {
		return *data.ItemFilter
	}
	if p, ok := e.processors[data.From]; ok {
		switch p.Kind {
		case processor.KindSource:
			if p.Source != nil {
				return p.Source.OutputType
			}
		case processor.KindProperty:
			if p.Property != nil {
				return p.Property.OutputType
			}
		case processor.KindFixedRecipe:
			if p.Fixed != nil && len(p.Fixed.Outputs) > 0 {
				return p.Fixed.Outputs[0].ItemType
			}
		}
	}
	if t, ok := srcInv.FirstNonEmptyOutputType(); ok {
		return t
	}
	return ids.ItemTypeId(0)
}

// ---------------------------------------------------------------------------
// Phase 3: process
// ---------------------------------------------------------------------------

func (e *Engine) phaseProcess() {
	order, err := e.graph.TopologicalOrder()
	if err != nil {
		return // cycle present: skip the phase entirely
	}

	for _, node := range order {
		e.advanceNode(node)
	}
}

func (e *Engine) advanceNode(node ids.NodeId) {
	p, ok := e.processors[node]
	if !ok {
		return
	}
	state, ok := e.processorStates[node]
	if !ok {
		return
	}
	inv := e.inventories[node]
	if inv == nil {
		return
	}

	available := aggregateAvailable(inv)
	outputSpace := inv.OutputFreeSpace()
	mods := e.modifiers[node]

	prevKind := state.Kind
	prevStall := state.StallReason
	prevActive := state.ActiveRecipe

	var rng *prng.Stream
	if needsRNG(&p) {
		rng = e.nodeStream(node)
	}

	result := p.Tick(&state, mods, available, outputSpace, rng)

	for _, c := range result.Consumed {
		inv.RemoveInput(c.ItemType, c.Quantity)
		e.bus.Emit(event.Event{Kind: event.KindItemConsumed, Tick: fixedpoint.Ticks(e.simState.Tick), Node: node, ItemType: c.ItemType, Quantity: c.Quantity})
	}
	for _, r := range result.Refunded {
		inv.AddInput(r.ItemType, r.Quantity, nil)
	}

	for _, prod := range result.Produced {
		props := produceProperties(&p, inv, prod.ItemType, result)
		inv.AddOutput(prod.ItemType, prod.Quantity, props)
		e.bus.Emit(event.Event{Kind: event.KindItemProduced, Tick: fixedpoint.Ticks(e.simState.Tick), Node: node, ItemType: prod.ItemType, Quantity: prod.Quantity})
	}

	if result.StateChanged || len(result.Consumed) > 0 || len(result.Produced) > 0 {
		e.dirty.MarkNode(node)
		e.dirty.MarkPartition(dirty.PartitionProcessors)
		e.dirty.MarkPartition(dirty.PartitionInventories)
	}

	e.emitStateTransitionEvents(node, &p, prevKind, prevStall, state)

	if p.Kind == processor.KindMultiRecipe && state.ActiveRecipe != prevActive {
		e.bus.Emit(event.Event{Kind: event.KindRecipeSwitched, Tick: fixedpoint.Ticks(e.simState.Tick), Node: node, FromRecipe: prevActive, ToRecipe: state.ActiveRecipe})
	}

	e.processorStates[node] = state
}

// needsRNG reports whether p's configuration can ever roll a bonus output,
// so Tick is never handed a live RNG stream when none of its recipes could
// possibly consult it (keeping replay determinism easy to reason about).
func needsRNG(p *processor.Processor) bool {
	switch p.Kind {
	case processor.KindFixedRecipe:
		return recipeHasBonus(p.Fixed)
	case processor.KindMultiRecipe:
		if p.MultiRecipe == nil {
			return false
		}
		for i := range p.MultiRecipe.Recipes {
			if recipeHasBonus(&p.MultiRecipe.Recipes[i]) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func recipeHasBonus(cfg *processor.FixedRecipeConfig) bool {
	if cfg == nil {
		return false
	}
	for _, o := range cfg.Outputs {
		if o.Bonus != nil {
			return true
		}
	}
	return false
}

// produceProperties computes the property set attached to a newly produced
// stack: a Property processor's configured transform applied to the input
// stack's properties, a Source's configured initial properties, or nil.
func produceProperties(p *processor.Processor, inv *inventory.Inventory, outputType ids.ItemTypeId, result processor.Result) inventory.Properties {
	if p.Kind == processor.KindProperty && result.PropertyTransform != nil {
		base, _ := inv.InputPropertiesOf(p.Property.InputType)
		return applyTransform(base.Clone(), result.PropertyTransform)
	}
	if p.Kind == processor.KindSource && result.InitialProperties != nil {
		var props inventory.Properties
		for k, v := range result.InitialProperties {
			props = props.SetFixed(k, v)
		}
		return props
	}
	return nil
}

func applyTransform(props inventory.Properties, t *processor.PropertyTransform) inventory.Properties {
	current, _ := props.GetFixed(t.Property)
	var next fixedpoint.Fixed64
	switch t.Kind {
	case processor.TransformSet:
		next = t.Value
	case processor.TransformAdd:
		next = current.Add(t.Value)
	case processor.TransformMultiply:
		next = current.Mul(t.Value)
	default:
		next = current
	}
	return props.SetFixed(t.Property, next)
}

// emitStateTransitionEvents compares the processor's state before and after
// Tick and emits the lifecycle events: RecipeStarted/RecipeCompleted fire
// only for FixedRecipe and MultiRecipe (which wraps FixedRecipe cycles);
// BuildingStalled/BuildingResumed fire for every processor kind.
func (e *Engine) emitStateTransitionEvents(node ids.NodeId, p *processor.Processor, prevKind processor.StateKind, prevStall processor.StallReason, state processor.State) {
	isRecipeKind := p.Kind == processor.KindFixedRecipe || p.Kind == processor.KindMultiRecipe

	switch {
	case prevKind != processor.StateWorking && state.Kind == processor.StateWorking:
		if isRecipeKind {
			e.bus.Emit(event.Event{Kind: event.KindRecipeStarted, Tick: fixedpoint.Ticks(e.simState.Tick), Node: node})
		}
	case prevKind == processor.StateWorking && state.Kind == processor.StateIdle:
		if isRecipeKind {
			e.bus.Emit(event.Event{Kind: event.KindRecipeCompleted, Tick: fixedpoint.Ticks(e.simState.Tick), Node: node})
		}
	}

	switch {
	case state.Kind == processor.StateStalled && (prevKind != processor.StateStalled || prevStall != state.StallReason):
		e.bus.Emit(event.Event{Kind: event.KindBuildingStalled, Tick: fixedpoint.Ticks(e.simState.Tick), Node: node, Reason: state.StallReason})
	case prevKind == processor.StateStalled && state.Kind != processor.StateStalled:
		e.bus.Emit(event.Event{Kind: event.KindBuildingResumed, Tick: fixedpoint.Ticks(e.simState.Tick), Node: node})
	}
}

func aggregateAvailable(inv *inventory.Inventory) []processor.AvailableInput {
	totals := make(map[ids.ItemTypeId]uint32)
	for _, s := range inv.Input {
		for _, st := range s.Stacks() {
			totals[st.ItemType] += st.Quantity
		}
	}
	types := make([]ids.ItemTypeId, 0, len(totals))
	for t := range totals {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	out := make([]processor.AvailableInput, len(types))
	for i, t := range types {
		out[i] = processor.AvailableInput{ItemType: t, Quantity: totals[t]}
	}
	return out
}

// ---------------------------------------------------------------------------
// Phase 4: component
// ---------------------------------------------------------------------------

func (e *Engine) phaseComponent() {
	for _, c := range e.components {
		c.Tick(e)
	}
}

// ---------------------------------------------------------------------------
// Phase 5: post-tick
// ---------------------------------------------------------------------------

func (e *Engine) phasePostTick() {
	e.bus.Deliver()
}

// ---------------------------------------------------------------------------
// Phase 6: bookkeeping
// ---------------------------------------------------------------------------

func (e *Engine) phaseBookkeeping() {
	e.simState.Tick++
	e.lastStateHash, e.lastSubHashes = e.computeHashes()
	e.dirty.MarkClean()
}

// ---------------------------------------------------------------------------
// Hashing
// ---------------------------------------------------------------------------

// StateHash returns the 64-bit digest computed at the end of the most recent
// tick. It is a pure function of committed simulation state: two engines
// constructed identically and advanced identically produce equal hashes at
// every tick.
func (e *Engine) StateHash() uint64 { return e.lastStateHash }

// SubsystemHashes returns the six independent digests computed alongside
// StateHash, so divergence between two replicas can be localized.
func (e *Engine) SubsystemHashes() sim.SubsystemHashes { return e.lastSubHashes }

func (e *Engine) computeHashes() (uint64, sim.SubsystemHashes) {
	nodes := e.graph.AllNodeIDs()

	overall := sim.NewStateHash()
	overall.WriteUint64(e.simState.Tick)

	graphHash := sim.NewStateHash()
	procHash := sim.NewStateHash()
	stateHash := sim.NewStateHash()
	invHash := sim.NewStateHash()

	for _, n := range nodes {
		data, _ := e.graph.Node(n)
		graphHash.WriteUint64(n.Bits())
		graphHash.WriteUint32(uint32(data.BuildingType))

		hashProcessor(procHash, e.processors[n])
		hashProcessorState(stateHash, e.processorStates[n])

		inv := e.inventories[n]
		hashInventory(invHash, inv)

		overall.WriteUint64(n.Bits())
		hashInventory(overall, inv)
		hashProcessorState(overall, e.processorStates[n])
	}

	transHash := sim.NewStateHash()
	for _, edgeID := range e.graph.AllEdgeIDs() {
		data, _ := e.graph.Edge(edgeID)
		transHash.WriteUint64(edgeID.Bits())
		transHash.WriteUint64(data.From.Bits())
		transHash.WriteUint64(data.To.Bits())
		if st, ok := e.transportStates[edgeID]; ok {
			hashTransportState(transHash, st)
		}
	}

	simHash := sim.NewStateHash()
	simHash.WriteUint64(e.simState.Tick)
	simHash.WriteUint64(uint64(e.simState.Accumulator))

	return overall.Finish(), sim.SubsystemHashes{
		Graph:           graphHash.Finish(),
		Processors:      procHash.Finish(),
		ProcessorStates: stateHash.Finish(),
		Inventories:     invHash.Finish(),
		Transports:      transHash.Finish(),
		SimState:        simHash.Finish(),
	}
}

func hashInventory(h *sim.StateHash, inv *inventory.Inventory) {
	if inv == nil {
		return
	}
	for _, s := range inv.Input {
		for _, st := range s.Stacks() {
			h.WriteUint32(uint32(st.ItemType))
			h.WriteUint32(st.Quantity)
		}
	}
	for _, s := range inv.Output {
		for _, st := range s.Stacks() {
			h.WriteUint32(uint32(st.ItemType))
			h.WriteUint32(st.Quantity)
		}
	}
}

func hashProcessor(h *sim.StateHash, p processor.Processor) {
	h.WriteUint32(uint32(p.Kind))
}

func hashProcessorState(h *sim.StateHash, s processor.State) {
	h.WriteUint32(uint32(s.Kind))
	h.WriteUint32(s.Progress)
	h.WriteUint32(uint32(s.StallReason))
	h.WriteFixed64(s.Accumulator)
	h.WriteInt64(s.Remaining)
	h.WriteUint64(s.ConsumedTotal)
	h.WriteUint32(uint32(s.ActiveRecipe))
}

func hashTransportState(h *sim.StateHash, s transport.State) {
	h.WriteUint32(uint32(s.Kind))
	switch s.Kind {
	case transport.KindFlow:
		if s.Flow != nil {
			h.WriteFixed64(s.Flow.Buffered)
			h.WriteUint32(s.Flow.LatencyRemaining)
		}
	case transport.KindItem:
		if s.Item != nil {
			for _, occ := range s.Item.Occupied {
				h.WriteBool(occ)
			}
		}
	case transport.KindBatch:
		if s.Batch != nil {
			h.WriteUint32(s.Batch.Progress)
			h.WriteUint32(s.Batch.Pending)
		}
	case transport.KindVehicle:
		if s.Vehicle != nil {
			h.WriteUint32(s.Vehicle.Position)
			h.WriteUint32(s.Vehicle.CargoQuantity)
			h.WriteBool(s.Vehicle.Returning)
		}
	}
}
