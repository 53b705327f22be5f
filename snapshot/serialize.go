package snapshot

import (
	"golang.org/x/exp/slices"

	"github.com/joeycumines/factorial/fixedpoint"
	"github.com/joeycumines/factorial/ids"
	"github.com/joeycumines/factorial/internal/wire"
	"github.com/joeycumines/factorial/inventory"
	"github.com/joeycumines/factorial/processor"
	"github.com/joeycumines/factorial/sim"
	"github.com/joeycumines/factorial/transport"
)

// --- per-value encoders/decoders, one function per kind, composed upward
// into the partition and whole-snapshot encoders below. ---

func encodeNodeRecord(w *wire.Writer, r NodeRecord) {
	w.WriteUint64(r.Node.Bits())
	w.WriteUint32(uint32(r.BuildingType))
}

func decodeNodeRecord(r *wire.Reader) NodeRecord {
	return NodeRecord{
		Node:         ids.NodeIdFromBits(r.ReadUint64()),
		BuildingType: ids.BuildingTypeId(r.ReadUint32()),
	}
}

func encodeEdgeRecord(w *wire.Writer, r EdgeRecord) {
	w.WriteUint64(r.Edge.Bits())
	w.WriteUint64(r.From.Bits())
	w.WriteUint64(r.To.Bits())
	w.WriteBool(r.ItemFilter != nil)
	if r.ItemFilter != nil {
		w.WriteUint32(uint32(*r.ItemFilter))
	}
}

func decodeEdgeRecord(r *wire.Reader) EdgeRecord {
	rec := EdgeRecord{
		Edge: ids.EdgeIdFromBits(r.ReadUint64()),
		From: ids.NodeIdFromBits(r.ReadUint64()),
		To:   ids.NodeIdFromBits(r.ReadUint64()),
	}
	if r.ReadBool() {
		v := ids.ItemTypeId(r.ReadUint32())
		rec.ItemFilter = &v
	}
	return rec
}

func encodeFixedRecipeConfig(w *wire.Writer, c processor.FixedRecipeConfig) {
	w.WriteUint32(uint32(len(c.Inputs)))
	for _, in := range c.Inputs {
		w.WriteUint32(uint32(in.ItemType))
		w.WriteUint32(in.Quantity)
		w.WriteBool(in.Consumed)
	}
	w.WriteUint32(uint32(len(c.Outputs)))
	for _, out := range c.Outputs {
		w.WriteUint32(uint32(out.ItemType))
		w.WriteUint32(out.Quantity)
		w.WriteBool(out.Bonus != nil)
		if b := out.Bonus; b != nil {
			w.WriteFixed64(b.Chance)
			w.WriteUint32(b.Quantity)
			w.WriteBool(b.HasBonusType)
			w.WriteUint32(uint32(b.BonusItemType))
		}
	}
	w.WriteUint32(c.Duration)
}

func decodeFixedRecipeConfig(r *wire.Reader) processor.FixedRecipeConfig {
	var c processor.FixedRecipeConfig
	n := r.ReadUint32()
	c.Inputs = make([]processor.RecipeInput, n)
	for i := range c.Inputs {
		c.Inputs[i] = processor.RecipeInput{
			ItemType: ids.ItemTypeId(r.ReadUint32()),
			Quantity: r.ReadUint32(),
			Consumed: r.ReadBool(),
		}
	}
	n = r.ReadUint32()
	c.Outputs = make([]processor.RecipeOutput, n)
	for i := range c.Outputs {
		c.Outputs[i].ItemType = ids.ItemTypeId(r.ReadUint32())
		c.Outputs[i].Quantity = r.ReadUint32()
		if r.ReadBool() {
			b := &processor.BonusOutput{
				Chance:   r.ReadFixed64(),
				Quantity: r.ReadUint32(),
			}
			b.HasBonusType = r.ReadBool()
			b.BonusItemType = ids.ItemTypeId(r.ReadUint32())
			c.Outputs[i].Bonus = b
		}
	}
	c.Duration = r.ReadUint32()
	return c
}

func encodeProcessor(w *wire.Writer, p processor.Processor) {
	w.WriteUint8(uint8(p.Kind))
	switch p.Kind {
	case processor.KindSource:
		s := p.Source
		w.WriteUint32(uint32(s.OutputType))
		w.WriteFixed64(s.BaseRate)
		w.WriteUint8(uint8(s.Depletion.Kind))
		w.WriteInt64(s.Depletion.Remaining)
		w.WriteUint64(s.Depletion.HalfLife)
		w.WriteUint32(uint32(len(s.InitialProperties)))
		for k, v := range s.InitialProperties {
			w.WriteUint32(uint32(k))
			w.WriteFixed64(v)
		}
	case processor.KindFixedRecipe:
		encodeFixedRecipeConfig(w, *p.Fixed)
	case processor.KindProperty:
		c := p.Property
		w.WriteUint32(uint32(c.InputType))
		w.WriteUint32(uint32(c.OutputType))
		w.WriteUint8(uint8(c.Transform.Kind))
		w.WriteUint32(uint32(c.Transform.Property))
		w.WriteFixed64(c.Transform.Value)
	case processor.KindDemand:
		c := p.Demand
		w.WriteUint32(uint32(c.InputType))
		w.WriteFixed64(c.BaseRate)
		w.WriteBool(c.AcceptedTypes != nil)
		w.WriteUint32(uint32(len(c.AcceptedTypes)))
		for _, t := range c.AcceptedTypes {
			w.WriteUint32(uint32(t))
		}
	case processor.KindPassthrough:
		// no fields
	case processor.KindMultiRecipe:
		c := p.MultiRecipe
		w.WriteUint32(uint32(len(c.Recipes)))
		for _, rc := range c.Recipes {
			encodeFixedRecipeConfig(w, rc)
		}
		w.WriteUint8(uint8(c.SwitchPolicy))
	}
}

func decodeProcessor(r *wire.Reader) processor.Processor {
	var p processor.Processor
	p.Kind = processor.Kind(r.ReadUint8())
	switch p.Kind {
	case processor.KindSource:
		s := &processor.SourceConfig{}
		s.OutputType = ids.ItemTypeId(r.ReadUint32())
		s.BaseRate = r.ReadFixed64()
		s.Depletion.Kind = processor.DepletionKind(r.ReadUint8())
		s.Depletion.Remaining = r.ReadInt64()
		s.Depletion.HalfLife = r.ReadUint64()
		n := r.ReadUint32()
		if n > 0 {
			s.InitialProperties = make(map[ids.PropertyId]fixedpoint.Fixed64, n)
			for i := uint32(0); i < n; i++ {
				key := ids.PropertyId(r.ReadUint32())
				s.InitialProperties[key] = r.ReadFixed64()
			}
		}
		p.Source = s
	case processor.KindFixedRecipe:
		c := decodeFixedRecipeConfig(r)
		p.Fixed = &c
	case processor.KindProperty:
		c := &processor.PropertyConfig{}
		c.InputType = ids.ItemTypeId(r.ReadUint32())
		c.OutputType = ids.ItemTypeId(r.ReadUint32())
		c.Transform.Kind = processor.TransformKind(r.ReadUint8())
		c.Transform.Property = ids.PropertyId(r.ReadUint32())
		c.Transform.Value = r.ReadFixed64()
		p.Property = c
	case processor.KindDemand:
		c := &processor.DemandConfig{}
		c.InputType = ids.ItemTypeId(r.ReadUint32())
		c.BaseRate = r.ReadFixed64()
		hasAccepted := r.ReadBool()
		n := r.ReadUint32()
		if hasAccepted {
			c.AcceptedTypes = make([]ids.ItemTypeId, n)
			for i := range c.AcceptedTypes {
				c.AcceptedTypes[i] = ids.ItemTypeId(r.ReadUint32())
			}
		}
		p.Demand = c
	case processor.KindPassthrough:
		// no fields
	case processor.KindMultiRecipe:
		c := &processor.MultiRecipeConfig{}
		n := r.ReadUint32()
		c.Recipes = make([]processor.FixedRecipeConfig, n)
		for i := range c.Recipes {
			c.Recipes[i] = decodeFixedRecipeConfig(r)
		}
		c.SwitchPolicy = processor.RecipeSwitchPolicy(r.ReadUint8())
		p.MultiRecipe = c
	}
	return p
}

func encodeProcessorState(w *wire.Writer, s processor.State) {
	w.WriteUint8(uint8(s.Kind))
	w.WriteUint32(s.Progress)
	w.WriteUint8(uint8(s.StallReason))
	w.WriteFixed64(s.Accumulator)
	w.WriteInt64(s.Remaining)
	w.WriteUint64(s.ConsumedTotal)
	w.WriteInt64(int64(s.ActiveRecipe))
	w.WriteInt64(int64(s.PendingSwitch))
	w.WriteUint32(uint32(len(s.InProgressInputs)))
	for _, in := range s.InProgressInputs {
		w.WriteUint32(uint32(in.ItemType))
		w.WriteUint32(in.Quantity)
	}
}

func decodeProcessorState(r *wire.Reader) processor.State {
	var s processor.State
	s.Kind = processor.StateKind(r.ReadUint8())
	s.Progress = r.ReadUint32()
	s.StallReason = processor.StallReason(r.ReadUint8())
	s.Accumulator = r.ReadFixed64()
	s.Remaining = r.ReadInt64()
	s.ConsumedTotal = r.ReadUint64()
	s.ActiveRecipe = int(r.ReadInt64())
	s.PendingSwitch = int(r.ReadInt64())
	n := r.ReadUint32()
	if n > 0 {
		s.InProgressInputs = make([]processor.ConsumedInput, n)
		for i := range s.InProgressInputs {
			s.InProgressInputs[i] = processor.ConsumedInput{
				ItemType: ids.ItemTypeId(r.ReadUint32()),
				Quantity: r.ReadUint32(),
			}
		}
	}
	return s
}

func encodeModifiers(w *wire.Writer, mods []processor.Modifier) {
	w.WriteUint32(uint32(len(mods)))
	for _, m := range mods {
		w.WriteUint64(uint64(m.ID))
		w.WriteUint8(uint8(m.Target))
		w.WriteFixed64(m.Value)
		w.WriteUint8(uint8(m.Stacking))
	}
}

func decodeModifiers(r *wire.Reader) []processor.Modifier {
	n := r.ReadUint32()
	if n == 0 {
		return nil
	}
	out := make([]processor.Modifier, n)
	for i := range out {
		out[i] = processor.Modifier{
			ID:       ids.ModifierId(r.ReadUint64()),
			Target:   processor.ModifierTarget(r.ReadUint8()),
			Value:    r.ReadFixed64(),
			Stacking: processor.StackingRule(r.ReadUint8()),
		}
	}
	return out
}

func encodeProperties(w *wire.Writer, p inventory.Properties) {
	w.WriteUint32(uint32(len(p)))
	for k, v := range p {
		w.WriteUint32(uint32(k))
		w.WriteInt64(v)
	}
}

func decodeProperties(r *wire.Reader) inventory.Properties {
	n := r.ReadUint32()
	if n == 0 {
		return nil
	}
	out := make(inventory.Properties, n)
	for i := uint32(0); i < n; i++ {
		key := ids.PropertyId(r.ReadUint32())
		out[key] = r.ReadInt64()
	}
	return out
}

func encodeSlot(w *wire.Writer, s *inventory.Slot) {
	w.WriteUint32(s.Capacity)
	stacks := s.Stacks()
	w.WriteUint32(uint32(len(stacks)))
	for _, st := range stacks {
		w.WriteUint32(uint32(st.ItemType))
		w.WriteUint32(st.Quantity)
		encodeProperties(w, st.Properties)
	}
}

func decodeSlot(r *wire.Reader) *inventory.Slot {
	capacity := r.ReadUint32()
	s := inventory.NewSlot(capacity)
	n := r.ReadUint32()
	for i := uint32(0); i < n; i++ {
		itemType := ids.ItemTypeId(r.ReadUint32())
		quantity := r.ReadUint32()
		props := decodeProperties(r)
		s.Add(itemType, quantity, props)
	}
	return s
}

func encodeInventory(w *wire.Writer, inv *inventory.Inventory) {
	w.WriteUint32(uint32(len(inv.Input)))
	for _, s := range inv.Input {
		encodeSlot(w, s)
	}
	w.WriteUint32(uint32(len(inv.Output)))
	for _, s := range inv.Output {
		encodeSlot(w, s)
	}
}

func decodeInventory(r *wire.Reader) *inventory.Inventory {
	inv := &inventory.Inventory{}
	if n := r.ReadUint32(); n > 0 {
		inv.Input = make([]*inventory.Slot, n)
		for i := range inv.Input {
			inv.Input[i] = decodeSlot(r)
		}
	}
	if n := r.ReadUint32(); n > 0 {
		inv.Output = make([]*inventory.Slot, n)
		for i := range inv.Output {
			inv.Output[i] = decodeSlot(r)
		}
	}
	return inv
}

func encodeTransport(w *wire.Writer, t transport.Transport) {
	w.WriteUint8(uint8(t.Kind))
	switch t.Kind {
	case transport.KindFlow:
		w.WriteFixed64(t.Flow.Rate)
		w.WriteFixed64(t.Flow.BufferCapacity)
		w.WriteUint32(t.Flow.Latency)
	case transport.KindItem:
		w.WriteFixed64(t.Item.Speed)
		w.WriteUint32(t.Item.SlotCount)
		w.WriteUint8(t.Item.Lanes)
	case transport.KindBatch:
		w.WriteUint32(t.Batch.BatchSize)
		w.WriteUint32(t.Batch.CycleTime)
	case transport.KindVehicle:
		w.WriteUint32(t.Vehicle.Capacity)
		w.WriteUint32(t.Vehicle.TravelTime)
	}
}

func decodeTransport(r *wire.Reader) transport.Transport {
	var t transport.Transport
	t.Kind = transport.Kind(r.ReadUint8())
	switch t.Kind {
	case transport.KindFlow:
		t.Flow = &transport.FlowConfig{
			Rate:           r.ReadFixed64(),
			BufferCapacity: r.ReadFixed64(),
			Latency:        r.ReadUint32(),
		}
	case transport.KindItem:
		t.Item = &transport.ItemConfig{
			Speed:     r.ReadFixed64(),
			SlotCount: r.ReadUint32(),
			Lanes:     r.ReadUint8(),
		}
	case transport.KindBatch:
		t.Batch = &transport.BatchConfig{
			BatchSize: r.ReadUint32(),
			CycleTime: r.ReadUint32(),
		}
	case transport.KindVehicle:
		t.Vehicle = &transport.VehicleConfig{
			Capacity:   r.ReadUint32(),
			TravelTime: r.ReadUint32(),
		}
	}
	return t
}

func encodeTransportState(w *wire.Writer, s transport.State) {
	w.WriteUint8(uint8(s.Kind))
	switch s.Kind {
	case transport.KindFlow:
		w.WriteFixed64(s.Flow.Buffered)
		w.WriteUint32(s.Flow.LatencyRemaining)
	case transport.KindItem:
		w.WriteUint32(uint32(len(s.Item.Occupied)))
		for _, occ := range s.Item.Occupied {
			w.WriteBool(occ)
		}
	case transport.KindBatch:
		w.WriteUint32(s.Batch.Progress)
		w.WriteUint32(s.Batch.Pending)
	case transport.KindVehicle:
		w.WriteUint32(s.Vehicle.Position)
		w.WriteUint32(s.Vehicle.CargoQuantity)
		w.WriteBool(s.Vehicle.Returning)
	}
}

func decodeTransportState(r *wire.Reader) transport.State {
	var s transport.State
	s.Kind = transport.Kind(r.ReadUint8())
	switch s.Kind {
	case transport.KindFlow:
		s.Flow = &transport.FlowState{
			Buffered:         r.ReadFixed64(),
			LatencyRemaining: r.ReadUint32(),
		}
	case transport.KindItem:
		n := r.ReadUint32()
		occupied := make([]bool, n)
		for i := range occupied {
			occupied[i] = r.ReadBool()
		}
		s.Item = &transport.BeltState{Occupied: occupied}
	case transport.KindBatch:
		s.Batch = &transport.BatchState{
			Progress: r.ReadUint32(),
			Pending:  r.ReadUint32(),
		}
	case transport.KindVehicle:
		s.Vehicle = &transport.VehicleState{
			Position:      r.ReadUint32(),
			CargoQuantity: r.ReadUint32(),
			Returning:     r.ReadBool(),
		}
	}
	return s
}

// --- partition encoders: each covers exactly the fields assigned to that
// partition index. ---

func encodeGraphPartition(w *wire.Writer, s *EngineState) {
	w.WriteUint32(uint32(len(s.Nodes)))
	for _, n := range s.Nodes {
		encodeNodeRecord(w, n)
	}
	w.WriteUint32(uint32(len(s.Edges)))
	for _, e := range s.Edges {
		encodeEdgeRecord(w, e)
	}
	w.WriteUint8(uint8(s.Strategy.Kind))
	w.WriteUint64(uint64(s.Strategy.FixedTimestep))
	w.WriteUint64(s.SimState.Tick)
	w.WriteUint64(uint64(s.SimState.Accumulator))
	w.WriteBool(s.Paused)
	w.WriteUint64(s.RngState)
	w.WriteUint64(s.LastStateHash)
}

func decodeGraphPartition(r *wire.Reader, s *EngineState) {
	n := r.ReadUint32()
	s.Nodes = make([]NodeRecord, n)
	for i := range s.Nodes {
		s.Nodes[i] = decodeNodeRecord(r)
	}
	n = r.ReadUint32()
	s.Edges = make([]EdgeRecord, n)
	for i := range s.Edges {
		s.Edges[i] = decodeEdgeRecord(r)
	}
	s.Strategy.Kind = sim.StrategyKind(r.ReadUint8())
	s.Strategy.FixedTimestep = fixedpoint.Ticks(r.ReadUint64())
	s.SimState.Tick = r.ReadUint64()
	s.SimState.Accumulator = fixedpoint.Ticks(r.ReadUint64())
	s.Paused = r.ReadBool()
	s.RngState = r.ReadUint64()
	s.LastStateHash = r.ReadUint64()
}

func encodeProcessorsPartition(w *wire.Writer, s *EngineState) {
	w.WriteUint32(uint32(len(s.Processors)))
	for _, n := range sortedNodeKeys(s.Processors) {
		w.WriteUint64(n.Bits())
		encodeProcessor(w, s.Processors[n])
	}
	w.WriteUint32(uint32(len(s.ProcessorStates)))
	for _, n := range sortedNodeKeys(s.ProcessorStates) {
		w.WriteUint64(n.Bits())
		encodeProcessorState(w, s.ProcessorStates[n])
	}
	w.WriteUint32(uint32(len(s.Modifiers)))
	for _, n := range sortedNodeKeys(s.Modifiers) {
		w.WriteUint64(n.Bits())
		encodeModifiers(w, s.Modifiers[n])
	}
}

func decodeProcessorsPartition(r *wire.Reader, s *EngineState) {
	n := r.ReadUint32()
	s.Processors = make(map[ids.NodeId]processor.Processor, n)
	for i := uint32(0); i < n; i++ {
		node := ids.NodeIdFromBits(r.ReadUint64())
		s.Processors[node] = decodeProcessor(r)
	}
	n = r.ReadUint32()
	s.ProcessorStates = make(map[ids.NodeId]processor.State, n)
	for i := uint32(0); i < n; i++ {
		node := ids.NodeIdFromBits(r.ReadUint64())
		s.ProcessorStates[node] = decodeProcessorState(r)
	}
	n = r.ReadUint32()
	s.Modifiers = make(map[ids.NodeId][]processor.Modifier, n)
	for i := uint32(0); i < n; i++ {
		node := ids.NodeIdFromBits(r.ReadUint64())
		s.Modifiers[node] = decodeModifiers(r)
	}
}

func encodeInventoriesPartition(w *wire.Writer, s *EngineState) {
	w.WriteUint32(uint32(len(s.Inventories)))
	for _, n := range sortedNodeKeys(s.Inventories) {
		w.WriteUint64(n.Bits())
		encodeInventory(w, s.Inventories[n])
	}
}

func decodeInventoriesPartition(r *wire.Reader, s *EngineState) {
	n := r.ReadUint32()
	s.Inventories = make(map[ids.NodeId]*inventory.Inventory, n)
	for i := uint32(0); i < n; i++ {
		node := ids.NodeIdFromBits(r.ReadUint64())
		s.Inventories[node] = decodeInventory(r)
	}
}

func encodeTransportsPartition(w *wire.Writer, s *EngineState) {
	w.WriteUint32(uint32(len(s.Transports)))
	for _, e := range sortedEdgeKeys(s.Transports) {
		w.WriteUint64(e.Bits())
		encodeTransport(w, s.Transports[e])
	}
	w.WriteUint32(uint32(len(s.TransportStates)))
	for _, e := range sortedEdgeKeys(s.TransportStates) {
		w.WriteUint64(e.Bits())
		encodeTransportState(w, s.TransportStates[e])
	}
}

func decodeTransportsPartition(r *wire.Reader, s *EngineState) {
	n := r.ReadUint32()
	s.Transports = make(map[ids.EdgeId]transport.Transport, n)
	for i := uint32(0); i < n; i++ {
		edge := ids.EdgeIdFromBits(r.ReadUint64())
		s.Transports[edge] = decodeTransport(r)
	}
	n = r.ReadUint32()
	s.TransportStates = make(map[ids.EdgeId]transport.State, n)
	for i := uint32(0); i < n; i++ {
		edge := ids.EdgeIdFromBits(r.ReadUint64())
		s.TransportStates[edge] = decodeTransportState(r)
	}
}

func encodeJunctionsPartition(w *wire.Writer, s *EngineState) {
	w.WriteBlob(s.JunctionsBlob)
}

func decodeJunctionsPartition(r *wire.Reader, s *EngineState) {
	if b := r.ReadBlob(); len(b) > 0 {
		s.JunctionsBlob = b
	}
}

// encodePartition renders partition index to its own byte slice.
func encodePartition(index int, s *EngineState) []byte {
	w := wire.NewWriter()
	switch index {
	case PartitionGraph:
		encodeGraphPartition(w, s)
	case PartitionProcessors:
		encodeProcessorsPartition(w, s)
	case PartitionInventories:
		encodeInventoriesPartition(w, s)
	case PartitionTransports:
		encodeTransportsPartition(w, s)
	case PartitionJunctions:
		encodeJunctionsPartition(w, s)
	}
	return w.Bytes()
}

func decodePartition(index int, data []byte, s *EngineState) error {
	r := wire.NewReader(data)
	switch index {
	case PartitionGraph:
		decodeGraphPartition(r, s)
	case PartitionProcessors:
		decodeProcessorsPartition(r, s)
	case PartitionInventories:
		decodeInventoriesPartition(r, s)
	case PartitionTransports:
		decodeTransportsPartition(r, s)
	case PartitionJunctions:
		decodeJunctionsPartition(r, s)
	}
	if r.Err() != nil {
		return &PartitionDecodeError{Index: index, Reason: r.Err().Error()}
	}
	return nil
}

// --- sorted-key helpers: map iteration order is not deterministic, so every
// encoder walks keys in ascending id order instead. ---

func sortedNodeKeys[V any](m map[ids.NodeId]V) []ids.NodeId {
	out := make([]ids.NodeId, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortNodeIDs(out)
	return out
}

func sortedEdgeKeys[V any](m map[ids.EdgeId]V) []ids.EdgeId {
	out := make([]ids.EdgeId, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortEdgeIDs(out)
	return out
}

func sortNodeIDs(s []ids.NodeId) {
	slices.SortFunc(s, func(a, b ids.NodeId) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
}

func sortEdgeIDs(s []ids.EdgeId) {
	slices.SortFunc(s, func(a, b ids.EdgeId) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
}

// --- whole-snapshot formats ---

// Serialize encodes the full engine state as the legacy monolithic format:
// header followed by every partition's payload concatenated in fixed order.
func Serialize(s *EngineState) []byte {
	w := wire.NewWriter()
	w.WriteUint32(MagicLegacy)
	w.WriteUint32(FormatVersion)
	w.WriteUint64(s.SimState.Tick)
	encodeGraphPartition(w, s)
	encodeProcessorsPartition(w, s)
	encodeInventoriesPartition(w, s)
	encodeTransportsPartition(w, s)
	encodeJunctionsPartition(w, s)
	return w.Bytes()
}

// Deserialize decodes a legacy-format blob produced by Serialize.
func Deserialize(data []byte) (*EngineState, error) {
	h, body, err := readHeader(data, MagicLegacy)
	if err != nil {
		return nil, err
	}
	if err := h.Validate(MagicLegacy); err != nil {
		return nil, err
	}
	r := wire.NewReader(body)
	out := NewEngineState()
	// the legacy format has no partition length prefixes: each partition's
	// decoder consumes exactly the bytes its encoder wrote, so decoding runs
	// straight through the shared reader.
	for i := 0; i < PartitionCount; i++ {
		if err := decodeLegacyPartition(i, r, out); err != nil {
			return nil, err
		}
	}
	if r.Err() != nil {
		return nil, &DecodeError{Detail: r.Err().Error()}
	}
	return out, nil
}

func decodeLegacyPartition(index int, r *wire.Reader, s *EngineState) error {
	switch index {
	case PartitionGraph:
		decodeGraphPartition(r, s)
	case PartitionProcessors:
		decodeProcessorsPartition(r, s)
	case PartitionInventories:
		decodeInventoriesPartition(r, s)
	case PartitionTransports:
		decodeTransportsPartition(r, s)
	case PartitionJunctions:
		decodeJunctionsPartition(r, s)
	}
	if r.Err() != nil {
		return &PartitionDecodeError{Index: index, Reason: r.Err().Error()}
	}
	return nil
}

// SerializePartitioned encodes the full engine state as the partitioned
// format: header followed by five independently length-prefixed blobs.
func SerializePartitioned(s *EngineState) []byte {
	w := wire.NewWriter()
	w.WriteUint32(MagicPartitioned)
	w.WriteUint32(FormatVersion)
	w.WriteUint64(s.SimState.Tick)
	for i := 0; i < PartitionCount; i++ {
		w.WriteBlob(encodePartition(i, s))
	}
	return w.Bytes()
}

// DeserializePartitioned decodes a partitioned-format blob produced by
// SerializePartitioned or SerializeIncremental.
func DeserializePartitioned(data []byte) (*EngineState, error) {
	h, body, err := readHeader(data, MagicPartitioned)
	if err != nil {
		return nil, err
	}
	if err := h.Validate(MagicPartitioned); err != nil {
		return nil, err
	}
	r := wire.NewReader(body)
	blobs := make([][]byte, PartitionCount)
	for i := range blobs {
		blobs[i] = r.ReadBlob()
		if r.Err() != nil {
			return nil, &MissingPartitionError{Index: i}
		}
	}
	out := NewEngineState()
	for i, blob := range blobs {
		if err := decodePartition(i, blob, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SerializeIncremental produces partitioned-format bytes reusing baseline's
// blob for every partition that is not marked dirty, and re-encoding only
// the dirty ones. baseline must be a partitioned-format blob at the version
// this build writes; dirty selects which of the five partitions to refresh
// from s. The result deserializes to the same engine DeserializePartitioned
// would produce from a fresh SerializePartitioned(s) call, at a fraction of
// the encoding cost when few partitions changed.
func SerializeIncremental(s *EngineState, baseline []byte, dirty [PartitionCount]bool) ([]byte, error) {
	if baseline == nil {
		return SerializePartitioned(s), nil
	}
	h, body, err := readHeader(baseline, MagicPartitioned)
	if err != nil {
		return nil, err
	}
	if err := h.Validate(MagicPartitioned); err != nil {
		return nil, err
	}
	r := wire.NewReader(body)
	blobs := make([][]byte, PartitionCount)
	for i := range blobs {
		blobs[i] = r.ReadBlob()
		if r.Err() != nil {
			return nil, &MissingPartitionError{Index: i}
		}
	}

	w := wire.NewWriter()
	w.WriteUint32(MagicPartitioned)
	w.WriteUint32(FormatVersion)
	w.WriteUint64(s.SimState.Tick)
	for i := 0; i < PartitionCount; i++ {
		if dirty[i] {
			w.WriteBlob(encodePartition(i, s))
		} else {
			w.WriteBlob(blobs[i])
		}
	}
	return w.Bytes(), nil
}

// Migration brings a decoded payload for one prior version up to the next
// version. Registered migrations are chained N -> N+1 -> ... -> current.
type Migration struct {
	FromVersion uint32
	Apply       func(data []byte) ([]byte, error)
}

// MigrationRegistry holds the ordered chain of version-upgrade transforms
// used by DeserializeWithMigrations.
type MigrationRegistry struct {
	migrations map[uint32]Migration
}

// NewMigrationRegistry returns an empty registry.
func NewMigrationRegistry() *MigrationRegistry {
	return &MigrationRegistry{migrations: make(map[uint32]Migration)}
}

// Register adds a migration from FromVersion to FromVersion+1. Registering
// the same FromVersion twice replaces the prior entry.
func (reg *MigrationRegistry) Register(m Migration) {
	reg.migrations[m.FromVersion] = m
}

// DeserializeWithMigrations decodes a legacy-format blob whose version may be
// older than FormatVersion, walking the registered chain to bring its
// payload bytes forward before decoding. A future (newer) version, or a gap
// in the migration chain, is an error.
func DeserializeWithMigrations(data []byte, reg *MigrationRegistry) (*EngineState, error) {
	if len(data) < 16 {
		return nil, &TooShortError{}
	}
	magicReader := wire.NewReader(data)
	magic := magicReader.ReadUint32()
	if magic != MagicLegacy {
		return nil, &InvalidMagicError{Got: magic, Want: MagicLegacy}
	}
	version := magicReader.ReadUint32()
	tick := magicReader.ReadUint64()
	if version > FormatVersion {
		return nil, &FutureVersionError{Version: version}
	}

	payload := data[16:]
	for version < FormatVersion {
		m, ok := reg.migrations[version]
		if !ok {
			return nil, &UnsupportedVersionError{Version: version}
		}
		migrated, err := m.Apply(payload)
		if err != nil {
			return nil, &DecodeError{Detail: err.Error()}
		}
		payload = migrated
		version++
	}

	rebuilt := wire.NewWriter()
	rebuilt.WriteUint32(MagicLegacy)
	rebuilt.WriteUint32(FormatVersion)
	rebuilt.WriteUint64(tick)
	return Deserialize(append(rebuilt.Bytes(), payload...))
}

// DetectFormat inspects a blob's magic number without fully decoding it.
func DetectFormat(data []byte) (Format, error) {
	if len(data) < 4 {
		return FormatUnknown, &TooShortError{}
	}
	r := wire.NewReader(data)
	magic := r.ReadUint32()
	switch magic {
	case MagicLegacy:
		return FormatLegacy, nil
	case MagicPartitioned:
		return FormatPartitioned, nil
	default:
		return FormatUnknown, nil
	}
}

// readHeader parses and validates the fixed 16-byte header prefix, returning
// the remaining payload bytes.
func readHeader(data []byte, wantMagic uint32) (Header, []byte, error) {
	if len(data) < 16 {
		return Header{}, nil, &TooShortError{}
	}
	r := wire.NewReader(data)
	h := Header{
		Magic:   r.ReadUint32(),
		Version: r.ReadUint32(),
		Tick:    r.ReadUint64(),
	}
	return h, data[16:], nil
}
