// Package transport implements the four transport strategies that move
// items along production-graph edges: Flow, Item (belt), Batch, and
// Vehicle. Each variant exposes a single Advance call that consumes
// available source quantity and returns what moved and what was delivered
// this tick; the engine is responsible for applying those counts to
// inventories and for back-pressure/priority across edges.
package transport

import "github.com/joeycumines/factorial/fixedpoint"

// Kind tags Transport's active variant.
type Kind int

const (
	KindFlow Kind = iota
	KindItem
	KindBatch
	KindVehicle
)

// Transport is the tagged-union transport configuration, immutable once an
// edge is created. Exactly one of the pointer fields matching Kind is
// non-nil.
type Transport struct {
	Kind    Kind
	Flow    *FlowConfig
	Item    *ItemConfig
	Batch   *BatchConfig
	Vehicle *VehicleConfig
}

// FlowConfig configures a continuous rate-based transport (pipes, conveyors).
type FlowConfig struct {
	// Rate is items per tick, fractional.
	Rate fixedpoint.Fixed64
	// BufferCapacity bounds the in-flight buffer.
	BufferCapacity fixedpoint.Fixed64
	// Latency is the delay, in ticks, before buffered items start delivering.
	Latency uint32
}

// ItemConfig configures a discrete belt with individually tracked slots.
type ItemConfig struct {
	// Speed is slots advanced per tick; only the integer part is used.
	Speed     fixedpoint.Fixed64
	SlotCount uint32
	Lanes     uint8
}

// BatchConfig configures a transport that delivers fixed-size chunks every
// cycle (train loads, courier pallets).
type BatchConfig struct {
	BatchSize uint32
	CycleTime uint32
}

// VehicleConfig configures a transport that loads at the source, travels,
// delivers, and returns.
type VehicleConfig struct {
	Capacity   uint32
	TravelTime uint32
}

// State is the tagged-union mutable transport state. Variants match
// Transport one-to-one.
type State struct {
	Kind    Kind
	Flow    *FlowState
	Item    *BeltState
	Batch   *BatchState
	Vehicle *VehicleState
}

// FlowState is FlowConfig's runtime state.
type FlowState struct {
	Buffered         fixedpoint.Fixed64
	LatencyRemaining uint32
}

// BeltState is ItemConfig's runtime state: a flat, pre-sized slot array.
// Layout is lane-major: lane 0 occupies [0, SlotCount), lane 1 occupies
// [SlotCount, 2*SlotCount), and so on. Slot 0 of each lane is the output
// end; the highest index is the input end.
type BeltState struct {
	Occupied []bool
}

// BatchState is BatchConfig's runtime state.
type BatchState struct {
	Progress uint32
	Pending  uint32
}

// VehicleState is VehicleConfig's runtime state. Cargo is tracked as a
// single pending quantity rather than per-stack detail: a vehicle load is
// one bulk pickup and one bulk drop-off, never a mix assembled across
// multiple ticks.
type VehicleState struct {
	// Position is ticks traveled since departure; 0 means at source.
	Position uint32
	// CargoQuantity is items currently carried (0 when empty).
	CargoQuantity uint32
	// Returning is true during the return leg.
	Returning bool
}

// Result is the outcome of one Advance call.
type Result struct {
	// ItemsMoved is what was taken from the source this tick.
	ItemsMoved uint32
	// ItemsDelivered is what reached the destination this tick.
	ItemsDelivered uint32
}

// NewState returns a freshly initialized State matching t's variant.
func NewState(t *Transport) State {
	switch t.Kind {
	case KindFlow:
		return State{Kind: KindFlow, Flow: &FlowState{LatencyRemaining: t.Flow.Latency}}
	case KindItem:
		total := int(t.Item.SlotCount) * int(t.Item.Lanes)
		return State{Kind: KindItem, Item: &BeltState{Occupied: make([]bool, total)}}
	case KindBatch:
		return State{Kind: KindBatch, Batch: &BatchState{}}
	case KindVehicle:
		return State{Kind: KindVehicle, Vehicle: &VehicleState{}}
	default:
		panic("transport: unknown kind")
	}
}
