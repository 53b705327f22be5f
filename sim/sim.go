// Package sim holds the simulation-level types shared by the engine and its
// snapshot formats but owned by neither: the tick/accumulator pair, the
// advance-mode strategy, and the state-hash mixing function used both for
// the whole-engine digest and the six subsystem digests.
package sim

import (
	"encoding/binary"

	"github.com/joeycumines/factorial/fixedpoint"
)

// State is the engine's tick counter and delta-time accumulator. Tick
// increments monotonically in phase 6; Accumulator is used only by the
// Delta advance strategy.
type State struct {
	Tick        uint64
	Accumulator fixedpoint.Ticks
}

// StrategyKind tags Strategy's active mode.
type StrategyKind int

const (
	// StrategyTick advances exactly one step per Advance call, ignoring dt.
	StrategyTick StrategyKind = iota
	// StrategyDelta accumulates dt and runs as many whole fixed steps as fit.
	StrategyDelta
)

// Strategy selects how Engine.Advance interprets its dt argument.
type Strategy struct {
	Kind StrategyKind
	// FixedTimestep is the step size, in ticks, for StrategyDelta.
	FixedTimestep fixedpoint.Ticks
}

// TickStrategy returns the Tick-mode strategy.
func TickStrategy() Strategy { return Strategy{Kind: StrategyTick} }

// DeltaStrategy returns a Delta-mode strategy with the given fixed timestep.
func DeltaStrategy(fixedTimestep fixedpoint.Ticks) Strategy {
	return Strategy{Kind: StrategyDelta, FixedTimestep: fixedTimestep}
}

// StateHash accumulates a canonical byte stream into a 64-bit digest via a
// splitmix64-style finalizer: deterministic across platforms and processes,
// unlike Go's built-in map iteration or hash/maphash, which seed themselves
// randomly per process.
type StateHash struct {
	state uint64
}

// seed is an arbitrary fixed constant; any engine computing the same
// sequence of Write calls produces the same digest regardless of platform.
const seed uint64 = 0x9E3779B97F4A7C15

// NewStateHash returns a hash accumulator seeded to a fixed constant.
func NewStateHash() *StateHash { return &StateHash{state: seed} }

func (h *StateHash) mix(v uint64) {
	h.state ^= v
	h.state *= 0xFF51AFD7ED558CCD
	h.state ^= h.state >> 33
	h.state *= 0xC4CEB9FE1A85EC53
	h.state ^= h.state >> 29
}

// Write mixes in an arbitrary byte slice, processed in 8-byte little-endian
// chunks with a zero-padded final partial chunk.
func (h *StateHash) Write(b []byte) {
	for len(b) >= 8 {
		h.mix(binary.LittleEndian.Uint64(b))
		b = b[8:]
	}
	if len(b) > 0 {
		var tail [8]byte
		copy(tail[:], b)
		h.mix(binary.LittleEndian.Uint64(tail[:]))
	}
}

func (h *StateHash) WriteUint32(v uint32) { h.mix(uint64(v)) }
func (h *StateHash) WriteUint64(v uint64) { h.mix(v) }
func (h *StateHash) WriteInt64(v int64)   { h.mix(uint64(v)) }
func (h *StateHash) WriteFixed64(v fixedpoint.Fixed64) { h.mix(uint64(v.Bits())) }

func (h *StateHash) WriteBool(v bool) {
	if v {
		h.mix(1)
	} else {
		h.mix(0)
	}
}

// Finish returns the accumulated digest.
func (h *StateHash) Finish() uint64 { return h.state }

// SubsystemHashes holds six independently computed digests so divergence
// between two engine replicas can be localized to one subsystem.
type SubsystemHashes struct {
	Graph            uint64
	Processors       uint64
	ProcessorStates  uint64
	Inventories      uint64
	Transports       uint64
	SimState         uint64
}
