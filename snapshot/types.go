// Package snapshot implements the engine's two binary wire formats (legacy
// monolithic and partitioned), a migration registry for bringing old-version
// bytes forward, and format detection. Encoding composes the small per-
// primitive functions in internal/wire, the same "one function per value kind"
// shape jsonenc uses for JSON fragments, applied here to a fixed binary
// layout instead of JSON text.
package snapshot

import (
	"fmt"

	"github.com/joeycumines/factorial/ids"
	"github.com/joeycumines/factorial/inventory"
	"github.com/joeycumines/factorial/processor"
	"github.com/joeycumines/factorial/sim"
	"github.com/joeycumines/factorial/transport"
)

// Format identifies which wire format a blob decodes as.
type Format int

const (
	FormatUnknown Format = iota
	FormatLegacy
	FormatPartitioned
)

// Magic numbers identifying each wire format, read as the first four bytes.
const (
	MagicLegacy      uint32 = 0xFAC70001
	MagicPartitioned uint32 = 0xFAC70002
)

// FormatVersion is the current format version this build writes and
// natively understands. Bumped whenever a breaking wire-layout change is
// made; older versions are brought forward through a MigrationRegistry.
const FormatVersion uint32 = 1

// PartitionCount is the number of independently encoded blobs in the
// partitioned format, and the fixed index of each below.
const PartitionCount = 5

const (
	PartitionGraph = iota
	PartitionProcessors
	PartitionInventories
	PartitionTransports
	PartitionJunctions
)

// Header is the fixed-width prefix of every snapshot, legacy or
// partitioned: magic number, format version, and tick count at capture
// time.
type Header struct {
	Magic   uint32
	Version uint32
	Tick    uint64
}

// Validate checks magic/version, distinguishing a future (newer) version
// from an old, migratable one.
func (h Header) Validate(wantMagic uint32) error {
	if h.Magic != wantMagic {
		return &InvalidMagicError{Got: h.Magic, Want: wantMagic}
	}
	if h.Version > FormatVersion {
		return &FutureVersionError{Version: h.Version}
	}
	if h.Version < FormatVersion {
		return &UnsupportedVersionError{Version: h.Version}
	}
	return nil
}

// Error types, per the engine's documented serialization error taxonomy.

type TooShortError struct{}

func (e *TooShortError) Error() string { return "snapshot: data too short for header" }

type InvalidMagicError struct{ Got, Want uint32 }

func (e *InvalidMagicError) Error() string {
	return fmt.Sprintf("snapshot: invalid magic: want 0x%08X, got 0x%08X", e.Want, e.Got)
}

type FutureVersionError struct{ Version uint32 }

func (e *FutureVersionError) Error() string {
	return fmt.Sprintf("snapshot: snapshot from future version %d (this build supports up to %d)", e.Version, FormatVersion)
}

type UnsupportedVersionError struct{ Version uint32 }

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("snapshot: unsupported version %d (no migration available)", e.Version)
}

type EncodeError struct{ Detail string }

func (e *EncodeError) Error() string { return "snapshot: encode failed: " + e.Detail }

type DecodeError struct{ Detail string }

func (e *DecodeError) Error() string { return "snapshot: decode failed: " + e.Detail }

type MissingPartitionError struct{ Index int }

func (e *MissingPartitionError) Error() string {
	return fmt.Sprintf("snapshot: missing partition %d", e.Index)
}

type PartitionDecodeError struct {
	Index  int
	Reason string
}

func (e *PartitionDecodeError) Error() string {
	return fmt.Sprintf("snapshot: partition %d decode failed: %s", e.Index, e.Reason)
}

// NodeRecord is one node's identity plus the graph-owned NodeData.
type NodeRecord struct {
	Node         ids.NodeId
	BuildingType ids.BuildingTypeId
}

// EdgeRecord is one edge's identity plus the graph-owned EdgeData.
type EdgeRecord struct {
	Edge       ids.EdgeId
	From, To   ids.NodeId
	ItemFilter *ids.ItemTypeId
}

// EngineState is the full serializable engine state: everything the wire
// formats round-trip. It excludes the event bus (subscribers are closures,
// never serialized) and the dirty tracker (recomputed fresh on decode), per
// the engine's determinism contract: a decoded engine starts with a clean
// dirty tracker and an empty event bus.
type EngineState struct {
	Nodes []NodeRecord
	Edges []EdgeRecord

	Strategy sim.Strategy
	SimState sim.State
	Paused   bool

	Processors       map[ids.NodeId]processor.Processor
	ProcessorStates  map[ids.NodeId]processor.State
	Modifiers        map[ids.NodeId][]processor.Modifier
	Inventories      map[ids.NodeId]*inventory.Inventory
	Transports       map[ids.EdgeId]transport.Transport
	TransportStates  map[ids.EdgeId]transport.State

	// RngState is the root PRNG stream's internal state at capture time.
	// Per-node sub-streams (prng.Stream.Split) are never persisted
	// separately: they are pure functions of the root state plus a node-id
	// salt, so restoring RngState alone reproduces every sub-stream deriving
	// from it deterministically.
	RngState uint64

	LastStateHash uint64

	// JunctionsBlob is carried opaquely: partition index 4 is reserved by
	// the wire format for a junction subsystem this build does not
	// implement. Round-tripping preserves whatever bytes were there so a
	// future build (or a host that does implement junctions) does not lose
	// data passing through this one.
	JunctionsBlob []byte
}

// NewEngineState returns an EngineState with all maps initialized empty.
func NewEngineState() *EngineState {
	return &EngineState{
		Processors:      make(map[ids.NodeId]processor.Processor),
		ProcessorStates: make(map[ids.NodeId]processor.State),
		Modifiers:       make(map[ids.NodeId][]processor.Modifier),
		Inventories:     make(map[ids.NodeId]*inventory.Inventory),
		Transports:      make(map[ids.EdgeId]transport.Transport),
		TransportStates: make(map[ids.EdgeId]transport.State),
	}
}
