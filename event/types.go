// Package event implements the engine's typed event bus: one ring buffer
// per event kind, suppression flags, priority/filter-aware subscriber
// delivery, and the reactive-handler mutation queue that feeds back into
// the next tick's graph mutations.
package event

import (
	"github.com/joeycumines/factorial/fixedpoint"
	"github.com/joeycumines/factorial/ids"
	"github.com/joeycumines/factorial/processor"
)

// Kind discriminates the thirteen event kinds emitted during a tick.
type Kind int

const (
	KindItemProduced Kind = iota
	KindItemConsumed
	KindRecipeStarted
	KindRecipeCompleted
	KindBuildingStalled
	KindBuildingResumed
	KindItemDelivered
	KindTransportFull
	KindNodeAdded
	KindNodeRemoved
	KindEdgeAdded
	KindEdgeRemoved
	KindRecipeSwitched

	kindCount
)

// Event is a flat record covering all event kinds: only the fields
// relevant to Kind are meaningful, avoiding per-event heap allocation and
// virtual dispatch on what is a very hot path during phases 2-4.
type Event struct {
	Kind     Kind
	Tick     fixedpoint.Ticks
	Node     ids.NodeId
	Edge     ids.EdgeId
	From     ids.NodeId
	To       ids.NodeId
	ItemType ids.ItemTypeId
	Quantity uint32
	Reason   processor.StallReason
	Building ids.BuildingTypeId
	// FromRecipe/ToRecipe are populated on KindRecipeSwitched.
	FromRecipe int
	ToRecipe   int
}

// MutationKind discriminates the four mutation requests a reactive handler
// may return.
type MutationKind int

const (
	MutationAddNode MutationKind = iota
	MutationRemoveNode
	MutationConnect
	MutationDisconnect
)

// Mutation is a graph change requested by a reactive handler. It is queued
// on the bus and drained by the engine at the start of the next tick's
// pre-tick phase, never applied within the tick that produced it.
type Mutation struct {
	Kind     MutationKind
	Building ids.BuildingTypeId // MutationAddNode
	Node     ids.NodeId         // MutationRemoveNode
	From, To ids.NodeId         // MutationConnect
	Edge     ids.EdgeId         // MutationDisconnect
}

// Priority orders subscriber delivery within a single event kind. Lower
// values run first.
type Priority int

const (
	Pre Priority = iota
	Normal
	Post
)

// Filter optionally excludes events from a subscriber; a nil filter
// accepts everything.
type Filter func(*Event) bool

// PassiveListener observes events read-only.
type PassiveListener func(*Event)

// ReactiveHandler observes an event and returns zero or more mutations to
// enqueue for the next tick.
type ReactiveHandler func(*Event) []Mutation

// subscriberEntry is a tagged union over Passive/Reactive: exactly one of
// passive/reactive is non-nil.
type subscriberEntry struct {
	passive        PassiveListener
	reactive       ReactiveHandler
	priority       Priority
	filter         Filter
	insertionOrder uint64
}
