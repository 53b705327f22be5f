// Package processor implements the per-node processor state machines:
// Source, FixedRecipe, Property, Demand, Passthrough, and MultiRecipe, along
// with modifier resolution and recipe-switch handling.
package processor

import (
	"github.com/joeycumines/factorial/fixedpoint"
	"github.com/joeycumines/factorial/ids"
)

// StallReason explains why a processor cannot make progress.
type StallReason int

const (
	// StallNone is the zero value; not a real stall reason.
	StallNone StallReason = iota
	StallMissingInputs
	StallOutputFull
	StallNoPower
	StallDepleted
)

// StateKind tags ProcessorState's active variant.
type StateKind int

const (
	StateIdle StateKind = iota
	StateWorking
	StateStalled
)

// State is the runtime state of a processor: Idle, Working{Progress}, or
// Stalled{Reason}. It also carries the fractional accumulator used by
// Source and Demand (sub-1/tick rates), the Source's remaining finite
// supply, the Demand's lifetime consumed total, and MultiRecipe's active/
// pending recipe bookkeeping — all of it is per-node runtime state that
// travels alongside the processor configuration.
type State struct {
	Kind        StateKind
	Progress    uint32
	StallReason StallReason

	// Accumulator is the fractional production/consumption accumulator used
	// by Source and Demand.
	Accumulator fixedpoint.Fixed64

	// Remaining tracks a Source's finite depletion countdown, in whole
	// items (independent of Accumulator, which tracks the sub-item
	// fraction).
	Remaining int64

	// ConsumedTotal is a Demand processor's lifetime consumption counter.
	ConsumedTotal uint64

	// ActiveRecipe/PendingSwitch/InProgressInputs are MultiRecipe
	// bookkeeping; PendingSwitch is -1 when no switch is pending.
	ActiveRecipe     int
	PendingSwitch    int
	InProgressInputs []ConsumedInput
}

// NewState returns the zero (Idle) runtime state, with PendingSwitch unset.
func NewState() State {
	return State{Kind: StateIdle, PendingSwitch: -1}
}

// ConsumedInput records one input consumed at recipe start, for the
// RefundInputs switch policy.
type ConsumedInput struct {
	ItemType ids.ItemTypeId
	Quantity uint32
}

// Depletion models how a Source processor runs out (or doesn't).
type DepletionKind int

const (
	DepletionInfinite DepletionKind = iota
	DepletionFinite
	DepletionDecaying
)

type Depletion struct {
	Kind      DepletionKind
	Remaining int64  // DepletionFinite
	HalfLife  uint64 // DepletionDecaying, in ticks
}

// RecipeInput is one input requirement of a FixedRecipeConfig.
type RecipeInput struct {
	ItemType ids.ItemTypeId
	Quantity uint32
	// Consumed is false for catalyst inputs: required to be present but not
	// drawn down.
	Consumed bool
}

// BonusOutput is a chance-based extra output rolled once per completed cycle.
type BonusOutput struct {
	Chance         fixedpoint.Fixed64
	Quantity       uint32
	BonusItemType  ids.ItemTypeId
	HasBonusType   bool // false means "same as parent output's item type"
}

// RecipeOutput is one output product of a FixedRecipeConfig.
type RecipeOutput struct {
	ItemType ids.ItemTypeId
	Quantity uint32
	Bonus    *BonusOutput
}

// FixedRecipeConfig configures a FixedRecipe processor.
type FixedRecipeConfig struct {
	Inputs   []RecipeInput
	Outputs  []RecipeOutput
	Duration uint32 // base ticks to complete one cycle, before speed modifiers
}

// SourceConfig configures a Source processor.
type SourceConfig struct {
	OutputType        ids.ItemTypeId
	BaseRate          fixedpoint.Fixed64
	Depletion         Depletion
	InitialProperties map[ids.PropertyId]fixedpoint.Fixed64
}

// TransformKind tags a PropertyTransform's operation.
type TransformKind int

const (
	TransformSet TransformKind = iota
	TransformAdd
	TransformMultiply
)

// PropertyTransform describes how a Property processor adjusts a stack
// property.
type PropertyTransform struct {
	Kind     TransformKind
	Property ids.PropertyId
	Value    fixedpoint.Fixed64
}

// PropertyConfig configures a Property processor.
type PropertyConfig struct {
	InputType  ids.ItemTypeId
	OutputType ids.ItemTypeId
	Transform  PropertyTransform
}

// DemandConfig configures a Demand processor.
type DemandConfig struct {
	InputType     ids.ItemTypeId
	BaseRate      fixedpoint.Fixed64
	AcceptedTypes []ids.ItemTypeId // nil -> single-type mode using InputType
}

// RecipeSwitchPolicy governs in-flight behavior when a MultiRecipe's active
// recipe is switched.
type RecipeSwitchPolicy int

const (
	// CompleteFirst defers the switch until the current cycle completes.
	CompleteFirst RecipeSwitchPolicy = iota
	// CancelImmediate drops in-progress progress and inputs.
	CancelImmediate
	// RefundInputs drops progress but returns consumed inputs to input
	// inventory.
	RefundInputs
)

// MultiRecipeConfig configures a MultiRecipe processor.
type MultiRecipeConfig struct {
	Recipes      []FixedRecipeConfig
	SwitchPolicy RecipeSwitchPolicy
}

// Kind tags Processor's active variant.
type Kind int

const (
	KindSource Kind = iota
	KindFixedRecipe
	KindProperty
	KindDemand
	KindPassthrough
	KindMultiRecipe
)

// Processor is the tagged-union processor configuration. Exactly one of the
// pointer fields matching Kind is non-nil.
type Processor struct {
	Kind        Kind
	Source      *SourceConfig
	Fixed       *FixedRecipeConfig
	Property    *PropertyConfig
	Demand      *DemandConfig
	MultiRecipe *MultiRecipeConfig
}

// Result is the outcome of one Tick call.
type Result struct {
	Consumed          []ConsumedInput
	Produced          []ProducedOutput
	StateChanged      bool
	PropertyTransform *PropertyTransform
	InitialProperties map[ids.PropertyId]fixedpoint.Fixed64
	// Refunded holds inputs a MultiRecipe switch returned to the input
	// inventory under RecipeSwitchPolicy = RefundInputs. Empty otherwise.
	Refunded []ConsumedInput
}

// ProducedOutput records one produced (item type, quantity) pair.
type ProducedOutput struct {
	ItemType ids.ItemTypeId
	Quantity uint32
}
