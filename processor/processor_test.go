package processor

import (
	"testing"

	"github.com/joeycumines/factorial/fixedpoint"
	"github.com/joeycumines/factorial/ids"
	"github.com/joeycumines/factorial/prng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	itemIron ids.ItemTypeId = 1
	itemGear ids.ItemTypeId = 2
	itemOre  ids.ItemTypeId = 3
)

func fx(n int64) fixedpoint.Fixed64 { return fixedpoint.FromInt(n) }

// ---------------------------------------------------------------------------
// Modifier resolution
// ---------------------------------------------------------------------------

func TestResolveModifiersMultiplicative(t *testing.T) {
	mods := []Modifier{
		{ID: 1, Target: Speed, Value: fx(2), Stacking: Multiplicative},
		{ID: 2, Target: Speed, Value: fx(3), Stacking: Multiplicative},
	}
	r := ResolveModifiers(mods)
	assert.Equal(t, fx(6), r.Speed)
}

func TestResolveModifiersAdditive(t *testing.T) {
	half := fx(1).Div(fx(2))
	mods := []Modifier{
		{ID: 1, Target: Productivity, Value: fx(1).Add(half), Stacking: Additive}, // +0.5
		{ID: 2, Target: Productivity, Value: fx(1).Add(half), Stacking: Additive}, // +0.5
	}
	r := ResolveModifiers(mods)
	assert.Equal(t, fx(2), r.Productivity)
}

func TestResolveModifiersDiminishingCompoundsConstantHalfDelta(t *testing.T) {
	// each +1.0 delta multiplies the running target by (1 + delta/2) = 1.5,
	// compounding prior modifiers' effect into each new one:
	// 1 -> 1.5 -> 2.25 -> 3.375
	mods := []Modifier{
		{ID: 1, Target: Efficiency, Value: fx(2), Stacking: Diminishing},
		{ID: 2, Target: Efficiency, Value: fx(2), Stacking: Diminishing},
		{ID: 3, Target: Efficiency, Value: fx(2), Stacking: Diminishing},
	}
	r := ResolveModifiers(mods)
	threeHalves := fx(3).Div(fx(2))
	want := fx(1).Mul(threeHalves).Mul(threeHalves).Mul(threeHalves)
	assert.Equal(t, want, r.Efficiency)
}

func TestResolveModifiersCappedKeepsStrongest(t *testing.T) {
	mods := []Modifier{
		{ID: 2, Target: Speed, Value: fx(3), Stacking: Capped},
		{ID: 1, Target: Speed, Value: fx(5), Stacking: Capped},
	}
	r := ResolveModifiers(mods)
	assert.Equal(t, fx(5), r.Speed)
}

func TestResolveModifiersOrderedByID(t *testing.T) {
	// Capped folds against the running value in ID order; verify sort happens
	// regardless of input slice order.
	mods := []Modifier{
		{ID: 9, Target: Speed, Value: fx(2), Stacking: Capped},
		{ID: 1, Target: Speed, Value: fx(4), Stacking: Capped},
		{ID: 5, Target: Speed, Value: fx(3), Stacking: Capped},
	}
	r := ResolveModifiers(mods)
	assert.Equal(t, fx(4), r.Speed)
}

func TestResolveModifiersDefaultIsIdentity(t *testing.T) {
	r := ResolveModifiers(nil)
	assert.Equal(t, fixedpoint.One, r.Speed)
	assert.Equal(t, fixedpoint.One, r.Productivity)
	assert.Equal(t, fixedpoint.One, r.Efficiency)
}

// ---------------------------------------------------------------------------
// Source
// ---------------------------------------------------------------------------

func TestSourceAccumulatesSubOneRate(t *testing.T) {
	cfg := &SourceConfig{OutputType: itemOre, BaseRate: fx(1).Div(fx(2))}
	p := &Processor{Kind: KindSource, Source: cfg}
	state := NewState()
	mods := []Modifier{}

	r1 := p.Tick(&state, mods, nil, 10, nil)
	assert.Empty(t, r1.Produced)
	assert.Equal(t, StateWorking, state.Kind)

	r2 := p.Tick(&state, mods, nil, 10, nil)
	require.Len(t, r2.Produced, 1)
	assert.Equal(t, uint32(1), r2.Produced[0].Quantity)
}

func TestSourceStallsWhenOutputFull(t *testing.T) {
	cfg := &SourceConfig{OutputType: itemOre, BaseRate: fx(1)}
	p := &Processor{Kind: KindSource, Source: cfg}
	state := NewState()
	r := p.Tick(&state, nil, nil, 0, nil)
	assert.Equal(t, StateStalled, state.Kind)
	assert.Equal(t, StallOutputFull, state.StallReason)
	assert.True(t, r.StateChanged)
}

func TestSourceFiniteDepletionStallsWhenExhausted(t *testing.T) {
	cfg := &SourceConfig{
		OutputType: itemOre,
		BaseRate:   fx(1),
		Depletion:  Depletion{Kind: DepletionFinite, Remaining: 1},
	}
	p := &Processor{Kind: KindSource, Source: cfg}
	state := NewState()
	state.Remaining = 1

	r1 := p.Tick(&state, nil, nil, 10, nil)
	require.Len(t, r1.Produced, 1)
	assert.Equal(t, uint32(1), r1.Produced[0].Quantity)
	assert.Equal(t, int64(0), state.Remaining)

	r2 := p.Tick(&state, nil, nil, 10, nil)
	assert.Empty(t, r2.Produced)
	assert.Equal(t, StateStalled, state.Kind)
	assert.Equal(t, StallDepleted, state.StallReason)
}

// ---------------------------------------------------------------------------
// FixedRecipe: the canonical scenario, 2 iron -> 1 gear, duration 3, speed x2
// ---------------------------------------------------------------------------

func TestFixedRecipeSpeedDoubledEffectiveDuration(t *testing.T) {
	cfg := &FixedRecipeConfig{
		Inputs:   []RecipeInput{{ItemType: itemIron, Quantity: 2, Consumed: true}},
		Outputs:  []RecipeOutput{{ItemType: itemGear, Quantity: 1}},
		Duration: 3,
	}
	p := &Processor{Kind: KindFixedRecipe, Fixed: cfg}
	state := NewState()
	mods := []Modifier{{ID: 1, Target: Speed, Value: fx(2), Stacking: Multiplicative}}

	available := []AvailableInput{{ItemType: itemIron, Quantity: 100}}

	var totalConsumed, totalProduced uint32
	var idleCount int

	for i := 0; i < 6; i++ {
		r := p.Tick(&state, mods, available, 100, nil)
		for _, c := range r.Consumed {
			totalConsumed += c.Quantity
		}
		for _, o := range r.Produced {
			totalProduced += o.Quantity
		}
		if state.Kind == StateIdle && r.StateChanged {
			idleCount++
		}
	}

	assert.Equal(t, uint32(6), totalConsumed)
	assert.Equal(t, uint32(3), totalProduced)
	assert.Equal(t, 2, idleCount)
}

func TestFixedRecipeMissingInputsStalls(t *testing.T) {
	cfg := &FixedRecipeConfig{
		Inputs:   []RecipeInput{{ItemType: itemIron, Quantity: 5, Consumed: true}},
		Outputs:  []RecipeOutput{{ItemType: itemGear, Quantity: 1}},
		Duration: 1,
	}
	state := NewState()
	r := tickFixed(cfg, &state, ResolveModifiers(nil), []AvailableInput{{ItemType: itemIron, Quantity: 1}}, 10, nil)
	assert.Equal(t, StateStalled, state.Kind)
	assert.Equal(t, StallMissingInputs, state.StallReason)
	assert.Empty(t, r.Consumed)
}

func TestFixedRecipeOutputFullStalls(t *testing.T) {
	cfg := &FixedRecipeConfig{
		Inputs:   []RecipeInput{{ItemType: itemIron, Quantity: 1, Consumed: true}},
		Outputs:  []RecipeOutput{{ItemType: itemGear, Quantity: 5}},
		Duration: 1,
	}
	state := NewState()
	r := tickFixed(cfg, &state, ResolveModifiers(nil), []AvailableInput{{ItemType: itemIron, Quantity: 10}}, 2, nil)
	assert.Equal(t, StateStalled, state.Kind)
	assert.Equal(t, StallOutputFull, state.StallReason)
	assert.Empty(t, r.Consumed)
}

func TestFixedRecipeCatalystInputNotConsumed(t *testing.T) {
	cfg := &FixedRecipeConfig{
		Inputs: []RecipeInput{
			{ItemType: itemIron, Quantity: 1, Consumed: true},
			{ItemType: itemOre, Quantity: 1, Consumed: false},
		},
		Outputs:  []RecipeOutput{{ItemType: itemGear, Quantity: 1}},
		Duration: 1,
	}
	state := NewState()
	available := []AvailableInput{{ItemType: itemIron, Quantity: 10}, {ItemType: itemOre, Quantity: 1}}
	r := tickFixed(cfg, &state, ResolveModifiers(nil), available, 10, nil)
	require.Len(t, r.Consumed, 1)
	assert.Equal(t, itemIron, r.Consumed[0].ItemType)
}

func TestFixedRecipeCatalystMissingStillStalls(t *testing.T) {
	cfg := &FixedRecipeConfig{
		Inputs: []RecipeInput{
			{ItemType: itemIron, Quantity: 1, Consumed: true},
			{ItemType: itemOre, Quantity: 1, Consumed: false},
		},
		Outputs:  []RecipeOutput{{ItemType: itemGear, Quantity: 1}},
		Duration: 1,
	}
	state := NewState()
	available := []AvailableInput{{ItemType: itemIron, Quantity: 10}}
	r := tickFixed(cfg, &state, ResolveModifiers(nil), available, 10, nil)
	assert.Equal(t, StateStalled, state.Kind)
	assert.Equal(t, StallMissingInputs, state.StallReason)
	assert.Empty(t, r.Consumed)
}

func TestFixedRecipeBonusOutputRolled(t *testing.T) {
	cfg := &FixedRecipeConfig{
		Inputs:   []RecipeInput{{ItemType: itemIron, Quantity: 1, Consumed: true}},
		Outputs:  []RecipeOutput{{ItemType: itemGear, Quantity: 1, Bonus: &BonusOutput{Chance: fixedpoint.One, Quantity: 1}}},
		Duration: 1,
	}
	state := NewState()
	rng := prng.New(1)
	r := tickFixed(cfg, &state, ResolveModifiers(nil), []AvailableInput{{ItemType: itemIron, Quantity: 10}}, 10, rng)
	require.Len(t, r.Produced, 2)
	assert.Equal(t, itemGear, r.Produced[1].ItemType)
}

func TestFixedRecipeBonusOutputNilRngPanics(t *testing.T) {
	cfg := &FixedRecipeConfig{
		Inputs:   []RecipeInput{{ItemType: itemIron, Quantity: 1, Consumed: true}},
		Outputs:  []RecipeOutput{{ItemType: itemGear, Quantity: 1, Bonus: &BonusOutput{Chance: fixedpoint.One, Quantity: 1}}},
		Duration: 1,
	}
	state := NewState()
	assert.Panics(t, func() {
		tickFixed(cfg, &state, ResolveModifiers(nil), []AvailableInput{{ItemType: itemIron, Quantity: 10}}, 10, nil)
	})
}

// ---------------------------------------------------------------------------
// Property
// ---------------------------------------------------------------------------

func TestPropertyAttachesTransform(t *testing.T) {
	cfg := &PropertyConfig{
		InputType:  itemOre,
		OutputType: itemIron,
		Transform:  PropertyTransform{Kind: TransformMultiply, Property: 1, Value: fx(2)},
	}
	state := NewState()
	r := tickProperty(cfg, &state, []AvailableInput{{ItemType: itemOre, Quantity: 5}}, 3)
	require.NotNil(t, r.PropertyTransform)
	assert.Equal(t, TransformMultiply, r.PropertyTransform.Kind)
	require.Len(t, r.Consumed, 1)
	require.Len(t, r.Produced, 1)
	assert.Equal(t, uint32(3), r.Consumed[0].Quantity)
	assert.Equal(t, uint32(3), r.Produced[0].Quantity)
}

func TestPropertyMissingInputStalls(t *testing.T) {
	cfg := &PropertyConfig{InputType: itemOre, OutputType: itemIron}
	state := NewState()
	r := tickProperty(cfg, &state, nil, 5)
	assert.Equal(t, StateStalled, state.Kind)
	assert.Equal(t, StallMissingInputs, state.StallReason)
	assert.Empty(t, r.Consumed)
}

func TestPropertyOutputFullStalls(t *testing.T) {
	cfg := &PropertyConfig{InputType: itemOre, OutputType: itemIron}
	state := NewState()
	r := tickProperty(cfg, &state, []AvailableInput{{ItemType: itemOre, Quantity: 5}}, 0)
	assert.Equal(t, StateStalled, state.Kind)
	assert.Equal(t, StallOutputFull, state.StallReason)
	assert.Empty(t, r.Produced)
}

// ---------------------------------------------------------------------------
// Demand
// ---------------------------------------------------------------------------

func TestDemandSingleTypeConsumption(t *testing.T) {
	cfg := &DemandConfig{InputType: itemIron, BaseRate: fx(2)}
	state := NewState()
	r := tickDemand(cfg, &state, ResolveModifiers(nil), []AvailableInput{{ItemType: itemIron, Quantity: 10}})
	require.Len(t, r.Consumed, 1)
	assert.Equal(t, uint32(2), r.Consumed[0].Quantity)
	assert.Equal(t, uint64(2), state.ConsumedTotal)
	assert.Equal(t, StateWorking, state.Kind)
}

func TestDemandMultiTypeConsumesInListOrder(t *testing.T) {
	cfg := &DemandConfig{BaseRate: fx(5), AcceptedTypes: []ids.ItemTypeId{itemIron, itemOre}}
	state := NewState()
	available := []AvailableInput{{ItemType: itemIron, Quantity: 3}, {ItemType: itemOre, Quantity: 10}}
	r := tickDemand(cfg, &state, ResolveModifiers(nil), available)
	require.Len(t, r.Consumed, 2)
	assert.Equal(t, itemIron, r.Consumed[0].ItemType)
	assert.Equal(t, uint32(3), r.Consumed[0].Quantity)
	assert.Equal(t, itemOre, r.Consumed[1].ItemType)
	assert.Equal(t, uint32(2), r.Consumed[1].Quantity)
}

func TestDemandWorkingOnPositiveRateEvenWithNothingAvailable(t *testing.T) {
	cfg := &DemandConfig{InputType: itemIron, BaseRate: fx(1)}
	state := NewState()
	r := tickDemand(cfg, &state, ResolveModifiers(nil), nil)
	assert.Empty(t, r.Consumed)
	assert.Equal(t, StateWorking, state.Kind) // rate > 0 still counts as working per accumulation
}

// ---------------------------------------------------------------------------
// Passthrough
// ---------------------------------------------------------------------------

func TestPassthroughMovesStraightThrough(t *testing.T) {
	state := NewState()
	available := []AvailableInput{{ItemType: itemIron, Quantity: 4}}
	r := tickPassthrough(&state, available, 3)
	require.Len(t, r.Consumed, 1)
	require.Len(t, r.Produced, 1)
	assert.Equal(t, uint32(3), r.Consumed[0].Quantity)
	assert.Equal(t, uint32(3), r.Produced[0].Quantity)
	assert.Equal(t, StateWorking, state.Kind)
}

func TestPassthroughOutputFullStalls(t *testing.T) {
	state := NewState()
	r := tickPassthrough(&state, []AvailableInput{{ItemType: itemIron, Quantity: 4}}, 0)
	assert.Equal(t, StateStalled, state.Kind)
	assert.Equal(t, StallOutputFull, state.StallReason)
	assert.Empty(t, r.Produced)
}

// ---------------------------------------------------------------------------
// MultiRecipe
// ---------------------------------------------------------------------------

func multiRecipeConfig(policy RecipeSwitchPolicy) *MultiRecipeConfig {
	return &MultiRecipeConfig{
		SwitchPolicy: policy,
		Recipes: []FixedRecipeConfig{
			{
				Inputs:   []RecipeInput{{ItemType: itemIron, Quantity: 1, Consumed: true}},
				Outputs:  []RecipeOutput{{ItemType: itemGear, Quantity: 1}},
				Duration: 4,
			},
			{
				Inputs:   []RecipeInput{{ItemType: itemOre, Quantity: 1, Consumed: true}},
				Outputs:  []RecipeOutput{{ItemType: itemIron, Quantity: 1}},
				Duration: 4,
			},
		},
	}
}

func TestMultiRecipeCompleteFirstDefersSwitch(t *testing.T) {
	cfg := multiRecipeConfig(CompleteFirst)
	state := NewState()
	available := []AvailableInput{{ItemType: itemIron, Quantity: 10}, {ItemType: itemOre, Quantity: 10}}

	tickMultiRecipe(cfg, &state, ResolveModifiers(nil), available, 10, nil) // starts recipe 0, Working
	require.Equal(t, StateWorking, state.Kind)
	require.Equal(t, 0, state.ActiveRecipe)

	RequestSwitch(cfg, &state, 1)
	assert.Equal(t, 1, state.PendingSwitch)
	assert.Equal(t, 0, state.ActiveRecipe) // not switched yet, still working

	// 3 ticks finish the in-progress cycle (duration 4, progress already at
	// 1 after the first tick); a 4th tick then applies the deferred switch.
	for i := 0; i < 4; i++ {
		tickMultiRecipe(cfg, &state, ResolveModifiers(nil), available, 10, nil)
	}
	assert.Equal(t, 1, state.ActiveRecipe)
	assert.Equal(t, -1, state.PendingSwitch)
}

func TestMultiRecipeCancelImmediateDropsProgress(t *testing.T) {
	cfg := multiRecipeConfig(CancelImmediate)
	state := NewState()
	available := []AvailableInput{{ItemType: itemIron, Quantity: 10}, {ItemType: itemOre, Quantity: 10}}

	tickMultiRecipe(cfg, &state, ResolveModifiers(nil), available, 10, nil)
	require.Equal(t, StateWorking, state.Kind)

	RequestSwitch(cfg, &state, 1)
	result := tickMultiRecipe(cfg, &state, ResolveModifiers(nil), available, 10, nil)

	// the switch interrupts immediately, dropping the in-progress cycle with
	// no refund; the now-active recipe 1 then starts its own cycle this same tick.
	assert.Equal(t, 1, state.ActiveRecipe)
	assert.Empty(t, result.Refunded)
	assert.Equal(t, uint32(1), state.Progress)
	assert.Equal(t, StateWorking, state.Kind)
}

func TestMultiRecipeRefundInputsReturnsConsumed(t *testing.T) {
	cfg := multiRecipeConfig(RefundInputs)
	state := NewState()
	available := []AvailableInput{{ItemType: itemIron, Quantity: 10}, {ItemType: itemOre, Quantity: 10}}

	tickMultiRecipe(cfg, &state, ResolveModifiers(nil), available, 10, nil)
	require.Equal(t, StateWorking, state.Kind)
	require.NotEmpty(t, state.InProgressInputs)

	RequestSwitch(cfg, &state, 1)
	result := tickMultiRecipe(cfg, &state, ResolveModifiers(nil), available, 10, nil)

	assert.Equal(t, 1, state.ActiveRecipe)
	require.Len(t, result.Refunded, 1)
	assert.Equal(t, itemIron, result.Refunded[0].ItemType)
	assert.Equal(t, uint32(1), result.Refunded[0].Quantity)
}

func TestMultiRecipeSwitchWhenIdleIsImmediate(t *testing.T) {
	cfg := multiRecipeConfig(RefundInputs)
	state := NewState()
	RequestSwitch(cfg, &state, 1)
	assert.Equal(t, 1, state.ActiveRecipe)
	assert.Equal(t, StateIdle, state.Kind)
}

func TestMultiRecipeSwitchToInvalidIndexIgnored(t *testing.T) {
	cfg := multiRecipeConfig(RefundInputs)
	state := NewState()
	RequestSwitch(cfg, &state, 99)
	assert.Equal(t, 0, state.ActiveRecipe)
}
