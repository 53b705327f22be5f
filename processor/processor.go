package processor

import (
	"github.com/joeycumines/factorial/fixedpoint"
	"github.com/joeycumines/factorial/ids"
	"github.com/joeycumines/factorial/prng"
)

// AvailableInput is one (item type, quantity-on-hand) pair, as aggregated
// from a node's input inventory before a tick call.
type AvailableInput struct {
	ItemType ids.ItemTypeId
	Quantity uint32
}

func quantityOf(available []AvailableInput, itemType ids.ItemTypeId) uint32 {
	for _, a := range available {
		if a.ItemType == itemType {
			return a.Quantity
		}
	}
	return 0
}

func ceilDiv(numerator, divisor uint32) uint32 {
	if divisor == 0 {
		return numerator
	}
	return (numerator + divisor - 1) / divisor
}

// Tick advances the processor by one tick. rng may be nil only when no
// recipe output in this processor carries a Bonus (bonus rolls panic on a
// nil rng, since a rolled bonus would otherwise be a silent desync source).
func (p *Processor) Tick(state *State, modifiers []Modifier, available []AvailableInput, outputSpace uint32, rng *prng.Stream) Result {
	resolved := ResolveModifiers(modifiers)
	switch p.Kind {
	case KindSource:
		return tickSource(p.Source, state, resolved, outputSpace, rng)
	case KindFixedRecipe:
		return tickFixed(p.Fixed, state, resolved, available, outputSpace, rng)
	case KindProperty:
		return tickProperty(p.Property, state, available, outputSpace)
	case KindDemand:
		return tickDemand(p.Demand, state, resolved, available)
	case KindPassthrough:
		return tickPassthrough(state, available, outputSpace)
	case KindMultiRecipe:
		return tickMultiRecipe(p.MultiRecipe, state, resolved, available, outputSpace, rng)
	default:
		panic("processor: unknown kind")
	}
}

func setState(state *State, kind StateKind) bool {
	changed := state.Kind != kind
	state.Kind = kind
	return changed
}

func setStalled(state *State, reason StallReason) bool {
	changed := state.Kind != StateStalled || state.StallReason != reason
	state.Kind = StateStalled
	state.StallReason = reason
	return changed
}

// ---------------------------------------------------------------------------
// Source
// ---------------------------------------------------------------------------

func tickSource(cfg *SourceConfig, state *State, mods ResolvedModifiers, outputSpace uint32, rng *prng.Stream) Result {
	var result Result

	if cfg.Depletion.Kind == DepletionFinite && state.Remaining <= 0 {
		result.StateChanged = setStalled(state, StallDepleted)
		return result
	}

	if outputSpace == 0 {
		result.StateChanged = setStalled(state, StallOutputFull)
		return result
	}

	effectiveRate := cfg.BaseRate.Mul(mods.Speed).Mul(mods.Productivity)
	state.Accumulator = state.Accumulator.Add(effectiveRate)

	wholeItems := state.Accumulator.Floor()
	if wholeItems < 0 {
		wholeItems = 0
	}
	emit := uint32(wholeItems)
	if emit > outputSpace {
		emit = outputSpace
	}
	if cfg.Depletion.Kind == DepletionFinite && uint64(emit) > uint64(state.Remaining) {
		emit = uint32(state.Remaining)
	}

	if emit > 0 {
		state.Accumulator = state.Accumulator.Sub(fixedpoint.FromInt(int64(emit)))
		if cfg.Depletion.Kind == DepletionFinite {
			state.Remaining -= int64(emit)
		}
		result.Produced = []ProducedOutput{{ItemType: cfg.OutputType, Quantity: emit}}
		if len(cfg.InitialProperties) > 0 {
			result.InitialProperties = cfg.InitialProperties
		}
	}

	var newKind StateKind
	if emit > 0 || effectiveRate > fixedpoint.Zero {
		newKind = StateWorking
	} else {
		newKind = StateIdle
	}
	result.StateChanged = setState(state, newKind)
	return result
}

// ---------------------------------------------------------------------------
// Fixed recipe
// ---------------------------------------------------------------------------

func effectiveDuration(base uint32, speed fixedpoint.Fixed64) uint32 {
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

func effectiveQuantity(base uint32, efficiency fixedpoint.Fixed64) uint32 {
	q := fixedpoint.FromInt(int64(base)).Mul(efficiency)
	whole := q.Floor()
	if q.Frac() > fixedpoint.Zero {
		whole++
	}
	if whole < 1 {
		whole = 1
	}
	return uint32(whole)
}

func totalOutputDemand(outputs []RecipeOutput, productivity fixedpoint.Fixed64) uint32 {
	var total uint32
	for _, o := range outputs {
		total += productionQuantity(o.Quantity, productivity)
	}
	return total
}

func productionQuantity(base uint32, productivity fixedpoint.Fixed64) uint32 {
	q := fixedpoint.FromInt(int64(base)).Mul(productivity).Floor()
	if q < 1 {
		q = 1
	}
	return uint32(q)
}

func tickFixed(cfg *FixedRecipeConfig, state *State, mods ResolvedModifiers, available []AvailableInput, outputSpace uint32, rng *prng.Stream) Result {
	var result Result

	duration := effectiveDuration(cfg.Duration, mods.Speed)

	if state.Kind == StateWorking {
		state.Progress++
		if state.Progress >= duration {
			produceFixedOutputs(cfg, mods, &result, rng)
			result.StateChanged = setState(state, StateIdle)
			state.Progress = 0
		}
		return result
	}

	// Idle or Stalled: attempt to (re)start.
	demand := totalOutputDemand(cfg.Outputs, mods.Productivity)
	if demand > outputSpace {
		result.StateChanged = setStalled(state, StallOutputFull)
		return result
	}

	for _, in := range cfg.Inputs {
		needed := in.Quantity
		if in.Consumed {
			needed = effectiveQuantity(in.Quantity, mods.Efficiency)
		}
		if quantityOf(available, in.ItemType) < needed {
			result.StateChanged = setStalled(state, StallMissingInputs)
			return result
		}
	}

	for _, in := range cfg.Inputs {
		if !in.Consumed {
			continue
		}
		needed := effectiveQuantity(in.Quantity, mods.Efficiency)
		result.Consumed = append(result.Consumed, ConsumedInput{ItemType: in.ItemType, Quantity: needed})
	}

	if duration <= 1 {
		produceFixedOutputs(cfg, mods, &result, rng)
		result.StateChanged = setState(state, StateIdle)
		state.Progress = 0
		return result
	}

	state.Progress = 1
	result.StateChanged = setState(state, StateWorking)
	return result
}

func produceFixedOutputs(cfg *FixedRecipeConfig, mods ResolvedModifiers, result *Result, rng *prng.Stream) {
	for _, o := range cfg.Outputs {
		qty := productionQuantity(o.Quantity, mods.Productivity)
		result.Produced = append(result.Produced, ProducedOutput{ItemType: o.ItemType, Quantity: qty})
		if o.Bonus != nil {
			if rng == nil {
				panic("processor: bonus output rolled with nil rng")
			}
			if rng.Chance(o.Bonus.Chance) {
				bonusType := o.ItemType
				if o.Bonus.HasBonusType {
					bonusType = o.Bonus.BonusItemType
				}
				result.Produced = append(result.Produced, ProducedOutput{ItemType: bonusType, Quantity: o.Bonus.Quantity})
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Property
// ---------------------------------------------------------------------------

func tickProperty(cfg *PropertyConfig, state *State, available []AvailableInput, outputSpace uint32) Result {
	var result Result

	have := quantityOf(available, cfg.InputType)
	if outputSpace == 0 {
		result.StateChanged = setStalled(state, StallOutputFull)
		return result
	}
	if have == 0 {
		result.StateChanged = setStalled(state, StallMissingInputs)
		return result
	}

	qty := have
	if qty > outputSpace {
		qty = outputSpace
	}

	result.Consumed = []ConsumedInput{{ItemType: cfg.InputType, Quantity: qty}}
	result.Produced = []ProducedOutput{{ItemType: cfg.OutputType, Quantity: qty}}
	t := cfg.Transform
	result.PropertyTransform = &t
	result.StateChanged = setState(state, StateWorking)
	return result
}

// ---------------------------------------------------------------------------
// Demand
// ---------------------------------------------------------------------------

func tickDemand(cfg *DemandConfig, state *State, mods ResolvedModifiers, available []AvailableInput) Result {
	var result Result

	effectiveRate := cfg.BaseRate.Mul(mods.Speed)
	state.Accumulator = state.Accumulator.Add(effectiveRate)
	target := state.Accumulator.Floor()
	if target < 0 {
		target = 0
	}
	remaining := uint32(target)

	types := cfg.AcceptedTypes
	if len(types) == 0 {
		types = []ids.ItemTypeId{cfg.InputType}
	}

	var consumedTotal uint32
	for _, t := range types {
		if remaining == 0 {
			break
		}
		have := quantityOf(available, t)
		take := have
		if take > remaining {
			take = remaining
		}
		if take > 0 {
			result.Consumed = append(result.Consumed, ConsumedInput{ItemType: t, Quantity: take})
			remaining -= take
			consumedTotal += take
		}
	}

	if consumedTotal > 0 {
		state.Accumulator = state.Accumulator.Sub(fixedpoint.FromInt(int64(consumedTotal)))
		state.ConsumedTotal += uint64(consumedTotal)
	}

	var newKind StateKind
	if consumedTotal > 0 || effectiveRate > fixedpoint.Zero {
		newKind = StateWorking
	} else {
		newKind = StateIdle
	}
	result.StateChanged = setState(state, newKind)
	return result
}

// ---------------------------------------------------------------------------
// Passthrough
// ---------------------------------------------------------------------------

func tickPassthrough(state *State, available []AvailableInput, outputSpace uint32) Result {
	var result Result

	if outputSpace == 0 {
		result.StateChanged = setStalled(state, StallOutputFull)
		return result
	}

	remaining := outputSpace
	for _, a := range available {
		if remaining == 0 {
			break
		}
		take := a.Quantity
		if take > remaining {
			take = remaining
		}
		if take == 0 {
			continue
		}
		result.Consumed = append(result.Consumed, ConsumedInput{ItemType: a.ItemType, Quantity: take})
		result.Produced = append(result.Produced, ProducedOutput{ItemType: a.ItemType, Quantity: take})
		remaining -= take
	}

	var newKind StateKind
	if len(result.Produced) > 0 {
		newKind = StateWorking
	} else {
		newKind = StateIdle
	}
	result.StateChanged = setState(state, newKind)
	return result
}

// ---------------------------------------------------------------------------
// MultiRecipe
// ---------------------------------------------------------------------------

func tickMultiRecipe(cfg *MultiRecipeConfig, state *State, mods ResolvedModifiers, available []AvailableInput, outputSpace uint32, rng *prng.Stream) Result {
	if state.ActiveRecipe < 0 || state.ActiveRecipe >= len(cfg.Recipes) {
		state.ActiveRecipe = 0
	}

	// A pending switch applies before this tick's work starts, unless the
	// policy is CompleteFirst and a cycle is still in progress: that policy
	// waits until the active recipe next goes non-Working on its own.
	var refunded []ConsumedInput
	if state.PendingSwitch >= 0 && (state.Kind != StateWorking || cfg.SwitchPolicy != CompleteFirst) {
		refunded = applySwitch(cfg, state)
	}

	active := &cfg.Recipes[state.ActiveRecipe]
	prevKind := state.Kind
	result := tickFixed(active, state, mods, available, outputSpace, rng)

	switch {
	case prevKind != StateWorking && state.Kind == StateWorking:
		state.InProgressInputs = append([]ConsumedInput(nil), result.Consumed...)
	case state.Kind != StateWorking:
		state.InProgressInputs = nil
	}

	result.Refunded = refunded
	return result
}

// applySwitch applies a pending recipe switch, honoring cfg.SwitchPolicy.
// It returns any inputs that must be refunded to the input inventory (only
// non-empty under RefundInputs, when a cycle was genuinely in progress).
func applySwitch(cfg *MultiRecipeConfig, state *State) []ConsumedInput {
	target := state.PendingSwitch
	state.PendingSwitch = -1
	if target < 0 || target >= len(cfg.Recipes) || target == state.ActiveRecipe {
		return nil
	}

	var refunded []ConsumedInput
	if state.Kind == StateWorking {
		switch cfg.SwitchPolicy {
		case CompleteFirst:
			// defer again until this cycle completes
			state.PendingSwitch = target
			return nil
		case CancelImmediate:
			state.Progress = 0
			state.InProgressInputs = nil
		case RefundInputs:
			refunded = state.InProgressInputs
			state.Progress = 0
			state.InProgressInputs = nil
		}
	}

	state.ActiveRecipe = target
	state.Kind = StateIdle
	state.Progress = 0
	return refunded
}

// RequestSwitch queues a recipe switch on a MultiRecipe's runtime state,
// honoring cfg.SwitchPolicy. index must be a valid recipe index.
func RequestSwitch(cfg *MultiRecipeConfig, state *State, index int) {
	if index < 0 || index >= len(cfg.Recipes) {
		return
	}
	if state.Kind != StateWorking {
		applySwitchImmediate(cfg, state, index)
		return
	}
	state.PendingSwitch = index
}

func applySwitchImmediate(cfg *MultiRecipeConfig, state *State, index int) {
	state.ActiveRecipe = index
	state.Kind = StateIdle
	state.Progress = 0
	state.PendingSwitch = -1
}
