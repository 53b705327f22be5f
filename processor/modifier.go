package processor

import (
	"sort"

	"github.com/joeycumines/factorial/fixedpoint"
	"github.com/joeycumines/factorial/ids"
)

// ModifierTarget identifies what a Modifier adjusts.
type ModifierTarget int

const (
	// Speed multiplies effective speed (reduces duration).
	Speed ModifierTarget = iota
	// Productivity is a bonus-output multiplier.
	Productivity
	// Efficiency reduces input consumption.
	Efficiency
)

// StackingRule governs how multiple modifiers of the same target combine.
type StackingRule int

const (
	// Multiplicative multiplies each modifier's value into the running total.
	Multiplicative StackingRule = iota
	// Additive sums each modifier's (value-1) delta, applied as one multiplier.
	Additive
	// Diminishing multiplies the running target by one plus half of each
	// modifier's delta, compounding prior modifiers' effect into each new one.
	Diminishing
	// Capped keeps only the strongest modifier's value.
	Capped
)

// Modifier is a single applied adjustment to a processor's behavior.
type Modifier struct {
	ID       ids.ModifierId
	Target   ModifierTarget
	Value    fixedpoint.Fixed64
	Stacking StackingRule
}

// ResolvedModifiers holds the folded multipliers for a single tick.
type ResolvedModifiers struct {
	Speed        fixedpoint.Fixed64
	Productivity fixedpoint.Fixed64
	Efficiency   fixedpoint.Fixed64
}

// ResolveModifiers sorts modifiers by ModifierId (canonical order), then
// folds each target's modifiers using their stacking rules, in that order.
func ResolveModifiers(modifiers []Modifier) ResolvedModifiers {
	sorted := make([]Modifier, len(modifiers))
	copy(sorted, modifiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID.Less(sorted[j].ID) })

	result := ResolvedModifiers{
		Speed:        fixedpoint.One,
		Productivity: fixedpoint.One,
		Efficiency:   fixedpoint.One,
	}

	two := fixedpoint.FromInt(2)

	for _, m := range sorted {
		target := result.targetPtr(m.Target)
		switch m.Stacking {
		case Multiplicative:
			*target = (*target).Mul(m.Value)
		case Additive:
			*target = (*target).Add(m.Value.Sub(fixedpoint.One))
		case Diminishing:
			// Each modifier's delta is halved before compounding into the
			// running target, so later modifiers on the same target fold
			// in the effect of everything already applied.
			delta := m.Value.Sub(fixedpoint.One)
			*target = (*target).Mul(fixedpoint.One.Add(delta.Div(two)))
		case Capped:
			if m.Value > *target {
				*target = m.Value
			}
		}
	}

	return result
}

func (r *ResolvedModifiers) targetPtr(target ModifierTarget) *fixedpoint.Fixed64 {
	switch target {
	case Speed:
		return &r.Speed
	case Productivity:
		return &r.Productivity
	case Efficiency:
		return &r.Efficiency
	default:
		panic("processor: unknown modifier target")
	}
}
