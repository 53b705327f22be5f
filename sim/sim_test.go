package sim

import (
	"testing"

	"github.com/joeycumines/factorial/fixedpoint"
	"github.com/stretchr/testify/assert"
)

func TestStateHashDeterministic(t *testing.T) {
	build := func() uint64 {
		h := NewStateHash()
		h.WriteUint64(42)
		h.WriteFixed64(fixedpoint.FromInt(7))
		h.Write([]byte("node-payload"))
		h.WriteBool(true)
		return h.Finish()
	}
	a, b := build(), build()
	assert.Equal(t, a, b)
}

func TestStateHashSensitiveToInput(t *testing.T) {
	h1 := NewStateHash()
	h1.WriteUint64(1)
	d1 := h1.Finish()

	h2 := NewStateHash()
	h2.WriteUint64(2)
	d2 := h2.Finish()

	assert.NotEqual(t, d1, d2)
}

func TestStateHashOrderSensitive(t *testing.T) {
	h1 := NewStateHash()
	h1.WriteUint32(1)
	h1.WriteUint32(2)

	h2 := NewStateHash()
	h2.WriteUint32(2)
	h2.WriteUint32(1)

	assert.NotEqual(t, h1.Finish(), h2.Finish())
}

func TestDeltaStrategyCarriesFixedTimestep(t *testing.T) {
	s := DeltaStrategy(fixedpoint.Ticks(16))
	assert.Equal(t, StrategyDelta, s.Kind)
	assert.Equal(t, fixedpoint.Ticks(16), s.FixedTimestep)
}

func TestTickStrategy(t *testing.T) {
	s := TickStrategy()
	assert.Equal(t, StrategyTick, s.Kind)
}
