package prng

import (
	"testing"

	"github.com/joeycumines/factorial/fixedpoint"
	"github.com/stretchr/testify/assert"
)

func TestSameSeedSameSequence(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a := New(1)
	b := New(2)
	assert.NotEqual(t, a.Next(), b.Next())
}

func TestChanceZeroNeverTrue(t *testing.T) {
	s := New(7)
	for i := 0; i < 50; i++ {
		assert.False(t, s.Chance(fixedpoint.Zero))
	}
}

func TestChanceOneAlwaysTrue(t *testing.T) {
	s := New(7)
	for i := 0; i < 50; i++ {
		assert.True(t, s.Chance(fixedpoint.One))
	}
}

func TestChanceConsumesExactlyOneDrawPerCall(t *testing.T) {
	s1 := New(99)
	s2 := New(99)
	s1.Chance(fixedpoint.FromInt(1).Div(fixedpoint.FromInt(2)))
	next1 := s1.Next()
	s2.Next() // the draw consumed by Chance
	next2 := s2.Next()
	assert.Equal(t, next1, next2)
}
