package inventory

import (
	"testing"

	"github.com/joeycumines/factorial/ids"
	"github.com/stretchr/testify/assert"
)

func TestSlotAddOverflow(t *testing.T) {
	s := NewSlot(10)
	overflow := s.Add(1, 7, nil)
	assert.Zero(t, overflow)
	overflow = s.Add(1, 5, nil)
	assert.Equal(t, uint32(2), overflow)
	assert.Equal(t, uint32(10), s.Total())
}

func TestSlotAddMergesMatchingProperties(t *testing.T) {
	s := NewSlot(100)
	s.Add(1, 5, Properties{1: 2})
	s.Add(1, 5, Properties{1: 2})
	assert.Len(t, s.Stacks(), 1)
	assert.Equal(t, uint32(10), s.Stacks()[0].Quantity)
}

func TestSlotAddKeepsMismatchedPropertiesSeparate(t *testing.T) {
	s := NewSlot(100)
	s.Add(1, 5, Properties{1: 2})
	s.Add(1, 5, Properties{1: 3})
	assert.Len(t, s.Stacks(), 2)
}

func TestSlotRemovePrunesZeroStacks(t *testing.T) {
	s := NewSlot(100)
	s.Add(1, 5, nil)
	s.Add(2, 5, nil)
	removed := s.Remove(1, 5)
	assert.Equal(t, uint32(5), removed)
	assert.Len(t, s.Stacks(), 1)
	assert.Equal(t, ids.ItemTypeId(2), s.Stacks()[0].ItemType)
}

func TestSlotRemovePartial(t *testing.T) {
	s := NewSlot(100)
	s.Add(1, 5, nil)
	removed := s.Remove(1, 10)
	assert.Equal(t, uint32(5), removed)
}

func TestInventoryDistributesAcrossSlots(t *testing.T) {
	inv := New(nil, []uint32{5, 5})
	overflow := inv.AddOutput(1, 8, nil)
	assert.Zero(t, overflow)
	assert.Equal(t, uint32(5), inv.Output[0].Total())
	assert.Equal(t, uint32(3), inv.Output[1].Total())
}

func TestInventoryOverflowWhenFull(t *testing.T) {
	inv := New(nil, []uint32{5})
	overflow := inv.AddOutput(1, 8, nil)
	assert.Equal(t, uint32(3), overflow)
}

func TestInventoryFirstNonEmptyOutputType(t *testing.T) {
	inv := New(nil, []uint32{5, 5})
	_, ok := inv.FirstNonEmptyOutputType()
	assert.False(t, ok)
	inv.Output[1].Add(9, 1, nil)
	typ, ok := inv.FirstNonEmptyOutputType()
	assert.True(t, ok)
	assert.Equal(t, ids.ItemTypeId(9), typ)
}

func TestInvariantCapacityNeverExceeded(t *testing.T) {
	s := NewSlot(3)
	for i := 0; i < 10; i++ {
		s.Add(1, 1, nil)
	}
	assert.LessOrEqual(t, s.Total(), s.Capacity)
}
