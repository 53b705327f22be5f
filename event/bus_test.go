package event

import (
	"testing"

	"github.com/joeycumines/factorial/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitAndDeliverPassive(t *testing.T) {
	b := New(8)
	var seen []ids.NodeId
	b.OnPassive(KindNodeAdded, func(e *Event) { seen = append(seen, e.Node) })

	b.Emit(Event{Kind: KindNodeAdded, Node: ids.NewNodeId(1, 0)})
	b.Emit(Event{Kind: KindNodeAdded, Node: ids.NewNodeId(2, 0)})
	b.Deliver()

	require.Len(t, seen, 2)
	assert.Equal(t, ids.NewNodeId(1, 0), seen[0])
	assert.Equal(t, ids.NewNodeId(2, 0), seen[1])
	assert.Equal(t, 0, b.BufferedCount(KindNodeAdded))
}

func TestSuppressedEventsAreDropped(t *testing.T) {
	b := New(8)
	b.Suppress(KindNodeAdded)
	b.Emit(Event{Kind: KindNodeAdded})
	assert.Equal(t, 0, b.BufferedCount(KindNodeAdded))
	assert.Equal(t, uint64(0), b.TotalEmitted(KindNodeAdded))
}

func TestReactiveHandlerQueuesMutations(t *testing.T) {
	b := New(8)
	b.OnReactive(KindBuildingStalled, func(e *Event) []Mutation {
		return []Mutation{{Kind: MutationRemoveNode, Node: e.Node}}
	})
	b.Emit(Event{Kind: KindBuildingStalled, Node: ids.NewNodeId(5, 0)})
	b.Deliver()

	muts := b.DrainMutations()
	require.Len(t, muts, 1)
	assert.Equal(t, MutationRemoveNode, muts[0].Kind)
	assert.Equal(t, ids.NewNodeId(5, 0), muts[0].Node)
	assert.Equal(t, 0, b.PendingMutationCount())
}

func TestSubscribersDeliveredInPriorityThenInsertionOrder(t *testing.T) {
	b := New(8)
	var order []string
	b.OnPassiveFiltered(KindNodeAdded, Post, nil, func(e *Event) { order = append(order, "post") })
	b.OnPassiveFiltered(KindNodeAdded, Pre, nil, func(e *Event) { order = append(order, "pre") })
	b.OnPassiveFiltered(KindNodeAdded, Normal, nil, func(e *Event) { order = append(order, "normal-1") })
	b.OnPassiveFiltered(KindNodeAdded, Normal, nil, func(e *Event) { order = append(order, "normal-2") })

	b.Emit(Event{Kind: KindNodeAdded})
	b.Deliver()

	assert.Equal(t, []string{"pre", "normal-1", "normal-2", "post"}, order)
}

func TestFilterSkipsNonMatchingEvents(t *testing.T) {
	b := New(8)
	var seen []uint32
	filter := func(e *Event) bool { return e.Quantity > 1 }
	b.OnPassiveFiltered(KindItemProduced, Normal, filter, func(e *Event) { seen = append(seen, e.Quantity) })

	b.Emit(Event{Kind: KindItemProduced, Quantity: 1})
	b.Emit(Event{Kind: KindItemProduced, Quantity: 5})
	b.Deliver()

	assert.Equal(t, []uint32{5}, seen)
}

func TestRingBufferOverwritesOldestOnOverflow(t *testing.T) {
	b := New(2)
	var delivered []uint32
	b.OnPassive(KindItemProduced, func(e *Event) { delivered = append(delivered, e.Quantity) })

	for i := uint32(1); i <= 4; i++ {
		b.Emit(Event{Kind: KindItemProduced, Quantity: i})
	}
	b.Deliver()

	// capacity 2: only the two most recent survive (oldest two overwritten)
	assert.Equal(t, []uint32{3, 4}, delivered)
	assert.Equal(t, uint64(4), b.TotalEmitted(KindItemProduced))
	assert.Equal(t, uint64(2), b.DroppedCount(KindItemProduced))
}

func TestBufferClearedAfterDelivery(t *testing.T) {
	b := New(8)
	b.Emit(Event{Kind: KindEdgeAdded})
	assert.Equal(t, 1, b.BufferedCount(KindEdgeAdded))
	b.Deliver()
	assert.Equal(t, 0, b.BufferedCount(KindEdgeAdded))
}

func TestClearAllDoesNotRemoveSubscribersOrSuppression(t *testing.T) {
	b := New(8)
	var calls int
	b.OnPassive(KindNodeAdded, func(e *Event) { calls++ })
	b.Suppress(KindEdgeRemoved)

	b.Emit(Event{Kind: KindNodeAdded})
	b.ClearAll()
	assert.Equal(t, 0, b.BufferedCount(KindNodeAdded))

	b.Emit(Event{Kind: KindNodeAdded})
	b.Deliver()
	assert.Equal(t, 1, calls)
	assert.True(t, b.IsSuppressed(KindEdgeRemoved))
}
