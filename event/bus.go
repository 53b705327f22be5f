package event

import (
	"sort"

	"github.com/joeycumines/factorial/internal/ringbuf"
)

// kindState holds one event kind's ring buffer plus its lifetime counters.
// The buffer itself is lazily allocated on first emit, mirroring the
// suppression contract: a suppressed or never-emitted kind costs nothing.
type kindState struct {
	buf          *ringbuf.Buffer[Event]
	totalWritten uint64
	dropped      uint64
}

// Bus is the central event bus: one ring buffer per kind, suppression
// flags, subscriber lists, and the reactive-mutation queue.
type Bus struct {
	kinds              [kindCount]kindState
	suppressed         [kindCount]bool
	subscribers        [kindCount][]subscriberEntry
	pendingMutations   []Mutation
	defaultCapacity    int
	nextInsertionOrder uint64
}

// New constructs a Bus. defaultCapacity is the ring buffer size allocated
// for each kind on first emit; capacities below 1 are clamped to 1.
func New(defaultCapacity int) *Bus {
	if defaultCapacity < 1 {
		defaultCapacity = 1
	}
	return &Bus{defaultCapacity: defaultCapacity}
}

// Suppress marks kind as suppressed: subsequent Emit calls for it are
// no-ops and its buffer (if any) is dropped immediately.
func (b *Bus) Suppress(kind Kind) {
	b.suppressed[kind] = true
	b.kinds[kind].buf = nil
}

// Unsuppress clears a prior Suppress.
func (b *Bus) Unsuppress(kind Kind) {
	b.suppressed[kind] = false
}

// IsSuppressed reports whether kind is currently suppressed.
func (b *Bus) IsSuppressed(kind Kind) bool {
	return b.suppressed[kind]
}

// Emit records ev in its kind's ring buffer. A no-op if the kind is
// suppressed. The buffer is lazily allocated on first use.
func (b *Bus) Emit(ev Event) {
	if b.suppressed[ev.Kind] {
		return
	}
	k := &b.kinds[ev.Kind]
	if k.buf == nil {
		k.buf = ringbuf.New[Event](b.defaultCapacity)
	}
	if k.buf.Push(ev) {
		k.dropped++
	}
	k.totalWritten++
}

// OnPassive registers a passive listener at Normal priority with no filter.
func (b *Bus) OnPassive(kind Kind, listener PassiveListener) {
	b.OnPassiveFiltered(kind, Normal, nil, listener)
}

// OnReactive registers a reactive handler at Normal priority with no filter.
func (b *Bus) OnReactive(kind Kind, handler ReactiveHandler) {
	b.OnReactiveFiltered(kind, Normal, nil, handler)
}

// OnPassiveFiltered registers a passive listener with explicit priority and
// an optional filter.
func (b *Bus) OnPassiveFiltered(kind Kind, priority Priority, filter Filter, listener PassiveListener) {
	b.subscribers[kind] = append(b.subscribers[kind], subscriberEntry{
		passive:        listener,
		priority:       priority,
		filter:         filter,
		insertionOrder: b.nextOrder(),
	})
}

// OnReactiveFiltered registers a reactive handler with explicit priority and
// an optional filter.
func (b *Bus) OnReactiveFiltered(kind Kind, priority Priority, filter Filter, handler ReactiveHandler) {
	b.subscribers[kind] = append(b.subscribers[kind], subscriberEntry{
		reactive:       handler,
		priority:       priority,
		filter:         filter,
		insertionOrder: b.nextOrder(),
	})
}

func (b *Bus) nextOrder() uint64 {
	order := b.nextInsertionOrder
	b.nextInsertionOrder++
	return order
}

// Deliver dispatches all buffered events to subscribers (phase 5,
// post-tick). For each kind with buffered events: subscribers are
// stable-sorted by (priority, insertion_order), then each subscriber sees
// every buffered event in FIFO order (subject to its filter). Reactive
// mutations accumulate in the pending-mutation queue. Buffers are cleared
// after delivery.
func (b *Bus) Deliver() {
	for i := range b.kinds {
		if b.suppressed[i] {
			continue
		}
		k := &b.kinds[i]
		if k.buf == nil || k.buf.Len() == 0 {
			continue
		}

		events := k.buf.Slice()

		subs := b.subscribers[i]
		sort.SliceStable(subs, func(a, c int) bool {
			if subs[a].priority != subs[c].priority {
				return subs[a].priority < subs[c].priority
			}
			return subs[a].insertionOrder < subs[c].insertionOrder
		})

		for si := range subs {
			entry := &subs[si]
			for ei := range events {
				ev := &events[ei]
				if entry.filter != nil && !entry.filter(ev) {
					continue
				}
				switch {
				case entry.passive != nil:
					entry.passive(ev)
				case entry.reactive != nil:
					b.pendingMutations = append(b.pendingMutations, entry.reactive(ev)...)
				}
			}
		}

		k.buf.Clear()
	}
}

// DrainMutations returns and clears all mutations accumulated from reactive
// handlers since the last drain.
func (b *Bus) DrainMutations() []Mutation {
	m := b.pendingMutations
	b.pendingMutations = nil
	return m
}

// BufferedCount returns how many events are currently buffered for kind.
func (b *Bus) BufferedCount(kind Kind) int {
	if b.kinds[kind].buf == nil {
		return 0
	}
	return b.kinds[kind].buf.Len()
}

// TotalEmitted returns the lifetime count of events emitted for kind
// (including ones subsequently overwritten by ring-buffer overflow).
func (b *Bus) TotalEmitted(kind Kind) uint64 {
	return b.kinds[kind].totalWritten
}

// DroppedCount returns how many of kind's emitted events were overwritten
// before delivery, because the ring buffer was at capacity.
func (b *Bus) DroppedCount(kind Kind) uint64 {
	return b.kinds[kind].dropped
}

// ClearAll empties every kind's buffer without touching subscribers or
// suppression state.
func (b *Bus) ClearAll() {
	for i := range b.kinds {
		if b.kinds[i].buf != nil {
			b.kinds[i].buf.Clear()
		}
	}
	b.pendingMutations = nil
}

// PendingMutationCount reports how many mutations are queued.
func (b *Bus) PendingMutationCount() int {
	return len(b.pendingMutations)
}
