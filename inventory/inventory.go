// Package inventory implements the slotted input/output containers used by
// each production node: an ordered list of slots, each with a hard capacity
// and an ordered sequence of item stacks.
package inventory

import (
	"github.com/joeycumines/factorial/fixedpoint"
	"github.com/joeycumines/factorial/ids"
)

// Properties is an opaque, comparable bag of stack properties (e.g. quality
// tier, durability). Two Properties values merge into the same stack only
// when they compare bit-exactly equal; the engine treats the concrete
// representation as owned by the host/registry layer, so Properties is
// defined as a comparable map snapshot rendered to a canonical string key.
type Properties map[ids.PropertyId]int64

// key renders Properties to a canonical, comparable string so stacks can be
// merged by bit-exact equality without relying on map iteration order.
func (p Properties) key() string {
	if len(p) == 0 {
		return ""
	}
	keys := make([]ids.PropertyId, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	// simple insertion sort: property sets are tiny (typically 0-4 entries)
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	buf := make([]byte, 0, 16*len(keys))
	for _, k := range keys {
		buf = appendUint(buf, uint64(k))
		buf = append(buf, ':')
		buf = appendInt(buf, p[k])
		buf = append(buf, ';')
	}
	return string(buf)
}

func appendUint(buf []byte, v uint64) []byte {
	var tmp [20]byte
	i := len(tmp)
	if v == 0 {
		return append(buf, '0')
	}
	for v > 0 {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	return append(buf, tmp[i:]...)
}

func appendInt(buf []byte, v int64) []byte {
	if v < 0 {
		buf = append(buf, '-')
		v = -v
	}
	return appendUint(buf, uint64(v))
}

// GetFixed reads a property value, interpreting the stored int64 as a
// Fixed64 bit pattern (the convention used by Source.InitialProperties and
// Property processor transforms, the only two places that need fractional
// property values rather than plain integer tags).
func (p Properties) GetFixed(id ids.PropertyId) (fixedpoint.Fixed64, bool) {
	v, ok := p[id]
	if !ok {
		return fixedpoint.Zero, false
	}
	return fixedpoint.FromBits(v), true
}

// SetFixed stores a Fixed64 value under id, using the same bit-pattern
// convention as GetFixed. Allocates the map if nil and returns it, mirroring
// the map-assignment idiom.
func (p Properties) SetFixed(id ids.PropertyId, v fixedpoint.Fixed64) Properties {
	if p == nil {
		p = make(Properties, 1)
	}
	p[id] = v.Bits()
	return p
}

// Clone returns a deep copy of p.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ItemStack is a quantity of a single item type carrying a shared set of
// properties.
type ItemStack struct {
	ItemType   ids.ItemTypeId
	Quantity   uint32
	Properties Properties
}

// Slot holds an ordered sequence of stacks, bounded by Capacity such that
// the sum of all stack quantities never exceeds it.
type Slot struct {
	Capacity uint32
	stacks   []ItemStack
}

// NewSlot constructs an empty slot with the given capacity.
func NewSlot(capacity uint32) *Slot {
	return &Slot{Capacity: capacity}
}

// Stacks returns a read-only view of the slot's stacks, in order.
func (s *Slot) Stacks() []ItemStack {
	return s.stacks
}

// Total returns the sum of all stack quantities in the slot.
func (s *Slot) Total() uint32 {
	var total uint32
	for _, st := range s.stacks {
		total += st.Quantity
	}
	return total
}

// FreeSpace returns Capacity minus the current total.
func (s *Slot) FreeSpace() uint32 {
	t := s.Total()
	if t >= s.Capacity {
		return 0
	}
	return s.Capacity - t
}

// Add appends to or grows a matching stack (by item type and bit-exact
// property equality), up to the slot's free capacity. It returns any
// quantity that could not fit.
func (s *Slot) Add(itemType ids.ItemTypeId, quantity uint32, props Properties) (overflow uint32) {
	if quantity == 0 {
		return 0
	}
	free := s.FreeSpace()
	accept := quantity
	if accept > free {
		accept = free
	}
	overflow = quantity - accept
	if accept == 0 {
		return overflow
	}

	key := props.key()
	for i := range s.stacks {
		st := &s.stacks[i]
		if st.ItemType == itemType && st.Properties.key() == key {
			st.Quantity += accept
			return overflow
		}
	}
	s.stacks = append(s.stacks, ItemStack{ItemType: itemType, Quantity: accept, Properties: props.Clone()})
	return overflow
}

// Remove walks stacks in order, draining quantity of the given item type
// until the target is met or supply is exhausted, pruning zero-quantity
// stacks. It returns the amount actually removed.
func (s *Slot) Remove(itemType ids.ItemTypeId, quantity uint32) (removed uint32) {
	if quantity == 0 {
		return 0
	}
	out := s.stacks[:0]
	for _, st := range s.stacks {
		if removed < quantity && st.ItemType == itemType {
			need := quantity - removed
			take := st.Quantity
			if take > need {
				take = need
			}
			st.Quantity -= take
			removed += take
		}
		if st.Quantity > 0 {
			out = append(out, st)
		}
	}
	s.stacks = out
	return removed
}

// QuantityOf returns the total quantity of itemType currently in the slot,
// across all stacks.
func (s *Slot) QuantityOf(itemType ids.ItemTypeId) uint32 {
	var total uint32
	for _, st := range s.stacks {
		if st.ItemType == itemType {
			total += st.Quantity
		}
	}
	return total
}

// Inventory is an ordered list of input slots and an ordered list of output
// slots.
type Inventory struct {
	Input  []*Slot
	Output []*Slot
}

// New constructs an Inventory with the given input/output slot capacities.
func New(inputCapacities, outputCapacities []uint32) *Inventory {
	inv := &Inventory{
		Input:  make([]*Slot, len(inputCapacities)),
		Output: make([]*Slot, len(outputCapacities)),
	}
	for i, c := range inputCapacities {
		inv.Input[i] = NewSlot(c)
	}
	for i, c := range outputCapacities {
		inv.Output[i] = NewSlot(c)
	}
	return inv
}

// InputQuantityOf sums the quantity of itemType across all input slots.
func (inv *Inventory) InputQuantityOf(itemType ids.ItemTypeId) uint32 {
	var total uint32
	for _, s := range inv.Input {
		total += s.QuantityOf(itemType)
	}
	return total
}

// OutputFreeSpace sums the free space across all output slots.
func (inv *Inventory) OutputFreeSpace() uint32 {
	var total uint32
	for _, s := range inv.Output {
		total += s.FreeSpace()
	}
	return total
}

// AddOutput distributes quantity across output slots in order, returning any
// overflow that did not fit anywhere.
func (inv *Inventory) AddOutput(itemType ids.ItemTypeId, quantity uint32, props Properties) (overflow uint32) {
	remaining := quantity
	for _, s := range inv.Output {
		if remaining == 0 {
			break
		}
		remaining = s.Add(itemType, remaining, props)
	}
	return remaining
}

// RemoveInput removes up to quantity of itemType, draining input slots in
// order, returning the amount actually removed.
func (inv *Inventory) RemoveInput(itemType ids.ItemTypeId, quantity uint32) (removed uint32) {
	remaining := quantity
	for _, s := range inv.Input {
		if remaining == 0 {
			break
		}
		got := s.Remove(itemType, remaining)
		removed += got
		remaining -= got
	}
	return removed
}

// OutputQuantityOf sums the quantity of itemType across all output slots.
func (inv *Inventory) OutputQuantityOf(itemType ids.ItemTypeId) uint32 {
	var total uint32
	for _, s := range inv.Output {
		total += s.QuantityOf(itemType)
	}
	return total
}

// OutputTotal sums every stack's quantity across all output slots,
// regardless of item type. Used by transports that move quantity without
// regard to item identity (see FirstNonEmptyOutputType's doc comment).
func (inv *Inventory) OutputTotal() uint32 {
	var total uint32
	for _, s := range inv.Output {
		total += s.Total()
	}
	return total
}

// RemoveOutput removes up to quantity of itemType, draining output slots in
// order, returning the amount actually removed.
func (inv *Inventory) RemoveOutput(itemType ids.ItemTypeId, quantity uint32) (removed uint32) {
	remaining := quantity
	for _, s := range inv.Output {
		if remaining == 0 {
			break
		}
		got := s.Remove(itemType, remaining)
		removed += got
		remaining -= got
	}
	return removed
}

// AddInput distributes quantity across input slots in order, returning any
// overflow that did not fit anywhere.
func (inv *Inventory) AddInput(itemType ids.ItemTypeId, quantity uint32, props Properties) (overflow uint32) {
	remaining := quantity
	for _, s := range inv.Input {
		if remaining == 0 {
			break
		}
		remaining = s.Add(itemType, remaining, props)
	}
	return remaining
}

// InputPropertiesOf returns the properties of the first non-empty input
// stack of itemType, for callers (the Property processor's transform) that
// need a representative property set to carry forward into a produced
// stack. Returns ok=false if no such stack exists.
func (inv *Inventory) InputPropertiesOf(itemType ids.ItemTypeId) (Properties, bool) {
	for _, s := range inv.Input {
		for _, st := range s.Stacks() {
			if st.ItemType == itemType && st.Quantity > 0 {
				return st.Properties, true
			}
		}
	}
	return nil, false
}

// FirstNonEmptyOutputType returns the item type of the first non-empty
// output stack, in slot then stack order, and true if one exists. Used by
// the transport phase's item-identity fallback heuristic.
func (inv *Inventory) FirstNonEmptyOutputType() (ids.ItemTypeId, bool) {
	for _, s := range inv.Output {
		for _, st := range s.Stacks() {
			if st.Quantity > 0 {
				return st.ItemType, true
			}
		}
	}
	return 0, false
}
