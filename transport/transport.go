package transport

import "github.com/joeycumines/factorial/fixedpoint"

// Advance moves t forward by one tick. state must have been produced by
// NewState(t) (or a snapshot thereof) for a matching Kind; Advance panics on
// a variant mismatch, since that indicates the caller paired the wrong
// config and state.
func (t *Transport) Advance(state *State, available uint32) Result {
	switch t.Kind {
	case KindFlow:
		return advanceFlow(t.Flow, state.Flow, available)
	case KindItem:
		return advanceItem(t.Item, state.Item, available)
	case KindBatch:
		return advanceBatch(t.Batch, state.Batch, available)
	case KindVehicle:
		return advanceVehicle(t.Vehicle, state.Vehicle, available)
	default:
		panic("transport: unknown kind")
	}
}

// ---------------------------------------------------------------------------
// Flow
// ---------------------------------------------------------------------------

func advanceFlow(cfg *FlowConfig, state *FlowState, available uint32) Result {
	availableFixed := fixedpoint.FromInt(int64(available))
	spaceInBuffer := cfg.BufferCapacity.Sub(state.Buffered)

	canAccept := fixedpoint.Min(fixedpoint.Min(cfg.Rate, availableFixed), spaceInBuffer)
	if canAccept < fixedpoint.Zero {
		canAccept = fixedpoint.Zero
	}
	state.Buffered = state.Buffered.Add(canAccept)
	itemsMoved := uint32(canAccept.Floor())

	var itemsDelivered uint32
	if state.LatencyRemaining > 0 {
		state.LatencyRemaining--
	} else {
		canDeliver := fixedpoint.Min(cfg.Rate, state.Buffered)
		if canDeliver < fixedpoint.Zero {
			canDeliver = fixedpoint.Zero
		}
		state.Buffered = state.Buffered.Sub(canDeliver)
		itemsDelivered = uint32(canDeliver.Floor())
	}

	return Result{ItemsMoved: itemsMoved, ItemsDelivered: itemsDelivered}
}

// ---------------------------------------------------------------------------
// Item belt
// ---------------------------------------------------------------------------

func advanceItem(cfg *ItemConfig, state *BeltState, available uint32) Result {
	slotCount := int(cfg.SlotCount)
	lanes := int(cfg.Lanes)
	steps := int(cfg.Speed.Floor())
	if steps < 1 {
		steps = 1
	}

	var itemsMoved, itemsDelivered uint32

	for lane := 0; lane < lanes; lane++ {
		base := lane * slotCount

		for step := 0; step < steps; step++ {
			// Advance items toward slot 0, one position, where the slot ahead is empty.
			for i := 1; i < slotCount; i++ {
				if state.Occupied[base+i] && !state.Occupied[base+i-1] {
					state.Occupied[base+i-1] = true
					state.Occupied[base+i] = false
				}
			}

			if state.Occupied[base] {
				state.Occupied[base] = false
				itemsDelivered++
			}

			inputSlot := base + slotCount - 1
			if available > itemsMoved && !state.Occupied[inputSlot] {
				state.Occupied[inputSlot] = true
				itemsMoved++
			}
		}
	}

	return Result{ItemsMoved: itemsMoved, ItemsDelivered: itemsDelivered}
}

// ---------------------------------------------------------------------------
// Batch
// ---------------------------------------------------------------------------

func advanceBatch(cfg *BatchConfig, state *BatchState, available uint32) Result {
	var space uint32
	if cfg.BatchSize > state.Pending {
		space = cfg.BatchSize - state.Pending
	}
	accepted := available
	if accepted > space {
		accepted = space
	}
	state.Pending += accepted

	state.Progress++

	var itemsDelivered uint32
	if state.Progress >= cfg.CycleTime {
		itemsDelivered = state.Pending
		state.Pending = 0
		state.Progress = 0
	}

	return Result{ItemsMoved: accepted, ItemsDelivered: itemsDelivered}
}

// ---------------------------------------------------------------------------
// Vehicle
// ---------------------------------------------------------------------------

func advanceVehicle(cfg *VehicleConfig, state *VehicleState, available uint32) Result {
	var itemsMoved, itemsDelivered uint32

	if state.Returning {
		if state.Position > 0 {
			state.Position--
		}
		if state.Position == 0 {
			state.Returning = false
		}
		return Result{}
	}

	if state.Position == 0 && state.CargoQuantity == 0 {
		toLoad := available
		if toLoad > cfg.Capacity {
			toLoad = cfg.Capacity
		}
		if toLoad > 0 {
			state.CargoQuantity = toLoad
			itemsMoved = toLoad
		}
		if state.CargoQuantity > 0 {
			state.Position++
		}
		return Result{ItemsMoved: itemsMoved}
	}

	state.Position++
	if state.Position >= cfg.TravelTime {
		itemsDelivered = state.CargoQuantity
		state.CargoQuantity = 0
		state.Returning = true
	}

	return Result{ItemsMoved: itemsMoved, ItemsDelivered: itemsDelivered}
}
