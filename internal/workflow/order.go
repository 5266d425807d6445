package workflow

// OrderSlots summarizes the order/priority values already used in a process.
type OrderSlots struct {
	MaxOrderIndex int
	MaxPriority   int
	OrderTaken    bool
	PriorityTaken bool
}

// ResolveOrderPriority picks collision-free order and priority values for a
// new stage. A requested value that is missing or already taken is replaced by
// max+1; order and priority are resolved independently. Collisions are never
// an error.
func ResolveOrderPriority(requestedOrder, requestedPriority *int, slots OrderSlots) (int, int) {
	order := slots.MaxOrderIndex + 1
	if requestedOrder != nil && !slots.OrderTaken {
		order = *requestedOrder
	}
	priority := slots.MaxPriority + 1
	if requestedPriority != nil && !slots.PriorityTaken {
		priority = *requestedPriority
	}
	return order, priority
}
