package domain

import "sort"

// OrderedItem is the projection of a column or card that the ordering
// math operates on.
type OrderedItem struct {
	ID    string
	Order int
}

// OrderAssignment is a single (item, order) rewrite produced by a plan.
// Plans are applied as one transactional unit by the persistence layer
// so readers never observe a partial shift.
type OrderAssignment struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// NextOrder returns the order index for an item appended to the scope:
// currentMax+1, or 0 for an empty scope.
func NextOrder(items []OrderedItem) int {
	max := -1
	for _, it := range items {
		if it.Order > max {
			max = it.Order
		}
	}
	return max + 1
}

// PlanMove computes the assignments that move itemID to newOrder within
// its scope, shifting the items in between by one to keep the order
// values dense. A move to the item's current position yields no
// assignments. newOrder at or beyond the scope size is clamped to the
// last position; a negative newOrder is rejected.
func PlanMove(items []OrderedItem, itemID string, newOrder int) ([]OrderAssignment, error) {
	if newOrder < 0 {
		return nil, Validationf("order must not be negative")
	}
	oldOrder := -1
	for _, it := range items {
		if it.ID == itemID {
			oldOrder = it.Order
			break
		}
	}
	if oldOrder < 0 {
		return nil, NotFoundf("item %s not found in scope", itemID)
	}
	if newOrder > len(items)-1 {
		newOrder = len(items) - 1
	}
	if newOrder == oldOrder {
		return nil, nil
	}

	var plan []OrderAssignment
	for _, it := range items {
		switch {
		case it.ID == itemID:
			continue
		case newOrder > oldOrder && it.Order > oldOrder && it.Order <= newOrder:
			plan = append(plan, OrderAssignment{ID: it.ID, Order: it.Order - 1})
		case newOrder < oldOrder && it.Order >= newOrder && it.Order < oldOrder:
			plan = append(plan, OrderAssignment{ID: it.ID, Order: it.Order + 1})
		}
	}
	plan = append(plan, OrderAssignment{ID: itemID, Order: newOrder})
	return plan, nil
}

// PlanRemove computes the shifts that close the gap left by itemID
// leaving its scope. The removed item itself is not part of the plan.
func PlanRemove(items []OrderedItem, itemID string) []OrderAssignment {
	oldOrder := -1
	for _, it := range items {
		if it.ID == itemID {
			oldOrder = it.Order
			break
		}
	}
	if oldOrder < 0 {
		return nil
	}
	var plan []OrderAssignment
	for _, it := range items {
		if it.ID != itemID && it.Order > oldOrder {
			plan = append(plan, OrderAssignment{ID: it.ID, Order: it.Order - 1})
		}
	}
	return plan
}

// PlanInsert computes the shifts that open a slot at newOrder in a
// scope the item is about to join, returning the (possibly clamped)
// order the new item takes. Unlike PlanMove the valid range extends to
// len(items): inserting at the end shifts nothing.
func PlanInsert(items []OrderedItem, newOrder int) (int, []OrderAssignment, error) {
	if newOrder < 0 {
		return 0, nil, Validationf("order must not be negative")
	}
	if newOrder > len(items) {
		newOrder = len(items)
	}
	var plan []OrderAssignment
	for _, it := range items {
		if it.Order >= newOrder {
			plan = append(plan, OrderAssignment{ID: it.ID, Order: it.Order + 1})
		}
	}
	return newOrder, plan, nil
}

// ValidateReorder checks a full-scope reorder payload: every referenced
// id must belong to the scope, and the supplied orders must cover the
// whole scope as the dense permutation {0..n-1}. Bulk reorder is an
// unconditional overwrite, so anything less would durably break the
// density invariant.
func ValidateReorder(items []OrderedItem, orders []OrderAssignment) error {
	inScope := make(map[string]bool, len(items))
	for _, it := range items {
		inScope[it.ID] = true
	}
	for _, o := range orders {
		if !inScope[o.ID] {
			return NotFoundf("item %s does not belong to this scope", o.ID)
		}
	}
	if len(orders) != len(items) {
		return Validationf("reorder must cover all %d items in the scope, got %d", len(items), len(orders))
	}
	seenID := make(map[string]bool, len(orders))
	seenOrder := make(map[int]bool, len(orders))
	for _, o := range orders {
		if seenID[o.ID] {
			return Validationf("item %s listed more than once", o.ID)
		}
		seenID[o.ID] = true
		if o.Order < 0 || o.Order >= len(orders) || seenOrder[o.Order] {
			return Validationf("orders must form the sequence 0..%d without gaps or duplicates", len(orders)-1)
		}
		seenOrder[o.Order] = true
	}
	return nil
}

// ApplyAssignments returns a copy of items with the plan applied,
// sorted by the resulting order. It is the in-memory counterpart of the
// persistence layer's transactional overwrite and is what the client
// reconciler renders optimistically.
func ApplyAssignments(items []OrderedItem, plan []OrderAssignment) []OrderedItem {
	byID := make(map[string]int, len(plan))
	for _, a := range plan {
		byID[a.ID] = a.Order
	}
	out := make([]OrderedItem, len(items))
	copy(out, items)
	for i := range out {
		if o, ok := byID[out[i].ID]; ok {
			out[i].Order = o
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
