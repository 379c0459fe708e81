package itinerary

import (
	"sort"
	"strings"

	"backend-travelplanner/internal/shared/apperr"
)

// OrderUpdate assigns a new rank to one location.
type OrderUpdate struct {
	ID    string
	Order int
}

// Plan is the outcome of reconciling a proposed ordering. Orders holds the
// target rank of every location; Changes only those whose stored rank
// differs.
type Plan struct {
	Orders  map[string]int
	Changes []OrderUpdate
}

// Reconcile maps each id in proposed to its index. proposed must contain
// every id of current exactly once and nothing else.
func Reconcile(current []Location, proposed []string) (Plan, error) {
	stored := make(map[string]int, len(current))
	for _, l := range current {
		stored[l.ID] = l.Order
	}

	var unknown, duplicate []string
	orders := make(map[string]int, len(proposed))
	for i, id := range proposed {
		if _, ok := stored[id]; !ok {
			unknown = append(unknown, id)
			continue
		}
		if _, seen := orders[id]; seen {
			duplicate = append(duplicate, id)
			continue
		}
		orders[id] = i
	}

	var missing []string
	for id := range stored {
		if _, ok := orders[id]; !ok {
			missing = append(missing, id)
		}
	}

	if len(unknown) > 0 || len(duplicate) > 0 || len(missing) > 0 {
		return Plan{}, permutationError(unknown, duplicate, missing)
	}

	plan := Plan{Orders: orders}
	for _, id := range proposed {
		if stored[id] != orders[id] {
			plan.Changes = append(plan.Changes, OrderUpdate{ID: id, Order: orders[id]})
		}
	}
	return plan, nil
}

// Densify ranks locations 0..n-1 in their current sequence and returns the
// updates needed to get there.
func Densify(locations []Location) []OrderUpdate {
	var updates []OrderUpdate
	for i := range locations {
		if locations[i].Order != i {
			updates = append(updates, OrderUpdate{ID: locations[i].ID, Order: i})
			locations[i].Order = i
		}
	}
	return updates
}

func permutationError(unknown, duplicate, missing []string) error {
	var parts []string
	if len(unknown) > 0 {
		parts = append(parts, "unknown ids "+joinSorted(unknown))
	}
	if len(duplicate) > 0 {
		parts = append(parts, "duplicate ids "+joinSorted(duplicate))
	}
	if len(missing) > 0 {
		parts = append(parts, "missing ids "+joinSorted(missing))
	}
	return apperr.Validation("orderedLocationIds", "must list every location of the trip exactly once: "+strings.Join(parts, "; "))
}

func joinSorted(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}
