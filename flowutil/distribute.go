package flowutil

import (
	"maps"
	"slices"
)

// Distribute spreads amount over items in order, filling each one before moving on,
// for example paying the oldest debts first.
//
// items maps an id to its total, existing to what is already covered. The result maps
// every touched id to its new covered total. Items are visited in id order unless less
// is given. Amounts are rounded to cents.
func Distribute(amount float64, items, existing map[string]float64, less func(a, b string) bool) map[string]float64 {
	ids := slices.Sorted(maps.Keys(items))
	if less != nil {
		slices.SortStableFunc(ids, func(a, b string) int {
			switch {
			case less(a, b):
				return -1
			case less(b, a):
				return 1
			}
			return 0
		})
	}

	result := make(map[string]float64)
	remaining := RoundCents(amount)
	for _, id := range ids {
		if remaining <= 0 {
			break
		}
		paid := existing[id]
		open := RoundCents(items[id] - paid)
		if open <= 0 {
			continue
		}
		payment := min(remaining, open)
		result[id] = RoundCents(paid + payment)
		remaining = RoundCents(remaining - payment)
	}
	return result
}
