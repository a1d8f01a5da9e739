package query

import (
	"cmp"
	"math"
	"slices"
)

// Filter returns the items for which keep is true, in order.
func Filter[T any](items []T, keep func(T) bool) []T {
	var out []T
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// Group is one group produced by GroupBy: its key and its members in input
// order.
type Group[K comparable, T any] struct {
	Key   K
	Items []T
}

// GroupBy groups items by key. Groups are returned in first-seen order.
func GroupBy[K comparable, T any](items []T, key func(T) K) []Group[K, T] {
	index := make(map[K]int)
	var groups []Group[K, T]
	for _, it := range items {
		k := key(it)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group[K, T]{Key: k})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups
}

// Median returns the median of values, averaging the two middle values for
// an even count. ok is false for an empty input. values is not modified.
func Median(values []float64) (median float64, ok bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// Mean returns the arithmetic mean. ok is false for an empty input.
func Mean(values []float64) (mean float64, ok bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}

// PopulationVariance computes (Σx² − (Σx)²/n)/n from running sums.
// ok is false when n is zero.
func PopulationVariance(n int64, sum, sumSq float64) (variance float64, ok bool) {
	if n <= 0 {
		return 0, false
	}
	fn := float64(n)
	return (sumSq - sum*sum/fn) / fn, true
}

// SortBy sorts items in place with a stable sort. cmp returns a negative
// number when a sorts before b.
func SortBy[T any](items []T, cmp func(a, b T) int) {
	slices.SortStableFunc(items, cmp)
}

// Take returns at most the first n items. A non-positive n means no limit.
func Take[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}

// Round rounds x half away from zero to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// Desc compares a and b for a descending sort.
func Desc[T cmp.Ordered](a, b T) int {
	return cmp.Compare(b, a)
}

// NullsLast compares optional values descending, with absent values last.
func NullsLast(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return Desc(*a, *b)
	}
}
