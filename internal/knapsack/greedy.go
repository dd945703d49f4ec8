package knapsack

import (
	"math/bits"
	"slices"
)

const greedyName = "Greedy"

type greedy struct{}

// NewGreedy creates an Algorithm that packs items by decreasing profit density.
// It runs in O(n log n) but does not always find the optimum. Items with equal
// density keep their original instance order.
func NewGreedy() Algorithm {
	return greedy{}
}

func (greedy) DisplayName() string {
	return greedyName
}

func (greedy) Solve(items []Item, capacity int) []int {
	ranked := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Size < 0 || it.Profit < 0 {
			continue
		}
		ranked = append(ranked, it)
	}
	slices.SortStableFunc(ranked, compareDensity)

	ids := []int{}
	remaining := max(capacity, 0)
	for i := 0; remaining > 0 && i < len(ranked); i++ {
		if ranked[i].Size <= remaining {
			remaining -= ranked[i].Size
			ids = append(ids, ranked[i].ID)
		}
	}
	return ids
}

// compareDensity orders items by descending profit/size without floating
// point rounding.
func compareDensity(a, b Item) int {
	aFree, bFree := a.Size == 0 && a.Profit > 0, b.Size == 0 && b.Profit > 0
	switch {
	case aFree && bFree:
		return 0
	case aFree:
		return -1
	case bFree:
		return 1
	}

	ap, as := densityTerms(a)
	bp, bs := densityTerms(b)
	lhsHi, lhsLo := bits.Mul64(ap, bs)
	rhsHi, rhsLo := bits.Mul64(bp, as)
	switch {
	case lhsHi > rhsHi || (lhsHi == rhsHi && lhsLo > rhsLo):
		return -1
	case lhsHi < rhsHi || (lhsHi == rhsHi && lhsLo < rhsLo):
		return 1
	default:
		return 0
	}
}

// densityTerms maps an item to a profit/size fraction; an empty item counts as 0/1.
// Solve drops negative items before sorting, so both terms are non-negative.
func densityTerms(it Item) (uint64, uint64) {
	if it.Size == 0 {
		return 0, 1
	}
	return uint64(it.Profit), uint64(it.Size)
}
