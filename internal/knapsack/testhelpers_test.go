package knapsack

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// cryptoItems is the default coin catalog (sizes in GB, profits in dollars).
func cryptoItems() []Item {
	return []Item{
		{ID: 0, Label: "ETC", Size: 64, Profit: 16},
		{ID: 1, Label: "NEO", Size: 40, Profit: 54},
		{ID: 2, Label: "ZEC", Size: 12, Profit: 199},
		{ID: 3, Label: "VERI", Size: 30, Profit: 138},
		{ID: 4, Label: "XMR", Size: 45, Profit: 190},
		{ID: 5, Label: "LTC", Size: 16, Profit: 123},
	}
}

func randomItems(rng *rand.Rand, n, maxSize, maxProfit int) []Item {
	items := make([]Item, n)
	perm := rng.Perm(n * 3)
	for i := range items {
		items[i] = Item{
			ID:     perm[i],
			Size:   1 + rng.IntN(maxSize),
			Profit: rng.IntN(maxProfit + 1),
		}
	}
	return items
}

// bestProfit enumerates every subset and returns the maximum feasible profit.
func bestProfit(items []Item, capacity int) int {
	best := 0
	for mask := 0; mask < 1<<len(items); mask++ {
		size, profit := 0, 0
		for i, it := range items {
			if mask&(1<<i) != 0 {
				size += it.Size
				profit += it.Profit
			}
		}
		if size <= capacity && profit > best {
			best = profit
		}
	}
	return best
}

func requireFeasible(t *testing.T, items []Item, capacity int, ids []int) Summary {
	t.Helper()

	sum, err := Summarize(items, ids)
	require.NoError(t, err)
	require.Truef(t, sum.Fits(capacity), "selection %v of size %d exceeds capacity %d", ids, sum.TotalSize, capacity)
	return sum
}
