package knapsack

const dynamicProgrammingName = "Dynamic Programming"

type dpSolver struct{}

// NewDynamicProgramming creates an Algorithm that computes an optimal packing
// with the classic O(n·capacity) table.
//
// The result lists selected ids from the last input item to the first.
// Items of size zero with a positive profit are always included.
func NewDynamicProgramming() Algorithm {
	return dpSolver{}
}

func (dpSolver) DisplayName() string {
	return dynamicProgrammingName
}

func (dpSolver) Solve(items []Item, capacity int) []int {
	n := len(items)
	switch {
	case n == 0 || capacity < 0:
		return []int{}
	case capacity == 0:
		return freeItems(items)
	}

	// prev[s] is the best profit using the first i-1 items with total size <= s.
	prev := make([]int, capacity+1)
	cur := make([]int, capacity+1)
	// taken[i][s] is set exactly when including item i strictly improves cell (i, s).
	taken := make([][]bool, n+1)
	taken[0] = make([]bool, capacity+1)

	for i := 1; i <= n; i++ {
		item := items[i-1]
		taken[i] = make([]bool, capacity+1)
		valid := item.Size >= 0 && item.Profit >= 0

		for s := 0; s <= capacity; s++ {
			cur[s] = prev[s]
			if !valid || item.Size > s {
				continue
			}
			if candidate := prev[s-item.Size] + item.Profit; candidate > prev[s] {
				cur[s] = candidate
				taken[i][s] = true
			}
		}
		prev, cur = cur, prev
	}

	ids := []int{}
	for i, s := n, capacity; i >= 1; i-- {
		if taken[i][s] {
			ids = append(ids, items[i-1].ID)
			s -= items[i-1].Size
		}
	}
	return ids
}

// freeItems covers the degenerate table (no capacity): only zero-size items
// with a positive profit can be packed.
func freeItems(items []Item) []int {
	ids := []int{}
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Size == 0 && items[i].Profit > 0 {
			ids = append(ids, items[i].ID)
		}
	}
	return ids
}
