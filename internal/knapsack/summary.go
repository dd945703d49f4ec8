package knapsack

import "fmt"

// Summary aggregates a selection of items.
type Summary struct {
	Count       int
	TotalSize   int
	TotalProfit int
}

// Fits reports whether the selection respects the given capacity.
func (s Summary) Fits(capacity int) bool {
	return s.TotalSize <= capacity
}

// Summarize totals the items referenced by ids.
func Summarize(items []Item, ids []int) (Summary, error) {
	byID := make(map[int]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	seen := make(map[int]struct{}, len(ids))
	var sum Summary
	for _, id := range ids {
		it, ok := byID[id]
		if !ok {
			return Summary{}, fmt.Errorf("id %d: %w", id, ErrUnknownItem)
		}
		if _, dup := seen[id]; dup {
			return Summary{}, fmt.Errorf("id %d: %w", id, ErrDuplicateItem)
		}
		seen[id] = struct{}{}
		sum.Count++
		sum.TotalSize += it.Size
		sum.TotalProfit += it.Profit
	}
	return sum, nil
}
