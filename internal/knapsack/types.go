package knapsack

import (
	"fmt"
	"math"
)

// MaxItemValue bounds item sizes and profits so that totals over a full
// catalog fit in an int.
const MaxItemValue = math.MaxInt32

// Item is a single knapsack candidate. Items are values: they are never
// mutated after construction.
type Item struct {
	ID     int    `json:"id" yaml:"id"`
	Label  string `json:"label,omitempty" yaml:"label"`
	Size   int    `json:"size" yaml:"size"`
	Profit int    `json:"profit" yaml:"profit"`
}

// NewItem validates and builds an Item.
func NewItem(id int, label string, size, profit int) (Item, error) {
	item := Item{ID: id, Label: label, Size: size, Profit: profit}
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Validate reports whether the item satisfies the domain constraints.
func (it Item) Validate() error {
	if it.ID < 0 || it.Size <= 0 || it.Profit < 0 || it.Size > MaxItemValue || it.Profit > MaxItemValue {
		return fmt.Errorf("item %d (size %d, profit %d): %w", it.ID, it.Size, it.Profit, ErrInvalidItem)
	}
	return nil
}

// ProfitDensity returns profit per unit of size.
// Zero-size items rank above everything when they carry any profit.
func (it Item) ProfitDensity() float64 {
	if it.Size == 0 {
		if it.Profit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return float64(it.Profit) / float64(it.Size)
}

func (it Item) String() string {
	if it.Label != "" {
		return it.Label
	}
	return fmt.Sprintf("item-%d", it.ID)
}

// Instance is a validated snapshot of items plus a capacity bound.
type Instance struct {
	Items    []Item
	Capacity int
}

// NewInstance validates the items and capacity and returns an Instance that
// owns a private copy of the items.
func NewInstance(items []Item, capacity int) (Instance, error) {
	if capacity < 0 {
		return Instance{}, ErrInvalidCapacity
	}
	if err := ValidateItems(items); err != nil {
		return Instance{}, err
	}
	return Instance{Items: CloneItems(items), Capacity: capacity}, nil
}

// ValidateItems checks every item and that ids are pairwise distinct.
func ValidateItems(items []Item) error {
	seen := make(map[int]struct{}, len(items))
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return err
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("item %d: %w", it.ID, ErrDuplicateItem)
		}
		seen[it.ID] = struct{}{}
	}
	return nil
}

// CloneItems returns a copy of items that never aliases the input.
func CloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// Algorithm describes the behaviour required from a knapsack solver.
//
// Solve returns the ids of the selected items; the ids are a subset of the
// input ids without duplicates and their sizes sum to at most capacity.
// The order of the result is the order in which the items get played back.
type Algorithm interface {
	Solve(items []Item, capacity int) []int
	DisplayName() string
}
