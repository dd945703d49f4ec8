package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/eugenenazirov/cryptoknapsack/internal/knapsack"
)

// MaxItems bounds the catalog size.
const MaxItems = 64

var (
	// ErrInvalidItems indicates the provided items violate validation rules.
	ErrInvalidItems = errors.New("items must contain between 1 and 64 valid entries with unique ids")
)

// defaultItems is the cryptocurrency catalog: size is the blockchain size in
// GB, profit the coin price in USD (values as of March 29, 2018).
var defaultItems = []knapsack.Item{
	{ID: 0, Label: "ETC", Size: 64, Profit: 16},
	{ID: 1, Label: "NEO", Size: 40, Profit: 54},
	{ID: 2, Label: "ZEC", Size: 12, Profit: 199},
	{ID: 3, Label: "VERI", Size: 30, Profit: 138},
	{ID: 4, Label: "XMR", Size: 45, Profit: 190},
	{ID: 5, Label: "LTC", Size: 16, Profit: 123},
}

// Storage provides access to the item catalog used by the solvers.
type Storage interface {
	GetItems() ([]knapsack.Item, error)
	SetItems(items []knapsack.Item) error
}

// MemoryStorage keeps items in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu    sync.RWMutex
	items []knapsack.Item
}

// NewMemoryStorage initialises storage with a copy of the default catalog.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		items: cloneAndSort(defaultItems),
	}
}

// DefaultItems returns a copy of the default catalog.
func DefaultItems() []knapsack.Item {
	return cloneAndSort(defaultItems)
}

// GetItems returns a defensive copy of the catalog, ordered by id.
func (s *MemoryStorage) GetItems() ([]knapsack.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneAndSort(s.items), nil
}

// SetItems validates and stores the provided items.
func (s *MemoryStorage) SetItems(items []knapsack.Item) error {
	normalized, err := normalizeItems(items)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.items = normalized
	s.mu.Unlock()

	return nil
}

func cloneAndSort(src []knapsack.Item) []knapsack.Item {
	out := knapsack.CloneItems(src)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func normalizeItems(items []knapsack.Item) ([]knapsack.Item, error) {
	if len(items) == 0 || len(items) > MaxItems {
		return nil, ErrInvalidItems
	}
	if err := knapsack.ValidateItems(items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidItems, err)
	}
	return cloneAndSort(items), nil
}
