package session

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/eugenenazirov/cryptoknapsack/internal/knapsack"
	"github.com/eugenenazirov/cryptoknapsack/internal/storage"
)

// Snapshot is a point-in-time view of the knapsack.
type Snapshot struct {
	Capacity int   `json:"capacity"`
	Selected []int `json:"selected"`
	Level    int   `json:"level"`
	Profit   int   `json:"profit"`
	Runs     int   `json:"finishedRuns"`
}

// Knapsack is the playback.Instance backing the HTTP service and the CLI.
// Items come from storage; capacity and selection are owned here.
type Knapsack struct {
	store  storage.Storage
	logger *zap.Logger

	mu       sync.RWMutex
	capacity int
	selected []int
	runs     int
}

// New creates a Knapsack with an empty selection.
func New(store storage.Storage, capacity int, logger *zap.Logger) (*Knapsack, error) {
	if capacity < 0 {
		return nil, ErrInvalidCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Knapsack{
		store:    store,
		logger:   logger,
		capacity: capacity,
		selected: []int{},
	}, nil
}

// Items returns the catalog. Storage failures are logged and yield no items.
func (k *Knapsack) Items() []knapsack.Item {
	items, err := k.store.GetItems()
	if err != nil {
		k.logger.Error("failed to read items", zap.Error(err))
		return nil
	}
	return items
}

// Capacity returns the current capacity.
func (k *Knapsack) Capacity() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.capacity
}

// Reset clears the selection.
func (k *Knapsack) Reset() {
	k.mu.Lock()
	k.selected = []int{}
	k.mu.Unlock()
}

// AddItem selects id when it is known, not yet selected and still fits.
// Anything else is ignored.
func (k *Knapsack) AddItem(id int) {
	items := k.Items()

	k.mu.Lock()
	defer k.mu.Unlock()

	if slices.Contains(k.selected, id) {
		k.logger.Debug("item already selected", zap.Int("item_id", id))
		return
	}
	if err := k.fitsLocked(items, id); err != nil {
		k.logger.Warn("ignoring item", zap.Int("item_id", id), zap.Error(err))
		return
	}
	k.selected = append(k.selected, id)
}

// Finished records the end of a playback run.
func (k *Knapsack) Finished() {
	k.mu.Lock()
	k.runs++
	k.mu.Unlock()
}

// Toggle removes id from the selection or adds it when it fits. It reports
// whether the item is selected afterwards.
func (k *Knapsack) Toggle(id int) (bool, error) {
	items := k.Items()

	k.mu.Lock()
	defer k.mu.Unlock()

	if idx := slices.Index(k.selected, id); idx >= 0 {
		k.selected = slices.Delete(k.selected, idx, idx+1)
		return false, nil
	}
	if err := k.fitsLocked(items, id); err != nil {
		return false, err
	}
	k.selected = append(k.selected, id)
	return true, nil
}

// SetCapacity changes the capacity and deselects, in selection order, every
// item that no longer fits on top of the ones kept before it. It returns the
// evicted ids.
func (k *Knapsack) SetCapacity(capacity int) ([]int, error) {
	if capacity < 0 {
		return nil, ErrInvalidCapacity
	}
	sizes := sizeIndex(k.Items())

	k.mu.Lock()
	defer k.mu.Unlock()

	k.capacity = capacity
	kept := make([]int, 0, len(k.selected))
	evicted := []int{}
	level := 0
	for _, id := range k.selected {
		if level+sizes[id] > capacity {
			evicted = append(evicted, id)
			continue
		}
		level += sizes[id]
		kept = append(kept, id)
	}
	k.selected = kept

	if len(evicted) > 0 {
		k.logger.Info("capacity change evicted items", zap.Int("capacity", capacity), zap.Ints("item_ids", evicted))
	}
	return evicted, nil
}

// ReplaceItems stores a new catalog and clears the selection.
func (k *Knapsack) ReplaceItems(items []knapsack.Item) error {
	if err := k.store.SetItems(items); err != nil {
		return err
	}
	k.Reset()
	return nil
}

// Snapshot returns the current state.
func (k *Knapsack) Snapshot() Snapshot {
	items := k.Items()

	k.mu.RLock()
	defer k.mu.RUnlock()

	byID := make(map[int]knapsack.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	snap := Snapshot{
		Capacity: k.capacity,
		Selected: slices.Clone(k.selected),
		Runs:     k.runs,
	}
	for _, id := range k.selected {
		snap.Level += byID[id].Size
		snap.Profit += byID[id].Profit
	}
	return snap
}

func (k *Knapsack) fitsLocked(items []knapsack.Item, id int) error {
	sizes := sizeIndex(items)
	size, ok := sizes[id]
	if !ok {
		return fmt.Errorf("item %d: %w", id, ErrUnknownItem)
	}
	level := 0
	for _, selected := range k.selected {
		level += sizes[selected]
	}
	if level+size > k.capacity {
		return fmt.Errorf("item %d (size %d) at level %d/%d: %w", id, size, level, k.capacity, ErrWouldOverflow)
	}
	return nil
}

func sizeIndex(items []knapsack.Item) map[int]int {
	sizes := make(map[int]int, len(items))
	for _, it := range items {
		sizes[it.ID] = it.Size
	}
	return sizes
}
