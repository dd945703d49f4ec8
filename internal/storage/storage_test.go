package storage

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/eugenenazirov/cryptoknapsack/internal/knapsack"
)

func TestNewMemoryStorageReturnsDefaultItems(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()

	got, err := store.GetItems()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := DefaultItems()
	if !slices.Equal(got, want) {
		t.Fatalf("expected default items %v, got %v", want, got)
	}

	// ensure mutation safety
	got[0].Profit = 999
	again, err := store.GetItems()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again[0].Profit == 999 {
		t.Fatalf("expected defensive copy, got %v", again)
	}
}

func TestDefaultItemsCatalog(t *testing.T) {
	t.Parallel()

	items := DefaultItems()
	if len(items) != 6 {
		t.Fatalf("expected 6 catalog items, got %d", len(items))
	}
	if items[2].Label != "ZEC" || items[2].Size != 12 || items[2].Profit != 199 {
		t.Fatalf("unexpected item 2: %+v", items[2])
	}
	if err := knapsack.ValidateItems(items); err != nil {
		t.Fatalf("default catalog must be valid: %v", err)
	}
}

func TestSetItemsUpdatesState(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	input := []knapsack.Item{
		{ID: 9, Label: "B", Size: 3, Profit: 4},
		{ID: 1, Label: "A", Size: 2, Profit: 5},
	}
	if err := store.SetItems(input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.GetItems()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []knapsack.Item{
		{ID: 1, Label: "A", Size: 2, Profit: 5},
		{ID: 9, Label: "B", Size: 3, Profit: 4},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	input[0].Size = 100
	again, _ := store.GetItems()
	if again[1].Size != 3 {
		t.Fatalf("storage must not alias caller slice, got %v", again)
	}
}

func TestSetItemsRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tooMany := make([]knapsack.Item, MaxItems+1)
	for i := range tooMany {
		tooMany[i] = knapsack.Item{ID: i, Size: 1}
	}

	testCases := [][]knapsack.Item{
		nil,
		{},
		{{ID: 0, Size: 0, Profit: 1}},
		{{ID: -1, Size: 3, Profit: 1}},
		{{ID: 0, Size: 3, Profit: -1}},
		{{ID: 4, Size: 3, Profit: 1}, {ID: 4, Size: 5, Profit: 2}},
		tooMany,
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("case_%d", idx), func(t *testing.T) {
			store := NewMemoryStorage()
			if err := store.SetItems(tc); !errors.Is(err, ErrInvalidItems) {
				t.Fatalf("expected ErrInvalidItems for %v, got %v", tc, err)
			}
		})
	}
}

func TestSetItemsWrapsValidationCause(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	err := store.SetItems([]knapsack.Item{{ID: 4, Size: 3}, {ID: 4, Size: 5}})
	if !errors.Is(err, knapsack.ErrDuplicateItem) {
		t.Fatalf("expected wrapped ErrDuplicateItem, got %v", err)
	}
}

func TestMemoryStorageConcurrentAccess(t *testing.T) {
	store := NewMemoryStorage()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(2)

		go func(offset int) {
			defer wg.Done()
			items := []knapsack.Item{
				{ID: 0, Size: 10 + offset, Profit: offset},
				{ID: 1, Size: 20 + offset, Profit: offset},
			}
			if err := store.SetItems(items); err != nil {
				t.Errorf("SetItems failed: %v", err)
			}
		}(i)

		go func() {
			defer wg.Done()
			if _, err := store.GetItems(); err != nil {
				t.Errorf("GetItems failed: %v", err)
			}
		}()
	}

	wg.Wait()

	// final read should succeed
	if _, err := store.GetItems(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
