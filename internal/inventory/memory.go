package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

// MemoryLedger keeps stock in process. Every mutation happens under one lock,
// which makes Reserve a single conditional decrement.
type MemoryLedger struct {
	mu    sync.Mutex
	items map[string]domain.MenuItem
}

func NewMemoryLedger(items ...domain.MenuItem) *MemoryLedger {
	l := &MemoryLedger{items: make(map[string]domain.MenuItem, len(items))}
	for _, item := range items {
		l.Put(item)
	}
	return l
}

// Put inserts or replaces an item.
func (l *MemoryLedger) Put(item domain.MenuItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}
	l.items[item.ID] = item
}

func (l *MemoryLedger) GetItem(_ context.Context, itemID string) (*domain.MenuItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	return &item, nil
}

func (l *MemoryLedger) Reserve(_ context.Context, itemID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[itemID]
	if !ok {
		return 0, ErrItemNotFound
	}
	if !item.CanServe(quantity) {
		return 0, ErrInsufficientStock
	}

	item.InventoryCount -= quantity
	item.UpdatedAt = time.Now().UTC()
	l.items[itemID] = item
	return item.InventoryCount, nil
}

func (l *MemoryLedger) Release(_ context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	item.InventoryCount += quantity
	item.UpdatedAt = time.Now().UTC()
	l.items[itemID] = item
	return nil
}

func (l *MemoryLedger) Restock(_ context.Context, itemID string, count int) (*domain.MenuItem, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: inventory count cannot be negative", ErrInvalidQuantity)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	item.InventoryCount = count
	item.UpdatedAt = time.Now().UTC()
	l.items[itemID] = item
	return &item, nil
}

func (l *MemoryLedger) ListAll(_ context.Context) ([]domain.MenuItem, error) {
	return l.filter(func(domain.MenuItem) bool { return true }), nil
}

func (l *MemoryLedger) ListLowStock(_ context.Context) ([]domain.MenuItem, error) {
	return l.filter(domain.MenuItem.LowStock), nil
}

func (l *MemoryLedger) filter(keep func(domain.MenuItem) bool) []domain.MenuItem {
	l.mu.Lock()
	defer l.mu.Unlock()

	items := []domain.MenuItem{}
	for _, item := range l.items {
		if keep(item) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}
