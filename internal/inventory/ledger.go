package inventory

import (
	"context"
	"errors"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrItemNotFound      = errors.New("menu item not found")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// Ledger is the stock contract the order aggregate consumes. Reserve is a
// single conditional decrement: it succeeds only while the item is available
// and holds at least quantity units, and returns the remaining count.
type Ledger interface {
	GetItem(ctx context.Context, itemID string) (*domain.MenuItem, error)
	Reserve(ctx context.Context, itemID string, quantity int) (int, error)
	Release(ctx context.Context, itemID string, quantity int) error
}

// Store adds the admin operations served by the inventory service.
type Store interface {
	Ledger
	ListAll(ctx context.Context) ([]domain.MenuItem, error)
	ListLowStock(ctx context.Context) ([]domain.MenuItem, error)
	Restock(ctx context.Context, itemID string, count int) (*domain.MenuItem, error)
}
