package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

const menuItemColumns = `id, name, description, category, price, available, inventory_count, low_stock_threshold, updated_at`

type InventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMenuItem(row scanner) (*domain.MenuItem, error) {
	var item domain.MenuItem
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Category, &item.Price,
		&item.Available, &item.InventoryCount, &item.LowStockThreshold, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *InventoryRepository) ListAll(ctx context.Context) ([]domain.MenuItem, error) {
	return r.list(ctx, `
		SELECT `+menuItemColumns+`
		FROM inventory.menu_items
		ORDER BY category, name
	`)
}

func (r *InventoryRepository) ListLowStock(ctx context.Context) ([]domain.MenuItem, error) {
	return r.list(ctx, `
		SELECT `+menuItemColumns+`
		FROM inventory.menu_items
		WHERE inventory_count <= low_stock_threshold
		ORDER BY inventory_count, name
	`)
}

func (r *InventoryRepository) list(ctx context.Context, query string) ([]domain.MenuItem, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.MenuItem{}
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *InventoryRepository) GetItem(ctx context.Context, itemID string) (*domain.MenuItem, error) {
	item, err := scanMenuItem(r.db.QueryRowContext(ctx, `
		SELECT `+menuItemColumns+`
		FROM inventory.menu_items
		WHERE id = $1
	`, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *InventoryRepository) Reserve(ctx context.Context, itemID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	var remaining int
	err := r.db.QueryRowContext(ctx, `
		UPDATE inventory.menu_items
		SET inventory_count = inventory_count - $2, updated_at = NOW()
		WHERE id = $1 AND available AND inventory_count >= $2
		RETURNING inventory_count
	`, itemID, quantity).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	// Nothing was updated: tell a missing item apart from a shortfall.
	if _, err := r.GetItem(ctx, itemID); err != nil {
		return 0, err
	}
	return 0, ErrInsufficientStock
}

func (r *InventoryRepository) Release(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE inventory.menu_items
		SET inventory_count = inventory_count + $2, updated_at = NOW()
		WHERE id = $1
	`, itemID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrItemNotFound
	}

	return nil
}

func (r *InventoryRepository) Restock(ctx context.Context, itemID string, count int) (*domain.MenuItem, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: inventory count cannot be negative", ErrInvalidQuantity)
	}

	item, err := scanMenuItem(r.db.QueryRowContext(ctx, `
		UPDATE inventory.menu_items
		SET inventory_count = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+menuItemColumns, itemID, count))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}
