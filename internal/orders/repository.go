package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

const orderColumns = `id, order_seq, order_number, table_id, table_number, customer_phone, status,
	total_amount, payment_method, payment_status, transaction_id, created_at, updated_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) NextSequence(ctx context.Context) (int64, error) {
	var seq int64
	err := r.db.QueryRowContext(ctx, `SELECT nextval('orders.order_number_seq')`).Scan(&seq)
	return seq, err
}

func (r *OrderRepository) Save(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders.orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, order.ID, order.Sequence, order.Number, order.TableID, order.TableNumber, order.CustomerPhone, order.Status,
		order.TotalAmount, order.PaymentMethod, order.PaymentStatus, order.TransactionID, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return err
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders.order_items (id, order_id, position, menu_item_id, name, price, quantity, special_instructions)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.New().String(), order.ID, i, item.MenuItemID, item.Name, item.Price, item.Quantity, item.SpecialInstructions)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func scanOrder(row scanner) (*domain.Order, error) {
	var order domain.Order
	var transactionID sql.NullString
	err := row.Scan(&order.ID, &order.Sequence, &order.Number, &order.TableID, &order.TableNumber, &order.CustomerPhone,
		&order.Status, &order.TotalAmount, &order.PaymentMethod, &order.PaymentStatus, &transactionID,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if transactionID.Valid {
		order.TransactionID = &transactionID.String
	}
	order.Items = []domain.LineItem{}
	return &order, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	if !validID(id) {
		return nil, domain.ErrOrderNotFound
	}

	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders.orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	orders := []*domain.Order{order}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) FindActive(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders.orders
		WHERE status IN ('pending', 'preparing', 'prepared')
		ORDER BY created_at DESC, order_seq DESC
	`)
}

func (r *OrderRepository) FindByTable(ctx context.Context, tableID string) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders.orders
		WHERE table_id = $1
		ORDER BY created_at DESC, order_seq DESC
	`, tableID)
}

func (r *OrderRepository) List(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	var where []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.TableID != "" {
		add("table_id = $%d", filter.TableID)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}

	query := `SELECT ` + orderColumns + ` FROM orders.orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, order_seq DESC`
	return r.list(ctx, query, args...)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var found []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, found); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(found))
	for _, order := range found {
		orders = append(orders, *order)
	}
	return orders, nil
}

// loadItems fetches the lines of all given orders in one query.
func (r *OrderRepository) loadItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		byID[order.ID] = order
		ids = append(ids, order.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, menu_item_id, name, price, quantity, special_instructions
		FROM orders.order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID string
		var item domain.LineItem
		if err := rows.Scan(&orderID, &item.MenuItemID, &item.Name, &item.Price, &item.Quantity, &item.SpecialInstructions); err != nil {
			return err
		}
		if order, ok := byID[orderID]; ok {
			order.Items = append(order.Items, item)
		}
	}

	return rows.Err()
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, next, expected domain.Status, at time.Time) (*domain.Order, error) {
	if !validID(id) {
		return nil, domain.ErrOrderNotFound
	}

	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		UPDATE orders.orders
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
		RETURNING `+orderColumns+`
	`, id, next, at, expected))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missedWrite(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) UpdatePayment(ctx context.Context, order *domain.Order, expected domain.Status) error {
	if !validID(order.ID) {
		return domain.ErrOrderNotFound
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders.orders
		SET status = $2, payment_method = $3, payment_status = $4, transaction_id = $5, updated_at = $6
		WHERE id = $1 AND status = $7
	`, order.ID, order.Status, order.PaymentMethod, order.PaymentStatus, order.TransactionID, order.UpdatedAt, expected)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected > 0 {
		return nil
	}
	return r.missedWrite(ctx, order.ID)
}

// missedWrite tells a vanished order apart from a status that moved.
func (r *OrderRepository) missedWrite(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders.orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrOrderNotFound
	}
	return ErrStaleStatus
}

// validID reports whether id can name a row; orders.id is a UUID column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *OrderRepository) Persistent() bool {
	return true
}
