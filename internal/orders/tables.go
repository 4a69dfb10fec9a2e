package orders

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

var ErrTableNotFound = errors.New("table not found")

type TableFinder interface {
	FindTable(ctx context.Context, tableID string) (*domain.Table, error)
}

type TableRepository struct {
	db *sql.DB
}

func NewTableRepository(db *sql.DB) *TableRepository {
	return &TableRepository{db: db}
}

func (r *TableRepository) FindTable(ctx context.Context, tableID string) (*domain.Table, error) {
	var table domain.Table
	err := r.db.QueryRowContext(ctx, `
		SELECT table_id, table_name, seats, is_active, location
		FROM orders.tables
		WHERE table_id = $1
	`, tableID).Scan(&table.TableID, &table.TableName, &table.Seats, &table.IsActive, &table.Location)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, err
	}
	return &table, nil
}

// TableDirectory is a fixed set of tables, used when no database is configured.
type TableDirectory struct {
	mu     sync.RWMutex
	tables map[string]domain.Table
}

func NewTableDirectory(tables ...domain.Table) *TableDirectory {
	d := &TableDirectory{tables: make(map[string]domain.Table, len(tables))}
	for _, t := range tables {
		d.tables[t.TableID] = t
	}
	return d
}

func (d *TableDirectory) FindTable(_ context.Context, tableID string) (*domain.Table, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	table, ok := d.tables[tableID]
	if !ok {
		return nil, ErrTableNotFound
	}
	return &table, nil
}

// TableRef is how a caller names the table: a structured id such as "T4",
// or a bare legacy number.
type TableRef struct {
	TableID     string `json:"table_id,omitempty"`
	TableNumber int    `json:"table_number,omitempty"`
}

// tableNumberFromID extracts the digits of a structured id, T10 -> 10.
func tableNumberFromID(tableID string) int {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, tableID)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
