package orders

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

// ErrStaleStatus is returned by the conditional writes when the stored
// status no longer matches the status the caller read.
var ErrStaleStatus = errors.New("order status changed concurrently")

type Store interface {
	// NextSequence allocates the next order number in one atomic step.
	NextSequence(ctx context.Context) (int64, error)
	Save(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	// FindActive returns pending, preparing and prepared orders, newest first.
	FindActive(ctx context.Context) ([]domain.Order, error)
	FindByTable(ctx context.Context, tableID string) ([]domain.Order, error)
	// List returns the orders matching filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	// UpdateStatus sets only the status of order id if the stored status
	// still equals expected, and returns the order as stored afterwards.
	UpdateStatus(ctx context.Context, id string, next, expected domain.Status, at time.Time) (*domain.Order, error)
	// UpdatePayment writes the payment fields and status of order if the
	// stored status still equals expected.
	UpdatePayment(ctx context.Context, order *domain.Order, expected domain.Status) error
	// Persistent is false when orders are intentionally not stored.
	Persistent() bool
}

// ListFilter narrows an order listing. Zero fields match every order; From
// and To bound the creation time inclusively.
type ListFilter struct {
	Status  domain.Status
	TableID string
	From    time.Time
	To      time.Time
}

func (f ListFilter) matches(o domain.Order) bool {
	switch {
	case f.Status != "" && o.Status != f.Status,
		f.TableID != "" && o.TableID != f.TableID,
		!f.From.IsZero() && o.CreatedAt.Before(f.From),
		!f.To.IsZero() && o.CreatedAt.After(f.To):
		return false
	}
	return true
}

// DisabledStore is the store used when SAVE_ORDERS is off. Orders are
// numbered and handed back to the caller but never kept, and every read
// reports that nothing is available.
type DisabledStore struct {
	seq atomic.Int64
}

func NewDisabledStore() *DisabledStore {
	return &DisabledStore{}
}

func (s *DisabledStore) NextSequence(context.Context) (int64, error) {
	return s.seq.Add(1), nil
}

func (s *DisabledStore) Save(context.Context, *domain.Order) error {
	return nil
}

func (s *DisabledStore) FindByID(context.Context, string) (*domain.Order, error) {
	return nil, domain.ErrPersistenceUnavailable
}

func (s *DisabledStore) FindActive(context.Context) ([]domain.Order, error) {
	return []domain.Order{}, nil
}

func (s *DisabledStore) FindByTable(context.Context, string) ([]domain.Order, error) {
	return []domain.Order{}, nil
}

func (s *DisabledStore) List(context.Context, ListFilter) ([]domain.Order, error) {
	return []domain.Order{}, nil
}

func (s *DisabledStore) UpdateStatus(context.Context, string, domain.Status, domain.Status, time.Time) (*domain.Order, error) {
	return nil, domain.ErrPersistenceUnavailable
}

func (s *DisabledStore) UpdatePayment(context.Context, *domain.Order, domain.Status) error {
	return domain.ErrPersistenceUnavailable
}

func (s *DisabledStore) Persistent() bool {
	return false
}
