package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

// MemoryStore keeps orders in process, in insertion order.
type MemoryStore struct {
	mu     sync.RWMutex
	seq    int64
	orders []domain.Order
	index  map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

func (s *MemoryStore) NextSequence(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, nil
}

func (s *MemoryStore) Save(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[order.ID]; ok {
		s.orders[i] = order.Clone()
		return nil
	}
	s.index[order.ID] = len(s.orders)
	s.orders = append(s.orders, order.Clone())
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	order := s.orders[i].Clone()
	return &order, nil
}

func (s *MemoryStore) FindActive(context.Context) ([]domain.Order, error) {
	return s.newestFirst(func(o domain.Order) bool { return o.Status.Active() }), nil
}

func (s *MemoryStore) FindByTable(_ context.Context, tableID string) ([]domain.Order, error) {
	return s.newestFirst(func(o domain.Order) bool { return o.TableID == tableID }), nil
}

func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]domain.Order, error) {
	return s.newestFirst(filter.matches), nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, next, expected domain.Status, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.expect(id, expected)
	if err != nil {
		return nil, err
	}
	stored.Status = next
	stored.UpdatedAt = at
	order := stored.Clone()
	return &order, nil
}

func (s *MemoryStore) UpdatePayment(_ context.Context, order *domain.Order, expected domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.expect(order.ID, expected)
	if err != nil {
		return err
	}
	updated := order.Clone()
	stored.Status = updated.Status
	stored.PaymentMethod = updated.PaymentMethod
	stored.PaymentStatus = updated.PaymentStatus
	stored.TransactionID = updated.TransactionID
	stored.UpdatedAt = updated.UpdatedAt
	return nil
}

// expect must be called with mu held.
func (s *MemoryStore) expect(id string, status domain.Status) (*domain.Order, error) {
	i, ok := s.index[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if s.orders[i].Status != status {
		return nil, ErrStaleStatus
	}
	return &s.orders[i], nil
}

func (s *MemoryStore) Persistent() bool {
	return true
}

// newestFirst walks the log backwards, so equal timestamps keep the later
// insertion first once the stable sort runs.
func (s *MemoryStore) newestFirst(keep func(domain.Order) bool) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []domain.Order{}
	for i := len(s.orders) - 1; i >= 0; i-- {
		if keep(s.orders[i]) {
			result = append(result, s.orders[i].Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}
