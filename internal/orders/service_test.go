package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/quickserve/internal/domain"
	"github.com/joao-fontenele/quickserve/internal/inventory"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBroadcaster) Publish(_ context.Context, event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) names() []domain.EventName {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]domain.EventName, 0, len(b.events))
	for _, e := range b.events {
		names = append(names, e.Name())
	}
	return names
}

type fixture struct {
	service     *Service
	store       Store
	ledger      *inventory.MemoryLedger
	broadcaster *recordingBroadcaster
}

func menu() []domain.MenuItem {
	return []domain.MenuItem{
		{ID: "pizza", Name: "Pizza", Price: 299, Available: true, InventoryCount: 10, LowStockThreshold: 2},
		{ID: "coke", Name: "Coke", Price: 49, Available: true, InventoryCount: 10, LowStockThreshold: 2},
		{ID: "salad", Name: "Salad", Price: 149, Available: false, InventoryCount: 10},
	}
}

func newFixture(t *testing.T, store Store, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:       store,
		ledger:      inventory.NewMemoryLedger(menu()...),
		broadcaster: &recordingBroadcaster{},
	}
	tables := NewTableDirectory(
		domain.Table{TableID: "T4", TableName: "Window", Seats: 4, IsActive: true},
		domain.Table{TableID: "T9", TableName: "Patio", Seats: 2, IsActive: false},
	)
	f.service = NewService(store, f.ledger, tables, f.broadcaster, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	return f
}

func pizzaAndCoke() CreateOrderRequest {
	return CreateOrderRequest{
		Table: TableRef{TableID: "T4"},
		Items: []LineRequest{
			{MenuItemID: "pizza", Quantity: 2},
			{MenuItemID: "coke", Quantity: 1, SpecialInstructions: "no ice"},
		},
		PaymentMethod: "cash",
	}
}

func stockOf(t *testing.T, ledger *inventory.MemoryLedger, id string) int {
	t.Helper()
	item, err := ledger.GetItem(context.Background(), id)
	require.NoError(t, err)
	return item.InventoryCount
}

func TestService_CreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("snapshots lines and totals them", func(t *testing.T) {
		f := newFixture(t, NewMemoryStore())

		order, err := f.service.CreateOrder(ctx, pizzaAndCoke())
		require.NoError(t, err)

		assert.Equal(t, int64(647), order.TotalAmount)
		assert.Equal(t, "ORD00001", order.Number)
		assert.Equal(t, domain.StatusPreparing, order.Status)
		assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
		assert.Equal(t, "T4", order.TableID)
		assert.Equal(t, 4, order.TableNumber)
		require.Len(t, order.Items, 2)
		assert.Equal(t, "Coke", order.Items[1].Name)
		assert.Equal(t, "no ice", order.Items[1].SpecialInstructions)

		assert.Equal(t, 8, stockOf(t, f.ledger, "pizza"))
		assert.Equal(t, 9, stockOf(t, f.ledger, "coke"))
		assert.Equal(t, []domain.EventName{domain.EventOrderCreated}, f.broadcaster.names())
	})

	t.Run("later price edits leave the total alone", func(t *testing.T) {
		f := newFixture(t, NewMemoryStore())

		order, err := f.service.CreateOrder(ctx, pizzaAndCoke())
		require.NoError(t, err)

		repriced := menu()[0]
		repriced.Price = 999
		repriced.InventoryCount = 8
		f.ledger.Put(repriced)

		stored, err := f.service.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(647), stored.TotalAmount)
		assert.Equal(t, int64(299), stored.Items[0].Price)
	})

	t.Run("upi orders wait in pending", func(t *testing.T) {
		f := newFixture(t, NewMemoryStore())
		req := pizzaAndCoke()
		req.PaymentMethod = "upi"

		order, err := f.service.CreateOrder(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, order.Status)
	})

	t.Run("identical submissions get increasing numbers", func(t *testing.T) {
		f := newFixture(t, NewMemoryStore())

		first, err := f.service.CreateOrder(ctx, pizzaAndCoke())
		require.NoError(t, err)
		second, err := f.service.CreateOrder(ctx, pizzaAndCoke())
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, "ORD00001", first.Number)
		assert.Equal(t, "ORD00002", second.Number)
		assert.Greater(t, second.Sequence, first.Sequence)
	})

	t.Run("legacy table number is accepted as given", func(t *testing.T) {
		f := newFixture(t, NewMemoryStore())
		req := pizzaAndCoke()
		req.Table = TableRef{TableNumber: 12}

		order, err := f.service.CreateOrder(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "T12", order.TableID)
		assert.Equal(t, 12, order.TableNumber)
	})

	t.Run("missing table defaults to table one", func(t *testing.T) {
		f := newFixture(t, NewMemoryStore())
		req := pizzaAndCoke()
		req.Table = TableRef{}

		order, err := f.service.CreateOrder(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "T1", order.TableID)
		assert.Equal(t, 1, order.TableNumber)
	})
}

func TestService_CreateOrderRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*CreateOrderRequest)
		wantErr error
	}{
		{
			name:    "unknown table id",
			mutate:  func(r *CreateOrderRequest) { r.Table = TableRef{TableID: "T77"} },
			wantErr: domain.ErrInvalidTable,
		},
		{
			name:    "inactive table",
			mutate:  func(r *CreateOrderRequest) { r.Table = TableRef{TableID: "T9"} },
			wantErr: domain.ErrInvalidTable,
		},
		{
			name: "unknown menu item",
			mutate: func(r *CreateOrderRequest) {
				r.Items = append(r.Items, LineRequest{MenuItemID: "ghost", Name: "Ghost Burger", Quantity: 1})
			},
			wantErr: domain.ErrLineItemInvalid,
		},
		{
			name:    "disabled item",
			mutate:  func(r *CreateOrderRequest) { r.Items = append(r.Items, LineRequest{MenuItemID: "salad", Quantity: 1}) },
			wantErr: domain.ErrOutOfStock,
		},
		{
			name:    "later line short of stock",
			mutate:  func(r *CreateOrderRequest) { r.Items = append(r.Items, LineRequest{MenuItemID: "coke", Quantity: 10}) },
			wantErr: domain.ErrOutOfStock,
		},
		{
			name:    "invalid payment method",
			mutate:  func(r *CreateOrderRequest) { r.PaymentMethod = "cheque" },
			wantErr: domain.ErrInvalidOrder,
		},
		{
			name:    "no items",
			mutate:  func(r *CreateOrderRequest) { r.Items = nil },
			wantErr: domain.ErrInvalidOrder,
		},
		{
			name:    "zero quantity",
			mutate:  func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 },
			wantErr: domain.ErrInvalidOrder,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			f := newFixture(t, NewMemoryStore())
			req := pizzaAndCoke()
			testCase.mutate(&req)

			_, err := f.service.CreateOrder(ctx, req)
			require.ErrorIs(t, err, testCase.wantErr)

			assert.Equal(t, 10, stockOf(t, f.ledger, "pizza"), "no stock may stay reserved")
			assert.Equal(t, 10, stockOf(t, f.ledger, "coke"), "no stock may stay reserved")
			assert.Empty(t, f.broadcaster.names())

			active, err := f.service.GetActiveOrders(ctx)
			require.NoError(t, err)
			assert.Empty(t, active)
		})
	}
}

func TestService_CreateOrderOutOfStockNamesTheItem(t *testing.T) {
	f := newFixture(t, NewMemoryStore())
	req := pizzaAndCoke()
	req.Items = []LineRequest{{MenuItemID: "pizza", Quantity: 6}, {MenuItemID: "pizza", Quantity: 5}}

	_, err := f.service.CreateOrder(context.Background(), req)

	var stockErr *domain.OutOfStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "Pizza", stockErr.Name)
	assert.Equal(t, 11, stockErr.Requested)
	assert.Equal(t, 10, stockErr.Available)
	assert.Contains(t, err.Error(), "Pizza")
}

func TestService_ConcurrentOrdersForScarceItem(t *testing.T) {
	f := newFixture(t, NewMemoryStore())
	f.ledger.Put(domain.MenuItem{ID: "pizza", Name: "Pizza", Price: 299, Available: true, InventoryCount: 5})

	req := CreateOrderRequest{Items: []LineRequest{{MenuItemID: "pizza", Quantity: 3}}}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.CreateOrder(context.Background(), req)
		}(i)
	}
	wg.Wait()

	var succeeded, outOfStock int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrOutOfStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, outOfStock)
	assert.Equal(t, 2, stockOf(t, f.ledger, "pizza"))
}

func TestService_TransitionStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("prepared to delivered then back fails", func(t *testing.T) {
		f := newFixture(t, NewMemoryStore())
		order, err := f.service.CreateOrder(ctx, pizzaAndCoke())
		require.NoError(t, err)

		_, err = f.service.TransitionStatus(ctx, order.ID, "prepared")
		require.NoError(t, err)

		delivered, err := f.service.TransitionStatus(ctx, order.ID, "delivered")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDelivered, delivered.Status)

		_, err = f.service.TransitionStatus(ctx, order.ID, "preparing")
		require.ErrorIs(t, err, domain.ErrInvalidTransition)

		stored, err := f.service.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDelivered, stored.Status)

		assert.Equal(t, []domain.EventName{
			domain.EventOrderCreated,
			domain.EventOrderUpdated,
			domain.EventOrderUpdated,
		}, f.broadcaster.names())
	})

	t.Run("same status is a silent no-op", func(t *testing.T) {
		f := newFixture(t, NewMemoryStore())
		order, err := f.service.CreateOrder(ctx, pizzaAndCoke())
		require.NoError(t, err)

		same, err := f.service.TransitionStatus(ctx, order.ID, "preparing")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPreparing, same.Status)
		assert.Equal(t, order.UpdatedAt, same.UpdatedAt)
		assert.Equal(t, []domain.EventName{domain.EventOrderCreated}, f.broadcaster.names())
	})

	t.Run("unknown target status", func(t *testing.T) {
		f := newFixture(t, NewMemoryStore())
		order, err := f.service.CreateOrder(ctx, pizzaAndCoke())
		require.NoError(t, err)

		_, err = f.service.TransitionStatus(ctx, order.ID, "eaten")
		assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture(t, NewMemoryStore())
		_, err := f.service.TransitionStatus(ctx, "missing", "prepared")
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("configured table can forbid cancelling during preparation", func(t *testing.T) {
		table := domain.DefaultTransitions()
		table[domain.StatusPreparing] = []domain.Status{domain.StatusPrepared}
		f := newFixture(t, NewMemoryStore(), WithTransitions(table))

		order, err := f.service.CreateOrder(ctx, pizzaAndCoke())
		require.NoError(t, err)

		_, err = f.service.TransitionStatus(ctx, order.ID, "cancelled")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("cancelling keeps stock unless release is enabled", func(t *testing.T) {
		f := newFixture(t, NewMemoryStore())
		order, err := f.service.CreateOrder(ctx, pizzaAndCoke())
		require.NoError(t, err)
		_, err = f.service.TransitionStatus(ctx, order.ID, "cancelled")
		require.NoError(t, err)
		assert.Equal(t, 8, stockOf(t, f.ledger, "pizza"))

		f = newFixture(t, NewMemoryStore(), WithReleaseOnCancel(true))
		order, err = f.service.CreateOrder(ctx, pizzaAndCoke())
		require.NoError(t, err)
		_, err = f.service.TransitionStatus(ctx, order.ID, "cancelled")
		require.NoError(t, err)
		assert.Equal(t, 10, stockOf(t, f.ledger, "pizza"))
		assert.Equal(t, 10, stockOf(t, f.ledger, "coke"))
	})
}

type staleOnceStore struct {
	*MemoryStore
	stale bool
}

func (s *staleOnceStore) UpdateStatus(ctx context.Context, id string, next, expected domain.Status, at time.Time) (*domain.Order, error) {
	if !s.stale {
		s.stale = true
		return nil, ErrStaleStatus
	}
	return s.MemoryStore.UpdateStatus(ctx, id, next, expected, at)
}

// paymentBetweenStore records a payment after the first read of an order,
// landing between a status change's read and its write.
type paymentBetweenStore struct {
	*MemoryStore
	payment func()
}

func (s *paymentBetweenStore) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.MemoryStore.FindByID(ctx, id)
	if pay := s.payment; pay != nil && err == nil {
		s.payment = nil
		pay()
	}
	return order, err
}

func TestService_TransitionStatusRetriesOnConcurrentWrite(t *testing.T) {
	store := &staleOnceStore{MemoryStore: NewMemoryStore()}
	f := newFixture(t, store)

	order, err := f.service.CreateOrder(context.Background(), pizzaAndCoke())
	require.NoError(t, err)

	updated, err := f.service.TransitionStatus(context.Background(), order.ID, "prepared")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPrepared, updated.Status)
	assert.True(t, store.stale)
}

func TestService_TransitionStatusKeepsConcurrentPayment(t *testing.T) {
	ctx := context.Background()
	store := &paymentBetweenStore{MemoryStore: NewMemoryStore()}
	f := newFixture(t, store)

	order, err := f.service.CreateOrder(ctx, pizzaAndCoke())
	require.NoError(t, err)
	require.Equal(t, domain.StatusPreparing, order.Status)

	store.payment = func() {
		paid := order.Clone()
		paid.PaymentMethod = domain.PaymentCard
		paid.PaymentStatus = domain.PaymentPaid
		txID := "tx-1"
		paid.TransactionID = &txID
		require.NoError(t, store.MemoryStore.UpdatePayment(ctx, &paid, domain.StatusPreparing))
	}

	updated, err := f.service.TransitionStatus(ctx, order.ID, "prepared")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, updated.PaymentStatus)

	stored, err := store.MemoryStore.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPrepared, stored.Status)
	assert.Equal(t, domain.PaymentCard, stored.PaymentMethod)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
	require.NotNil(t, stored.TransactionID)
	assert.Equal(t, "tx-1", *stored.TransactionID)

	last := f.broadcaster.events[len(f.broadcaster.events)-1]
	require.IsType(t, domain.OrderUpdated{}, last)
	assert.Equal(t, domain.PaymentPaid, last.(domain.OrderUpdated).Order.PaymentStatus)
}

func TestService_UpdatePaymentRetriesAfterStatusMoved(t *testing.T) {
	ctx := context.Background()
	store := &paymentBetweenStore{MemoryStore: NewMemoryStore()}
	f := newFixture(t, store)

	order, err := f.service.CreateOrder(ctx, pizzaAndCoke())
	require.NoError(t, err)

	store.payment = func() {
		_, err := store.MemoryStore.UpdateStatus(ctx, order.ID, domain.StatusPrepared, domain.StatusPreparing, time.Now())
		require.NoError(t, err)
	}

	updated, err := f.service.UpdatePayment(ctx, PaymentUpdate{
		OrderID: order.ID, PaymentMethod: "card", PaymentStatus: "paid", TransactionID: "tx-2",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPrepared, updated.Status)

	stored, err := store.MemoryStore.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPrepared, stored.Status)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
}

func TestService_UpdatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("paid upi order moves to the kitchen", func(t *testing.T) {
		f := newFixture(t, NewMemoryStore())
		req := pizzaAndCoke()
		req.PaymentMethod = "upi"
		order, err := f.service.CreateOrder(ctx, req)
		require.NoError(t, err)

		updated, err := f.service.UpdatePayment(ctx, PaymentUpdate{
			OrderID:       order.ID,
			PaymentMethod: "upi",
			PaymentStatus: "paid",
			TransactionID: "txn-1",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPreparing, updated.Status)
		assert.Equal(t, domain.PaymentPaid, updated.PaymentStatus)
		require.NotNil(t, updated.TransactionID)
		assert.Equal(t, "txn-1", *updated.TransactionID)

		assert.Equal(t, []domain.EventName{
			domain.EventOrderCreated,
			domain.EventPaymentUpdated,
			domain.EventOrderUpdated,
		}, f.broadcaster.names())

		verification, err := f.service.VerifyPayment(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.Number, verification.OrderNumber)
		assert.Equal(t, domain.PaymentPaid, verification.PaymentStatus)
		assert.Equal(t, int64(647), verification.TotalAmount)
	})

	t.Run("failed payment leaves status alone", func(t *testing.T) {
		f := newFixture(t, NewMemoryStore())
		order, err := f.service.CreateOrder(ctx, pizzaAndCoke())
		require.NoError(t, err)

		updated, err := f.service.UpdatePayment(ctx, PaymentUpdate{OrderID: order.ID, PaymentMethod: "card", PaymentStatus: "failed"})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPreparing, updated.Status)
		assert.Equal(t, domain.PaymentCard, updated.PaymentMethod)
		assert.Nil(t, updated.TransactionID)
		assert.Equal(t, []domain.EventName{domain.EventOrderCreated, domain.EventPaymentUpdated}, f.broadcaster.names())
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t, NewMemoryStore())

		_, err := f.service.UpdatePayment(ctx, PaymentUpdate{OrderID: "x", PaymentMethod: "cash"})
		assert.ErrorIs(t, err, domain.ErrInvalidOrder)

		_, err = f.service.UpdatePayment(ctx, PaymentUpdate{OrderID: "x", PaymentMethod: "cash", PaymentStatus: "refunded"})
		assert.ErrorIs(t, err, domain.ErrInvalidOrder)

		_, err = f.service.UpdatePayment(ctx, PaymentUpdate{OrderID: "x", PaymentMethod: "cash", PaymentStatus: "paid"})
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}

func TestService_PersistenceDisabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, NewDisabledStore())

	order, err := f.service.CreateOrder(ctx, pizzaAndCoke())
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "ORD00001", order.Number)
	assert.Equal(t, int64(647), order.TotalAmount)
	assert.False(t, order.CreatedAt.IsZero())
	assert.Equal(t, []domain.EventName{domain.EventOrderCreated}, f.broadcaster.names())

	active, err := f.service.GetActiveOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	byTable, err := f.service.ListByTable(ctx, "T4")
	require.NoError(t, err)
	assert.Empty(t, byTable)

	_, err = f.service.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrPersistenceUnavailable)

	_, err = f.service.TransitionStatus(ctx, order.ID, "prepared")
	assert.ErrorIs(t, err, domain.ErrPersistenceUnavailable)

	second, err := f.service.CreateOrder(ctx, pizzaAndCoke())
	require.NoError(t, err)
	assert.Equal(t, "ORD00002", second.Number)
}

func TestMemoryStore_FindActiveNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	save := func(id string, status domain.Status, at time.Time) {
		require.NoError(t, store.Save(ctx, &domain.Order{ID: id, TableID: "T1", Status: status, CreatedAt: at}))
	}
	save("old", domain.StatusPreparing, base)
	save("tie-first", domain.StatusPending, base.Add(time.Minute))
	save("tie-second", domain.StatusPrepared, base.Add(time.Minute))
	save("done", domain.StatusDelivered, base.Add(2*time.Minute))

	active, err := store.FindActive(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(active))
	for _, o := range active {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"tie-second", "tie-first", "old"}, ids)

	byTable, err := store.FindByTable(ctx, "T1")
	require.NoError(t, err)
	assert.Len(t, byTable, 4)
	assert.Equal(t, "done", byTable[0].ID)
}
