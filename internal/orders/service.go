package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/quickserve/internal/domain"
	"github.com/joao-fontenele/quickserve/internal/inventory"
)

// maxUpdateAttempts bounds the re-read loop when another writer changes the
// order between our read and our conditional write.
const maxUpdateAttempts = 3

// Broadcaster fans an event out to subscribers. It never reports failure.
type Broadcaster interface {
	Publish(ctx context.Context, event domain.Event)
}

type Service struct {
	store           Store
	ledger          inventory.Ledger
	tables          TableFinder
	broadcaster     Broadcaster
	transitions     domain.TransitionTable
	releaseOnCancel bool
	now             func() time.Time
	logger          *slog.Logger
	metrics         *serviceMetrics
}

type Option func(*Service)

func WithTransitions(table domain.TransitionTable) Option {
	return func(s *Service) { s.transitions = table }
}

// WithReleaseOnCancel returns the reserved stock of an order when it is cancelled.
func WithReleaseOnCancel(release bool) Option {
	return func(s *Service) { s.releaseOnCancel = release }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, ledger inventory.Ledger, tables TableFinder, broadcaster Broadcaster, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		ledger:      ledger,
		tables:      tables,
		broadcaster: broadcaster,
		transitions: domain.DefaultTransitions(),
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
		metrics:     newServiceMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type LineRequest struct {
	MenuItemID          string `json:"menu_item_id"`
	Name                string `json:"name,omitempty"`
	Quantity            int    `json:"quantity"`
	SpecialInstructions string `json:"special_instructions,omitempty"`
}

type CreateOrderRequest struct {
	Table         TableRef
	Items         []LineRequest
	PaymentMethod string
	CustomerPhone string
}

type reservation struct {
	itemID   string
	quantity int
}

func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.create", trace.WithAttributes(
		attribute.Int("order.lines", len(req.Items)),
	))
	defer span.End()

	order, err := s.createOrder(ctx, req)
	if err != nil {
		s.metrics.recordRejected(ctx, rejectionReason(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("order.number", order.Number))
	s.metrics.recordCreated(ctx, order)
	s.broadcaster.Publish(ctx, domain.OrderCreated{Order: order.Clone()})
	return order, nil
}

func (s *Service) createOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", domain.ErrInvalidOrder)
	}
	for _, line := range req.Items {
		if line.MenuItemID == "" {
			return nil, fmt.Errorf("%w: line item without menu item id", domain.ErrInvalidOrder)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", domain.ErrInvalidOrder, lineLabel(line))
		}
	}

	method := domain.PaymentCash
	if req.PaymentMethod != "" {
		var err error
		if method, err = domain.ParsePaymentMethod(req.PaymentMethod); err != nil {
			return nil, err
		}
	}

	tableID, tableNumber, err := s.resolveTable(ctx, req.Table)
	if err != nil {
		return nil, err
	}

	items, err := s.validateLines(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	reserved, err := s.reserveLines(ctx, req.Items, items)
	if err != nil {
		return nil, err
	}

	seq, err := s.store.NextSequence(ctx)
	if err != nil {
		s.release(ctx, reserved)
		return nil, fmt.Errorf("allocate order number: %w", err)
	}

	lines := make([]domain.LineItem, 0, len(req.Items))
	for _, line := range req.Items {
		item := items[line.MenuItemID]
		lines = append(lines, domain.LineItem{
			MenuItemID:          item.ID,
			Name:                item.Name,
			Price:               item.Price,
			Quantity:            line.Quantity,
			SpecialInstructions: line.SpecialInstructions,
		})
	}

	now := s.now()
	order := &domain.Order{
		ID:            uuid.New().String(),
		Number:        domain.OrderNumber(seq),
		Sequence:      seq,
		TableID:       tableID,
		TableNumber:   tableNumber,
		CustomerPhone: req.CustomerPhone,
		Items:         lines,
		Status:        domain.InitialStatus(method),
		TotalAmount:   domain.Total(lines),
		PaymentMethod: method,
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.Save(ctx, order); err != nil {
		s.release(ctx, reserved)
		return nil, fmt.Errorf("save order: %w", err)
	}

	if s.store.Persistent() {
		s.logger.Info("order created", "order_id", order.ID, "order_number", order.Number, "table_id", order.TableID)
	} else {
		s.logger.Warn("order created but not persisted", "order_id", order.ID, "order_number", order.Number)
	}

	return order, nil
}

// resolveTable accepts a structured id only when it names an active table.
// A bare number is taken as given.
func (s *Service) resolveTable(ctx context.Context, ref TableRef) (string, int, error) {
	if ref.TableID == "" {
		number := ref.TableNumber
		if number <= 0 {
			number = 1
		}
		return fmt.Sprintf("T%d", number), number, nil
	}

	table, err := s.tables.FindTable(ctx, ref.TableID)
	if errors.Is(err, ErrTableNotFound) {
		return "", 0, fmt.Errorf("%w: table %s not found", domain.ErrInvalidTable, ref.TableID)
	}
	if err != nil {
		return "", 0, fmt.Errorf("find table %s: %w", ref.TableID, err)
	}
	if !table.IsActive {
		return "", 0, fmt.Errorf("%w: table %s is not active", domain.ErrInvalidTable, ref.TableID)
	}

	number := tableNumberFromID(table.TableID)
	if number == 0 {
		number = ref.TableNumber
	}
	if number <= 0 {
		number = 1
	}
	return table.TableID, number, nil
}

// validateLines checks every line before anything is reserved. Quantities of
// repeated items are summed so the check covers the whole order.
func (s *Service) validateLines(ctx context.Context, lines []LineRequest) (map[string]*domain.MenuItem, error) {
	items := make(map[string]*domain.MenuItem, len(lines))
	requested := make(map[string]int, len(lines))
	var order []string

	for _, line := range lines {
		if _, seen := items[line.MenuItemID]; !seen {
			item, err := s.ledger.GetItem(ctx, line.MenuItemID)
			if errors.Is(err, inventory.ErrItemNotFound) {
				return nil, fmt.Errorf("%w: menu item %s not found", domain.ErrLineItemInvalid, lineLabel(line))
			}
			if err != nil {
				return nil, fmt.Errorf("get menu item %s: %w", line.MenuItemID, err)
			}
			items[line.MenuItemID] = item
			order = append(order, line.MenuItemID)
		}
		requested[line.MenuItemID] += line.Quantity
	}

	for _, id := range order {
		item := items[id]
		if !item.CanServe(requested[id]) {
			return nil, &domain.OutOfStockError{
				ItemID:    item.ID,
				Name:      item.Name,
				Requested: requested[id],
				Available: availableUnits(item),
			}
		}
	}
	return items, nil
}

// reserveLines commits the lines in input order. Validation already passed,
// so a shortfall here means a concurrent order won the stock; everything
// reserved so far is handed back.
func (s *Service) reserveLines(ctx context.Context, lines []LineRequest, items map[string]*domain.MenuItem) ([]reservation, error) {
	reserved := make([]reservation, 0, len(lines))
	for _, line := range lines {
		if _, err := s.ledger.Reserve(ctx, line.MenuItemID, line.Quantity); err != nil {
			s.release(ctx, reserved)

			if errors.Is(err, inventory.ErrInsufficientStock) {
				item := items[line.MenuItemID]
				available := 0
				if current, getErr := s.ledger.GetItem(ctx, line.MenuItemID); getErr == nil {
					available = availableUnits(current)
				}
				return nil, &domain.OutOfStockError{
					ItemID:    item.ID,
					Name:      item.Name,
					Requested: line.Quantity,
					Available: available,
				}
			}
			if errors.Is(err, inventory.ErrItemNotFound) {
				return nil, fmt.Errorf("%w: menu item %s not found", domain.ErrLineItemInvalid, lineLabel(line))
			}
			return nil, fmt.Errorf("reserve menu item %s: %w", line.MenuItemID, err)
		}
		reserved = append(reserved, reservation{itemID: line.MenuItemID, quantity: line.Quantity})
	}
	return reserved, nil
}

func (s *Service) release(ctx context.Context, reserved []reservation) {
	for _, r := range reserved {
		if err := s.ledger.Release(ctx, r.itemID, r.quantity); err != nil {
			s.logger.Error("failed to release stock", "error", err, "item_id", r.itemID, "quantity", r.quantity)
		}
	}
}

// TransitionStatus moves an order along the transition table. Asking for the
// status the order already has succeeds without writing or broadcasting.
func (s *Service) TransitionStatus(ctx context.Context, id string, target string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.transition", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.target_status", target),
	))
	defer span.End()

	to, err := domain.ParseStatus(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidOrder, err)
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := s.store.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}

		next, err := s.transitions.Next(current.Status, to)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if next == current.Status {
			return current, nil
		}

		updated, err := s.store.UpdateStatus(ctx, id, next, current.Status, s.now())
		if errors.Is(err, ErrStaleStatus) {
			s.logger.Warn("order changed during transition, retrying", "order_id", id, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update order %s: %w", id, err)
		}

		s.metrics.recordTransition(ctx, current.Status, next)
		s.logger.Info("order status updated", "order_id", id, "from", current.Status, "to", next)

		if next == domain.StatusCancelled && s.releaseOnCancel {
			s.releaseOrder(ctx, updated)
		}

		s.broadcaster.Publish(ctx, domain.OrderUpdated{Order: updated.Clone()})
		return updated, nil
	}

	span.SetStatus(codes.Error, ErrStaleStatus.Error())
	return nil, fmt.Errorf("transition order %s: %w", id, ErrStaleStatus)
}

func (s *Service) releaseOrder(ctx context.Context, order *domain.Order) {
	reserved := make([]reservation, 0, len(order.Items))
	for _, item := range order.Items {
		reserved = append(reserved, reservation{itemID: item.MenuItemID, quantity: item.Quantity})
	}
	s.release(ctx, reserved)
	s.logger.Info("stock released for cancelled order", "order_id", order.ID)
}

type PaymentUpdate struct {
	OrderID       string `json:"order_id"`
	PaymentMethod string `json:"payment_method"`
	PaymentStatus string `json:"payment_status"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// UpdatePayment records the payment fields. A paid pending order is released
// to the kitchen when the transition table allows pending -> preparing.
func (s *Service) UpdatePayment(ctx context.Context, req PaymentUpdate) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.update_payment", trace.WithAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.String("payment.status", req.PaymentStatus),
	))
	defer span.End()

	if req.OrderID == "" || req.PaymentMethod == "" || req.PaymentStatus == "" {
		return nil, fmt.Errorf("%w: order id, payment method and payment status are required", domain.ErrInvalidOrder)
	}
	status, err := domain.ParsePaymentStatus(req.PaymentStatus)
	if err != nil {
		return nil, err
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := s.store.FindByID(ctx, req.OrderID)
		if err != nil {
			return nil, err
		}

		updated := current.Clone()
		updated.PaymentMethod = method
		updated.PaymentStatus = status
		if req.TransactionID != "" {
			txID := req.TransactionID
			updated.TransactionID = &txID
		}
		if status == domain.PaymentPaid && current.Status == domain.StatusPending {
			if next, err := s.transitions.Next(current.Status, domain.StatusPreparing); err == nil {
				updated.Status = next
			}
		}
		updated.UpdatedAt = s.now()

		err = s.store.UpdatePayment(ctx, &updated, current.Status)
		if errors.Is(err, ErrStaleStatus) {
			s.logger.Warn("order changed during payment update, retrying", "order_id", req.OrderID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update payment of order %s: %w", req.OrderID, err)
		}

		s.logger.Info("payment status updated", "order_id", updated.ID, "payment_method", method, "payment_status", status)

		s.broadcaster.Publish(ctx, domain.PaymentUpdated{Payment: updated.Payment()})
		if updated.Status != current.Status {
			s.metrics.recordTransition(ctx, current.Status, updated.Status)
			s.broadcaster.Publish(ctx, domain.OrderUpdated{Order: updated.Clone()})
		}
		return &updated, nil
	}

	return nil, fmt.Errorf("update payment of order %s: %w", req.OrderID, ErrStaleStatus)
}

type PaymentVerification struct {
	OrderID       string               `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	Status        domain.Status        `json:"status"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	TransactionID *string              `json:"transaction_id"`
	TotalAmount   int64                `json:"total_amount"`
}

func (s *Service) VerifyPayment(ctx context.Context, id string) (*PaymentVerification, error) {
	order, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PaymentVerification{
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		TransactionID: order.TransactionID,
		TotalAmount:   order.TotalAmount,
	}, nil
}

func (s *Service) GetActiveOrders(ctx context.Context) ([]domain.Order, error) {
	return s.store.FindActive(ctx)
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.store.FindByID(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	return s.store.List(ctx, filter)
}

func (s *Service) ListByTable(ctx context.Context, tableID string) ([]domain.Order, error) {
	return s.store.FindByTable(ctx, tableID)
}

// Persistent reports whether created orders are stored.
func (s *Service) Persistent() bool {
	return s.store.Persistent()
}

func lineLabel(line LineRequest) string {
	if strings.TrimSpace(line.Name) != "" {
		return line.Name
	}
	return line.MenuItemID
}

func availableUnits(item *domain.MenuItem) int {
	if !item.Available {
		return 0
	}
	return item.InventoryCount
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrLineItemInvalid):
		return "line_item_invalid"
	case errors.Is(err, domain.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, domain.ErrInvalidTable):
		return "invalid_table"
	case errors.Is(err, domain.ErrInvalidOrder):
		return "invalid_order"
	}
	return "error"
}
