package kitchen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

// StatusUpdater sends a status transition to the orders service and reads
// an order back when the outcome of a transition is unknown.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID string, status domain.Status) (domain.Order, error)
	Order(ctx context.Context, orderID string) (domain.Order, error)
}

// Coordinator owns the kitchen View and the staff commands issued against it.
type Coordinator struct {
	mu       sync.Mutex
	view     View
	updater  StatusUpdater
	logger   *slog.Logger
	onChange func(Buckets)
}

type CoordinatorOption func(*Coordinator)

// WithOnChange registers a callback run after every change to the view.
func WithOnChange(fn func(Buckets)) CoordinatorOption {
	return func(c *Coordinator) {
		c.onChange = fn
	}
}

func NewCoordinator(updater StatusUpdater, logger *slog.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		view:    NewView(nil),
		updater: updater,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the view with a fetched snapshot.
func (c *Coordinator) Load(orders []domain.Order) {
	c.update(func(View) View { return NewView(orders) })
}

func (c *Coordinator) Apply(event domain.Event) {
	c.update(func(v View) View { return v.Apply(event) })
}

func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Coordinator) Buckets() Buckets {
	return c.View().Buckets()
}

// Move shows the order in its target status at once and asks the server to
// make it so. A rejected move is reverted only while the order still shows
// the optimistic status, so a newer broadcast is never overwritten. When the
// server gives no answer the order is read back instead of reverted.
func (c *Coordinator) Move(ctx context.Context, orderID string, target domain.Status) (domain.Order, error) {
	var previous domain.Status
	var found bool
	c.update(func(v View) View {
		o, ok := v.Find(orderID)
		if !ok {
			return v
		}
		found, previous = true, o.Status
		return v.withStatus(orderID, target)
	})
	if !found {
		return domain.Order{}, fmt.Errorf("%w: %s is not on the board", domain.ErrOrderNotFound, orderID)
	}

	updated, err := c.updater.UpdateStatus(ctx, orderID, target)
	if err == nil {
		c.Apply(domain.OrderUpdated{Order: updated})
		return updated, nil
	}

	if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrOrderNotFound) {
		c.logger.Warn("status move rejected", "order_id", orderID, "from", previous, "to", target, "error", err)
		c.whileOptimistic(orderID, target, func(v View) View { return v.withStatus(orderID, previous) })
		return domain.Order{}, err
	}

	c.logger.Warn("status move outcome unknown, reloading order", "order_id", orderID, "to", target, "error", err)
	current, fetchErr := c.updater.Order(ctx, orderID)
	if fetchErr != nil {
		c.logger.Error("failed to reload order", "order_id", orderID, "error", fetchErr)
		return domain.Order{}, err
	}
	c.whileOptimistic(orderID, target, func(v View) View { return v.Apply(domain.OrderUpdated{Order: current}) })
	return domain.Order{}, err
}

// whileOptimistic applies fn only if the order still shows target.
func (c *Coordinator) whileOptimistic(orderID string, target domain.Status, fn func(View) View) {
	c.update(func(v View) View {
		if o, ok := v.Find(orderID); ok && o.Status == target {
			return fn(v)
		}
		return v
	})
}

func (c *Coordinator) update(fn func(View) View) {
	c.mu.Lock()
	c.view = fn(c.view)
	buckets := c.view.Buckets()
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(buckets)
	}
}
