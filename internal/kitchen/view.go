package kitchen

import "github.com/joao-fontenele/quickserve/internal/domain"

// View is the kitchen's local list of orders. It is a value: every change
// returns a new View and never mutates orders held by an older one.
type View struct {
	orders []domain.Order
}

func NewView(orders []domain.Order) View {
	v := View{orders: make([]domain.Order, 0, len(orders))}
	for _, o := range orders {
		v.orders = append(v.orders, o.Clone())
	}
	return v
}

// Apply folds one broadcast event into the view. Updates for orders the view
// has never seen are ignored: a partial entry would be worse than a gap.
func (v View) Apply(event domain.Event) View {
	switch ev := event.(type) {
	case domain.OrderCreated:
		if next, ok := v.replace(ev.Order.ID, func(domain.Order) domain.Order { return ev.Order.Clone() }); ok {
			return next
		}
		return View{orders: append(v.copyOrders(), ev.Order.Clone())}
	case domain.OrderUpdated:
		next, _ := v.replace(ev.Order.ID, func(domain.Order) domain.Order { return ev.Order.Clone() })
		return next
	case domain.PaymentUpdated:
		p := ev.Payment
		next, _ := v.replace(p.OrderID, func(o domain.Order) domain.Order {
			o.PaymentMethod = p.PaymentMethod
			o.PaymentStatus = p.PaymentStatus
			if p.TransactionID != nil {
				id := *p.TransactionID
				o.TransactionID = &id
			}
			return o
		})
		return next
	}
	return v
}

func (v View) Find(id string) (domain.Order, bool) {
	for _, o := range v.orders {
		if o.ID == id {
			return o.Clone(), true
		}
	}
	return domain.Order{}, false
}

func (v View) Orders() []domain.Order {
	return v.copyOrders()
}

func (v View) withStatus(id string, status domain.Status) View {
	next, _ := v.replace(id, func(o domain.Order) domain.Order {
		o.Status = status
		return o
	})
	return next
}

func (v View) replace(id string, fn func(domain.Order) domain.Order) (View, bool) {
	for i, o := range v.orders {
		if o.ID == id {
			orders := v.copyOrders()
			orders[i] = fn(o.Clone())
			return View{orders: orders}, true
		}
	}
	return v, false
}

func (v View) copyOrders() []domain.Order {
	orders := make([]domain.Order, len(v.orders))
	copy(orders, v.orders)
	return orders
}

// Buckets are the kitchen board columns.
type Buckets struct {
	Preparing []domain.Order
	Prepared  []domain.Order
	Delivered []domain.Order
}

// Buckets partitions the view by status. It is recomputed from the full list
// on every call.
func (v View) Buckets() Buckets {
	return Buckets{
		Preparing: v.filter(domain.StatusPreparing),
		Prepared:  v.filter(domain.StatusPrepared),
		Delivered: v.filter(domain.StatusDelivered),
	}
}

func (v View) filter(status domain.Status) []domain.Order {
	var out []domain.Order
	for _, o := range v.orders {
		if o.Status == status {
			out = append(out, o.Clone())
		}
	}
	return out
}
