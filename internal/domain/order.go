package domain

import (
	"fmt"
	"time"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
	PaymentUPI  PaymentMethod = "upi"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentCash, PaymentCard, PaymentUPI:
		return m, nil
	}
	return "", fmt.Errorf("%w: invalid payment method %q", ErrInvalidOrder, s)
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(s); st {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: invalid payment status %q", ErrInvalidOrder, s)
}

// LineItem holds the name and price of the menu item as they were when the order was placed.
type LineItem struct {
	MenuItemID          string `json:"menu_item_id"`
	Name                string `json:"name"`
	Price               int64  `json:"price"`
	Quantity            int    `json:"quantity"`
	SpecialInstructions string `json:"special_instructions,omitempty"`
}

func (l LineItem) Subtotal() int64 {
	return l.Price * int64(l.Quantity)
}

type Order struct {
	ID            string        `json:"id"`
	Number        string        `json:"order_number"`
	Sequence      int64         `json:"-"`
	TableID       string        `json:"table_id"`
	TableNumber   int           `json:"table_number"`
	CustomerPhone string        `json:"customer_phone,omitempty"`
	Items         []LineItem    `json:"items"`
	Status        Status        `json:"status"`
	TotalAmount   int64         `json:"total_amount"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TransactionID *string       `json:"transaction_id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// OrderNumber formats the display number for a sequence value, e.g. ORD00001.
func OrderNumber(seq int64) string {
	return fmt.Sprintf("ORD%05d", seq)
}

// InitialStatus is the status an order is created in. UPI orders wait for the
// payment confirmation before they reach the kitchen.
func InitialStatus(method PaymentMethod) Status {
	if method == PaymentUPI {
		return StatusPending
	}
	return StatusPreparing
}

func Total(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

// Clone returns a copy that shares no slices or pointers with o.
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]LineItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	if o.TransactionID != nil {
		id := *o.TransactionID
		c.TransactionID = &id
	}
	return c
}

// Payment returns the payment fields broadcast with payment-updated.
func (o Order) Payment() PaymentInfo {
	return PaymentInfo{
		OrderID:       o.ID,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		TransactionID: o.TransactionID,
	}
}

type PaymentInfo struct {
	OrderID       string        `json:"order_id"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TransactionID *string       `json:"transaction_id,omitempty"`
}
