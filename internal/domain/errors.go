package domain

import (
	"errors"
	"fmt"
)

var (
	ErrLineItemInvalid        = errors.New("line item invalid")
	ErrOutOfStock             = errors.New("out of stock")
	ErrInvalidTable           = errors.New("invalid table")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrOrderNotFound          = errors.New("order not found")
	ErrPersistenceUnavailable = errors.New("order persistence disabled")
	ErrInvalidOrder           = errors.New("invalid order")
)

// OutOfStockError names the line that could not be served.
type OutOfStockError struct {
	ItemID    string
	Name      string
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ItemID
	}
	return fmt.Sprintf("%s is not available or insufficient stock (requested %d, available %d)", name, e.Requested, e.Available)
}

func (e *OutOfStockError) Unwrap() error {
	return ErrOutOfStock
}

type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
