package domain

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusPrepared  Status = "prepared"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{StatusPending, StatusPreparing, StatusPrepared, StatusDelivered, StatusCancelled}

func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// Active reports whether the order still belongs on a kitchen board.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusPreparing || s == StatusPrepared
}

// TransitionTable maps a status to the statuses it may move to.
// Statuses missing from the table, or mapped to nothing, are terminal.
type TransitionTable map[Status][]Status

// DefaultTransitions is the graph used when no table is configured.
func DefaultTransitions() TransitionTable {
	return TransitionTable{
		StatusPending:   {StatusPreparing, StatusCancelled},
		StatusPreparing: {StatusPrepared, StatusCancelled},
		StatusPrepared:  {StatusDelivered},
		StatusDelivered: {},
		StatusCancelled: {},
	}
}

func (t TransitionTable) Allows(from, to Status) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (t TransitionTable) Terminal(s Status) bool {
	return len(t[s]) == 0
}

// Validate rejects tables naming unknown statuses or letting a terminal status move.
func (t TransitionTable) Validate() error {
	for from, targets := range t {
		if _, err := ParseStatus(string(from)); err != nil {
			return err
		}
		if (from == StatusDelivered || from == StatusCancelled) && len(targets) > 0 {
			return fmt.Errorf("status %s is terminal and cannot have transitions", from)
		}
		for _, to := range targets {
			if _, err := ParseStatus(string(to)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Next returns the target status when the move is allowed. Re-applying the
// current status is accepted unchanged so duplicate commands from several
// kitchen stations do not fail.
func (t TransitionTable) Next(current, target Status) (Status, error) {
	if current == target {
		return current, nil
	}
	if !t.Allows(current, target) {
		return current, &TransitionError{From: current, To: target}
	}
	return target, nil
}
