package order

import "github.com/go-faster/errors"

// Status is the position of an order in the fulfilment pipeline.
type Status string

const (
	StatusOpen      Status = "open"
	StatusMaking    Status = "making"
	StatusFulfilled Status = "fulfilled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every known status in pipeline order.
var Statuses = []Status{StatusOpen, StatusMaking, StatusFulfilled, StatusCompleted, StatusCancelled}

// ParseStatus converts s to a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", errors.Errorf("unknown order status %q", s)
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	switch s {
	case StatusFulfilled, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Trigger identifies who or what requests a transition.
type Trigger string

const (
	TriggerStaff            Trigger = "staff"
	TriggerPaymentConfirmed Trigger = "payment_confirmed"
	TriggerPaymentFailed    Trigger = "payment_failed"
)

type edge struct {
	from    Status
	to      Status
	trigger Trigger
}

var transitions = map[edge]struct{}{
	{StatusOpen, StatusMaking, TriggerStaff}:                 {},
	{StatusMaking, StatusFulfilled, TriggerStaff}:            {},
	{StatusOpen, StatusCompleted, TriggerPaymentConfirmed}:   {},
	{StatusMaking, StatusCompleted, TriggerPaymentConfirmed}: {},
	{StatusOpen, StatusCancelled, TriggerPaymentFailed}:      {},
	{StatusMaking, StatusCancelled, TriggerPaymentFailed}:    {},
}

// StaffSettable lists the statuses staff may request directly.
var StaffSettable = []Status{StatusMaking, StatusFulfilled}

// CanTransition reports whether trigger may move an order from one status to another.
func CanTransition(from, to Status, trigger Trigger) bool {
	_, ok := transitions[edge{from: from, to: to, trigger: trigger}]
	return ok
}

// CheckTransition returns an *InvalidTransitionError when the move is not allowed.
func CheckTransition(from, to Status, trigger Trigger) error {
	if !CanTransition(from, to, trigger) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}
