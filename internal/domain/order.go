package domain

import (
	"fmt"
	"time"

	"arrears/internal/errors"
)

type AccountKind string

const (
	AccountKindCustomer AccountKind = "CUSTOMER"
	AccountKindCompany  AccountKind = "COMPANY"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusOverdue   OrderStatus = "OVERDUE"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

type Order struct {
	ID           uint
	PlacedBy     string
	AccountKind  AccountKind
	AmountDue    int64
	Status       OrderStatus
	PlacedAt     time.Time
	PaymentDueAt *time.Time
	PaidAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewOrder builds a PENDING order. Company accounts buy on credit, so they
// get a payment window of paymentTerm counted from placedAt; everyone else
// pays on the spot and carries no due date.
func NewOrder(placedBy string, kind AccountKind, amountDue int64, placedAt time.Time, paymentTerm time.Duration) (*Order, error) {
	if amountDue <= 0 {
		return nil, errors.NewInvalidAmountError(fmt.Sprintf("amount due must be positive, got %d", amountDue))
	}
	switch kind {
	case AccountKindCustomer, AccountKindCompany:
	default:
		return nil, errors.NewUnknownAccountKindError(fmt.Sprintf("account kind %q is not recognized", kind))
	}

	order := &Order{
		PlacedBy:    placedBy,
		AccountKind: kind,
		AmountDue:   amountDue,
		Status:      OrderStatusPending,
		PlacedAt:    placedAt,
	}
	if kind == AccountKindCompany {
		dueAt := placedAt.Add(paymentTerm)
		order.PaymentDueAt = &dueAt
	}
	return order, nil
}

// Settle records a full payment. The amount has to match AmountDue exactly;
// partial and excess payments are rejected without changing the order.
// Settling is allowed from PENDING and OVERDUE, so a late payment on an
// already overdue order still lands as PAID.
func (o *Order) Settle(amount int64, paidAt time.Time) error {
	if o.Status.IsTerminal() {
		return errors.NewAlreadySettledError(fmt.Sprintf("order %d is already %s", o.ID, o.Status))
	}
	if amount != o.AmountDue {
		return errors.NewAmountMismatchError(o.AmountDue, amount)
	}
	if paidAt.Before(o.PlacedAt) {
		return errors.NewValidationError("payment timestamp precedes order placement", errors.ValidationDetail{
			Field:   "paidAt",
			Message: fmt.Sprintf("must not be before %s", o.PlacedAt.Format(time.RFC3339)),
		})
	}
	o.Status = OrderStatusPaid
	at := paidAt
	o.PaidAt = &at
	return nil
}

// Cancel voids the order. Allowed from PENDING and OVERDUE.
func (o *Order) Cancel() error {
	if o.Status.IsTerminal() {
		return errors.NewAlreadySettledError(fmt.Sprintf("order %d is already %s", o.ID, o.Status))
	}
	o.Status = OrderStatusCancelled
	return nil
}

// PastDue reports whether the payment window has elapsed at asOf. An order
// due exactly at asOf is not past due yet.
func (o *Order) PastDue(asOf time.Time) bool {
	return o.PaymentDueAt != nil && asOf.After(*o.PaymentDueAt)
}

// MarkOverdue flips a pending company order whose window elapsed to OVERDUE.
// Returns false when the order no longer qualifies, so sweep races resolve
// to a skip instead of an error.
func (o *Order) MarkOverdue(asOf time.Time) bool {
	if o.Status != OrderStatusPending || o.AccountKind != AccountKindCompany {
		return false
	}
	if !o.PastDue(asOf) {
		return false
	}
	o.Status = OrderStatusOverdue
	return true
}
