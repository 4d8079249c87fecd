package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseStatus represents the status of a purchase.
type PurchaseStatus string

const (
	PurchaseStatusReserved  PurchaseStatus = "reserved"
	PurchaseStatusPaid      PurchaseStatus = "paid"
	PurchaseStatusCancelled PurchaseStatus = "cancelled"
	PurchaseStatusRefunded  PurchaseStatus = "refunded"
)

// IsValid checks if the status is a valid PurchaseStatus.
func (s PurchaseStatus) IsValid() bool {
	switch s {
	case PurchaseStatusReserved, PurchaseStatusPaid, PurchaseStatusCancelled, PurchaseStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of PurchaseStatus.
func (s PurchaseStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are allowed.
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusCancelled || s == PurchaseStatusRefunded
}

// CanTransition reports whether the edge s -> to is allowed. The only
// legal edges are reserved -> {paid, cancelled} and paid -> refunded.
func (s PurchaseStatus) CanTransition(to PurchaseStatus) bool {
	switch s {
	case PurchaseStatusReserved:
		return to == PurchaseStatusPaid || to == PurchaseStatusCancelled
	case PurchaseStatusPaid:
		return to == PurchaseStatusRefunded
	}
	return false
}

// Purchase groups one or more tickets sharing a balance and a status.
// AmountDue is the outstanding balance and must equal the sum of the
// purchase's signed ledger deltas at all times.
type Purchase struct {
	ID            string          `json:"id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone"`
	AmountDue     decimal.Decimal `json:"amount_due"`
	Status        PurchaseStatus  `json:"status"`
	Deadline      time.Time       `json:"deadline"`
	PaymentMethod string          `json:"payment_method"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Transition moves the purchase to a new status, enforcing the state
// machine edges. It fails with ErrInvalidTransition and leaves the
// purchase untouched on an illegal edge.
func (p *Purchase) Transition(to PurchaseStatus, now time.Time) error {
	if !p.Status.CanTransition(to) {
		return ErrInvalidTransition
	}
	p.Status = to
	p.UpdatedAt = now
	return nil
}

// Apply adds a signed ledger delta to the outstanding balance.
func (p *Purchase) Apply(delta decimal.Decimal, now time.Time) {
	p.AmountDue = p.AmountDue.Add(delta)
	p.UpdatedAt = now
}

// IsExpiredAt reports whether a reserved purchase has passed its
// payment deadline at the given time.
func (p *Purchase) IsExpiredAt(t time.Time) bool {
	return p.Status == PurchaseStatusReserved && !p.Deadline.IsZero() && t.After(p.Deadline)
}
