package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from PurchaseStatus
		to   PurchaseStatus
		want bool
	}{
		{PurchaseStatusReserved, PurchaseStatusPaid, true},
		{PurchaseStatusReserved, PurchaseStatusCancelled, true},
		{PurchaseStatusReserved, PurchaseStatusRefunded, false},
		{PurchaseStatusPaid, PurchaseStatusRefunded, true},
		{PurchaseStatusPaid, PurchaseStatusCancelled, false},
		{PurchaseStatusPaid, PurchaseStatusReserved, false},
		{PurchaseStatusCancelled, PurchaseStatusReserved, false},
		{PurchaseStatusCancelled, PurchaseStatusPaid, false},
		{PurchaseStatusRefunded, PurchaseStatusPaid, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestPurchaseStatus_IsTerminal(t *testing.T) {
	assert.False(t, PurchaseStatusReserved.IsTerminal())
	assert.False(t, PurchaseStatusPaid.IsTerminal())
	assert.True(t, PurchaseStatusCancelled.IsTerminal())
	assert.True(t, PurchaseStatusRefunded.IsTerminal())
}

func TestPurchase_Transition(t *testing.T) {
	now := time.Now()
	p := &Purchase{ID: "p-1", Status: PurchaseStatusReserved}

	require.NoError(t, p.Transition(PurchaseStatusPaid, now))
	assert.Equal(t, PurchaseStatusPaid, p.Status)
	assert.Equal(t, now, p.UpdatedAt)

	err := p.Transition(PurchaseStatusCancelled, now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, PurchaseStatusPaid, p.Status)

	require.NoError(t, p.Transition(PurchaseStatusRefunded, now))
	assert.ErrorIs(t, p.Transition(PurchaseStatusPaid, now), ErrInvalidTransition)
}

func TestPurchase_Apply(t *testing.T) {
	now := time.Now()
	p := &Purchase{ID: "p-1", Status: PurchaseStatusReserved, AmountDue: decimal.Zero}

	p.Apply(decimal.RequireFromString("19.50"), now)
	p.Apply(decimal.RequireFromString("-10.00"), now)
	assert.True(t, p.AmountDue.Equal(decimal.RequireFromString("9.50")))

	p.Apply(decimal.RequireFromString("-19.50"), now)
	assert.True(t, p.AmountDue.IsNegative())
}

func TestPurchase_IsExpiredAt(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &Purchase{ID: "p-1", Status: PurchaseStatusReserved, Deadline: deadline}

	assert.False(t, p.IsExpiredAt(deadline.Add(-time.Second)))
	assert.False(t, p.IsExpiredAt(deadline))
	assert.True(t, p.IsExpiredAt(deadline.Add(time.Second)))

	// Paid purchases never expire, whatever the deadline says.
	p.Status = PurchaseStatusPaid
	assert.False(t, p.IsExpiredAt(deadline.Add(time.Hour)))

	// A reserved purchase without a deadline does not expire either.
	p = &Purchase{ID: "p-2", Status: PurchaseStatusReserved}
	assert.False(t, p.IsExpiredAt(deadline.Add(time.Hour)))
}

func TestSumLedger(t *testing.T) {
	entries := []*LedgerEntry{
		{Category: LedgerCategoryBooking, Amount: decimal.RequireFromString("19.50")},
		{Category: LedgerCategoryBaggage, Amount: decimal.RequireFromString("2.00")},
		{Category: LedgerCategoryPayment, Amount: decimal.RequireFromString("-21.50")},
	}
	assert.True(t, SumLedger(entries).IsZero())
	assert.True(t, SumLedger(nil).IsZero())
}
