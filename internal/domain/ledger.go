package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerCategory classifies the event a ledger entry records.
type LedgerCategory string

const (
	LedgerCategoryBooking      LedgerCategory = "booking"
	LedgerCategoryReschedule   LedgerCategory = "reschedule"
	LedgerCategoryBaggage      LedgerCategory = "baggage"
	LedgerCategoryCancellation LedgerCategory = "cancellation"
	LedgerCategoryPayment      LedgerCategory = "payment"
	LedgerCategoryRefund       LedgerCategory = "refund"
	LedgerCategoryExpiry       LedgerCategory = "expiry"
)

// LedgerEntry is one immutable record of a monetary or status-changing
// event against a purchase. Entries are appended, never updated or
// deleted; corrections are made with compensating entries.
type LedgerEntry struct {
	ID         string          `json:"id"`
	PurchaseID string          `json:"purchase_id"`
	Category   LedgerCategory  `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Actor      string          `json:"actor"`
	Method     string          `json:"method"`
	CreatedAt  time.Time       `json:"created_at"`
}

// SumLedger returns the sum of signed deltas over the entries.
func SumLedger(entries []*LedgerEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	return sum
}
