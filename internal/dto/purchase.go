package dto

import "time"

// PayRequest settles a purchase. Amount defaults to the full
// outstanding balance. PaymentReference is the provider's id when the
// payment went through a gateway; cash-desk payments leave it empty.
type PayRequest struct {
	PurchaseID       string `json:"purchase_id" binding:"required"`
	Amount           string `json:"amount"`
	Method           string `json:"method"`
	PaymentReference string `json:"payment_reference"`
	Actor            string `json:"actor"`
}

// RefundRequest pays a credited balance back to the customer. Amount
// defaults to the full amount owed.
type RefundRequest struct {
	PurchaseID       string `json:"purchase_id" binding:"required"`
	Amount           string `json:"amount"`
	PaymentReference string `json:"payment_reference"`
	Actor            string `json:"actor"`
}

// PurchaseResponse is the full purchase view with its tickets and
// ledger history.
type PurchaseResponse struct {
	ID            string           `json:"id"`
	CustomerName  string           `json:"customer_name"`
	CustomerEmail string           `json:"customer_email"`
	CustomerPhone string           `json:"customer_phone"`
	AmountDue     string           `json:"amount_due"`
	Status        string           `json:"status"`
	Deadline      *time.Time       `json:"deadline,omitempty"`
	PaymentMethod string           `json:"payment_method"`
	CreatedAt     time.Time        `json:"created_at"`
	Tickets       []TicketResponse `json:"tickets"`
	Ledger        []LedgerEntry    `json:"ledger"`
}

// TicketResponse is one ticket in a purchase view.
type TicketResponse struct {
	ID         string `json:"id"`
	TourID     string `json:"tour_id"`
	SeatNumber int    `json:"seat_number"`
	Passenger  string `json:"passenger"`
	DepStopID  string `json:"dep_stop_id"`
	ArrStopID  string `json:"arr_stop_id"`
	ExtraBags  int    `json:"extra_bags"`
}

// LedgerEntry is one ledger line in a purchase view.
type LedgerEntry struct {
	Category  string    `json:"category"`
	Amount    string    `json:"amount"`
	Actor     string    `json:"actor,omitempty"`
	Method    string    `json:"method,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
