package domain

import "time"

// Ticket is one passenger's seat on a tour between two stops. Its
// existence implies the segment range [dep, arr) has been removed from
// the owning seat's free set.
type Ticket struct {
	ID         string    `json:"id"`
	TourID     string    `json:"tour_id"`
	SeatNumber int       `json:"seat_number"`
	Passenger  string    `json:"passenger"`
	DepStopID  string    `json:"dep_stop_id"`
	ArrStopID  string    `json:"arr_stop_id"`
	PurchaseID string    `json:"purchase_id"`
	ExtraBags  int       `json:"extra_bags"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BelongsToPurchase checks ticket ownership before a modification runs.
func (t *Ticket) BelongsToPurchase(purchaseID string) bool {
	return t.PurchaseID == purchaseID
}
