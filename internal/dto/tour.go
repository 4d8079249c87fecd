package dto

import "time"

// CreateTourRequest opens a tour for sale: seats are created with
// every segment free, blocked seat numbers excluded from sale.
type CreateTourRequest struct {
	RouteID      string    `json:"route_id" binding:"required"`
	PricelistID  string    `json:"pricelist_id" binding:"required"`
	SeatCount    int       `json:"seat_count" binding:"required,min=1"`
	DepartsAt    time.Time `json:"departs_at" binding:"required"`
	BlockedSeats []int     `json:"blocked_seats"`
}

// TourResponse reports a tour and its availability.
type TourResponse struct {
	ID           string            `json:"id"`
	RouteID      string            `json:"route_id"`
	PricelistID  string            `json:"pricelist_id"`
	SeatCount    int               `json:"seat_count"`
	DepartsAt    time.Time         `json:"departs_at"`
	Closed       bool              `json:"closed"`
	Availability []AvailabilityRow `json:"availability,omitempty"`
}

// AvailabilityRow is one (departure, arrival) free-seat count.
type AvailabilityRow struct {
	DepStopID string `json:"dep_stop_id"`
	ArrStopID string `json:"arr_stop_id"`
	FreeSeats int    `json:"free_seats"`
}
