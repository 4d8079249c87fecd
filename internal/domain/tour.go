package domain

import "time"

// Tour is one scheduled run of a route with its own seat inventory and
// pricelist.
type Tour struct {
	ID          string    `json:"id"`
	RouteID     string    `json:"route_id"`
	PricelistID string    `json:"pricelist_id"`
	SeatCount   int       `json:"seat_count"`
	DepartsAt   time.Time `json:"departs_at"`
	Closed      bool      `json:"closed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Seat is the per-(tour, seat number) inventory row. Blocked seats are
// unsellable regardless of their free set; an unblocked seat with an
// empty free set is simply sold out.
type Seat struct {
	TourID       string     `json:"tour_id"`
	Number       int        `json:"number"`
	Blocked      bool       `json:"blocked"`
	FreeSegments SegmentSet `json:"free_segments"`
}

// CanSell reports whether the seat can sell every segment in the
// requested range.
func (s *Seat) CanSell(segments SegmentSet) bool {
	return !s.Blocked && s.FreeSegments.ContainsAll(segments)
}

// Reserve removes the requested segments from the free set. It fails
// with ErrSeatBlocked or ErrSegmentUnavailable and leaves the seat
// untouched on failure. An empty request is refused: reserving nothing
// would report a sale that holds no segments.
func (s *Seat) Reserve(segments SegmentSet) error {
	if s.Blocked {
		return ErrSeatBlocked
	}
	if segments.IsEmpty() || !s.FreeSegments.ContainsAll(segments) {
		return ErrSegmentUnavailable
	}
	s.FreeSegments = s.FreeSegments.Remove(segments)
	return nil
}

// Release unions the segments back into the free set. Releasing onto a
// blocked seat is allowed: the segments become sellable again once the
// seat is unblocked.
func (s *Seat) Release(segments SegmentSet) {
	s.FreeSegments = s.FreeSegments.Union(segments)
}

// AvailabilityRow is one cached (tour, departure, arrival) free-seat
// count. It is always recomputable from the seat rows and is never a
// source of truth.
type AvailabilityRow struct {
	TourID    string `json:"tour_id"`
	DepStopID string `json:"dep_stop_id"`
	ArrStopID string `json:"arr_stop_id"`
	FreeSeats int    `json:"free_seats"`
}
