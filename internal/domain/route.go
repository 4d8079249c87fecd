package domain

import "time"

// Stop is one scheduled stop on a route. Order starts at 1; segment i
// connects the stops with orders i and i+1.
type Stop struct {
	ID        string    `json:"id"`
	RouteID   string    `json:"route_id"`
	Order     int       `json:"order"`
	Name      string    `json:"name"`
	DepartsAt time.Time `json:"departs_at"`
}

// Route is an ordered list of stops.
type Route struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stops []Stop `json:"stops"`
}

// StopOrder returns the order index of a stop on the route, or
// ErrStopNotOnRoute when the stop is not part of it.
func (r *Route) StopOrder(stopID string) (int, error) {
	for _, s := range r.Stops {
		if s.ID == stopID {
			return s.Order, nil
		}
	}
	return 0, ErrStopNotOnRoute
}

// SegmentRangeFor resolves the segment set covered by travel from the
// departure stop to the arrival stop. It fails with ErrStopNotOnRoute
// when either stop is missing, ErrArrivalBeforeDeparture when the
// arrival order is not strictly greater than the departure order, and
// ErrInvalidSegmentRange when the range reaches past MaxSegments.
func (r *Route) SegmentRangeFor(depStopID, arrStopID string) (SegmentSet, error) {
	depOrder, err := r.StopOrder(depStopID)
	if err != nil {
		return 0, err
	}
	arrOrder, err := r.StopOrder(arrStopID)
	if err != nil {
		return 0, err
	}
	if arrOrder <= depOrder {
		return 0, ErrArrivalBeforeDeparture
	}
	return SegmentRange(depOrder, arrOrder)
}

// SegmentCount returns the number of segments on the route.
func (r *Route) SegmentCount() int {
	if len(r.Stops) < 2 {
		return 0
	}
	return len(r.Stops) - 1
}

// Departure returns the departure time of the route's first stop.
func (r *Route) Departure() time.Time {
	if len(r.Stops) == 0 {
		return time.Time{}
	}
	return r.Stops[0].DepartsAt
}

// StopPair is a priced (departure, arrival) pair on a pricelist.
type StopPair struct {
	DepStopID string `json:"dep_stop_id"`
	ArrStopID string `json:"arr_stop_id"`
}
