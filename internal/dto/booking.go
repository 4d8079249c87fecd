package dto

// SeatRequest selects one seat of the tour and names its passenger.
type SeatRequest struct {
	SeatNumber int    `json:"seat_number" binding:"required,min=1"`
	Passenger  string `json:"passenger" binding:"required"`
	ExtraBags  int    `json:"extra_bags" binding:"min=0"`
}

// BookRequest books one or more seats of a tour over a stop range.
// Adults plus Discount must equal the number of seats requested.
type BookRequest struct {
	TourID    string        `json:"tour_id" binding:"required"`
	DepStopID string        `json:"dep_stop_id" binding:"required"`
	ArrStopID string        `json:"arr_stop_id" binding:"required"`
	Adults    int           `json:"adults" binding:"min=0"`
	Discount  int           `json:"discount" binding:"min=0"`
	Seats     []SeatRequest `json:"seats" binding:"required,dive"`

	// PurchaseID attaches the tickets to an existing purchase. When
	// empty a new purchase is opened with PurchaseStatus.
	PurchaseID     string `json:"purchase_id"`
	PurchaseStatus string `json:"purchase_status"`
	PaymentMethod  string `json:"payment_method"`

	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}

// QuoteRequest prices a booking without reserving anything.
type QuoteRequest struct {
	TourID    string `json:"tour_id" binding:"required"`
	DepStopID string `json:"dep_stop_id" binding:"required"`
	ArrStopID string `json:"arr_stop_id" binding:"required"`
	Adults    int    `json:"adults" binding:"min=0"`
	Discount  int    `json:"discount" binding:"min=0"`
	ExtraBags int    `json:"extra_bags" binding:"min=0"`
}

// QuoteResponse carries the priced total.
type QuoteResponse struct {
	Fare  string `json:"fare"`
	Total string `json:"total"`
}

// BookedTicket is one issued ticket in a booking response.
type BookedTicket struct {
	TicketID   string `json:"ticket_id"`
	SeatNumber int    `json:"seat_number"`
	Passenger  string `json:"passenger"`
	DeepLink   string `json:"deep_link,omitempty"`
}

// BookResponse reports the purchase and the tickets it now holds.
type BookResponse struct {
	PurchaseID     string         `json:"purchase_id"`
	PurchaseStatus string         `json:"purchase_status"`
	AmountDue      string         `json:"amount_due"`
	Total          string         `json:"total"`
	Tickets        []BookedTicket `json:"tickets"`
}
