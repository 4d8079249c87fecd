package dto

// RescheduleRequest moves a ticket to another tour and/or seat. The
// stop range is kept; the target tour's route must contain both stops.
type RescheduleRequest struct {
	TicketID         string `json:"ticket_id" binding:"required"`
	TargetTourID     string `json:"target_tour_id" binding:"required"`
	TargetSeatNumber int    `json:"target_seat_number" binding:"required,min=1"`
}

// ReschedulePlan is the priced preview of a reschedule. Nothing is
// reserved until the matching commit call.
type ReschedulePlan struct {
	TicketID       string `json:"ticket_id"`
	CurrentValue   string `json:"current_value"`
	TargetValue    string `json:"target_value"`
	Delta          string `json:"delta"`
	AmountDueAfter string `json:"amount_due_after"`
	NoOp           bool   `json:"no_op"`
}

// BaggageRequest sets the extra bag count of a ticket.
type BaggageRequest struct {
	TicketID  string `json:"ticket_id" binding:"required"`
	ExtraBags int    `json:"extra_bags" binding:"min=0"`
}

// BaggagePlan is the priced preview of a baggage change.
type BaggagePlan struct {
	TicketID       string `json:"ticket_id"`
	Delta          string `json:"delta"`
	AmountDueAfter string `json:"amount_due_after"`
	NoOp           bool   `json:"no_op"`
}

// CancelRequest cancels a batch of tickets of one purchase.
type CancelRequest struct {
	PurchaseID string   `json:"purchase_id" binding:"required"`
	TicketIDs  []string `json:"ticket_ids" binding:"required,min=1"`
	Actor      string   `json:"actor"`
}

// CancelledTicket is one ticket's credited value in a cancel plan.
type CancelledTicket struct {
	TicketID string `json:"ticket_id"`
	Value    string `json:"value"`
}

// CancelPlan is the priced preview of a batch cancellation.
type CancelPlan struct {
	PurchaseID     string            `json:"purchase_id"`
	Tickets        []CancelledTicket `json:"tickets"`
	Credit         string            `json:"credit"`
	AmountDueAfter string            `json:"amount_due_after"`
	StatusAfter    string            `json:"status_after"`
}

// ModificationResult reports the committed outcome of a modification.
type ModificationResult struct {
	PurchaseID     string `json:"purchase_id"`
	PurchaseStatus string `json:"purchase_status"`
	AmountDue      string `json:"amount_due"`
	Delta          string `json:"delta"`
}
