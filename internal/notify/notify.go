package notify

import "context"

// TicketIssuedEvent is published after a booking commits, one event
// per issued ticket. DeepLink embeds the ticket access token so the
// customer can open the ticket without a login.
type TicketIssuedEvent struct {
	TicketID   string `json:"ticket_id"`
	PurchaseID string `json:"purchase_id"`
	DeepLink   string `json:"deep_link"`
}

// PurchaseEvent is published on purchase lifecycle transitions.
type PurchaseEvent struct {
	PurchaseID string `json:"purchase_id"`
	Status     string `json:"status"`
	AmountDue  string `json:"amount_due"`
}

// Notifier publishes booking lifecycle events. Publishing happens
// after the database transaction commits; a failed publish must never
// undo the booking, so implementations return errors for logging only.
type Notifier interface {
	TicketIssued(ctx context.Context, event TicketIssuedEvent) error
	PurchaseChanged(ctx context.Context, event PurchaseEvent) error
}

// NoOpNotifier drops every event. Used in tests and when no broker is
// configured.
type NoOpNotifier struct{}

func (NoOpNotifier) TicketIssued(ctx context.Context, event TicketIssuedEvent) error {
	return nil
}

func (NoOpNotifier) PurchaseChanged(ctx context.Context, event PurchaseEvent) error {
	return nil
}
