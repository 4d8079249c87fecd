package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/intercity-tours/booking/internal/domain"
)

// PostgresTicketRepository stores tickets within a transaction.
type PostgresTicketRepository struct {
	tx pgx.Tx
}

const ticketColumns = `id, tour_id, seat_number, passenger, dep_stop_id, arr_stop_id, purchase_id, extra_bags, created_at, updated_at`

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	t := &domain.Ticket{}
	err := row.Scan(
		&t.ID,
		&t.TourID,
		&t.SeatNumber,
		&t.Passenger,
		&t.DepStopID,
		&t.ArrStopID,
		&t.PurchaseID,
		&t.ExtraBags,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to scan ticket: %w", err)
	}
	return t, nil
}

// Get returns a ticket without locking it.
func (r *PostgresTicketRepository) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return scanTicket(r.tx.QueryRow(ctx, query, ticketID))
}

// GetForUpdate locks the ticket row for the rest of the transaction.
func (r *PostgresTicketRepository) GetForUpdate(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 FOR UPDATE`
	return scanTicket(r.tx.QueryRow(ctx, query, ticketID))
}

// ListByPurchase returns the purchase's tickets in creation order.
func (r *PostgresTicketRepository) ListByPurchase(ctx context.Context, purchaseID string) ([]*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE purchase_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := r.tx.Query(ctx, query, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tickets: %w", err)
	}
	return tickets, nil
}

// Create inserts a new ticket.
func (r *PostgresTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
		INSERT INTO tickets (id, tour_id, seat_number, passenger, dep_stop_id, arr_stop_id, purchase_id, extra_bags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.tx.Exec(ctx, query,
		ticket.ID,
		ticket.TourID,
		ticket.SeatNumber,
		ticket.Passenger,
		ticket.DepStopID,
		ticket.ArrStopID,
		ticket.PurchaseID,
		ticket.ExtraBags,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

// Update writes a ticket's mutable fields (tour, seat, baggage).
func (r *PostgresTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
		UPDATE tickets SET tour_id = $2, seat_number = $3, extra_bags = $4, updated_at = $5
		WHERE id = $1
	`
	tag, err := r.tx.Exec(ctx, query, ticket.ID, ticket.TourID, ticket.SeatNumber, ticket.ExtraBags, ticket.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

// Delete removes a cancelled ticket.
func (r *PostgresTicketRepository) Delete(ctx context.Context, ticketID string) error {
	const query = `DELETE FROM tickets WHERE id = $1`
	tag, err := r.tx.Exec(ctx, query, ticketID)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}
