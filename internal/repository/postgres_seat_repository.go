package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/intercity-tours/booking/internal/domain"
)

// PostgresSeatRepository is the authoritative seat segment store. The
// free set is persisted as a bigint bitmask alongside an explicit
// blocked flag.
type PostgresSeatRepository struct {
	tx pgx.Tx
}

func (r *PostgresSeatRepository) get(ctx context.Context, tourID string, number int, forUpdate bool) (*domain.Seat, error) {
	query := `SELECT tour_id, seat_number, blocked, free_segments FROM seats WHERE tour_id = $1 AND seat_number = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	seat := &domain.Seat{}
	var mask int64
	err := r.tx.QueryRow(ctx, query, tourID, number).Scan(&seat.TourID, &seat.Number, &seat.Blocked, &mask)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSeatNotFound
		}
		return nil, fmt.Errorf("failed to get seat: %w", err)
	}
	seat.FreeSegments = domain.SegmentSet(mask)
	return seat, nil
}

// Get returns a seat without locking it.
func (r *PostgresSeatRepository) Get(ctx context.Context, tourID string, number int) (*domain.Seat, error) {
	return r.get(ctx, tourID, number, false)
}

// GetForUpdate locks the seat row for the rest of the transaction.
func (r *PostgresSeatRepository) GetForUpdate(ctx context.Context, tourID string, number int) (*domain.Seat, error) {
	return r.get(ctx, tourID, number, true)
}

// ListByTour returns every seat of a tour in seat-number order.
func (r *PostgresSeatRepository) ListByTour(ctx context.Context, tourID string) ([]*domain.Seat, error) {
	const query = `
		SELECT tour_id, seat_number, blocked, free_segments
		FROM seats
		WHERE tour_id = $1
		ORDER BY seat_number ASC
	`
	rows, err := r.tx.Query(ctx, query, tourID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	defer rows.Close()

	var seats []*domain.Seat
	for rows.Next() {
		seat := &domain.Seat{}
		var mask int64
		if err := rows.Scan(&seat.TourID, &seat.Number, &seat.Blocked, &mask); err != nil {
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		seat.FreeSegments = domain.SegmentSet(mask)
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seats: %w", err)
	}
	return seats, nil
}

// Update writes a seat's blocked flag and free set.
func (r *PostgresSeatRepository) Update(ctx context.Context, seat *domain.Seat) error {
	const query = `
		UPDATE seats SET blocked = $3, free_segments = $4
		WHERE tour_id = $1 AND seat_number = $2
	`
	tag, err := r.tx.Exec(ctx, query, seat.TourID, seat.Number, seat.Blocked, int64(seat.FreeSegments))
	if err != nil {
		return fmt.Errorf("failed to update seat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSeatNotFound
	}
	return nil
}

// BulkCreate inserts the seat rows of a new tour in one batch.
func (r *PostgresSeatRepository) BulkCreate(ctx context.Context, seats []*domain.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	const query = `
		INSERT INTO seats (tour_id, seat_number, blocked, free_segments)
		VALUES ($1, $2, $3, $4)
	`
	for _, seat := range seats {
		batch.Queue(query, seat.TourID, seat.Number, seat.Blocked, int64(seat.FreeSegments))
	}
	results := r.tx.SendBatch(ctx, batch)
	defer results.Close()
	for range seats {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to create seats: %w", err)
		}
	}
	return nil
}

// BlockAll blocks every seat of a tour. Used by the departure sweep as
// a search-visibility cutoff; existing tickets are untouched.
func (r *PostgresSeatRepository) BlockAll(ctx context.Context, tourID string) error {
	const query = `UPDATE seats SET blocked = true WHERE tour_id = $1`
	if _, err := r.tx.Exec(ctx, query, tourID); err != nil {
		return fmt.Errorf("failed to block seats: %w", err)
	}
	return nil
}
