package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/intercity-tours/booking/internal/domain"
)

// PostgresTourRepository reads and updates tours within a transaction.
type PostgresTourRepository struct {
	tx pgx.Tx
}

const tourColumns = `id, route_id, pricelist_id, seat_count, departs_at, closed, created_at, updated_at`

func scanTour(row pgx.Row) (*domain.Tour, error) {
	tour := &domain.Tour{}
	err := row.Scan(
		&tour.ID,
		&tour.RouteID,
		&tour.PricelistID,
		&tour.SeatCount,
		&tour.DepartsAt,
		&tour.Closed,
		&tour.CreatedAt,
		&tour.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTourNotFound
		}
		return nil, fmt.Errorf("failed to scan tour: %w", err)
	}
	return tour, nil
}

// Get returns a tour by id.
func (r *PostgresTourRepository) Get(ctx context.Context, tourID string) (*domain.Tour, error) {
	query := `SELECT ` + tourColumns + ` FROM tours WHERE id = $1`
	return scanTour(r.tx.QueryRow(ctx, query, tourID))
}

// Create inserts a new tour.
func (r *PostgresTourRepository) Create(ctx context.Context, tour *domain.Tour) error {
	const query = `
		INSERT INTO tours (id, route_id, pricelist_id, seat_count, departs_at, closed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.tx.Exec(ctx, query,
		tour.ID,
		tour.RouteID,
		tour.PricelistID,
		tour.SeatCount,
		tour.DepartsAt,
		tour.Closed,
		tour.CreatedAt,
		tour.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create tour: %w", err)
	}
	return nil
}

// ListDeparted returns open tours whose departure has passed.
func (r *PostgresTourRepository) ListDeparted(ctx context.Context, now time.Time, limit int) ([]*domain.Tour, error) {
	query := `
		SELECT ` + tourColumns + `
		FROM tours
		WHERE closed = false AND departs_at < $1
		ORDER BY departs_at ASC
		LIMIT $2
	`
	rows, err := r.tx.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list departed tours: %w", err)
	}
	defer rows.Close()

	var tours []*domain.Tour
	for rows.Next() {
		tour, err := scanTour(rows)
		if err != nil {
			return nil, err
		}
		tours = append(tours, tour)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read departed tours: %w", err)
	}
	return tours, nil
}

// ListOpen returns tours still open for sale.
func (r *PostgresTourRepository) ListOpen(ctx context.Context, limit int) ([]*domain.Tour, error) {
	query := `
		SELECT ` + tourColumns + `
		FROM tours
		WHERE closed = false
		ORDER BY departs_at ASC
		LIMIT $1
	`
	rows, err := r.tx.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list open tours: %w", err)
	}
	defer rows.Close()

	var tours []*domain.Tour
	for rows.Next() {
		tour, err := scanTour(rows)
		if err != nil {
			return nil, err
		}
		tours = append(tours, tour)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read open tours: %w", err)
	}
	return tours, nil
}

// MarkClosed flags the tour as closed for sale.
func (r *PostgresTourRepository) MarkClosed(ctx context.Context, tourID string) error {
	const query = `UPDATE tours SET closed = true, updated_at = now() WHERE id = $1`
	tag, err := r.tx.Exec(ctx, query, tourID)
	if err != nil {
		return fmt.Errorf("failed to close tour: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTourNotFound
	}
	return nil
}
