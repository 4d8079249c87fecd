package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/intercity-tours/booking/internal/domain"
)

// PostgresAvailabilityRepository stores the derived per-stop-pair
// free-seat counts.
type PostgresAvailabilityRepository struct {
	tx pgx.Tx
}

// Get returns the cached free-seat count for one stop pair.
func (r *PostgresAvailabilityRepository) Get(ctx context.Context, tourID, depStopID, arrStopID string) (int, error) {
	const query = `
		SELECT free_seats
		FROM availability
		WHERE tour_id = $1 AND dep_stop_id = $2 AND arr_stop_id = $3
	`
	var count int
	err := r.tx.QueryRow(ctx, query, tourID, depStopID, arrStopID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrPriceNotFound
		}
		return 0, fmt.Errorf("failed to get availability: %w", err)
	}
	return count, nil
}

// ListByTour returns every cached row of a tour.
func (r *PostgresAvailabilityRepository) ListByTour(ctx context.Context, tourID string) ([]domain.AvailabilityRow, error) {
	const query = `
		SELECT tour_id, dep_stop_id, arr_stop_id, free_seats
		FROM availability
		WHERE tour_id = $1
		ORDER BY dep_stop_id, arr_stop_id
	`
	rows, err := r.tx.Query(ctx, query, tourID)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", err)
	}
	defer rows.Close()

	var out []domain.AvailabilityRow
	for rows.Next() {
		var row domain.AvailabilityRow
		if err := rows.Scan(&row.TourID, &row.DepStopID, &row.ArrStopID, &row.FreeSeats); err != nil {
			return nil, fmt.Errorf("failed to scan availability: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read availability: %w", err)
	}
	return out, nil
}

// Upsert writes recomputed rows in one batch.
func (r *PostgresAvailabilityRepository) Upsert(ctx context.Context, rows []domain.AvailabilityRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	const query = `
		INSERT INTO availability (tour_id, dep_stop_id, arr_stop_id, free_seats)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tour_id, dep_stop_id, arr_stop_id) DO UPDATE SET free_seats = EXCLUDED.free_seats
	`
	for _, row := range rows {
		batch.Queue(query, row.TourID, row.DepStopID, row.ArrStopID, row.FreeSeats)
	}
	results := r.tx.SendBatch(ctx, batch)
	defer results.Close()
	for range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert availability: %w", err)
		}
	}
	return nil
}

// Zero sets every cached count of a tour to zero. Used by the
// departure sweep.
func (r *PostgresAvailabilityRepository) Zero(ctx context.Context, tourID string) error {
	const query = `UPDATE availability SET free_seats = 0 WHERE tour_id = $1`
	if _, err := r.tx.Exec(ctx, query, tourID); err != nil {
		return fmt.Errorf("failed to zero availability: %w", err)
	}
	return nil
}
