package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/intercity-tours/booking/internal/domain"
)

// PostgresRouteRepository reads route topology within a transaction.
type PostgresRouteRepository struct {
	tx pgx.Tx
}

// Get returns a route with its stops in ascending order.
func (r *PostgresRouteRepository) Get(ctx context.Context, routeID string) (*domain.Route, error) {
	const routeQuery = `SELECT id, name FROM routes WHERE id = $1`

	route := &domain.Route{}
	err := r.tx.QueryRow(ctx, routeQuery, routeID).Scan(&route.ID, &route.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRouteNotFound
		}
		return nil, fmt.Errorf("failed to get route: %w", err)
	}

	const stopsQuery = `
		SELECT id, route_id, stop_order, name, departs_at
		FROM route_stops
		WHERE route_id = $1
		ORDER BY stop_order ASC
	`
	rows, err := r.tx.Query(ctx, stopsQuery, routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list route stops: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stop domain.Stop
		if err := rows.Scan(&stop.ID, &stop.RouteID, &stop.Order, &stop.Name, &stop.DepartsAt); err != nil {
			return nil, fmt.Errorf("failed to scan route stop: %w", err)
		}
		route.Stops = append(route.Stops, stop)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read route stops: %w", err)
	}
	return route, nil
}

// PostgresPriceRepository looks up fares within a transaction.
type PostgresPriceRepository struct {
	tx pgx.Tx
}

// Fare returns the fare for a stop pair on a pricelist.
func (r *PostgresPriceRepository) Fare(ctx context.Context, pricelistID, depStopID, arrStopID string) (decimal.Decimal, error) {
	const query = `
		SELECT fare
		FROM pricelist_fares
		WHERE pricelist_id = $1 AND dep_stop_id = $2 AND arr_stop_id = $3
	`
	var fare decimal.Decimal
	err := r.tx.QueryRow(ctx, query, pricelistID, depStopID, arrStopID).Scan(&fare)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrPriceNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to get fare: %w", err)
	}
	return fare, nil
}

// Pairs returns every priced stop pair of the pricelist.
func (r *PostgresPriceRepository) Pairs(ctx context.Context, pricelistID string) ([]domain.StopPair, error) {
	const query = `
		SELECT dep_stop_id, arr_stop_id
		FROM pricelist_fares
		WHERE pricelist_id = $1
		ORDER BY dep_stop_id, arr_stop_id
	`
	rows, err := r.tx.Query(ctx, query, pricelistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list priced pairs: %w", err)
	}
	defer rows.Close()

	var pairs []domain.StopPair
	for rows.Next() {
		var p domain.StopPair
		if err := rows.Scan(&p.DepStopID, &p.ArrStopID); err != nil {
			return nil, fmt.Errorf("failed to scan priced pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read priced pairs: %w", err)
	}
	return pairs, nil
}
