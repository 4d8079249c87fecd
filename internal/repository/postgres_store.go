package repository

import (
	"fmt"

	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intercity-tours/booking/pkg/telemetry"
)

// PostgresStore implements Store on a pgx connection pool. All row
// locking goes through the database's native FOR UPDATE queues; the
// store itself holds no in-process locks.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// View runs fn in a read-only transaction.
func (s *PostgresStore) View(ctx context.Context, fn func(tx Tx) error) error {
	ctx, span := telemetry.StartSpan(ctx, "store.postgres.view")
	defer span.End()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(newPostgresTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update runs fn in a read-write transaction, rolling back on any
// error from fn.
func (s *PostgresStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	ctx, span := telemetry.StartSpan(ctx, "store.postgres.update")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(newPostgresTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// postgresTx binds the repositories to one pgx transaction.
type postgresTx struct {
	routes       *PostgresRouteRepository
	tours        *PostgresTourRepository
	prices       *PostgresPriceRepository
	seats        *PostgresSeatRepository
	tickets      *PostgresTicketRepository
	purchases    *PostgresPurchaseRepository
	ledger       *PostgresLedgerRepository
	availability *PostgresAvailabilityRepository
}

func newPostgresTx(tx pgx.Tx) *postgresTx {
	return &postgresTx{
		routes:       &PostgresRouteRepository{tx: tx},
		tours:        &PostgresTourRepository{tx: tx},
		prices:       &PostgresPriceRepository{tx: tx},
		seats:        &PostgresSeatRepository{tx: tx},
		tickets:      &PostgresTicketRepository{tx: tx},
		purchases:    &PostgresPurchaseRepository{tx: tx},
		ledger:       &PostgresLedgerRepository{tx: tx},
		availability: &PostgresAvailabilityRepository{tx: tx},
	}
}

func (t *postgresTx) Routes() RouteRepository              { return t.routes }
func (t *postgresTx) Tours() TourRepository                { return t.tours }
func (t *postgresTx) Prices() PriceRepository              { return t.prices }
func (t *postgresTx) Seats() SeatRepository                { return t.seats }
func (t *postgresTx) Tickets() TicketRepository            { return t.tickets }
func (t *postgresTx) Purchases() PurchaseRepository        { return t.purchases }
func (t *postgresTx) Ledger() LedgerRepository             { return t.ledger }
func (t *postgresTx) Availability() AvailabilityRepository { return t.availability }
