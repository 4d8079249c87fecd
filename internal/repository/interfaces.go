package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/intercity-tours/booking/internal/domain"
)

// Store runs units of work against the relational store. Every mutating
// engine operation executes inside exactly one Update; plan/quote paths
// use View and never take row locks.
type Store interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error

	// Update runs fn in a read-write transaction. Any error from fn
	// rolls back every change; nil commits.
	Update(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Routes() RouteRepository
	Tours() TourRepository
	Prices() PriceRepository
	Seats() SeatRepository
	Tickets() TicketRepository
	Purchases() PurchaseRepository
	Ledger() LedgerRepository
	Availability() AvailabilityRepository
}

// RouteRepository reads route topology. Stops are always returned in
// ascending order; order indices start at 1.
type RouteRepository interface {
	Get(ctx context.Context, routeID string) (*domain.Route, error)
}

// TourRepository reads and updates tours.
type TourRepository interface {
	Get(ctx context.Context, tourID string) (*domain.Tour, error)
	Create(ctx context.Context, tour *domain.Tour) error
	// ListDeparted returns open tours whose first stop's departure has
	// passed, up to limit.
	ListDeparted(ctx context.Context, now time.Time, limit int) ([]*domain.Tour, error)
	// ListOpen returns tours still open for sale, up to limit.
	ListOpen(ctx context.Context, limit int) ([]*domain.Tour, error)
	MarkClosed(ctx context.Context, tourID string) error
}

// PriceRepository looks up fares on a pricelist.
type PriceRepository interface {
	// Fare returns the fare for a (departure, arrival) stop pair, or
	// domain.ErrPriceNotFound when the pair is not priced.
	Fare(ctx context.Context, pricelistID, depStopID, arrStopID string) (decimal.Decimal, error)
	// Pairs returns every priced stop pair of the pricelist.
	Pairs(ctx context.Context, pricelistID string) ([]domain.StopPair, error)
}

// SeatRepository is the authoritative seat segment store.
type SeatRepository interface {
	Get(ctx context.Context, tourID string, number int) (*domain.Seat, error)
	// GetForUpdate locks the seat row for the rest of the transaction.
	GetForUpdate(ctx context.Context, tourID string, number int) (*domain.Seat, error)
	ListByTour(ctx context.Context, tourID string) ([]*domain.Seat, error)
	Update(ctx context.Context, seat *domain.Seat) error
	BulkCreate(ctx context.Context, seats []*domain.Seat) error
	BlockAll(ctx context.Context, tourID string) error
}

// TicketRepository stores tickets.
type TicketRepository interface {
	Get(ctx context.Context, ticketID string) (*domain.Ticket, error)
	GetForUpdate(ctx context.Context, ticketID string) (*domain.Ticket, error)
	ListByPurchase(ctx context.Context, purchaseID string) ([]*domain.Ticket, error)
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, ticketID string) error
}

// PurchaseRepository stores purchases.
type PurchaseRepository interface {
	Get(ctx context.Context, purchaseID string) (*domain.Purchase, error)
	GetForUpdate(ctx context.Context, purchaseID string) (*domain.Purchase, error)
	Create(ctx context.Context, purchase *domain.Purchase) error
	Update(ctx context.Context, purchase *domain.Purchase) error
	// ListExpired returns reserved purchases whose deadline has passed,
	// up to limit.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Purchase, error)
}

// LedgerRepository is append-only: no update, no delete.
type LedgerRepository interface {
	Append(ctx context.Context, entry *domain.LedgerEntry) error
	ListByPurchase(ctx context.Context, purchaseID string) ([]*domain.LedgerEntry, error)
}

// AvailabilityRepository stores the derived per-stop-pair free-seat
// counts. Rows are fully rebuilt from seat state; readers treat them as
// a search hint only.
type AvailabilityRepository interface {
	Get(ctx context.Context, tourID, depStopID, arrStopID string) (int, error)
	ListByTour(ctx context.Context, tourID string) ([]domain.AvailabilityRow, error)
	Upsert(ctx context.Context, rows []domain.AvailabilityRow) error
	Zero(ctx context.Context, tourID string) error
}
