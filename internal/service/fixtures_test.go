package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/intercity-tours/booking/internal/domain"
	"github.com/intercity-tours/booking/internal/notify"
	"github.com/intercity-tours/booking/internal/repository"
)

// Test topology: one 4-stop route (segments 1..3), two tours on it.
// tour-1 sells off pricelist pl-1 (full trip 10.00), tour-2 off pl-2
// (full trip 15.00).
const (
	testRouteID = "route-1"
	testTour1   = "tour-1"
	testTour2   = "tour-2"
)

var testBase = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func seedTestRoute(store *repository.MemoryStore) {
	store.SeedRoute(&domain.Route{
		ID:   testRouteID,
		Name: "Vienna - Budapest",
		Stops: []domain.Stop{
			{ID: "s1", RouteID: testRouteID, Order: 1, Name: "Vienna", DepartsAt: testBase.Add(24 * time.Hour)},
			{ID: "s2", RouteID: testRouteID, Order: 2, Name: "Bratislava"},
			{ID: "s3", RouteID: testRouteID, Order: 3, Name: "Gyor"},
			{ID: "s4", RouteID: testRouteID, Order: 4, Name: "Budapest"},
		},
	})
}

func seedTestTour(store *repository.MemoryStore, tourID, pricelistID string, seatCount int, departsAt time.Time) {
	tour := &domain.Tour{
		ID:          tourID,
		RouteID:     testRouteID,
		PricelistID: pricelistID,
		SeatCount:   seatCount,
		DepartsAt:   departsAt,
	}
	seats := make([]*domain.Seat, 0, seatCount)
	for n := 1; n <= seatCount; n++ {
		seats = append(seats, &domain.Seat{TourID: tourID, Number: n, FreeSegments: domain.FullSegmentSet(4)})
	}
	store.SeedTour(tour, seats)
}

func seedTestFares(store *repository.MemoryStore, pricelistID string, hop, double, full string) {
	pairs := map[domain.StopPair]string{
		{DepStopID: "s1", ArrStopID: "s2"}: hop,
		{DepStopID: "s2", ArrStopID: "s3"}: hop,
		{DepStopID: "s3", ArrStopID: "s4"}: hop,
		{DepStopID: "s1", ArrStopID: "s3"}: double,
		{DepStopID: "s2", ArrStopID: "s4"}: double,
		{DepStopID: "s1", ArrStopID: "s4"}: full,
	}
	for pair, fare := range pairs {
		store.SeedFare(pricelistID, pair.DepStopID, pair.ArrStopID, decimal.RequireFromString(fare))
	}
}

// newTestStore seeds the standard two-tour topology.
func newTestStore() *repository.MemoryStore {
	store := repository.NewMemoryStore()
	seedTestRoute(store)
	seedTestTour(store, testTour1, "pl-1", 3, testBase.Add(24*time.Hour))
	seedTestTour(store, testTour2, "pl-2", 2, testBase.Add(48*time.Hour))
	seedTestFares(store, "pl-1", "4.00", "7.00", "10.00")
	seedTestFares(store, "pl-2", "6.00", "10.00", "15.00")
	return store
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// recordingMirror captures every Mirror push and serves Lookup from
// the last pushed rows.
type recordingMirror struct {
	rows    map[string][]domain.AvailabilityRow
	pushes  int
	lookErr error
}

func newRecordingMirror() *recordingMirror {
	return &recordingMirror{rows: make(map[string][]domain.AvailabilityRow)}
}

func (m *recordingMirror) Mirror(ctx context.Context, tourID string, rows []domain.AvailabilityRow) error {
	m.rows[tourID] = rows
	m.pushes++
	return nil
}

func (m *recordingMirror) Lookup(ctx context.Context, tourID, depStopID, arrStopID string) (int, bool, error) {
	if m.lookErr != nil {
		return 0, false, m.lookErr
	}
	for _, row := range m.rows[tourID] {
		if row.DepStopID == depStopID && row.ArrStopID == arrStopID {
			return row.FreeSeats, true, nil
		}
	}
	return 0, false, nil
}

func (m *recordingMirror) freeSeats(tourID, depStopID, arrStopID string) int {
	count, ok, _ := m.Lookup(context.Background(), tourID, depStopID, arrStopID)
	if !ok {
		return -1
	}
	return count
}

// recordingNotifier captures published events.
type recordingNotifier struct {
	issued  []string
	changed []string
}

func (n *recordingNotifier) TicketIssued(ctx context.Context, event notify.TicketIssuedEvent) error {
	n.issued = append(n.issued, event.TicketID)
	return nil
}

func (n *recordingNotifier) PurchaseChanged(ctx context.Context, event notify.PurchaseEvent) error {
	n.changed = append(n.changed, event.PurchaseID+":"+event.Status)
	return nil
}

// getSeat reads a seat outside any service call.
func getSeat(t *testing.T, store *repository.MemoryStore, tourID string, number int) *domain.Seat {
	t.Helper()
	var seat *domain.Seat
	err := store.View(context.Background(), func(tx repository.Tx) error {
		var err error
		seat, err = tx.Seats().Get(context.Background(), tourID, number)
		return err
	})
	require.NoError(t, err)
	return seat
}

func getPurchase(t *testing.T, store *repository.MemoryStore, purchaseID string) *domain.Purchase {
	t.Helper()
	var purchase *domain.Purchase
	err := store.View(context.Background(), func(tx repository.Tx) error {
		var err error
		purchase, err = tx.Purchases().Get(context.Background(), purchaseID)
		return err
	})
	require.NoError(t, err)
	return purchase
}

func ledgerFor(t *testing.T, store *repository.MemoryStore, purchaseID string) []*domain.LedgerEntry {
	t.Helper()
	var entries []*domain.LedgerEntry
	err := store.View(context.Background(), func(tx repository.Tx) error {
		var err error
		entries, err = tx.Ledger().ListByPurchase(context.Background(), purchaseID)
		return err
	})
	require.NoError(t, err)
	return entries
}

// requireLedgerBalanced asserts the core invariant: the outstanding
// balance always equals the sum of the purchase's signed ledger deltas.
func requireLedgerBalanced(t *testing.T, store *repository.MemoryStore, purchaseID string) {
	t.Helper()
	purchase := getPurchase(t, store, purchaseID)
	sum := domain.SumLedger(ledgerFor(t, store, purchaseID))
	require.True(t, purchase.AmountDue.Equal(sum),
		"amount due %s != ledger sum %s", purchase.AmountDue, sum)
}

func availabilityFor(t *testing.T, store *repository.MemoryStore, tourID string) map[domain.StopPair]int {
	t.Helper()
	out := make(map[domain.StopPair]int)
	err := store.View(context.Background(), func(tx repository.Tx) error {
		rows, err := tx.Availability().ListByTour(context.Background(), tourID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			out[domain.StopPair{DepStopID: row.DepStopID, ArrStopID: row.ArrStopID}] = row.FreeSeats
		}
		return nil
	})
	require.NoError(t, err)
	return out
}
