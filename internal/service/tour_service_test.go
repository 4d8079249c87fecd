package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intercity-tours/booking/internal/domain"
	"github.com/intercity-tours/booking/internal/dto"
	"github.com/intercity-tours/booking/internal/repository"
)

func newTourService(store *repository.MemoryStore, mirror *recordingMirror, at time.Time) TourService {
	return NewTourService(store, mirror, &TourServiceConfig{Now: fixedClock(at)})
}

func TestTourService_CreateTour(t *testing.T) {
	store := repository.NewMemoryStore()
	seedTestRoute(store)
	seedTestFares(store, "pl-1", "4.00", "7.00", "10.00")

	mirror := newRecordingMirror()
	svc := newTourService(store, mirror, testBase)

	resp, err := svc.CreateTour(context.Background(), &dto.CreateTourRequest{
		RouteID:      testRouteID,
		PricelistID:  "pl-1",
		SeatCount:    4,
		DepartsAt:    testBase.Add(24 * time.Hour),
		BlockedSeats: []int{4},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.SeatCount)
	assert.False(t, resp.Closed)

	// One row per priced pair; the blocked seat never counts.
	require.Len(t, resp.Availability, 6)
	for _, row := range resp.Availability {
		assert.Equal(t, 3, row.FreeSeats, "pair (%s, %s)", row.DepStopID, row.ArrStopID)
	}

	seat := getSeat(t, store, resp.ID, 4)
	assert.True(t, seat.Blocked)
	assert.Equal(t, domain.FullSegmentSet(4), seat.FreeSegments)
	assert.False(t, getSeat(t, store, resp.ID, 1).Blocked)

	assert.Equal(t, 3, mirror.freeSeats(resp.ID, "s1", "s4"))
}

func TestTourService_CreateTourUnknownRoute(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := newTourService(store, newRecordingMirror(), testBase)

	_, err := svc.CreateTour(context.Background(), &dto.CreateTourRequest{
		RouteID:     "nope",
		PricelistID: "pl-1",
		SeatCount:   4,
		DepartsAt:   testBase,
	})
	assert.ErrorIs(t, err, domain.ErrRouteNotFound)
}

func TestTourService_CreateTourDegenerateRoute(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SeedRoute(&domain.Route{
		ID:    "short",
		Stops: []domain.Stop{{ID: "only", RouteID: "short", Order: 1}},
	})
	svc := newTourService(store, newRecordingMirror(), testBase)

	_, err := svc.CreateTour(context.Background(), &dto.CreateTourRequest{
		RouteID:     "short",
		PricelistID: "pl-1",
		SeatCount:   4,
		DepartsAt:   testBase,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSegmentRange)
}

func TestTourService_CreateTourRouteWiderThanSegmentMask(t *testing.T) {
	store := repository.NewMemoryStore()
	long := &domain.Route{ID: "route-long", Name: "Lisbon - Kyiv"}
	for i := 1; i <= domain.MaxSegments+2; i++ {
		long.Stops = append(long.Stops, domain.Stop{
			ID: fmt.Sprintf("p%d", i), RouteID: long.ID, Order: i,
		})
	}
	store.SeedRoute(long)
	svc := newTourService(store, newRecordingMirror(), testBase)

	// More segments than the seat mask can hold: no seat could ever be
	// sold on such a tour, so creation is refused up front.
	_, err := svc.CreateTour(context.Background(), &dto.CreateTourRequest{
		RouteID:     "route-long",
		PricelistID: "pl-1",
		SeatCount:   4,
		DepartsAt:   testBase,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSegmentRange)
}

func TestTourService_GetTour(t *testing.T) {
	store := newTestStore()
	svc := newTourService(store, newRecordingMirror(), testBase)

	resp, err := svc.GetTour(context.Background(), testTour1)
	require.NoError(t, err)
	assert.Equal(t, testTour1, resp.ID)
	assert.Equal(t, testRouteID, resp.RouteID)

	_, err = svc.GetTour(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrTourNotFound)
}

func TestTourService_CloseDepartedTours(t *testing.T) {
	store := newTestStore()
	mirror := newRecordingMirror()

	// Put some availability rows in place first.
	booking := newBookingService(store, &recordingNotifier{}, mirror)
	_, err := booking.Book(context.Background(), &dto.BookRequest{
		TourID: testTour1, DepStopID: "s1", ArrStopID: "s4", Adults: 1,
		Seats: []dto.SeatRequest{{SeatNumber: 1, Passenger: "Ada"}},
	})
	require.NoError(t, err)

	// tour-1 departs at base+24h, tour-2 at base+48h.
	svc := newTourService(store, mirror, testBase.Add(25*time.Hour))
	count, err := svc.CloseDepartedTours(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = store.View(context.Background(), func(tx repository.Tx) error {
		tour, err := tx.Tours().Get(context.Background(), testTour1)
		require.NoError(t, err)
		assert.True(t, tour.Closed)

		other, err := tx.Tours().Get(context.Background(), testTour2)
		require.NoError(t, err)
		assert.False(t, other.Closed)
		return nil
	})
	require.NoError(t, err)

	// All seats blocked, every availability row zeroed and mirrored.
	for n := 1; n <= 3; n++ {
		assert.True(t, getSeat(t, store, testTour1, n).Blocked)
	}
	for pair, count := range availabilityFor(t, store, testTour1) {
		assert.Zero(t, count, "pair (%s, %s)", pair.DepStopID, pair.ArrStopID)
	}
	assert.Zero(t, mirror.freeSeats(testTour1, "s1", "s4"))

	// A second sweep finds nothing left to close.
	count, err = svc.CloseDepartedTours(context.Background(), 100)
	require.NoError(t, err)
	assert.Zero(t, count)
}
