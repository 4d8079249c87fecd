package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/intercity-tours/booking/internal/domain"
	"github.com/intercity-tours/booking/internal/repository"
)

// recomputeAvailability rebuilds every priced stop pair's free-seat
// count for a tour from the current seat free sets. It runs inside the
// same transaction as the mutation it follows, so the mutator always
// sees fresh counts; concurrent readers see the pre-mutation rows
// until commit. Returns the recomputed rows for post-commit mirroring.
func recomputeAvailability(ctx context.Context, tx repository.Tx, tourID string) ([]domain.AvailabilityRow, error) {
	tour, err := tx.Tours().Get(ctx, tourID)
	if err != nil {
		return nil, err
	}
	route, err := tx.Routes().Get(ctx, tour.RouteID)
	if err != nil {
		return nil, err
	}
	pairs, err := tx.Prices().Pairs(ctx, tour.PricelistID)
	if err != nil {
		return nil, err
	}
	seats, err := tx.Seats().ListByTour(ctx, tourID)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.AvailabilityRow, 0, len(pairs))
	for _, pair := range pairs {
		segments, err := route.SegmentRangeFor(pair.DepStopID, pair.ArrStopID)
		if err != nil {
			if errors.Is(err, domain.ErrStopNotOnRoute) || errors.Is(err, domain.ErrArrivalBeforeDeparture) {
				return nil, fmt.Errorf("%w: pair (%s, %s)", domain.ErrInvalidSegmentRange, pair.DepStopID, pair.ArrStopID)
			}
			return nil, err
		}
		count := 0
		for _, seat := range seats {
			if seat.CanSell(segments) {
				count++
			}
		}
		rows = append(rows, domain.AvailabilityRow{
			TourID:    tourID,
			DepStopID: pair.DepStopID,
			ArrStopID: pair.ArrStopID,
			FreeSeats: count,
		})
	}
	if err := tx.Availability().Upsert(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// AvailabilityMirror pushes recomputed rows to a non-authoritative
// read cache after commit. Implementations must tolerate being called
// concurrently; failures are logged by callers and never surfaced.
type AvailabilityMirror interface {
	Mirror(ctx context.Context, tourID string, rows []domain.AvailabilityRow) error
	Lookup(ctx context.Context, tourID, depStopID, arrStopID string) (int, bool, error)
}

// NoOpAvailabilityMirror is used when no cache is configured.
type NoOpAvailabilityMirror struct{}

func (NoOpAvailabilityMirror) Mirror(ctx context.Context, tourID string, rows []domain.AvailabilityRow) error {
	return nil
}

func (NoOpAvailabilityMirror) Lookup(ctx context.Context, tourID, depStopID, arrStopID string) (int, bool, error) {
	return 0, false, nil
}

// AvailabilityService serves free-seat counts for search. The cache is
// consulted first; the database rows back it up. Counts are a hint:
// booking remains the only authority.
type AvailabilityService struct {
	store  repository.Store
	mirror AvailabilityMirror
}

// NewAvailabilityService creates a new AvailabilityService.
func NewAvailabilityService(store repository.Store, mirror AvailabilityMirror) *AvailabilityService {
	if mirror == nil {
		mirror = NoOpAvailabilityMirror{}
	}
	return &AvailabilityService{store: store, mirror: mirror}
}

// FreeSeats returns the cached free-seat count for a (tour, departure,
// arrival) triple.
func (s *AvailabilityService) FreeSeats(ctx context.Context, tourID, depStopID, arrStopID string) (int, error) {
	if count, ok, err := s.mirror.Lookup(ctx, tourID, depStopID, arrStopID); err == nil && ok {
		return count, nil
	}
	var count int
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		count, err = tx.Availability().Get(ctx, tourID, depStopID, arrStopID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// TourAvailability returns every cached row of a tour.
func (s *AvailabilityService) TourAvailability(ctx context.Context, tourID string) ([]domain.AvailabilityRow, error) {
	var rows []domain.AvailabilityRow
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		rows, err = tx.Availability().ListByTour(ctx, tourID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ResyncOpenTours recomputes the availability rows of every open tour
// from seat state and pushes them to the mirror. Returns the number of
// tours resynced.
func (s *AvailabilityService) ResyncOpenTours(ctx context.Context, limit int) (int, error) {
	tourRows := map[string][]domain.AvailabilityRow{}
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		tours, err := tx.Tours().ListOpen(ctx, limit)
		if err != nil {
			return err
		}
		for _, tour := range tours {
			rows, err := recomputeAvailability(ctx, tx, tour.ID)
			if err != nil {
				return err
			}
			tourRows[tour.ID] = rows
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for tourID, rows := range tourRows {
		if err := s.mirror.Mirror(ctx, tourID, rows); err != nil {
			return len(tourRows), err
		}
	}
	return len(tourRows), nil
}

// MirrorDrift compares the mirror against the database rows of a tour.
// A missing mirror entry reports a count of -1.
type MirrorDrift struct {
	DepStopID   string `json:"dep_stop_id"`
	ArrStopID   string `json:"arr_stop_id"`
	StoredSeats int    `json:"stored_seats"`
	MirrorSeats int    `json:"mirror_seats"`
	InSync      bool   `json:"in_sync"`
}

// TourMirrorStatus reports, per priced stop pair, whether the mirror
// agrees with the database rows.
func (s *AvailabilityService) TourMirrorStatus(ctx context.Context, tourID string) ([]MirrorDrift, error) {
	rows, err := s.TourAvailability(ctx, tourID)
	if err != nil {
		return nil, err
	}
	out := make([]MirrorDrift, 0, len(rows))
	for _, row := range rows {
		drift := MirrorDrift{
			DepStopID:   row.DepStopID,
			ArrStopID:   row.ArrStopID,
			StoredSeats: row.FreeSeats,
			MirrorSeats: -1,
		}
		if count, ok, err := s.mirror.Lookup(ctx, tourID, row.DepStopID, row.ArrStopID); err == nil && ok {
			drift.MirrorSeats = count
			drift.InSync = count == row.FreeSeats
		}
		out = append(out, drift)
	}
	return out, nil
}
