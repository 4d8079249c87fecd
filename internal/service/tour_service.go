package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/intercity-tours/booking/internal/domain"
	"github.com/intercity-tours/booking/internal/dto"
	"github.com/intercity-tours/booking/internal/metrics"
	"github.com/intercity-tours/booking/internal/repository"
	"github.com/intercity-tours/booking/pkg/logger"
	"github.com/intercity-tours/booking/pkg/telemetry"
)

// TourService opens tours for sale and closes departed ones.
type TourService interface {
	// CreateTour creates the tour with its seat inventory and initial
	// availability rows, all in one transaction.
	CreateTour(ctx context.Context, req *dto.CreateTourRequest) (*dto.TourResponse, error)

	// GetTour returns a tour with its availability rows.
	GetTour(ctx context.Context, tourID string) (*dto.TourResponse, error)

	// CloseDepartedTours closes open tours whose departure has passed,
	// blocking all seats and zeroing availability. Returns the number
	// of tours closed.
	CloseDepartedTours(ctx context.Context, limit int) (int, error)
}

// tourService implements TourService
type tourService struct {
	store  repository.Store
	mirror AvailabilityMirror
	now    func() time.Time
}

// TourServiceConfig contains configuration for tour service
type TourServiceConfig struct {
	Now func() time.Time
}

// NewTourService creates a new tour service
func NewTourService(store repository.Store, mirror AvailabilityMirror, cfg *TourServiceConfig) TourService {
	now := time.Now
	if cfg != nil && cfg.Now != nil {
		now = cfg.Now
	}
	if mirror == nil {
		mirror = NoOpAvailabilityMirror{}
	}
	return &tourService{store: store, mirror: mirror, now: now}
}

// CreateTour creates the tour, its seats and its availability rows.
func (s *tourService) CreateTour(ctx context.Context, req *dto.CreateTourRequest) (*dto.TourResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.tour.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("route_id", req.RouteID),
		attribute.Int("seat_count", req.SeatCount),
	)

	blocked := make(map[int]bool, len(req.BlockedSeats))
	for _, n := range req.BlockedSeats {
		blocked[n] = true
	}

	now := s.now()
	tour := &domain.Tour{
		ID:          uuid.New().String(),
		RouteID:     req.RouteID,
		PricelistID: req.PricelistID,
		SeatCount:   req.SeatCount,
		DepartsAt:   req.DepartsAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var rows []domain.AvailabilityRow
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		route, err := tx.Routes().Get(ctx, req.RouteID)
		if err != nil {
			return err
		}
		if n := route.SegmentCount(); n < 1 || n > domain.MaxSegments {
			return domain.ErrInvalidSegmentRange
		}
		if err := tx.Tours().Create(ctx, tour); err != nil {
			return err
		}

		full := domain.FullSegmentSet(len(route.Stops))
		seats := make([]*domain.Seat, 0, req.SeatCount)
		for n := 1; n <= req.SeatCount; n++ {
			seats = append(seats, &domain.Seat{
				TourID:       tour.ID,
				Number:       n,
				Blocked:      blocked[n],
				FreeSegments: full,
			})
		}
		if err := tx.Seats().BulkCreate(ctx, seats); err != nil {
			return err
		}

		rows, err = recomputeAvailability(ctx, tx, tour.ID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tour creation failed")
		return nil, err
	}

	if err := s.mirror.Mirror(ctx, tour.ID, rows); err != nil {
		logger.Get().Warn("availability mirror refresh failed",
			zap.String("tour_id", tour.ID), zap.Error(err))
	}

	return tourResponse(tour, rows), nil
}

// GetTour returns a tour with its availability rows.
func (s *tourService) GetTour(ctx context.Context, tourID string) (*dto.TourResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.tour.get")
	defer span.End()
	span.SetAttributes(attribute.String("tour_id", tourID))

	var (
		tour *domain.Tour
		rows []domain.AvailabilityRow
	)
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		tour, err = tx.Tours().Get(ctx, tourID)
		if err != nil {
			return err
		}
		rows, err = tx.Availability().ListByTour(ctx, tourID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
		return nil, err
	}
	return tourResponse(tour, rows), nil
}

// CloseDepartedTours closes open tours whose departure has passed.
// Closing blocks every seat, so late bookings and modifications fail
// on ErrTourClosed or ErrSeatBlocked no matter which check runs first.
func (s *tourService) CloseDepartedTours(ctx context.Context, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.tour.close_departed")
	defer span.End()

	now := s.now()
	var (
		closed   []*domain.Tour
		tourRows = map[string][]domain.AvailabilityRow{}
	)
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		closed, err = tx.Tours().ListDeparted(ctx, now, limit)
		if err != nil {
			return err
		}
		for _, tour := range closed {
			if err := tx.Seats().BlockAll(ctx, tour.ID); err != nil {
				return err
			}
			if err := tx.Availability().Zero(ctx, tour.ID); err != nil {
				return err
			}
			if err := tx.Tours().MarkClosed(ctx, tour.ID); err != nil {
				return err
			}
			rows, err := tx.Availability().ListByTour(ctx, tour.ID)
			if err != nil {
				return err
			}
			tourRows[tour.ID] = rows
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "close sweep failed")
		return 0, err
	}

	for tourID, rows := range tourRows {
		if err := s.mirror.Mirror(ctx, tourID, rows); err != nil {
			logger.Get().Warn("availability mirror refresh failed",
				zap.String("tour_id", tourID), zap.Error(err))
		}
	}
	metrics.RecordToursClosed(ctx, int64(len(closed)))

	return len(closed), nil
}

func tourResponse(tour *domain.Tour, rows []domain.AvailabilityRow) *dto.TourResponse {
	resp := &dto.TourResponse{
		ID:          tour.ID,
		RouteID:     tour.RouteID,
		PricelistID: tour.PricelistID,
		SeatCount:   tour.SeatCount,
		DepartsAt:   tour.DepartsAt,
		Closed:      tour.Closed,
	}
	for _, row := range rows {
		resp.Availability = append(resp.Availability, dto.AvailabilityRow{
			DepStopID: row.DepStopID,
			ArrStopID: row.ArrStopID,
			FreeSeats: row.FreeSeats,
		})
	}
	return resp
}
