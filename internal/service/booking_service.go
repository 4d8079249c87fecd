package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/intercity-tours/booking/internal/domain"
	"github.com/intercity-tours/booking/internal/dto"
	"github.com/intercity-tours/booking/internal/metrics"
	"github.com/intercity-tours/booking/internal/notify"
	"github.com/intercity-tours/booking/internal/repository"
	"github.com/intercity-tours/booking/pkg/logger"
	"github.com/intercity-tours/booking/pkg/telemetry"
)

// TicketTokens issues access tokens for freshly booked tickets. Deep
// links are best effort: a token failure never fails the booking.
type TicketTokens interface {
	Issue(ticketID, purchaseID string, scopes []string) (string, error)
	DeepLink(token string) string
}

// BookingService defines the interface for booking business logic
type BookingService interface {
	// Quote prices a booking without touching inventory.
	Quote(ctx context.Context, req *dto.QuoteRequest) (*dto.QuoteResponse, error)

	// Book reserves seats over a stop range and attaches the tickets to
	// a new or existing purchase, all in one transaction.
	Book(ctx context.Context, req *dto.BookRequest) (*dto.BookResponse, error)
}

// bookingService implements BookingService
type bookingService struct {
	store          repository.Store
	notifier       notify.Notifier
	tokens         TicketTokens
	mirror         AvailabilityMirror
	reservationTTL time.Duration
	now            func() time.Time
}

// BookingServiceConfig contains configuration for booking service
type BookingServiceConfig struct {
	ReservationTTL time.Duration
	Now            func() time.Time
}

// NewBookingService creates a new booking service
func NewBookingService(
	store repository.Store,
	notifier notify.Notifier,
	tokens TicketTokens,
	mirror AvailabilityMirror,
	cfg *BookingServiceConfig,
) BookingService {
	ttl := 30 * time.Minute
	now := time.Now
	if cfg != nil {
		if cfg.ReservationTTL > 0 {
			ttl = cfg.ReservationTTL
		}
		if cfg.Now != nil {
			now = cfg.Now
		}
	}
	if notifier == nil {
		notifier = notify.NoOpNotifier{}
	}
	if mirror == nil {
		mirror = NoOpAvailabilityMirror{}
	}
	return &bookingService{
		store:          store,
		notifier:       notifier,
		tokens:         tokens,
		mirror:         mirror,
		reservationTTL: ttl,
		now:            now,
	}
}

// Quote prices a booking without touching inventory.
func (s *bookingService) Quote(ctx context.Context, req *dto.QuoteRequest) (*dto.QuoteResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.quote")
	defer span.End()

	span.SetAttributes(
		attribute.String("tour_id", req.TourID),
		attribute.String("dep_stop_id", req.DepStopID),
		attribute.String("arr_stop_id", req.ArrStopID),
	)

	var fare, total decimal.Decimal
	err := s.store.View(ctx, func(tx repository.Tx) error {
		tour, err := tx.Tours().Get(ctx, req.TourID)
		if err != nil {
			return err
		}
		route, err := tx.Routes().Get(ctx, tour.RouteID)
		if err != nil {
			return err
		}
		if _, err := route.SegmentRangeFor(req.DepStopID, req.ArrStopID); err != nil {
			return err
		}
		fare, err = tx.Prices().Fare(ctx, tour.PricelistID, req.DepStopID, req.ArrStopID)
		if err != nil {
			return err
		}
		total = BookingTotal(fare, req.Adults, req.Discount, req.ExtraBags)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quote failed")
		return nil, err
	}

	return &dto.QuoteResponse{
		Fare:  fare.StringFixed(2),
		Total: total.StringFixed(2),
	}, nil
}

// Book reserves seats and attaches the tickets to a purchase. Seat
// rows are locked in ascending seat number order after the purchase
// row, so concurrent bookings of overlapping seat sets cannot
// deadlock; the loser sees ErrSegmentUnavailable.
func (s *bookingService) Book(ctx context.Context, req *dto.BookRequest) (*dto.BookResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.book")
	defer span.End()

	if err := validateBookRequest(req); err != nil {
		span.SetStatus(codes.Error, "invalid booking request")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("tour_id", req.TourID),
		attribute.String("dep_stop_id", req.DepStopID),
		attribute.String("arr_stop_id", req.ArrStopID),
		attribute.Int("seats", len(req.Seats)),
	)

	targetStatus := domain.PurchaseStatusReserved
	if req.PurchaseStatus != "" {
		targetStatus = domain.PurchaseStatus(req.PurchaseStatus)
	}

	seats := make([]dto.SeatRequest, len(req.Seats))
	copy(seats, req.Seats)
	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatNumber < seats[j].SeatNumber })

	totalBags := 0
	for _, sr := range seats {
		totalBags += sr.ExtraBags
	}

	now := s.now()
	var (
		purchase *domain.Purchase
		tickets  []*domain.Ticket
		total    decimal.Decimal
		rows     []domain.AvailabilityRow
	)
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		tour, err := tx.Tours().Get(ctx, req.TourID)
		if err != nil {
			return err
		}
		if tour.Closed {
			return domain.ErrTourClosed
		}
		route, err := tx.Routes().Get(ctx, tour.RouteID)
		if err != nil {
			return err
		}
		segments, err := route.SegmentRangeFor(req.DepStopID, req.ArrStopID)
		if err != nil {
			return err
		}
		fare, err := tx.Prices().Fare(ctx, tour.PricelistID, req.DepStopID, req.ArrStopID)
		if err != nil {
			return err
		}
		total = BookingTotal(fare, req.Adults, req.Discount, totalBags)

		// Purchase row first, then seats: every writer takes locks in
		// the same order.
		purchase, err = s.resolvePurchase(ctx, tx, req, targetStatus, now)
		if err != nil {
			return err
		}

		tickets = tickets[:0]
		for _, sr := range seats {
			seat, err := tx.Seats().GetForUpdate(ctx, req.TourID, sr.SeatNumber)
			if err != nil {
				return err
			}
			if err := seat.Reserve(segments); err != nil {
				return err
			}
			if err := tx.Seats().Update(ctx, seat); err != nil {
				return err
			}
			ticket := &domain.Ticket{
				ID:         uuid.New().String(),
				TourID:     req.TourID,
				SeatNumber: sr.SeatNumber,
				Passenger:  sr.Passenger,
				DepStopID:  req.DepStopID,
				ArrStopID:  req.ArrStopID,
				PurchaseID: purchase.ID,
				ExtraBags:  sr.ExtraBags,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := tx.Tickets().Create(ctx, ticket); err != nil {
				return err
			}
			tickets = append(tickets, ticket)
		}

		entry := &domain.LedgerEntry{
			ID:         uuid.New().String(),
			PurchaseID: purchase.ID,
			Category:   domain.LedgerCategoryBooking,
			Amount:     total,
			Actor:      "customer",
			Method:     req.PaymentMethod,
			CreatedAt:  now,
		}
		if err := tx.Ledger().Append(ctx, entry); err != nil {
			return err
		}
		purchase.Apply(total, now)
		if err := tx.Purchases().Update(ctx, purchase); err != nil {
			return err
		}

		rows, err = recomputeAvailability(ctx, tx, req.TourID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking failed")
		return nil, err
	}

	s.refreshMirror(ctx, req.TourID, rows)
	metrics.RecordBooking(ctx, req.TourID, len(tickets), purchase.Status == domain.PurchaseStatusReserved)

	resp := &dto.BookResponse{
		PurchaseID:     purchase.ID,
		PurchaseStatus: purchase.Status.String(),
		AmountDue:      purchase.AmountDue.StringFixed(2),
		Total:          total.StringFixed(2),
	}
	for _, t := range tickets {
		booked := dto.BookedTicket{
			TicketID:   t.ID,
			SeatNumber: t.SeatNumber,
			Passenger:  t.Passenger,
		}
		booked.DeepLink = s.publishTicket(ctx, t)
		resp.Tickets = append(resp.Tickets, booked)
	}
	return resp, nil
}

// resolvePurchase locks the target purchase, or opens a new one. The
// caller's declared status must match the locked row; the single
// tolerated difference is paying a reserved purchase in the same call.
func (s *bookingService) resolvePurchase(ctx context.Context, tx repository.Tx, req *dto.BookRequest, target domain.PurchaseStatus, now time.Time) (*domain.Purchase, error) {
	if req.PurchaseID != "" {
		purchase, err := tx.Purchases().GetForUpdate(ctx, req.PurchaseID)
		if err != nil {
			return nil, err
		}
		if purchase.Status != target {
			if target != domain.PurchaseStatusPaid || !purchase.Status.CanTransition(target) {
				return nil, domain.ErrMismatchedPurchaseStatus
			}
			if err := purchase.Transition(target, now); err != nil {
				return nil, err
			}
		}
		return purchase, nil
	}

	purchase := &domain.Purchase{
		ID:            uuid.New().String(),
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		AmountDue:     decimal.Zero,
		Status:        target,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if target == domain.PurchaseStatusReserved {
		purchase.Deadline = now.Add(s.reservationTTL)
	}
	if err := tx.Purchases().Create(ctx, purchase); err != nil {
		return nil, err
	}
	return purchase, nil
}

// refreshMirror pushes recomputed rows to the cache. Failures are
// logged and dropped: the database rows already committed.
func (s *bookingService) refreshMirror(ctx context.Context, tourID string, rows []domain.AvailabilityRow) {
	if err := s.mirror.Mirror(ctx, tourID, rows); err != nil {
		logger.Get().Warn("availability mirror refresh failed",
			zap.String("tour_id", tourID), zap.Error(err))
	}
}

// publishTicket issues an access token and emits the ticket.issued
// event. Returns the deep link, or "" when no issuer is configured.
func (s *bookingService) publishTicket(ctx context.Context, t *domain.Ticket) string {
	deepLink := ""
	if s.tokens != nil {
		token, err := s.tokens.Issue(t.ID, t.PurchaseID, []string{"ticket:view", "ticket:modify"})
		if err != nil {
			logger.Get().Warn("ticket token issue failed",
				zap.String("ticket_id", t.ID), zap.Error(err))
		} else {
			deepLink = s.tokens.DeepLink(token)
		}
	}
	event := notify.TicketIssuedEvent{
		TicketID:   t.ID,
		PurchaseID: t.PurchaseID,
		DeepLink:   deepLink,
	}
	if err := s.notifier.TicketIssued(ctx, event); err != nil {
		logger.Get().Warn("ticket.issued publish failed",
			zap.String("ticket_id", t.ID), zap.Error(err))
	}
	return deepLink
}

func validateBookRequest(req *dto.BookRequest) error {
	if req == nil || len(req.Seats) == 0 {
		return domain.ErrNoSeatsRequested
	}
	seen := make(map[int]struct{}, len(req.Seats))
	for _, sr := range req.Seats {
		if sr.Passenger == "" {
			return domain.ErrPassengerCountMismatch
		}
		if sr.ExtraBags < 0 {
			return domain.ErrNegativeBaggage
		}
		if _, dup := seen[sr.SeatNumber]; dup {
			return domain.ErrDuplicateSeat
		}
		seen[sr.SeatNumber] = struct{}{}
	}
	if req.Adults < 0 || req.Discount < 0 || req.Adults+req.Discount != len(req.Seats) {
		return domain.ErrFareCountMismatch
	}
	if req.PurchaseStatus != "" {
		status := domain.PurchaseStatus(req.PurchaseStatus)
		if status != domain.PurchaseStatusReserved && status != domain.PurchaseStatusPaid {
			return domain.ErrMismatchedPurchaseStatus
		}
	}
	return nil
}
