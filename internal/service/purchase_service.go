package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/intercity-tours/booking/internal/access"
	"github.com/intercity-tours/booking/internal/domain"
	"github.com/intercity-tours/booking/internal/dto"
	"github.com/intercity-tours/booking/internal/metrics"
	"github.com/intercity-tours/booking/internal/notify"
	"github.com/intercity-tours/booking/internal/payment"
	"github.com/intercity-tours/booking/internal/repository"
	"github.com/intercity-tours/booking/pkg/logger"
	"github.com/intercity-tours/booking/pkg/telemetry"
)

// PurchaseService drives the purchase lifecycle: payment, refund, the
// reservation expiry sweep and read access.
type PurchaseService interface {
	// GetPurchase returns the purchase with its tickets and ledger.
	GetPurchase(ctx context.Context, purchaseID string) (*dto.PurchaseResponse, error)

	// Pay settles (part of) the outstanding balance. The purchase moves
	// to paid once nothing is due.
	Pay(ctx context.Context, req *dto.PayRequest) (*dto.ModificationResult, error)

	// Refund pays a credited balance back and closes the purchase.
	Refund(ctx context.Context, req *dto.RefundRequest) (*dto.ModificationResult, error)

	// ExpireReservations cancels reserved purchases whose payment
	// deadline has passed and frees their seats. Returns the number of
	// purchases expired.
	ExpireReservations(ctx context.Context, limit int) (int, error)
}

// purchaseService implements PurchaseService
type purchaseService struct {
	store    repository.Store
	gateway  payment.Gateway
	notifier notify.Notifier
	mirror   AvailabilityMirror
	revoker  access.Revoker
	now      func() time.Time
}

// PurchaseServiceConfig contains configuration for purchase service
type PurchaseServiceConfig struct {
	Now func() time.Time
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(
	store repository.Store,
	gateway payment.Gateway,
	notifier notify.Notifier,
	mirror AvailabilityMirror,
	revoker access.Revoker,
	cfg *PurchaseServiceConfig,
) PurchaseService {
	now := time.Now
	if cfg != nil && cfg.Now != nil {
		now = cfg.Now
	}
	if gateway == nil {
		gateway = payment.NoOpGateway{}
	}
	if notifier == nil {
		notifier = notify.NoOpNotifier{}
	}
	if mirror == nil {
		mirror = NoOpAvailabilityMirror{}
	}
	if revoker == nil {
		revoker = access.NoOpRevoker{}
	}
	return &purchaseService{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		mirror:   mirror,
		revoker:  revoker,
		now:      now,
	}
}

// GetPurchase returns the purchase with its tickets and ledger.
func (s *purchaseService) GetPurchase(ctx context.Context, purchaseID string) (*dto.PurchaseResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.purchase.get")
	defer span.End()
	span.SetAttributes(attribute.String("purchase_id", purchaseID))

	var resp *dto.PurchaseResponse
	err := s.store.View(ctx, func(tx repository.Tx) error {
		purchase, err := tx.Purchases().Get(ctx, purchaseID)
		if err != nil {
			return err
		}
		tickets, err := tx.Tickets().ListByPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}
		entries, err := tx.Ledger().ListByPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}

		resp = &dto.PurchaseResponse{
			ID:            purchase.ID,
			CustomerName:  purchase.CustomerName,
			CustomerEmail: purchase.CustomerEmail,
			CustomerPhone: purchase.CustomerPhone,
			AmountDue:     purchase.AmountDue.StringFixed(2),
			Status:        purchase.Status.String(),
			PaymentMethod: purchase.PaymentMethod,
			CreatedAt:     purchase.CreatedAt,
		}
		if !purchase.Deadline.IsZero() {
			deadline := purchase.Deadline
			resp.Deadline = &deadline
		}
		for _, t := range tickets {
			resp.Tickets = append(resp.Tickets, dto.TicketResponse{
				ID:         t.ID,
				TourID:     t.TourID,
				SeatNumber: t.SeatNumber,
				Passenger:  t.Passenger,
				DepStopID:  t.DepStopID,
				ArrStopID:  t.ArrStopID,
				ExtraBags:  t.ExtraBags,
			})
		}
		for _, e := range entries {
			resp.Ledger = append(resp.Ledger, dto.LedgerEntry{
				Category:  string(e.Category),
				Amount:    e.Amount.StringFixed(2),
				Actor:     e.Actor,
				Method:    e.Method,
				CreatedAt: e.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
		return nil, err
	}
	return resp, nil
}

// Pay settles (part of) the outstanding balance. With a payment
// reference the gateway must confirm settlement before any row is
// touched.
func (s *purchaseService) Pay(ctx context.Context, req *dto.PayRequest) (*dto.ModificationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.purchase.pay")
	defer span.End()
	span.SetAttributes(attribute.String("purchase_id", req.PurchaseID))

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		purchase *domain.Purchase
		paying   decimal.Decimal
	)
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		purchase, err = tx.Purchases().GetForUpdate(ctx, req.PurchaseID)
		if err != nil {
			return err
		}
		if purchase.Status != domain.PurchaseStatusReserved && purchase.Status != domain.PurchaseStatusPaid {
			return domain.ErrInvalidTransition
		}

		paying = amount
		if paying.IsZero() {
			paying = purchase.AmountDue
		}
		if !paying.IsPositive() {
			return domain.ErrInvalidTransition
		}

		if req.PaymentReference != "" {
			if err := s.gateway.VerifyPayment(ctx, req.PaymentReference, paying); err != nil {
				return err
			}
		}

		actor := req.Actor
		if actor == "" {
			actor = "customer"
		}
		entry := &domain.LedgerEntry{
			ID:         uuid.New().String(),
			PurchaseID: purchase.ID,
			Category:   domain.LedgerCategoryPayment,
			Amount:     paying.Neg(),
			Actor:      actor,
			Method:     req.Method,
			CreatedAt:  now,
		}
		if err := tx.Ledger().Append(ctx, entry); err != nil {
			return err
		}
		purchase.Apply(paying.Neg(), now)

		if purchase.Status == domain.PurchaseStatusReserved && !purchase.AmountDue.IsPositive() {
			if err := purchase.Transition(domain.PurchaseStatusPaid, now); err != nil {
				return err
			}
			purchase.Deadline = time.Time{}
		}
		if req.Method != "" {
			purchase.PaymentMethod = req.Method
		}
		return tx.Purchases().Update(ctx, purchase)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment failed")
		return nil, err
	}

	s.publishPurchase(ctx, purchase)
	if purchase.Status == domain.PurchaseStatusPaid {
		metrics.RecordPayment(ctx, purchase.PaymentMethod)
	}

	return &dto.ModificationResult{
		PurchaseID:     purchase.ID,
		PurchaseStatus: purchase.Status.String(),
		AmountDue:      purchase.AmountDue.StringFixed(2),
		Delta:          paying.Neg().StringFixed(2),
	}, nil
}

// Refund pays a credited balance back to the customer. Only paid
// purchases can be refunded; refunded is terminal.
func (s *purchaseService) Refund(ctx context.Context, req *dto.RefundRequest) (*dto.ModificationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.purchase.refund")
	defer span.End()
	span.SetAttributes(attribute.String("purchase_id", req.PurchaseID))

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		purchase *domain.Purchase
		refunded decimal.Decimal
	)
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		purchase, err = tx.Purchases().GetForUpdate(ctx, req.PurchaseID)
		if err != nil {
			return err
		}

		refunded = amount
		if refunded.IsZero() {
			refunded = purchase.AmountDue.Neg()
		}
		if !refunded.IsPositive() {
			return domain.ErrInvalidTransition
		}

		if err := purchase.Transition(domain.PurchaseStatusRefunded, now); err != nil {
			return err
		}

		if req.PaymentReference != "" {
			if err := s.gateway.Refund(ctx, req.PaymentReference, refunded); err != nil {
				return err
			}
		}

		actor := req.Actor
		if actor == "" {
			actor = "operator"
		}
		entry := &domain.LedgerEntry{
			ID:         uuid.New().String(),
			PurchaseID: purchase.ID,
			Category:   domain.LedgerCategoryRefund,
			Amount:     refunded,
			Actor:      actor,
			CreatedAt:  now,
		}
		if err := tx.Ledger().Append(ctx, entry); err != nil {
			return err
		}
		purchase.Apply(refunded, now)
		return tx.Purchases().Update(ctx, purchase)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refund failed")
		return nil, err
	}

	s.publishPurchase(ctx, purchase)
	metrics.RecordRefund(ctx)

	return &dto.ModificationResult{
		PurchaseID:     purchase.ID,
		PurchaseStatus: purchase.Status.String(),
		AmountDue:      purchase.AmountDue.StringFixed(2),
		Delta:          refunded.StringFixed(2),
	}, nil
}

// ExpireReservations sweeps reserved purchases past their deadline:
// seats are freed, tickets removed, the purchase cancelled with a
// zero-amount ledger entry marking the expiry.
func (s *purchaseService) ExpireReservations(ctx context.Context, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.purchase.expire_reservations")
	defer span.End()

	now := s.now()
	var (
		expired  []*domain.Purchase
		tickets  = map[string][]*domain.Ticket{}
		tourRows = map[string][]domain.AvailabilityRow{}
	)
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		expired, err = tx.Purchases().ListExpired(ctx, now, limit)
		if err != nil {
			return err
		}

		touched := make([]string, 0, len(expired))
		for _, purchase := range expired {
			owned, err := tx.Tickets().ListByPurchase(ctx, purchase.ID)
			if err != nil {
				return err
			}
			tickets[purchase.ID] = owned

			keys := make([]seatKey, 0, len(owned))
			for _, t := range owned {
				keys = append(keys, seatKey{tourID: t.TourID, number: t.SeatNumber})
			}
			seats, err := lockSeats(ctx, tx, keys)
			if err != nil {
				return err
			}
			for _, t := range owned {
				tour, err := tx.Tours().Get(ctx, t.TourID)
				if err != nil {
					return err
				}
				route, err := tx.Routes().Get(ctx, tour.RouteID)
				if err != nil {
					return err
				}
				segments, err := route.SegmentRangeFor(t.DepStopID, t.ArrStopID)
				if err != nil {
					return err
				}
				seats[seatKey{tourID: t.TourID, number: t.SeatNumber}].Release(segments)
				touched = append(touched, t.TourID)
			}
			for _, seat := range seats {
				if err := tx.Seats().Update(ctx, seat); err != nil {
					return err
				}
			}
			for _, t := range owned {
				if err := tx.Tickets().Delete(ctx, t.ID); err != nil {
					return err
				}
			}

			entry := &domain.LedgerEntry{
				ID:         uuid.New().String(),
				PurchaseID: purchase.ID,
				Category:   domain.LedgerCategoryExpiry,
				Amount:     decimal.Zero,
				Actor:      "sweeper",
				CreatedAt:  now,
			}
			if err := tx.Ledger().Append(ctx, entry); err != nil {
				return err
			}
			if err := purchase.Transition(domain.PurchaseStatusCancelled, now); err != nil {
				return err
			}
			if err := tx.Purchases().Update(ctx, purchase); err != nil {
				return err
			}
		}

		sort.Strings(touched)
		for _, tourID := range distinct(touched...) {
			rows, err := recomputeAvailability(ctx, tx, tourID)
			if err != nil {
				return err
			}
			tourRows[tourID] = rows
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "expiry sweep failed")
		return 0, err
	}

	log := logger.Get()
	for _, purchase := range expired {
		for _, t := range tickets[purchase.ID] {
			if err := s.revoker.Revoke(ctx, t.ID); err != nil {
				log.Warn("ticket token revocation failed",
					zap.String("ticket_id", t.ID), zap.Error(err))
			}
		}
		s.publishPurchase(ctx, purchase)
	}
	for tourID, rows := range tourRows {
		if err := s.mirror.Mirror(ctx, tourID, rows); err != nil {
			log.Warn("availability mirror refresh failed",
				zap.String("tour_id", tourID), zap.Error(err))
		}
	}
	metrics.RecordExpiration(ctx, int64(len(expired)))

	return len(expired), nil
}

func (s *purchaseService) publishPurchase(ctx context.Context, purchase *domain.Purchase) {
	event := notify.PurchaseEvent{
		PurchaseID: purchase.ID,
		Status:     purchase.Status.String(),
		AmountDue:  purchase.AmountDue.StringFixed(2),
	}
	if err := s.notifier.PurchaseChanged(ctx, event); err != nil {
		logger.Get().Warn("purchase.changed publish failed",
			zap.String("purchase_id", purchase.ID), zap.Error(err))
	}
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amount, nil
}
