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

	"github.com/intercity-tours/booking/internal/access"
	"github.com/intercity-tours/booking/internal/domain"
	"github.com/intercity-tours/booking/internal/dto"
	"github.com/intercity-tours/booking/internal/metrics"
	"github.com/intercity-tours/booking/internal/notify"
	"github.com/intercity-tours/booking/internal/repository"
	"github.com/intercity-tours/booking/pkg/logger"
	"github.com/intercity-tours/booking/pkg/telemetry"
)

// ModificationService changes issued tickets. Every change comes as a
// plan/commit pair: the plan prices the change in a read-only
// transaction, the commit re-runs the identical evaluation under row
// locks and applies it. A plan is therefore never a promise.
type ModificationService interface {
	PlanReschedule(ctx context.Context, req *dto.RescheduleRequest) (*dto.ReschedulePlan, error)
	CommitReschedule(ctx context.Context, req *dto.RescheduleRequest) (*dto.ModificationResult, error)

	PlanBaggage(ctx context.Context, req *dto.BaggageRequest) (*dto.BaggagePlan, error)
	CommitBaggage(ctx context.Context, req *dto.BaggageRequest) (*dto.ModificationResult, error)

	PlanCancel(ctx context.Context, req *dto.CancelRequest) (*dto.CancelPlan, error)
	CommitCancel(ctx context.Context, req *dto.CancelRequest) (*dto.ModificationResult, error)
}

// modificationService implements ModificationService
type modificationService struct {
	store    repository.Store
	notifier notify.Notifier
	mirror   AvailabilityMirror
	revoker  access.Revoker
	now      func() time.Time
}

// ModificationServiceConfig contains configuration for modification service
type ModificationServiceConfig struct {
	Now func() time.Time
}

// NewModificationService creates a new modification service
func NewModificationService(
	store repository.Store,
	notifier notify.Notifier,
	mirror AvailabilityMirror,
	revoker access.Revoker,
	cfg *ModificationServiceConfig,
) ModificationService {
	now := time.Now
	if cfg != nil && cfg.Now != nil {
		now = cfg.Now
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
	return &modificationService{
		store:    store,
		notifier: notifier,
		mirror:   mirror,
		revoker:  revoker,
		now:      now,
	}
}

// seatKey orders seat locks across tours: tour first, number second.
type seatKey struct {
	tourID string
	number int
}

func sortSeatKeys(keys []seatKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].tourID != keys[j].tourID {
			return keys[i].tourID < keys[j].tourID
		}
		return keys[i].number < keys[j].number
	})
}

// lockSeats locks the given seats in deterministic order and returns
// them keyed for lookup.
func lockSeats(ctx context.Context, tx repository.Tx, keys []seatKey) (map[seatKey]*domain.Seat, error) {
	sortSeatKeys(keys)
	seats := make(map[seatKey]*domain.Seat, len(keys))
	for _, k := range keys {
		if _, ok := seats[k]; ok {
			continue
		}
		seat, err := tx.Seats().GetForUpdate(ctx, k.tourID, k.number)
		if err != nil {
			return nil, err
		}
		seats[k] = seat
	}
	return seats, nil
}

// --- Reschedule ---

type rescheduleState struct {
	ticket          *domain.Ticket
	purchase        *domain.Purchase
	currentValue    decimal.Decimal
	targetValue     decimal.Decimal
	delta           decimal.Decimal
	currentSegments domain.SegmentSet
	targetSegments  domain.SegmentSet
	noop            bool
}

// evalReschedule prices a reschedule. With locked=true the purchase
// and ticket rows are locked for the rest of the transaction; the
// purchase is locked first, matching the booking path.
func (s *modificationService) evalReschedule(ctx context.Context, tx repository.Tx, req *dto.RescheduleRequest, locked bool) (*rescheduleState, error) {
	ticket, err := tx.Tickets().Get(ctx, req.TicketID)
	if err != nil {
		return nil, err
	}

	var purchase *domain.Purchase
	if locked {
		// A ticket never moves between purchases, so the unlocked read
		// above is a safe way to learn the lock target.
		purchase, err = tx.Purchases().GetForUpdate(ctx, ticket.PurchaseID)
		if err != nil {
			return nil, err
		}
		ticket, err = tx.Tickets().GetForUpdate(ctx, req.TicketID)
		if err != nil {
			return nil, err
		}
	} else {
		purchase, err = tx.Purchases().Get(ctx, ticket.PurchaseID)
		if err != nil {
			return nil, err
		}
	}
	if purchase.Status.IsTerminal() {
		return nil, domain.ErrInvalidTransition
	}

	currentTour, err := tx.Tours().Get(ctx, ticket.TourID)
	if err != nil {
		return nil, err
	}
	if currentTour.Closed {
		return nil, domain.ErrTourClosed
	}
	currentRoute, err := tx.Routes().Get(ctx, currentTour.RouteID)
	if err != nil {
		return nil, err
	}
	currentSegments, err := currentRoute.SegmentRangeFor(ticket.DepStopID, ticket.ArrStopID)
	if err != nil {
		return nil, err
	}
	currentFare, err := tx.Prices().Fare(ctx, currentTour.PricelistID, ticket.DepStopID, ticket.ArrStopID)
	if err != nil {
		return nil, err
	}
	currentValue := TicketValue(currentFare, ticket.ExtraBags)

	state := &rescheduleState{
		ticket:          ticket,
		purchase:        purchase,
		currentValue:    currentValue,
		currentSegments: currentSegments,
	}

	if req.TargetTourID == ticket.TourID && req.TargetSeatNumber == ticket.SeatNumber {
		state.noop = true
		state.targetValue = currentValue
		state.delta = decimal.Zero
		state.targetSegments = currentSegments
		return state, nil
	}

	targetTour, err := tx.Tours().Get(ctx, req.TargetTourID)
	if err != nil {
		return nil, err
	}
	if targetTour.Closed {
		return nil, domain.ErrTourClosed
	}
	targetRoute, err := tx.Routes().Get(ctx, targetTour.RouteID)
	if err != nil {
		return nil, err
	}
	targetSegments, err := targetRoute.SegmentRangeFor(ticket.DepStopID, ticket.ArrStopID)
	if err != nil {
		return nil, err
	}
	targetFare, err := tx.Prices().Fare(ctx, targetTour.PricelistID, ticket.DepStopID, ticket.ArrStopID)
	if err != nil {
		return nil, err
	}

	state.targetSegments = targetSegments
	state.targetValue = TicketValue(targetFare, ticket.ExtraBags)
	state.delta = state.targetValue.Sub(state.currentValue)
	return state, nil
}

// PlanReschedule prices a reschedule without reserving anything.
func (s *modificationService) PlanReschedule(ctx context.Context, req *dto.RescheduleRequest) (*dto.ReschedulePlan, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.modification.plan_reschedule")
	defer span.End()
	span.SetAttributes(
		attribute.String("ticket_id", req.TicketID),
		attribute.String("target_tour_id", req.TargetTourID),
	)

	var state *rescheduleState
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		state, err = s.evalReschedule(ctx, tx, req, false)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan failed")
		return nil, err
	}

	return &dto.ReschedulePlan{
		TicketID:       state.ticket.ID,
		CurrentValue:   state.currentValue.StringFixed(2),
		TargetValue:    state.targetValue.StringFixed(2),
		Delta:          state.delta.StringFixed(2),
		AmountDueAfter: state.purchase.AmountDue.Add(state.delta).StringFixed(2),
		NoOp:           state.noop,
	}, nil
}

// CommitReschedule re-evaluates the reschedule under row locks and
// applies it. Moving house: reserve the target seat's segments, then
// release the current seat's.
func (s *modificationService) CommitReschedule(ctx context.Context, req *dto.RescheduleRequest) (*dto.ModificationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.modification.commit_reschedule")
	defer span.End()
	span.SetAttributes(
		attribute.String("ticket_id", req.TicketID),
		attribute.String("target_tour_id", req.TargetTourID),
	)

	now := s.now()
	var (
		state      *rescheduleState
		tourRows   = map[string][]domain.AvailabilityRow{}
		sourceTour string
	)
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		state, err = s.evalReschedule(ctx, tx, req, true)
		if err != nil {
			return err
		}
		if state.noop {
			return nil
		}
		sourceTour = state.ticket.TourID

		seats, err := lockSeats(ctx, tx, []seatKey{
			{tourID: state.ticket.TourID, number: state.ticket.SeatNumber},
			{tourID: req.TargetTourID, number: req.TargetSeatNumber},
		})
		if err != nil {
			return err
		}
		target := seats[seatKey{tourID: req.TargetTourID, number: req.TargetSeatNumber}]
		current := seats[seatKey{tourID: state.ticket.TourID, number: state.ticket.SeatNumber}]

		if err := target.Reserve(state.targetSegments); err != nil {
			return err
		}
		current.Release(state.currentSegments)
		if err := tx.Seats().Update(ctx, target); err != nil {
			return err
		}
		if err := tx.Seats().Update(ctx, current); err != nil {
			return err
		}

		state.ticket.TourID = req.TargetTourID
		state.ticket.SeatNumber = req.TargetSeatNumber
		state.ticket.UpdatedAt = now
		if err := tx.Tickets().Update(ctx, state.ticket); err != nil {
			return err
		}

		if !state.delta.IsZero() {
			entry := &domain.LedgerEntry{
				ID:         uuid.New().String(),
				PurchaseID: state.purchase.ID,
				Category:   domain.LedgerCategoryReschedule,
				Amount:     state.delta,
				Actor:      "customer",
				CreatedAt:  now,
			}
			if err := tx.Ledger().Append(ctx, entry); err != nil {
				return err
			}
			state.purchase.Apply(state.delta, now)
			if err := tx.Purchases().Update(ctx, state.purchase); err != nil {
				return err
			}
		}

		for _, tourID := range distinct(sourceTour, req.TargetTourID) {
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
		span.SetStatus(codes.Error, "commit failed")
		return nil, err
	}

	for tourID, rows := range tourRows {
		if err := s.mirror.Mirror(ctx, tourID, rows); err != nil {
			logger.Get().Warn("availability mirror refresh failed",
				zap.String("tour_id", tourID), zap.Error(err))
		}
	}
	if !state.noop {
		metrics.RecordReschedule(ctx, req.TargetTourID)
	}

	return &dto.ModificationResult{
		PurchaseID:     state.purchase.ID,
		PurchaseStatus: state.purchase.Status.String(),
		AmountDue:      state.purchase.AmountDue.StringFixed(2),
		Delta:          state.delta.StringFixed(2),
	}, nil
}

// --- Baggage ---

type baggageState struct {
	ticket   *domain.Ticket
	purchase *domain.Purchase
	delta    decimal.Decimal
	noop     bool
}

func (s *modificationService) evalBaggage(ctx context.Context, tx repository.Tx, req *dto.BaggageRequest, locked bool) (*baggageState, error) {
	if req.ExtraBags < 0 {
		return nil, domain.ErrNegativeBaggage
	}

	ticket, err := tx.Tickets().Get(ctx, req.TicketID)
	if err != nil {
		return nil, err
	}

	var purchase *domain.Purchase
	if locked {
		purchase, err = tx.Purchases().GetForUpdate(ctx, ticket.PurchaseID)
		if err != nil {
			return nil, err
		}
		ticket, err = tx.Tickets().GetForUpdate(ctx, req.TicketID)
		if err != nil {
			return nil, err
		}
	} else {
		purchase, err = tx.Purchases().Get(ctx, ticket.PurchaseID)
		if err != nil {
			return nil, err
		}
	}
	if purchase.Status.IsTerminal() {
		return nil, domain.ErrInvalidTransition
	}

	tour, err := tx.Tours().Get(ctx, ticket.TourID)
	if err != nil {
		return nil, err
	}
	if tour.Closed {
		return nil, domain.ErrTourClosed
	}
	fare, err := tx.Prices().Fare(ctx, tour.PricelistID, ticket.DepStopID, ticket.ArrStopID)
	if err != nil {
		return nil, err
	}

	delta := BaggageSurcharge(fare, req.ExtraBags).Sub(BaggageSurcharge(fare, ticket.ExtraBags))
	if purchase.Status == domain.PurchaseStatusPaid && delta.IsNegative() {
		return nil, domain.ErrBaggageNotRefundable
	}

	return &baggageState{
		ticket:   ticket,
		purchase: purchase,
		delta:    delta,
		noop:     req.ExtraBags == ticket.ExtraBags,
	}, nil
}

// PlanBaggage prices a baggage change without applying it.
func (s *modificationService) PlanBaggage(ctx context.Context, req *dto.BaggageRequest) (*dto.BaggagePlan, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.modification.plan_baggage")
	defer span.End()
	span.SetAttributes(
		attribute.String("ticket_id", req.TicketID),
		attribute.Int("extra_bags", req.ExtraBags),
	)

	var state *baggageState
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		state, err = s.evalBaggage(ctx, tx, req, false)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan failed")
		return nil, err
	}

	return &dto.BaggagePlan{
		TicketID:       state.ticket.ID,
		Delta:          state.delta.StringFixed(2),
		AmountDueAfter: state.purchase.AmountDue.Add(state.delta).StringFixed(2),
		NoOp:           state.noop,
	}, nil
}

// CommitBaggage re-evaluates the baggage change under row locks and
// applies it. Bags do not occupy segments, so no seat row is touched.
func (s *modificationService) CommitBaggage(ctx context.Context, req *dto.BaggageRequest) (*dto.ModificationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.modification.commit_baggage")
	defer span.End()
	span.SetAttributes(
		attribute.String("ticket_id", req.TicketID),
		attribute.Int("extra_bags", req.ExtraBags),
	)

	now := s.now()
	var state *baggageState
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		state, err = s.evalBaggage(ctx, tx, req, true)
		if err != nil {
			return err
		}
		if state.noop {
			return nil
		}

		state.ticket.ExtraBags = req.ExtraBags
		state.ticket.UpdatedAt = now
		if err := tx.Tickets().Update(ctx, state.ticket); err != nil {
			return err
		}

		if !state.delta.IsZero() {
			entry := &domain.LedgerEntry{
				ID:         uuid.New().String(),
				PurchaseID: state.purchase.ID,
				Category:   domain.LedgerCategoryBaggage,
				Amount:     state.delta,
				Actor:      "customer",
				CreatedAt:  now,
			}
			if err := tx.Ledger().Append(ctx, entry); err != nil {
				return err
			}
			state.purchase.Apply(state.delta, now)
			if err := tx.Purchases().Update(ctx, state.purchase); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return nil, err
	}

	return &dto.ModificationResult{
		PurchaseID:     state.purchase.ID,
		PurchaseStatus: state.purchase.Status.String(),
		AmountDue:      state.purchase.AmountDue.StringFixed(2),
		Delta:          state.delta.StringFixed(2),
	}, nil
}

// --- Cancel ---

type cancelState struct {
	purchase    *domain.Purchase
	tickets     []*domain.Ticket
	segments    map[string]domain.SegmentSet // ticket ID -> segment range
	values      map[string]decimal.Decimal   // ticket ID -> credited value
	credit      decimal.Decimal
	statusAfter domain.PurchaseStatus
	remaining   int
}

func (s *modificationService) evalCancel(ctx context.Context, tx repository.Tx, req *dto.CancelRequest, locked bool) (*cancelState, error) {
	if len(req.TicketIDs) == 0 {
		return nil, domain.ErrEmptyCancelBatch
	}
	ids := make([]string, len(req.TicketIDs))
	copy(ids, req.TicketIDs)
	sort.Strings(ids)
	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1] {
			return nil, domain.ErrDuplicateTicket
		}
	}

	var (
		purchase *domain.Purchase
		err      error
	)
	if locked {
		purchase, err = tx.Purchases().GetForUpdate(ctx, req.PurchaseID)
	} else {
		purchase, err = tx.Purchases().Get(ctx, req.PurchaseID)
	}
	if err != nil {
		return nil, err
	}
	if purchase.Status.IsTerminal() {
		return nil, domain.ErrInvalidTransition
	}

	state := &cancelState{
		purchase: purchase,
		segments: make(map[string]domain.SegmentSet, len(ids)),
		values:   make(map[string]decimal.Decimal, len(ids)),
		credit:   decimal.Zero,
	}
	for _, id := range ids {
		var ticket *domain.Ticket
		if locked {
			ticket, err = tx.Tickets().GetForUpdate(ctx, id)
		} else {
			ticket, err = tx.Tickets().Get(ctx, id)
		}
		if err != nil {
			return nil, err
		}
		if !ticket.BelongsToPurchase(req.PurchaseID) {
			return nil, domain.ErrForbidden
		}

		tour, err := tx.Tours().Get(ctx, ticket.TourID)
		if err != nil {
			return nil, err
		}
		if tour.Closed {
			return nil, domain.ErrTourClosed
		}
		route, err := tx.Routes().Get(ctx, tour.RouteID)
		if err != nil {
			return nil, err
		}
		segments, err := route.SegmentRangeFor(ticket.DepStopID, ticket.ArrStopID)
		if err != nil {
			return nil, err
		}
		fare, err := tx.Prices().Fare(ctx, tour.PricelistID, ticket.DepStopID, ticket.ArrStopID)
		if err != nil {
			return nil, err
		}
		value := TicketValue(fare, ticket.ExtraBags)

		state.tickets = append(state.tickets, ticket)
		state.segments[ticket.ID] = segments
		state.values[ticket.ID] = value
		state.credit = state.credit.Add(value)
	}

	all, err := tx.Tickets().ListByPurchase(ctx, req.PurchaseID)
	if err != nil {
		return nil, err
	}
	state.remaining = len(all) - len(state.tickets)

	balanceAfter := purchase.AmountDue.Sub(state.credit)
	switch {
	case state.remaining == 0 && purchase.Status.CanTransition(domain.PurchaseStatusCancelled):
		state.statusAfter = domain.PurchaseStatusCancelled
	case state.remaining > 0 && purchase.Status == domain.PurchaseStatusReserved && !balanceAfter.IsPositive():
		state.statusAfter = domain.PurchaseStatusPaid
	default:
		state.statusAfter = purchase.Status
	}
	return state, nil
}

// PlanCancel prices a batch cancellation without releasing anything.
func (s *modificationService) PlanCancel(ctx context.Context, req *dto.CancelRequest) (*dto.CancelPlan, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.modification.plan_cancel")
	defer span.End()
	span.SetAttributes(
		attribute.String("purchase_id", req.PurchaseID),
		attribute.Int("tickets", len(req.TicketIDs)),
	)

	var state *cancelState
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		state, err = s.evalCancel(ctx, tx, req, false)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan failed")
		return nil, err
	}

	plan := &dto.CancelPlan{
		PurchaseID:     state.purchase.ID,
		Credit:         state.credit.StringFixed(2),
		AmountDueAfter: state.purchase.AmountDue.Sub(state.credit).StringFixed(2),
		StatusAfter:    state.statusAfter.String(),
	}
	for _, t := range state.tickets {
		plan.Tickets = append(plan.Tickets, dto.CancelledTicket{
			TicketID: t.ID,
			Value:    state.values[t.ID].StringFixed(2),
		})
	}
	return plan, nil
}

// CommitCancel re-evaluates the batch under row locks, releases the
// seats, deletes the tickets and writes one compensating ledger entry
// for the whole batch.
func (s *modificationService) CommitCancel(ctx context.Context, req *dto.CancelRequest) (*dto.ModificationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.modification.commit_cancel")
	defer span.End()
	span.SetAttributes(
		attribute.String("purchase_id", req.PurchaseID),
		attribute.Int("tickets", len(req.TicketIDs)),
	)

	now := s.now()
	var (
		state    *cancelState
		tourRows = map[string][]domain.AvailabilityRow{}
	)
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		state, err = s.evalCancel(ctx, tx, req, true)
		if err != nil {
			return err
		}

		keys := make([]seatKey, 0, len(state.tickets))
		for _, t := range state.tickets {
			keys = append(keys, seatKey{tourID: t.TourID, number: t.SeatNumber})
		}
		seats, err := lockSeats(ctx, tx, keys)
		if err != nil {
			return err
		}

		for _, t := range state.tickets {
			seat := seats[seatKey{tourID: t.TourID, number: t.SeatNumber}]
			seat.Release(state.segments[t.ID])
		}
		for _, seat := range seats {
			if err := tx.Seats().Update(ctx, seat); err != nil {
				return err
			}
		}
		for _, t := range state.tickets {
			if err := tx.Tickets().Delete(ctx, t.ID); err != nil {
				return err
			}
		}

		actor := req.Actor
		if actor == "" {
			actor = "customer"
		}
		entry := &domain.LedgerEntry{
			ID:         uuid.New().String(),
			PurchaseID: state.purchase.ID,
			Category:   domain.LedgerCategoryCancellation,
			Amount:     state.credit.Neg(),
			Actor:      actor,
			CreatedAt:  now,
		}
		if err := tx.Ledger().Append(ctx, entry); err != nil {
			return err
		}
		state.purchase.Apply(state.credit.Neg(), now)
		if state.statusAfter != state.purchase.Status {
			if err := state.purchase.Transition(state.statusAfter, now); err != nil {
				return err
			}
		}
		if err := tx.Purchases().Update(ctx, state.purchase); err != nil {
			return err
		}

		tours := make([]string, 0, len(state.tickets))
		for _, t := range state.tickets {
			tours = append(tours, t.TourID)
		}
		for _, tourID := range distinct(tours...) {
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
		span.SetStatus(codes.Error, "commit failed")
		return nil, err
	}

	s.afterCancel(ctx, state, tourRows)
	for _, t := range state.tickets {
		metrics.RecordCancellation(ctx, t.TourID, 1)
	}

	return &dto.ModificationResult{
		PurchaseID:     state.purchase.ID,
		PurchaseStatus: state.purchase.Status.String(),
		AmountDue:      state.purchase.AmountDue.StringFixed(2),
		Delta:          state.credit.Neg().StringFixed(2),
	}, nil
}

// afterCancel revokes ticket tokens, refreshes mirrors and publishes
// the purchase change. All best effort.
func (s *modificationService) afterCancel(ctx context.Context, state *cancelState, tourRows map[string][]domain.AvailabilityRow) {
	log := logger.Get()
	for _, t := range state.tickets {
		if err := s.revoker.Revoke(ctx, t.ID); err != nil {
			log.Warn("ticket token revocation failed",
				zap.String("ticket_id", t.ID), zap.Error(err))
		}
	}
	for tourID, rows := range tourRows {
		if err := s.mirror.Mirror(ctx, tourID, rows); err != nil {
			log.Warn("availability mirror refresh failed",
				zap.String("tour_id", tourID), zap.Error(err))
		}
	}
	event := notify.PurchaseEvent{
		PurchaseID: state.purchase.ID,
		Status:     state.purchase.Status.String(),
		AmountDue:  state.purchase.AmountDue.StringFixed(2),
	}
	if err := s.notifier.PurchaseChanged(ctx, event); err != nil {
		log.Warn("purchase.changed publish failed",
			zap.String("purchase_id", state.purchase.ID), zap.Error(err))
	}
}

func distinct(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
