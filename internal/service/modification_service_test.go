package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intercity-tours/booking/internal/domain"
	"github.com/intercity-tours/booking/internal/dto"
	"github.com/intercity-tours/booking/internal/repository"
)

// modFixture books one full-trip ticket on tour-1 and returns the
// services sharing the store.
type modFixture struct {
	store    *repository.MemoryStore
	notifier *recordingNotifier
	mirror   *recordingMirror
	revoker  *recordingRevoker
	booking  BookingService
	mods     ModificationService

	purchaseID string
	ticketID   string
}

// recordingRevoker captures revoked ticket IDs.
type recordingRevoker struct {
	revoked []string
}

func (r *recordingRevoker) Revoke(ctx context.Context, ticketID string) error {
	r.revoked = append(r.revoked, ticketID)
	return nil
}

func (r *recordingRevoker) IsRevoked(ctx context.Context, ticketID string) (bool, error) {
	for _, id := range r.revoked {
		if id == ticketID {
			return true, nil
		}
	}
	return false, nil
}

func newModFixture(t *testing.T) *modFixture {
	t.Helper()
	f := &modFixture{
		store:    newTestStore(),
		notifier: &recordingNotifier{},
		mirror:   newRecordingMirror(),
		revoker:  &recordingRevoker{},
	}
	f.booking = newBookingService(f.store, f.notifier, f.mirror)
	f.mods = NewModificationService(f.store, f.notifier, f.mirror, f.revoker, &ModificationServiceConfig{
		Now: fixedClock(testBase),
	})

	resp, err := f.booking.Book(context.Background(), &dto.BookRequest{
		TourID: testTour1, DepStopID: "s1", ArrStopID: "s4", Adults: 1,
		Seats: []dto.SeatRequest{{SeatNumber: 1, Passenger: "Ada"}},
	})
	require.NoError(t, err)
	f.purchaseID = resp.PurchaseID
	f.ticketID = resp.Tickets[0].TicketID
	return f
}

func (f *modFixture) book(t *testing.T, seat int, passenger string) string {
	t.Helper()
	resp, err := f.booking.Book(context.Background(), &dto.BookRequest{
		TourID: testTour1, DepStopID: "s1", ArrStopID: "s4", Adults: 1,
		Seats:      []dto.SeatRequest{{SeatNumber: seat, Passenger: passenger}},
		PurchaseID: f.purchaseID,
	})
	require.NoError(t, err)
	return resp.Tickets[len(resp.Tickets)-1].TicketID
}

func TestModificationService_PlanReschedule(t *testing.T) {
	f := newModFixture(t)

	plan, err := f.mods.PlanReschedule(context.Background(), &dto.RescheduleRequest{
		TicketID:         f.ticketID,
		TargetTourID:     testTour2,
		TargetSeatNumber: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "10.00", plan.CurrentValue)
	assert.Equal(t, "15.00", plan.TargetValue)
	assert.Equal(t, "5.00", plan.Delta)
	assert.Equal(t, "15.00", plan.AmountDueAfter)
	assert.False(t, plan.NoOp)

	// Planning reserves nothing on the target tour.
	assert.Equal(t, domain.FullSegmentSet(4), getSeat(t, f.store, testTour2, 1).FreeSegments)
}

func TestModificationService_CommitReschedule(t *testing.T) {
	f := newModFixture(t)

	result, err := f.mods.CommitReschedule(context.Background(), &dto.RescheduleRequest{
		TicketID:         f.ticketID,
		TargetTourID:     testTour2,
		TargetSeatNumber: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "5.00", result.Delta)
	assert.Equal(t, "15.00", result.AmountDue)
	requireLedgerBalanced(t, f.store, f.purchaseID)

	// Seats swapped: old one fully free again, new one fully taken.
	assert.Equal(t, domain.FullSegmentSet(4), getSeat(t, f.store, testTour1, 1).FreeSegments)
	assert.True(t, getSeat(t, f.store, testTour2, 2).FreeSegments.IsEmpty())

	// Both tours got recomputed and mirrored.
	assert.Equal(t, 3, f.mirror.freeSeats(testTour1, "s1", "s4"))
	assert.Equal(t, 1, f.mirror.freeSeats(testTour2, "s1", "s4"))

	entries := ledgerFor(t, f.store, f.purchaseID)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.LedgerCategoryReschedule, entries[1].Category)
	assert.Equal(t, "5.00", entries[1].Amount.StringFixed(2))
}

func TestModificationService_CommitRescheduleNoOp(t *testing.T) {
	f := newModFixture(t)

	result, err := f.mods.CommitReschedule(context.Background(), &dto.RescheduleRequest{
		TicketID:         f.ticketID,
		TargetTourID:     testTour1,
		TargetSeatNumber: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "0.00", result.Delta)

	// A no-op writes no ledger entry and touches no seat.
	assert.Len(t, ledgerFor(t, f.store, f.purchaseID), 1)
	assert.True(t, getSeat(t, f.store, testTour1, 1).FreeSegments.IsEmpty())
}

func TestModificationService_CommitRescheduleConflicts(t *testing.T) {
	f := newModFixture(t)

	// Occupy the target seat on tour-2 first.
	_, err := f.booking.Book(context.Background(), &dto.BookRequest{
		TourID: testTour2, DepStopID: "s2", ArrStopID: "s4", Adults: 1,
		Seats: []dto.SeatRequest{{SeatNumber: 1, Passenger: "Ben"}},
	})
	require.NoError(t, err)

	_, err = f.mods.CommitReschedule(context.Background(), &dto.RescheduleRequest{
		TicketID:         f.ticketID,
		TargetTourID:     testTour2,
		TargetSeatNumber: 1,
	})
	assert.ErrorIs(t, err, domain.ErrSegmentUnavailable)

	// The failed commit released nothing.
	assert.True(t, getSeat(t, f.store, testTour1, 1).FreeSegments.IsEmpty())
}

func TestModificationService_RescheduleToClosedTour(t *testing.T) {
	f := newModFixture(t)
	err := f.store.Update(context.Background(), func(tx repository.Tx) error {
		return tx.Tours().MarkClosed(context.Background(), testTour2)
	})
	require.NoError(t, err)

	_, err = f.mods.CommitReschedule(context.Background(), &dto.RescheduleRequest{
		TicketID:         f.ticketID,
		TargetTourID:     testTour2,
		TargetSeatNumber: 1,
	})
	assert.ErrorIs(t, err, domain.ErrTourClosed)
}

func TestModificationService_Baggage(t *testing.T) {
	f := newModFixture(t)

	plan, err := f.mods.PlanBaggage(context.Background(), &dto.BaggageRequest{
		TicketID:  f.ticketID,
		ExtraBags: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "2.00", plan.Delta)
	assert.Equal(t, "12.00", plan.AmountDueAfter)
	assert.False(t, plan.NoOp)

	result, err := f.mods.CommitBaggage(context.Background(), &dto.BaggageRequest{
		TicketID:  f.ticketID,
		ExtraBags: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "2.00", result.Delta)
	assert.Equal(t, "12.00", result.AmountDue)
	requireLedgerBalanced(t, f.store, f.purchaseID)

	// Dropping one bag credits the difference back while reserved.
	result, err = f.mods.CommitBaggage(context.Background(), &dto.BaggageRequest{
		TicketID:  f.ticketID,
		ExtraBags: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "-1.00", result.Delta)
	assert.Equal(t, "11.00", result.AmountDue)
	requireLedgerBalanced(t, f.store, f.purchaseID)
}

func TestModificationService_BaggageNoOp(t *testing.T) {
	f := newModFixture(t)

	result, err := f.mods.CommitBaggage(context.Background(), &dto.BaggageRequest{
		TicketID:  f.ticketID,
		ExtraBags: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "0.00", result.Delta)
	assert.Len(t, ledgerFor(t, f.store, f.purchaseID), 1)
}

func TestModificationService_BaggageNotRefundableWhenPaid(t *testing.T) {
	f := newModFixture(t)

	_, err := f.mods.CommitBaggage(context.Background(), &dto.BaggageRequest{
		TicketID:  f.ticketID,
		ExtraBags: 2,
	})
	require.NoError(t, err)

	purchases := NewPurchaseService(f.store, nil, f.notifier, f.mirror, f.revoker, &PurchaseServiceConfig{
		Now: fixedClock(testBase),
	})
	_, err = purchases.Pay(context.Background(), &dto.PayRequest{PurchaseID: f.purchaseID})
	require.NoError(t, err)

	// More bags on a paid purchase is fine.
	_, err = f.mods.PlanBaggage(context.Background(), &dto.BaggageRequest{
		TicketID:  f.ticketID,
		ExtraBags: 3,
	})
	require.NoError(t, err)

	// Fewer is not.
	_, err = f.mods.CommitBaggage(context.Background(), &dto.BaggageRequest{
		TicketID:  f.ticketID,
		ExtraBags: 1,
	})
	assert.ErrorIs(t, err, domain.ErrBaggageNotRefundable)
}

func TestModificationService_CancelAll(t *testing.T) {
	f := newModFixture(t)
	second := f.book(t, 2, "Ben")

	plan, err := f.mods.PlanCancel(context.Background(), &dto.CancelRequest{
		PurchaseID: f.purchaseID,
		TicketIDs:  []string{f.ticketID, second},
	})
	require.NoError(t, err)
	assert.Equal(t, "20.00", plan.Credit)
	assert.Equal(t, "0.00", plan.AmountDueAfter)
	assert.Equal(t, "cancelled", plan.StatusAfter)
	require.Len(t, plan.Tickets, 2)

	result, err := f.mods.CommitCancel(context.Background(), &dto.CancelRequest{
		PurchaseID: f.purchaseID,
		TicketIDs:  []string{f.ticketID, second},
		Actor:      "operator",
	})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", result.PurchaseStatus)
	assert.Equal(t, "-20.00", result.Delta)
	assert.Equal(t, "0.00", result.AmountDue)
	requireLedgerBalanced(t, f.store, f.purchaseID)

	// Seats are sellable again, tickets gone, tokens revoked.
	assert.Equal(t, domain.FullSegmentSet(4), getSeat(t, f.store, testTour1, 1).FreeSegments)
	assert.Equal(t, domain.FullSegmentSet(4), getSeat(t, f.store, testTour1, 2).FreeSegments)
	assert.ElementsMatch(t, []string{f.ticketID, second}, f.revoker.revoked)

	err = f.store.View(context.Background(), func(tx repository.Tx) error {
		_, err := tx.Tickets().Get(context.Background(), f.ticketID)
		assert.ErrorIs(t, err, domain.ErrTicketNotFound)
		return nil
	})
	require.NoError(t, err)

	// One compensating entry covers the whole batch.
	entries := ledgerFor(t, f.store, f.purchaseID)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.LedgerCategoryCancellation, entries[2].Category)
	assert.Equal(t, "operator", entries[2].Actor)
}

func TestModificationService_PartialCancelSettlesReserved(t *testing.T) {
	f := newModFixture(t)
	second := f.book(t, 2, "Ben")

	purchases := NewPurchaseService(f.store, nil, f.notifier, f.mirror, f.revoker, &PurchaseServiceConfig{
		Now: fixedClock(testBase),
	})
	_, err := purchases.Pay(context.Background(), &dto.PayRequest{
		PurchaseID: f.purchaseID,
		Amount:     "10.00",
	})
	require.NoError(t, err)

	// 10.00 paid of 20.00; cancelling one 10.00 ticket zeroes the
	// balance, so the remaining reserved ticket flips to paid.
	result, err := f.mods.CommitCancel(context.Background(), &dto.CancelRequest{
		PurchaseID: f.purchaseID,
		TicketIDs:  []string{second},
	})
	require.NoError(t, err)
	assert.Equal(t, "paid", result.PurchaseStatus)
	assert.Equal(t, "0.00", result.AmountDue)
	requireLedgerBalanced(t, f.store, f.purchaseID)

	purchase := getPurchase(t, f.store, f.purchaseID)
	assert.Equal(t, domain.PurchaseStatusPaid, purchase.Status)
}

func TestModificationService_CancelValidation(t *testing.T) {
	f := newModFixture(t)

	_, err := f.mods.PlanCancel(context.Background(), &dto.CancelRequest{
		PurchaseID: f.purchaseID,
	})
	assert.ErrorIs(t, err, domain.ErrEmptyCancelBatch)

	_, err = f.mods.PlanCancel(context.Background(), &dto.CancelRequest{
		PurchaseID: f.purchaseID,
		TicketIDs:  []string{f.ticketID, f.ticketID},
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateTicket)
}

func TestModificationService_CancelForeignTicket(t *testing.T) {
	f := newModFixture(t)

	other, err := f.booking.Book(context.Background(), &dto.BookRequest{
		TourID: testTour1, DepStopID: "s1", ArrStopID: "s4", Adults: 1,
		Seats: []dto.SeatRequest{{SeatNumber: 2, Passenger: "Ben"}},
	})
	require.NoError(t, err)

	_, err = f.mods.CommitCancel(context.Background(), &dto.CancelRequest{
		PurchaseID: f.purchaseID,
		TicketIDs:  []string{other.Tickets[0].TicketID},
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestModificationService_CancelTerminalPurchase(t *testing.T) {
	f := newModFixture(t)

	_, err := f.mods.CommitCancel(context.Background(), &dto.CancelRequest{
		PurchaseID: f.purchaseID,
		TicketIDs:  []string{f.ticketID},
	})
	require.NoError(t, err)

	_, err = f.mods.PlanCancel(context.Background(), &dto.CancelRequest{
		PurchaseID: f.purchaseID,
		TicketIDs:  []string{f.ticketID},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
