package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intercity-tours/booking/internal/domain"
	"github.com/intercity-tours/booking/internal/dto"
	"github.com/intercity-tours/booking/internal/payment"
	"github.com/intercity-tours/booking/internal/repository"
)

// fakeGateway records verify/refund calls and can fail them.
type fakeGateway struct {
	verified  []string
	refunded  []string
	verifyErr error
	refundErr error
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, reference string, amount decimal.Decimal) error {
	if g.verifyErr != nil {
		return g.verifyErr
	}
	g.verified = append(g.verified, reference)
	return nil
}

func (g *fakeGateway) Refund(ctx context.Context, reference string, amount decimal.Decimal) error {
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunded = append(g.refunded, reference)
	return nil
}

type purchaseFixture struct {
	store    *repository.MemoryStore
	notifier *recordingNotifier
	mirror   *recordingMirror
	revoker  *recordingRevoker
	gateway  *fakeGateway
	booking  BookingService

	purchaseID string
	ticketID   string
}

func newPurchaseFixture(t *testing.T) *purchaseFixture {
	t.Helper()
	f := &purchaseFixture{
		store:    newTestStore(),
		notifier: &recordingNotifier{},
		mirror:   newRecordingMirror(),
		revoker:  &recordingRevoker{},
		gateway:  &fakeGateway{},
	}
	f.booking = newBookingService(f.store, f.notifier, f.mirror)

	resp, err := f.booking.Book(context.Background(), &dto.BookRequest{
		TourID: testTour1, DepStopID: "s1", ArrStopID: "s4", Adults: 2,
		Seats: []dto.SeatRequest{
			{SeatNumber: 1, Passenger: "Ada"},
			{SeatNumber: 2, Passenger: "Ben"},
		},
	})
	require.NoError(t, err)
	f.purchaseID = resp.PurchaseID
	f.ticketID = resp.Tickets[0].TicketID
	return f
}

func (f *purchaseFixture) service(at time.Time) PurchaseService {
	return NewPurchaseService(f.store, f.gateway, f.notifier, f.mirror, f.revoker, &PurchaseServiceConfig{
		Now: fixedClock(at),
	})
}

func TestPurchaseService_GetPurchase(t *testing.T) {
	f := newPurchaseFixture(t)
	svc := f.service(testBase)

	resp, err := svc.GetPurchase(context.Background(), f.purchaseID)
	require.NoError(t, err)
	assert.Equal(t, "reserved", resp.Status)
	assert.Equal(t, "20.00", resp.AmountDue)
	assert.Len(t, resp.Tickets, 2)
	require.Len(t, resp.Ledger, 1)
	assert.Equal(t, "booking", resp.Ledger[0].Category)
	require.NotNil(t, resp.Deadline)
	assert.Equal(t, testBase.Add(30*time.Minute), *resp.Deadline)

	_, err = svc.GetPurchase(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrPurchaseNotFound)
}

func TestPurchaseService_PayFull(t *testing.T) {
	f := newPurchaseFixture(t)
	svc := f.service(testBase)

	result, err := svc.Pay(context.Background(), &dto.PayRequest{
		PurchaseID: f.purchaseID,
		Method:     "card",
	})
	require.NoError(t, err)
	assert.Equal(t, "paid", result.PurchaseStatus)
	assert.Equal(t, "0.00", result.AmountDue)
	assert.Equal(t, "-20.00", result.Delta)
	requireLedgerBalanced(t, f.store, f.purchaseID)

	purchase := getPurchase(t, f.store, f.purchaseID)
	assert.True(t, purchase.Deadline.IsZero())
	assert.Equal(t, "card", purchase.PaymentMethod)
	assert.Contains(t, f.notifier.changed, f.purchaseID+":paid")
}

func TestPurchaseService_PayPartial(t *testing.T) {
	f := newPurchaseFixture(t)
	svc := f.service(testBase)

	result, err := svc.Pay(context.Background(), &dto.PayRequest{
		PurchaseID: f.purchaseID,
		Amount:     "5.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "reserved", result.PurchaseStatus)
	assert.Equal(t, "15.00", result.AmountDue)
	requireLedgerBalanced(t, f.store, f.purchaseID)

	// The deadline stays until the balance clears.
	purchase := getPurchase(t, f.store, f.purchaseID)
	assert.False(t, purchase.Deadline.IsZero())

	result, err = svc.Pay(context.Background(), &dto.PayRequest{PurchaseID: f.purchaseID})
	require.NoError(t, err)
	assert.Equal(t, "paid", result.PurchaseStatus)
	assert.Equal(t, "0.00", result.AmountDue)
	requireLedgerBalanced(t, f.store, f.purchaseID)
}

func TestPurchaseService_PayWithGatewayReference(t *testing.T) {
	f := newPurchaseFixture(t)
	svc := f.service(testBase)

	_, err := svc.Pay(context.Background(), &dto.PayRequest{
		PurchaseID:       f.purchaseID,
		PaymentReference: "pi_123",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pi_123"}, f.gateway.verified)
}

func TestPurchaseService_PayUnsettledGateway(t *testing.T) {
	f := newPurchaseFixture(t)
	f.gateway.verifyErr = payment.ErrPaymentNotSettled
	svc := f.service(testBase)

	_, err := svc.Pay(context.Background(), &dto.PayRequest{
		PurchaseID:       f.purchaseID,
		PaymentReference: "pi_123",
	})
	assert.ErrorIs(t, err, payment.ErrPaymentNotSettled)

	// Nothing was written.
	assert.Len(t, ledgerFor(t, f.store, f.purchaseID), 1)
	assert.Equal(t, domain.PurchaseStatusReserved, getPurchase(t, f.store, f.purchaseID).Status)
}

func TestPurchaseService_PayInvalidStates(t *testing.T) {
	f := newPurchaseFixture(t)
	svc := f.service(testBase)

	_, err := svc.Pay(context.Background(), &dto.PayRequest{
		PurchaseID: f.purchaseID,
		Amount:     "not-a-number",
	})
	assert.Error(t, err)

	_, err = svc.Pay(context.Background(), &dto.PayRequest{
		PurchaseID: f.purchaseID,
		Amount:     "-5.00",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// A cancelled purchase takes no payment.
	mods := NewModificationService(f.store, f.notifier, f.mirror, f.revoker, &ModificationServiceConfig{
		Now: fixedClock(testBase),
	})
	resp, err := svc.GetPurchase(context.Background(), f.purchaseID)
	require.NoError(t, err)
	ids := make([]string, 0, len(resp.Tickets))
	for _, ticket := range resp.Tickets {
		ids = append(ids, ticket.ID)
	}
	_, err = mods.CommitCancel(context.Background(), &dto.CancelRequest{
		PurchaseID: f.purchaseID,
		TicketIDs:  ids,
	})
	require.NoError(t, err)
	_, err = svc.Pay(context.Background(), &dto.PayRequest{PurchaseID: f.purchaseID})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPurchaseService_Refund(t *testing.T) {
	f := newPurchaseFixture(t)
	svc := f.service(testBase)

	_, err := svc.Pay(context.Background(), &dto.PayRequest{PurchaseID: f.purchaseID})
	require.NoError(t, err)

	// Cancelling one paid ticket leaves a credited balance.
	mods := NewModificationService(f.store, f.notifier, f.mirror, f.revoker, &ModificationServiceConfig{
		Now: fixedClock(testBase),
	})
	_, err = mods.CommitCancel(context.Background(), &dto.CancelRequest{
		PurchaseID: f.purchaseID,
		TicketIDs:  []string{f.ticketID},
	})
	require.NoError(t, err)
	assert.Equal(t, "-10.00", getPurchase(t, f.store, f.purchaseID).AmountDue.StringFixed(2))

	result, err := svc.Refund(context.Background(), &dto.RefundRequest{
		PurchaseID:       f.purchaseID,
		PaymentReference: "pi_123",
	})
	require.NoError(t, err)
	assert.Equal(t, "refunded", result.PurchaseStatus)
	assert.Equal(t, "0.00", result.AmountDue)
	assert.Equal(t, "10.00", result.Delta)
	assert.Equal(t, []string{"pi_123"}, f.gateway.refunded)
	requireLedgerBalanced(t, f.store, f.purchaseID)
}

func TestPurchaseService_RefundRequiresPaid(t *testing.T) {
	f := newPurchaseFixture(t)
	svc := f.service(testBase)

	_, err := svc.Refund(context.Background(), &dto.RefundRequest{
		PurchaseID: f.purchaseID,
		Amount:     "5.00",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.PurchaseStatusReserved, getPurchase(t, f.store, f.purchaseID).Status)
}

func TestPurchaseService_ExpireReservations(t *testing.T) {
	f := newPurchaseFixture(t)

	// A second, paid purchase must survive the sweep.
	paid, err := f.booking.Book(context.Background(), &dto.BookRequest{
		TourID: testTour1, DepStopID: "s1", ArrStopID: "s4", Adults: 1,
		Seats:          []dto.SeatRequest{{SeatNumber: 3, Passenger: "Cyd"}},
		PurchaseStatus: "paid",
	})
	require.NoError(t, err)

	svc := f.service(testBase.Add(31 * time.Minute))
	count, err := svc.ExpireReservations(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	purchase := getPurchase(t, f.store, f.purchaseID)
	assert.Equal(t, domain.PurchaseStatusCancelled, purchase.Status)
	assert.Equal(t, domain.PurchaseStatusPaid, getPurchase(t, f.store, paid.PurchaseID).Status)

	// Seats released, tickets deleted, tokens revoked.
	assert.Equal(t, domain.FullSegmentSet(4), getSeat(t, f.store, testTour1, 1).FreeSegments)
	assert.Equal(t, domain.FullSegmentSet(4), getSeat(t, f.store, testTour1, 2).FreeSegments)
	assert.True(t, getSeat(t, f.store, testTour1, 3).FreeSegments.IsEmpty())
	assert.Len(t, f.revoker.revoked, 2)

	err = f.store.View(context.Background(), func(tx repository.Tx) error {
		owned, err := tx.Tickets().ListByPurchase(context.Background(), f.purchaseID)
		require.NoError(t, err)
		assert.Empty(t, owned)
		return nil
	})
	require.NoError(t, err)

	// The expiry is marked with a zero-amount entry; the booked amount
	// stays on the ledger, so the balance still matches the sum.
	entries := ledgerFor(t, f.store, f.purchaseID)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.LedgerCategoryExpiry, entries[1].Category)
	assert.True(t, entries[1].Amount.IsZero())

	// Availability regained the two expired seats.
	avail := availabilityFor(t, f.store, testTour1)
	assert.Equal(t, 2, avail[domain.StopPair{DepStopID: "s1", ArrStopID: "s4"}])
	assert.Equal(t, 2, f.mirror.freeSeats(testTour1, "s1", "s4"))

	// Idempotent: the next sweep finds nothing.
	count, err = svc.ExpireReservations(context.Background(), 100)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPurchaseService_ExpireReservationsRespectsDeadline(t *testing.T) {
	f := newPurchaseFixture(t)

	svc := f.service(testBase.Add(29 * time.Minute))
	count, err := svc.ExpireReservations(context.Background(), 100)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, domain.PurchaseStatusReserved, getPurchase(t, f.store, f.purchaseID).Status)
}
