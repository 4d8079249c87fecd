package metrics

import (
	"context"
	"sync"

	"github.com/intercity-tours/booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// Booking counters
	TicketsBooked      *telemetry.Counter
	TicketsCancelled   *telemetry.Counter
	TicketsRescheduled *telemetry.Counter

	// Purchase counters
	PurchasesPaid       *telemetry.Counter
	PurchasesRefunded   *telemetry.Counter
	ReservationsExpired *telemetry.Counter
	ToursClosed         *telemetry.Counter

	// Error tracking counters
	ErrorsTotal       *telemetry.Counter
	SlowRequestsTotal *telemetry.Counter

	// Histograms
	RequestDuration *telemetry.Histogram

	// Gauges
	ActiveReservations *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all booking metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	TicketsBooked, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_tickets_total",
		Description: "Total number of tickets booked",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	TicketsCancelled, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_tickets_cancelled_total",
		Description: "Total number of tickets cancelled",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	TicketsRescheduled, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_tickets_rescheduled_total",
		Description: "Total number of tickets moved to another departure",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	PurchasesPaid, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_purchases_paid_total",
		Description: "Total number of purchases settled",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	PurchasesRefunded, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_purchases_refunded_total",
		Description: "Total number of purchases refunded",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ReservationsExpired, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_reservations_expired_total",
		Description: "Total number of reservations released by the expiry sweeper",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ToursClosed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_tours_closed_total",
		Description: "Total number of departed tours closed for sale",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ErrorsTotal, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_errors_total",
		Description: "Total number of errors by type",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SlowRequestsTotal, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_slow_requests_total",
		Description: "Total number of slow requests (>1s)",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	// Request duration histogram for latency tracking (p50, p90, p99)
	RequestDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "booking_request_duration_seconds",
		Description: "HTTP request duration in seconds",
		Unit:        "s",
	}, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10})
	if err != nil {
		return err
	}

	ActiveReservations, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "booking_active_reservations",
		Description: "Current number of purchases awaiting payment",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordBooking records tickets booked against a tour
func RecordBooking(ctx context.Context, tourID string, seats int, reserved bool) {
	if TicketsBooked != nil {
		TicketsBooked.Add(ctx, int64(seats),
			attribute.String("tour_id", tourID),
		)
	}
	if reserved && ActiveReservations != nil {
		ActiveReservations.Inc(ctx)
	}
}

// RecordPayment records a purchase settling
func RecordPayment(ctx context.Context, method string) {
	if PurchasesPaid != nil {
		PurchasesPaid.Inc(ctx,
			attribute.String("method", method),
		)
	}
	if ActiveReservations != nil {
		ActiveReservations.Dec(ctx)
	}
}

// RecordRefund records a purchase refund
func RecordRefund(ctx context.Context) {
	if PurchasesRefunded != nil {
		PurchasesRefunded.Inc(ctx)
	}
}

// RecordCancellation records cancelled tickets
func RecordCancellation(ctx context.Context, tourID string, count int) {
	if TicketsCancelled != nil {
		TicketsCancelled.Add(ctx, int64(count),
			attribute.String("tour_id", tourID),
		)
	}
}

// RecordReschedule records a ticket moving to another departure
func RecordReschedule(ctx context.Context, targetTourID string) {
	if TicketsRescheduled != nil {
		TicketsRescheduled.Inc(ctx,
			attribute.String("target_tour_id", targetTourID),
		)
	}
}

// RecordExpiration records reservations released by the sweeper
func RecordExpiration(ctx context.Context, count int64) {
	if ReservationsExpired != nil {
		ReservationsExpired.Add(ctx, count)
	}
	if ActiveReservations != nil {
		ActiveReservations.Add(ctx, -count)
	}
}

// RecordToursClosed records departed tours closed for sale
func RecordToursClosed(ctx context.Context, count int64) {
	if ToursClosed != nil {
		ToursClosed.Add(ctx, count)
	}
}

// RecordError records an error by type and operation
func RecordError(ctx context.Context, errorType, operation string) {
	if ErrorsTotal != nil {
		ErrorsTotal.Inc(ctx,
			attribute.String("error_type", errorType),
			attribute.String("operation", operation),
		)
	}
}

// RecordRequestDuration records HTTP request duration and tracks slow requests
func RecordRequestDuration(ctx context.Context, operation string, durationSeconds float64) {
	if RequestDuration != nil {
		RequestDuration.Record(ctx, durationSeconds,
			attribute.String("operation", operation),
		)
	}
	if durationSeconds > 1.0 && SlowRequestsTotal != nil {
		SlowRequestsTotal.Inc(ctx,
			attribute.String("operation", operation),
		)
	}
}
