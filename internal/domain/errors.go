package domain

import "errors"

// Domain errors
var (
	// Not found errors
	ErrTourNotFound     = errors.New("tour not found")
	ErrRouteNotFound    = errors.New("route not found")
	ErrSeatNotFound     = errors.New("seat not found")
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrPriceNotFound    = errors.New("no fare for stop pair on pricelist")

	// Validation errors
	ErrPassengerCountMismatch = errors.New("passenger count does not match seat count")
	ErrFareCountMismatch      = errors.New("adult and discount counts do not match seat count")
	ErrArrivalBeforeDeparture = errors.New("arrival stop does not follow departure stop")
	ErrStopNotOnRoute         = errors.New("stop is not on the route")
	ErrInvalidSegmentRange    = errors.New("invalid segment range")
	ErrNoSeatsRequested       = errors.New("no seats requested")
	ErrEmptyCancelBatch       = errors.New("no tickets to cancel")
	ErrNegativeBaggage        = errors.New("extra baggage count cannot be negative")

	// Conflict errors
	ErrSegmentUnavailable       = errors.New("requested segments are not available on seat")
	ErrSeatBlocked              = errors.New("seat is blocked")
	ErrMismatchedPurchaseStatus = errors.New("purchase status does not match requested status")
	ErrDuplicateTicket          = errors.New("duplicate ticket in batch")
	ErrDuplicateSeat            = errors.New("duplicate seat in booking")
	ErrBaggageNotRefundable     = errors.New("baggage cannot be reduced on a paid purchase")
	ErrInvalidTransition        = errors.New("invalid purchase status transition")
	ErrTourClosed               = errors.New("tour is closed for sale")

	// Forbidden errors
	ErrForbidden = errors.New("access to ticket or purchase denied")
)

// IsNotFoundError checks if the error is a not found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrTourNotFound) ||
		errors.Is(err, ErrRouteNotFound) ||
		errors.Is(err, ErrSeatNotFound) ||
		errors.Is(err, ErrTicketNotFound) ||
		errors.Is(err, ErrPurchaseNotFound) ||
		errors.Is(err, ErrPriceNotFound)
}

// IsValidationError checks if the error is a validation error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrPassengerCountMismatch) ||
		errors.Is(err, ErrFareCountMismatch) ||
		errors.Is(err, ErrArrivalBeforeDeparture) ||
		errors.Is(err, ErrStopNotOnRoute) ||
		errors.Is(err, ErrInvalidSegmentRange) ||
		errors.Is(err, ErrNoSeatsRequested) ||
		errors.Is(err, ErrEmptyCancelBatch) ||
		errors.Is(err, ErrNegativeBaggage)
}

// IsConflictError checks if the error is a conflict error.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrSegmentUnavailable) ||
		errors.Is(err, ErrSeatBlocked) ||
		errors.Is(err, ErrMismatchedPurchaseStatus) ||
		errors.Is(err, ErrDuplicateTicket) ||
		errors.Is(err, ErrDuplicateSeat) ||
		errors.Is(err, ErrBaggageNotRefundable) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrTourClosed)
}

// IsForbiddenError checks if the error is an access error.
func IsForbiddenError(err error) bool {
	return errors.Is(err, ErrForbidden)
}
