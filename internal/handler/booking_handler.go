package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/intercity-tours/booking/internal/dto"
	"github.com/intercity-tours/booking/internal/service"
	"github.com/intercity-tours/booking/pkg/telemetry"
)

// BookingHandler handles booking HTTP requests
type BookingHandler struct {
	bookingService service.BookingService
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// Quote handles POST /bookings/quote
func (h *BookingHandler) Quote(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.quote")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		badRequest(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("tour_id", req.TourID),
		attribute.String("dep_stop_id", req.DepStopID),
		attribute.String("arr_stop_id", req.ArrStopID),
	)

	result, err := h.bookingService.Quote(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// Book handles POST /bookings
func (h *BookingHandler) Book(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.book")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		badRequest(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("tour_id", req.TourID),
		attribute.String("dep_stop_id", req.DepStopID),
		attribute.String("arr_stop_id", req.ArrStopID),
		attribute.Int("seats", len(req.Seats)),
	)

	result, err := h.bookingService.Book(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("purchase_id", result.PurchaseID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}
