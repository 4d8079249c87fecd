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

// TourHandler handles tour and availability HTTP requests
type TourHandler struct {
	tourService         service.TourService
	availabilityService *service.AvailabilityService
}

// NewTourHandler creates a new tour handler
func NewTourHandler(tourService service.TourService, availabilityService *service.AvailabilityService) *TourHandler {
	return &TourHandler{
		tourService:         tourService,
		availabilityService: availabilityService,
	}
}

// CreateTour handles POST /tours
func (h *TourHandler) CreateTour(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.tour.create")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.CreateTourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		badRequest(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("route_id", req.RouteID),
		attribute.Int("seat_count", req.SeatCount),
	)

	result, err := h.tourService.CreateTour(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("tour_id", result.ID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// GetTour handles GET /tours/:id
func (h *TourHandler) GetTour(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.tour.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	tourID := c.Param("id")
	span.SetAttributes(attribute.String("tour_id", tourID))

	result, err := h.tourService.GetTour(ctx, tourID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// FreeSeats handles GET /tours/:id/availability?dep=...&arr=...
// Without dep/arr it returns every cached row of the tour.
func (h *TourHandler) FreeSeats(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.tour.availability")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	tourID := c.Param("id")
	dep := c.Query("dep")
	arr := c.Query("arr")
	span.SetAttributes(
		attribute.String("tour_id", tourID),
		attribute.String("dep_stop_id", dep),
		attribute.String("arr_stop_id", arr),
	)

	if dep == "" || arr == "" {
		rows, err := h.availabilityService.TourAvailability(ctx, tourID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			handleError(c, err)
			return
		}
		span.SetStatus(codes.Ok, "")
		c.JSON(http.StatusOK, gin.H{"tour_id": tourID, "availability": rows})
		return
	}

	count, err := h.availabilityService.FreeSeats(ctx, tourID, dep, arr)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, gin.H{
		"tour_id":     tourID,
		"dep_stop_id": dep,
		"arr_stop_id": arr,
		"free_seats":  count,
	})
}
