package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/intercity-tours/booking/internal/service"
	"github.com/intercity-tours/booking/pkg/telemetry"
)

// AdminHandler handles operator HTTP requests
type AdminHandler struct {
	availabilityService *service.AvailabilityService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(availabilityService *service.AvailabilityService) *AdminHandler {
	return &AdminHandler{availabilityService: availabilityService}
}

// ResyncResponse represents the response for an availability resync
type ResyncResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ToursResynced int    `json:"tours_resynced"`
}

// ResyncAvailability handles POST /admin/resync-availability
// Rebuilds the availability rows of every open tour from seat state
// and refreshes the mirror.
func (h *AdminHandler) ResyncAvailability(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.resync_availability")
	defer span.End()

	limit := 1000
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	count, err := h.availabilityService.ResyncOpenTours(ctx, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("tours_resynced", count))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, ResyncResponse{
		Success:       true,
		Message:       fmt.Sprintf("resynced %d tours", count),
		ToursResynced: count,
	})
}

// MirrorStatus handles GET /admin/tours/:id/mirror-status
// Reports, per priced stop pair, whether the cache agrees with the
// stored availability rows.
func (h *AdminHandler) MirrorStatus(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.mirror_status")
	defer span.End()

	tourID := c.Param("id")
	span.SetAttributes(attribute.String("tour_id", tourID))

	drifts, err := h.availabilityService.TourMirrorStatus(ctx, tourID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	inSync := true
	for _, d := range drifts {
		if !d.InSync {
			inSync = false
			break
		}
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, gin.H{
		"tour_id": tourID,
		"in_sync": inSync,
		"pairs":   drifts,
	})
}
