package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/intercity-tours/booking/internal/access"
	"github.com/intercity-tours/booking/internal/dto"
	"github.com/intercity-tours/booking/internal/service"
	"github.com/intercity-tours/booking/pkg/telemetry"
)

// ModificationHandler handles ticket modification HTTP requests. Every
// modification is a plan/commit pair: the plan endpoints price the
// change, the commit endpoints apply it.
type ModificationHandler struct {
	modificationService service.ModificationService
}

// NewModificationHandler creates a new modification handler
func NewModificationHandler(modificationService service.ModificationService) *ModificationHandler {
	return &ModificationHandler{modificationService: modificationService}
}

// PlanReschedule handles POST /modifications/reschedule/plan
func (h *ModificationHandler) PlanReschedule(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.modification.plan_reschedule")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		badRequest(c, err)
		return
	}
	if err := authorizeTicket(c, req.TicketID, access.ScopeView); err != nil {
		span.SetStatus(codes.Error, "forbidden")
		handleError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("ticket_id", req.TicketID),
		attribute.String("target_tour_id", req.TargetTourID),
	)

	plan, err := h.modificationService.PlanReschedule(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, plan)
}

// CommitReschedule handles POST /modifications/reschedule
func (h *ModificationHandler) CommitReschedule(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.modification.commit_reschedule")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		badRequest(c, err)
		return
	}
	if err := authorizeTicket(c, req.TicketID, access.ScopeModify); err != nil {
		span.SetStatus(codes.Error, "forbidden")
		handleError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("ticket_id", req.TicketID),
		attribute.String("target_tour_id", req.TargetTourID),
	)

	result, err := h.modificationService.CommitReschedule(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// PlanBaggage handles POST /modifications/baggage/plan
func (h *ModificationHandler) PlanBaggage(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.modification.plan_baggage")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.BaggageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		badRequest(c, err)
		return
	}
	if err := authorizeTicket(c, req.TicketID, access.ScopeView); err != nil {
		span.SetStatus(codes.Error, "forbidden")
		handleError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("ticket_id", req.TicketID),
		attribute.Int("extra_bags", req.ExtraBags),
	)

	plan, err := h.modificationService.PlanBaggage(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, plan)
}

// CommitBaggage handles POST /modifications/baggage
func (h *ModificationHandler) CommitBaggage(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.modification.commit_baggage")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.BaggageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		badRequest(c, err)
		return
	}
	if err := authorizeTicket(c, req.TicketID, access.ScopeModify); err != nil {
		span.SetStatus(codes.Error, "forbidden")
		handleError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("ticket_id", req.TicketID),
		attribute.Int("extra_bags", req.ExtraBags),
	)

	result, err := h.modificationService.CommitBaggage(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// PlanCancel handles POST /modifications/cancel/plan
func (h *ModificationHandler) PlanCancel(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.modification.plan_cancel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		badRequest(c, err)
		return
	}
	for _, ticketID := range req.TicketIDs {
		if err := authorizeTicket(c, ticketID, access.ScopeView); err != nil {
			span.SetStatus(codes.Error, "forbidden")
			handleError(c, err)
			return
		}
	}

	span.SetAttributes(
		attribute.String("purchase_id", req.PurchaseID),
		attribute.Int("tickets", len(req.TicketIDs)),
	)

	plan, err := h.modificationService.PlanCancel(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, plan)
}

// CommitCancel handles POST /modifications/cancel
func (h *ModificationHandler) CommitCancel(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.modification.commit_cancel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		badRequest(c, err)
		return
	}
	for _, ticketID := range req.TicketIDs {
		if err := authorizeTicket(c, ticketID, access.ScopeModify); err != nil {
			span.SetStatus(codes.Error, "forbidden")
			handleError(c, err)
			return
		}
	}

	span.SetAttributes(
		attribute.String("purchase_id", req.PurchaseID),
		attribute.Int("tickets", len(req.TicketIDs)),
	)

	result, err := h.modificationService.CommitCancel(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}
