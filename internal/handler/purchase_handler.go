package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/intercity-tours/booking/internal/domain"
	"github.com/intercity-tours/booking/internal/dto"
	"github.com/intercity-tours/booking/internal/service"
	"github.com/intercity-tours/booking/pkg/telemetry"
)

// PurchaseHandler handles purchase lifecycle HTTP requests
type PurchaseHandler struct {
	purchaseService service.PurchaseService
}

// NewPurchaseHandler creates a new purchase handler
func NewPurchaseHandler(purchaseService service.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchaseService: purchaseService}
}

// GetPurchase handles GET /purchases/:id
func (h *PurchaseHandler) GetPurchase(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.purchase.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	purchaseID := c.Param("id")
	span.SetAttributes(attribute.String("purchase_id", purchaseID))

	// A ticket token only opens its own purchase.
	if grant, ok := grantFrom(c); ok && grant.PurchaseID != purchaseID {
		span.SetStatus(codes.Error, "forbidden")
		handleError(c, domain.ErrForbidden)
		return
	}

	result, err := h.purchaseService.GetPurchase(ctx, purchaseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// Pay handles POST /purchases/:id/pay
func (h *PurchaseHandler) Pay(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.purchase.pay")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.PayRequest
	// All fields default, so an empty body pays the full balance.
	_ = c.ShouldBindJSON(&req)
	req.PurchaseID = c.Param("id")

	span.SetAttributes(attribute.String("purchase_id", req.PurchaseID))

	result, err := h.purchaseService.Pay(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// Refund handles POST /purchases/:id/refund
func (h *PurchaseHandler) Refund(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.purchase.refund")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	// Refunds are operator-only: a ticket token must not trigger them.
	if _, ok := grantFrom(c); ok {
		span.SetStatus(codes.Error, "forbidden")
		handleError(c, domain.ErrForbidden)
		return
	}

	var req dto.RefundRequest
	_ = c.ShouldBindJSON(&req)
	req.PurchaseID = c.Param("id")

	span.SetAttributes(attribute.String("purchase_id", req.PurchaseID))

	result, err := h.purchaseService.Refund(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}
