package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/intercity-tours/booking/internal/domain"
	"github.com/intercity-tours/booking/internal/dto"
	"github.com/intercity-tours/booking/internal/metrics"
	"github.com/intercity-tours/booking/internal/payment"
)

// handleError maps domain errors onto HTTP statuses: not found 404,
// validation 400, conflicts 409, access 403, unsettled payments 402.
func handleError(c *gin.Context, err error) {
	var code string
	var status int

	switch {
	case domain.IsNotFoundError(err):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case domain.IsValidationError(err):
		status, code = http.StatusBadRequest, "INVALID_REQUEST"
	case domain.IsConflictError(err):
		status, code = http.StatusConflict, "CONFLICT"
	case domain.IsForbiddenError(err):
		status, code = http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, payment.ErrPaymentNotSettled):
		status, code = http.StatusPaymentRequired, "PAYMENT_NOT_SETTLED"
	default:
		metrics.RecordError(c.Request.Context(), "internal", c.FullPath())
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal error",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	metrics.RecordError(c.Request.Context(), code, c.FullPath())
	c.JSON(status, dto.ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "invalid request",
		Code:    "INVALID_REQUEST",
		Message: err.Error(),
	})
}
