package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
)

// apiError — тело ошибки API. Violations заполняется только для ошибок
// валидации и перечисляет каждое нарушенное поле.
type apiError struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Violations []string `json:"violations,omitempty"`
}

// writeError переводит доменную ошибку в статус HTTP и код API.
// Внутренние детали персистентности наружу не отдаются.
func writeError(c *gin.Context, err error) {
	var verr *orders.ValidationError
	if errors.As(err, &verr) {
		violations := make([]string, 0, len(verr.Violations))
		for _, v := range verr.Violations {
			violations = append(violations, v.Error())
		}
		c.JSON(http.StatusBadRequest, apiError{
			Code:       "VALIDATION_ERROR",
			Message:    "order validation failed",
			Violations: violations,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrProductUnavailable):
		c.JSON(http.StatusBadRequest, apiError{Code: "INVALID_PRODUCT", Message: "product is missing or inactive"})
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, apiError{Code: "ORDER_NOT_FOUND", Message: "order does not exist"})
	case errors.Is(err, domain.ErrOrderAlreadyAssociated):
		c.JSON(http.StatusBadRequest, apiError{Code: "ORDER_ALREADY_ASSOCIATED", Message: "order already belongs to a customer"})
	case errors.Is(err, domain.ErrInvalidOrderStatus):
		c.JSON(http.StatusBadRequest, apiError{Code: "INVALID_STATUS", Message: "status is outside the supported set"})
	case errors.Is(err, domain.ErrOrderNotPayable):
		c.JSON(http.StatusConflict, apiError{Code: "ORDER_NOT_PAYABLE", Message: "order is not awaiting payment"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, apiError{Code: "FORBIDDEN", Message: "order belongs to another customer"})
	case errors.Is(err, domain.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, apiError{Code: "PAYMENT_NOT_FOUND", Message: "gateway does not know this payment"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apiError{Code: "INTERNAL", Message: "internal error"})
	}
}
