package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/reconcile"
)

// WebhookHandler принимает колбэки платёжного шлюза.
type WebhookHandler struct {
	reconciler *reconcile.Reconciler
	logger     *log.Entry
}

// NewWebhookHandler конструирует обработчик вебхуков.
func NewWebhookHandler(reconciler *reconcile.Reconciler, logger *log.Entry) *WebhookHandler {
	if logger == nil {
		logger = log.New().WithField("component", "webhook")
	}
	return &WebhookHandler{reconciler: reconciler, logger: logger}
}

type webhookReq struct {
	ID string `json:"id" form:"id" binding:"required"`
}

// Handle — POST /payments/webhook.
//
// Шлюз повторяет доставку при любом не-2xx ответе, поэтому статусы кодируют
// ретраябельность: 200 — обработано (в том числе переход уже применён),
// 404 — платёж не привязан ни к одному заказу (повтор бессмысленен),
// 5xx — шлюз или хранилище недоступны, доставку нужно повторить.
func (h *WebhookHandler) Handle(c *gin.Context) {
	var req webhookReq
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "VALIDATION_ERROR", Message: "payment id is required"})
		return
	}

	err := h.reconciler.ProcessWebhook(c.Request.Context(), req.ID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrPaymentNotFound):
		writeError(c, err)
	case errors.Is(err, domain.ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, apiError{Code: "GATEWAY_UNAVAILABLE", Message: "payment gateway lookup failed"})
	default:
		h.logger.WithError(err).WithField("gateway_payment_id", req.ID).Error("webhook processing failed")
		c.JSON(http.StatusInternalServerError, apiError{Code: "INTERNAL", Message: "internal error"})
	}
}
