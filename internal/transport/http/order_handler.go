package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/transport/http/middleware"
)

const handlerTimeout = 10 * time.Second

// OrderHandler обслуживает REST-операции над заказами.
type OrderHandler struct {
	svc *orders.Service
}

// NewOrderHandler конструирует обработчик заказов.
func NewOrderHandler(svc *orders.Service) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type addressReq struct {
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state"`
	Zip     string `json:"zip" binding:"required"`
	Country string `json:"country" binding:"required"`
}

func (a addressReq) toDomain() domain.Address {
	return domain.Address{Street: a.Street, City: a.City, State: a.State, Zip: a.Zip, Country: a.Country}
}

type guestInfoReq struct {
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Phone     string `json:"phone"`
}

type itemReq struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int32  `json:"quantity" binding:"required,gte=1"`
}

type createOrderReq struct {
	GuestInfo       *guestInfoReq `json:"guestInfo"`
	Items           []itemReq     `json:"items" binding:"required,min=1,dive"`
	ShippingAddress addressReq    `json:"shippingAddress" binding:"required"`
	BillingAddress  addressReq    `json:"billingAddress" binding:"required"`
	Notes           string        `json:"notes"`
	ReferralSource  string        `json:"referralSource"`
}

func (r createOrderReq) toInput() orders.CreateInput {
	in := orders.CreateInput{
		ShippingAddress: r.ShippingAddress.toDomain(),
		BillingAddress:  r.BillingAddress.toDomain(),
		Notes:           r.Notes,
		ReferralSource:  r.ReferralSource,
	}
	if r.GuestInfo != nil {
		in.Guest = &domain.GuestInfo{
			Email:     r.GuestInfo.Email,
			FirstName: r.GuestInfo.FirstName,
			LastName:  r.GuestInfo.LastName,
			Phone:     r.GuestInfo.Phone,
		}
	}
	for _, item := range r.Items {
		in.Items = append(in.Items, orders.ItemInput{ProductID: item.ProductID, Qty: item.Quantity})
	}
	return in
}

type createOrderResp struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`
	Total       string `json:"total"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
}

func orderCreated(order domain.Order) createOrderResp {
	return createOrderResp{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Total:       order.Total.StringFixed(2),
		Status:      string(order.Status),
		CreatedAt:   order.CreatedAt.Format(time.RFC3339),
	}
}

// CreateGuest — POST /orders.
func (h *OrderHandler) CreateGuest(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "VALIDATION_ERROR", Message: err.Error()})
		return
	}
	if req.GuestInfo == nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "VALIDATION_ERROR", Message: "guestInfo is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()

	order, err := h.svc.CreateGuest(ctx, req.toInput())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, orderCreated(order))
}

// CreateRegistered — POST /orders/registered, личность берётся из токена.
func (h *OrderHandler) CreateRegistered(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, apiError{Code: "UNAUTHORIZED", Message: "authentication required"})
		return
	}

	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "VALIDATION_ERROR", Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()

	order, err := h.svc.CreateRegistered(ctx, serviceIdentity(identity), req.toInput())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, orderCreated(order))
}

// Associate — POST /orders/:id/associate, одноразовая привязка гостевого заказа.
func (h *OrderHandler) Associate(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, apiError{Code: "UNAUTHORIZED", Message: "authentication required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()

	if err := h.svc.Associate(ctx, c.Param("id"), serviceIdentity(identity)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type createPaymentReq struct {
	Method string `json:"method" binding:"required"`
}

// CreatePayment — POST /orders/:id/payment, регистрирует платёж в шлюзе.
func (h *OrderHandler) CreatePayment(c *gin.Context) {
	var req createPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "VALIDATION_ERROR", Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()

	payment, err := h.svc.CreatePayment(ctx, c.Param("id"), req.Method)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"paymentId":   payment.ID,
		"checkoutUrl": payment.CheckoutURL,
	})
}

type updateStatusReq struct {
	Status         string `json:"status" binding:"required"`
	TrackingNumber string `json:"trackingNumber"`
}

// UpdateStatus — PUT /orders/:id/status, административная операция.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "VALIDATION_ERROR", Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()

	order, err := h.svc.UpdateStatus(ctx, c.Param("id"), domain.OrderStatus(req.Status), req.TrackingNumber)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orderNumber":    order.OrderNumber,
		"status":         string(order.Status),
		"trackingNumber": order.TrackingNumber,
	})
}

// Get — GET /orders/:id, только владелец или администратор.
func (h *OrderHandler) Get(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, apiError{Code: "UNAUTHORIZED", Message: "authentication required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()

	view, err := h.svc.Get(ctx, c.Param("id"), serviceIdentity(identity))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// List — GET /orders, заказы текущего покупателя.
func (h *OrderHandler) List(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, apiError{Code: "UNAUTHORIZED", Message: "authentication required"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()

	views, err := h.svc.List(ctx, serviceIdentity(identity), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": views})
}

func serviceIdentity(id middleware.Identity) orders.Identity {
	return orders.Identity{CustomerID: id.CustomerID, Email: id.Email, Admin: id.Admin}
}
