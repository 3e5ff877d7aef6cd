package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PublicWholesaler — видимая покупателю часть данных поставщика: только
// статус уведомления, без контактов. Имя, email и код товара поставщика
// не должны попадать ни в один ответ клиенту.
type PublicWholesaler struct {
	Notified   bool       `json:"notified"`
	NotifiedAt *time.Time `json:"notifiedAt,omitempty"`
}

// PublicItem — позиция заказа в клиентском представлении.
type PublicItem struct {
	ID          string           `json:"id"`
	ProductID   string           `json:"productId"`
	ProductName string           `json:"productName"`
	Qty         int32            `json:"qty"`
	Price       decimal.Decimal  `json:"price"`
	Wholesaler  PublicWholesaler `json:"wholesaler"`
}

// PublicPayment — состояние оплаты без идентификаторов шлюза.
type PublicPayment struct {
	Method string        `json:"method,omitempty"`
	Status PaymentStatus `json:"status"`
	PaidAt *time.Time    `json:"paidAt,omitempty"`
}

// PublicOrder — представление заказа, возвращаемое клиентам. Email гостя
// остаётся видимым (владелец заказа), контакты поставщиков вырезаны.
type PublicOrder struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	CustomerID      string          `json:"customerId,omitempty"`
	Guest           *GuestInfo      `json:"guestInfo,omitempty"`
	Items           []PublicItem    `json:"items"`
	ShippingAddress Address         `json:"shippingAddress"`
	BillingAddress  Address         `json:"billingAddress"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Shipping        decimal.Decimal `json:"shipping"`
	Total           decimal.Decimal `json:"total"`
	Payment         PublicPayment   `json:"payment"`
	Status          OrderStatus     `json:"status"`
	TrackingNumber  string          `json:"trackingNumber,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// PublicView строит клиентское представление заказа.
func (o *Order) PublicView() PublicOrder {
	items := make([]PublicItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, PublicItem{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Qty:         item.Qty,
			Price:       item.Price,
			Wholesaler: PublicWholesaler{
				Notified:   item.Wholesaler.Notified,
				NotifiedAt: item.Wholesaler.NotifiedAt,
			},
		})
	}

	var guest *GuestInfo
	if o.Guest != nil {
		g := *o.Guest
		guest = &g
	}

	return PublicOrder{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		Guest:           guest,
		Items:           items,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		Shipping:        o.Shipping,
		Total:           o.Total,
		Payment: PublicPayment{
			Method: o.Payment.Method,
			Status: o.Payment.Status,
			PaidAt: o.Payment.PaidAt,
		},
		Status:         o.Status,
		TrackingNumber: o.TrackingNumber,
		Notes:          o.Notes,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}
