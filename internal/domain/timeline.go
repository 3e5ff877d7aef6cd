package domain

import "time"

// Типы событий timeline заказа.
const (
	TimelineOrderCreated        = "OrderCreated"
	TimelineOrderAssociated     = "OrderAssociated"
	TimelineOrderStatusChanged  = "OrderStatusChanged"
	TimelinePaymentConfirmed    = "PaymentConfirmed"
	TimelinePaymentFailed       = "PaymentFailed"
	TimelineWholesalerNotified  = "WholesalerNotified"
	TimelineNotificationFailure = "WholesalerNotificationFailed"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
