package kafka

import "time"

// EventType определяет тип события заказа.
type EventType string

const (
	// События жизненного цикла заказа
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderPaid          EventType = "order.paid"
	EventTypeOrderPaymentFailed EventType = "order.payment_failed"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderAssociated    EventType = "order.associated"

	// События рассылки поставщикам
	EventTypeWholesalerNotified EventType = "wholesaler.notified"
)

// Topics для Kafka
const (
	TopicOrderEvents = "storefront.order.events"
)

// OrderEvent представляет событие заказа для внешних потребителей
// (аудит, профиль покупателя, аналитика). Доставка best-effort: состояние
// заказа от публикации не зависит.
type OrderEvent struct {
	EventType   EventType              `json:"event_type"`
	OrderID     string                 `json:"order_id"`
	OrderNumber string                 `json:"order_number"`
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает событие заказа с текущим временем.
func NewOrderEvent(eventType EventType, orderID, orderNumber, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:   eventType,
		OrderID:     orderID,
		OrderNumber: orderNumber,
		Status:      status,
		Timestamp:   time.Now(),
		Metadata:    metadata,
	}
}
