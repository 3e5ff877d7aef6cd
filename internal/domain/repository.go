package domain

import "time"

// PaymentTransition описывает атомарный переход состояния оплаты.
// Переход применяется только если текущий payment status заказа равен From:
// это и есть защита от повторной доставки вебхука и гонок конкурентных
// обработчиков одного платежа.
type PaymentTransition struct {
	From PaymentStatus
	To   PaymentStatus
	// OrderStatus, если задан, применяется вместе с переходом оплаты.
	OrderStatus OrderStatus
	// PaidAt фиксируется при переходе в paid.
	PaidAt *time.Time
	// TransactionID шлюза, если он известен.
	TransactionID string
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями. Возвращает
	// ErrOrderNumberTaken при коллизии номера заказа.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// GetByNumber ищет заказ по человекочитаемому номеру.
	GetByNumber(number string) (Order, error)
	// GetByGatewayPaymentID ищет заказ по идентификатору платежа шлюза.
	GetByGatewayPaymentID(paymentID string) (Order, error)
	// ListByCustomer возвращает заказы клиента, новые первыми.
	ListByCustomer(customerID string, limit int) ([]Order, error)
	// Save применяет обновления заказа с учётом optimistic locking.
	// Учёт уведомлений позиций через Save не обновляется.
	Save(order Order) error

	// TransitionPayment выполняет compare-and-swap статуса оплаты.
	// Возвращает applied=false, если текущий статус не равен tr.From —
	// побочные эффекты перехода в этом случае выполнять нельзя.
	TransitionPayment(orderID string, tr PaymentTransition) (applied bool, err error)
	// AttachGatewayPayment привязывает платёж шлюза к ещё не оплаченному
	// заказу. Для уже оплаченного заказа возвращает ErrOrderNotPayable.
	AttachGatewayPayment(orderID, gatewayPaymentID, method string) error
	// AssociateCustomer привязывает гостевой заказ к покупателю. Операция
	// одноразовая: для уже привязанного заказа — ErrOrderAlreadyAssociated.
	AssociateCustomer(orderID, customerID, customerEmail string) error

	// MarkItemNotified атомарно отмечает позицию как уведомлённую и
	// инкрементирует счётчик попыток. Повторный вызов для уже уведомлённой
	// позиции — no-op: notified не откатывается, счётчик не растёт.
	MarkItemNotified(orderID, itemID string, at time.Time) error
	// RecordItemNotificationFailure атомарно фиксирует ошибку отправки и
	// инкрементирует счётчик попыток, оставляя позицию в очереди на retry.
	RecordItemNotificationFailure(orderID, itemID, message string) error
	// FindPendingNotifications возвращает оплаченные заказы, в которых
	// остались неуведомлённые позиции с email поставщика.
	FindPendingNotifications(limit int) ([]Order, error)
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}
