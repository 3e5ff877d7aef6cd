package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа в витрине.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — оплата подтверждена, заказ передан в исполнение.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ отправлен, доступен трек-номер.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён (ошибка оплаты или действие администратора).
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid проверяет, что статус входит в множество поддерживаемых значений.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// PaymentStatus описывает локальное состояние оплаты заказа.
type PaymentStatus string

const (
	// PaymentStatusPending — платёж инициирован, но не подтверждён шлюзом.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid — шлюз подтвердил списание средств.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusFailed — шлюз отклонил платёж либо он истёк.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded — средства возвращены покупателю.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// GuestInfo хранит контактные данные гостевого покупателя.
type GuestInfo struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string // Необязательное поле.
}

// Address — почтовый адрес доставки или выставления счёта.
type Address struct {
	Street  string
	City    string
	State   string
	Zip     string
	Country string
}

// Complete сообщает, заполнены ли обязательные поля адреса.
func (a Address) Complete() bool {
	return a.Street != "" && a.City != "" && a.Zip != "" && a.Country != ""
}

// Wholesaler содержит контакт поставщика позиции и учёт уведомлений о заказе.
type Wholesaler struct {
	Name        string
	Email       string
	ProductCode string

	Notified              bool
	NotifiedAt            *time.Time
	NotificationAttempts  int
	LastNotificationError string
}

// OrderItem представляет одну позицию заказа. Идентификатор стабилен в рамках
// заказа и используется для атомарных обновлений учёта уведомлений.
type OrderItem struct {
	ID          string
	ProductID   string
	ProductName string
	Qty         int32
	// Price — цена за единицу, снимок на момент покупки.
	Price      decimal.Decimal
	Wholesaler Wholesaler
	CreatedAt  time.Time
}

// PaymentInfo хранит состояние оплаты и привязку к платёжному шлюзу.
type PaymentInfo struct {
	Method           string
	Status           PaymentStatus
	GatewayPaymentID string
	TransactionID    string
	PaidAt           *time.Time
}

// Order агрегирует состояние заказа витрины и его позиции.
type Order struct {
	ID          string
	OrderNumber string
	// CustomerID пуст для гостевого заказа; заполняется один раз и не очищается.
	CustomerID    string
	CustomerEmail string
	Guest         *GuestInfo

	Items []OrderItem

	ShippingAddress Address
	BillingAddress  Address

	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal

	Payment PaymentInfo
	Status  OrderStatus

	TrackingNumber string
	Notes          string
	ReferralSource string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет инварианты нового заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	switch {
	case o.CustomerID == "" && o.Guest == nil:
		errs = append(errs, ErrOwnerRequired)
	case o.CustomerID != "" && o.Guest != nil:
		errs = append(errs, ErrOwnerConflict)
	}
	if o.Guest != nil && o.Guest.Email == "" {
		errs = append(errs, ErrGuestEmailRequired)
	}

	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	for _, item := range o.Items {
		if item.Qty < 1 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.Price.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		// Новая позиция всегда стартует без отметки об уведомлении.
		if item.Wholesaler.Notified || item.Wholesaler.NotificationAttempts != 0 {
			errs = append(errs, ErrItemNotificationState)
		}
	}

	if !o.ShippingAddress.Complete() {
		errs = append(errs, ErrShippingAddressIncomplete)
	}
	if !o.BillingAddress.Complete() {
		errs = append(errs, ErrBillingAddressIncomplete)
	}

	// Инвариант суммы: total == round2(subtotal + tax + shipping).
	want := Round2(o.Subtotal.Add(o.Tax).Add(o.Shipping))
	if !o.Total.Equal(want) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// RecipientEmail возвращает адрес покупателя для исходящих писем.
// Если адрес не удаётся определить, возвращает ErrNoRecipientEmail:
// вызывающий код в этом случае обязан не отправлять уведомление.
func (o *Order) RecipientEmail() (string, error) {
	if o.CustomerID != "" && o.CustomerEmail != "" {
		return o.CustomerEmail, nil
	}
	if o.Guest != nil && o.Guest.Email != "" {
		return o.Guest.Email, nil
	}
	return "", ErrNoRecipientEmail
}

// AllWholesalersNotified сообщает, уведомлены ли поставщики всех позиций.
// Позиции без email поставщика считаются не требующими уведомления.
func (o *Order) AllWholesalersNotified() bool {
	for _, item := range o.Items {
		if item.Wholesaler.Email == "" {
			continue
		}
		if !item.Wholesaler.Notified {
			return false
		}
	}
	return true
}

// HasPendingNotifications сообщает, остались ли позиции, ожидающие уведомления поставщика.
func (o *Order) HasPendingNotifications() bool {
	return !o.AllWholesalersNotified()
}
