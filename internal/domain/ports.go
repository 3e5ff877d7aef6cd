package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Статусы платежа на стороне шлюза. Локальное состояние всегда выводится из
// повторного запроса к шлюзу, а не из тела вебхука.
const (
	GatewayStatusPaid     = "paid"
	GatewayStatusFailed   = "failed"
	GatewayStatusCanceled = "canceled"
	GatewayStatusExpired  = "expired"
	GatewayStatusPending  = "pending"
	GatewayStatusOpen     = "open"
)

// GatewayPayment — платёж в представлении платёжного шлюза.
type GatewayPayment struct {
	ID            string
	Status        string
	Method        string
	TransactionID string
	CheckoutURL   string
}

// PaymentGateway описывает взаимодействие с платёжным шлюзом.
type PaymentGateway interface {
	// GetPayment запрашивает актуальное состояние платежа.
	// Возвращает ErrPaymentNotFound для неизвестного идентификатора и
	// ErrGatewayUnavailable при временных сбоях.
	GetPayment(ctx context.Context, id string) (GatewayPayment, error)
	// CreatePayment регистрирует платёж под заказ и возвращает его
	// идентификатор вместе со ссылкой на оплату.
	CreatePayment(ctx context.Context, orderID string, amount decimal.Decimal, method string) (GatewayPayment, error)
}

// WholesalerNotification — данные письма поставщику об оплаченной позиции.
type WholesalerNotification struct {
	OrderNumber     string
	OrderDate       time.Time
	ShippingAddress Address
	ProductCode     string
	ProductName     string
	Qty             int32
	Notes           string
}

// WholesalerNotifier отправляет уведомление поставщику позиции.
type WholesalerNotifier interface {
	NotifyWholesaler(ctx context.Context, email string, n WholesalerNotification) error
}

// CustomerMailer отправляет письма покупателю. Проверка настроек подписки
// получателя — обязанность реализации за этой границей.
type CustomerMailer interface {
	SendReceipt(ctx context.Context, email string, order Order) error
	SendStatusUpdate(ctx context.Context, email string, order Order) error
}

// Product — снимок товара из доверенного каталога. Цена берётся отсюда,
// а не из клиентского запроса.
type Product struct {
	ID         string
	Name       string
	Price      decimal.Decimal
	Active     bool
	Wholesaler WholesalerContact
}

// WholesalerContact — контакт поставщика товара в каталоге.
type WholesalerContact struct {
	Name        string
	Email       string
	ProductCode string
}

// Catalog описывает доступ к каталогу товаров.
type Catalog interface {
	// Product возвращает активный товар или ErrProductUnavailable.
	Product(ctx context.Context, id string) (Product, error)
}
