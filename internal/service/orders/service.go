package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

const (
	defaultListLimit = 100

	// Создание заказа повторяется только при коллизии номера.
	orderNumberRetries = 3

	mailTimeout = 5 * time.Second
)

// CheckoutConfig задаёт параметры расчёта сумм заказа.
type CheckoutConfig struct {
	// TaxRate — ставка налога, например 0.08.
	TaxRate decimal.Decimal
	// ShippingFee — стоимость доставки до порога бесплатной доставки.
	ShippingFee decimal.Decimal
	// FreeShippingAt — порог subtotal, с которого доставка бесплатна.
	FreeShippingAt decimal.Decimal
}

// DefaultCheckoutConfig возвращает параметры витрины по умолчанию.
func DefaultCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		TaxRate:        decimal.RequireFromString("0.08"),
		ShippingFee:    decimal.RequireFromString("5.99"),
		FreeShippingAt: decimal.RequireFromString("50"),
	}
}

// ItemInput — позиция заказа в запросе на создание. Цена не принимается от
// клиента: она берётся из каталога.
type ItemInput struct {
	ProductID string
	Qty       int32
}

// CreateInput — запрос на создание заказа.
type CreateInput struct {
	Guest           *domain.GuestInfo
	Items           []ItemInput
	ShippingAddress domain.Address
	BillingAddress  domain.Address
	Notes           string
	ReferralSource  string
}

// Identity — аутентифицированный покупатель.
type Identity struct {
	CustomerID string
	Email      string
	Admin      bool
}

// Service реализует операции над заказами: создание, выдачу клиентских
// представлений, административную смену статуса, привязку гостевого заказа
// и создание платежа под заказ.
type Service struct {
	repo     domain.OrderRepository
	timeline domain.TimelineRepository
	catalog  domain.Catalog
	gateway  domain.PaymentGateway
	mailer   domain.CustomerMailer
	producer *kafka.Producer // опциональный, nil допустим
	cfg      CheckoutConfig
	logger   *log.Entry
}

// NewService конструирует сервис заказов.
func NewService(
	repo domain.OrderRepository,
	timeline domain.TimelineRepository,
	catalog domain.Catalog,
	gateway domain.PaymentGateway,
	mailer domain.CustomerMailer,
	producer *kafka.Producer,
	cfg CheckoutConfig,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	if cfg.TaxRate.IsZero() && cfg.ShippingFee.IsZero() && cfg.FreeShippingAt.IsZero() {
		cfg = DefaultCheckoutConfig()
	}
	return &Service{
		repo:     repo,
		timeline: timeline,
		catalog:  catalog,
		gateway:  gateway,
		mailer:   mailer,
		producer: producer,
		cfg:      cfg,
		logger:   logger,
	}
}

// ValidationError агрегирует все нарушенные поля запроса.
type ValidationError struct {
	Violations []error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order validation failed: %v", errors.Join(e.Violations...))
}

// CreateGuest создаёт гостевой заказ.
func (s *Service) CreateGuest(ctx context.Context, in CreateInput) (domain.Order, error) {
	if in.Guest == nil {
		return domain.Order{}, &ValidationError{Violations: []error{domain.ErrOwnerRequired}}
	}
	return s.create(ctx, "", "", in)
}

// CreateRegistered создаёт заказ от имени аутентифицированного покупателя.
func (s *Service) CreateRegistered(ctx context.Context, id Identity, in CreateInput) (domain.Order, error) {
	// Личность берётся из токена, guest info в этом пути игнорируется.
	in.Guest = nil
	return s.create(ctx, id.CustomerID, id.Email, in)
}

func (s *Service) create(ctx context.Context, customerID, customerEmail string, in CreateInput) (domain.Order, error) {
	now := time.Now().UTC()

	items := make([]domain.OrderItem, 0, len(in.Items))
	subtotal := decimal.Zero
	for _, item := range in.Items {
		product, err := s.catalog.Product(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductUnavailable) {
				return domain.Order{}, fmt.Errorf("product %s: %w", item.ProductID, domain.ErrProductUnavailable)
			}
			return domain.Order{}, fmt.Errorf("catalog lookup: %w", err)
		}
		items = append(items, domain.OrderItem{
			ID:          uuid.NewString(),
			ProductID:   product.ID,
			ProductName: product.Name,
			Qty:         item.Qty,
			Price:       product.Price,
			Wholesaler: domain.Wholesaler{
				Name:        product.Wholesaler.Name,
				Email:       product.Wholesaler.Email,
				ProductCode: product.Wholesaler.ProductCode,
			},
			CreatedAt: now,
		})
		subtotal = subtotal.Add(product.Price.Mul(decimal.NewFromInt32(item.Qty)))
	}

	subtotal = domain.Round2(subtotal)
	tax := domain.Round2(subtotal.Mul(s.cfg.TaxRate))
	shipping := s.cfg.ShippingFee
	if subtotal.GreaterThanOrEqual(s.cfg.FreeShippingAt) {
		shipping = decimal.Zero
	}
	total := domain.Round2(subtotal.Add(tax).Add(shipping))

	order := domain.Order{
		ID:              uuid.NewString(),
		CustomerID:      customerID,
		CustomerEmail:   customerEmail,
		Guest:           in.Guest,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		Subtotal:        subtotal,
		Tax:             tax,
		Shipping:        shipping,
		Total:           total,
		Payment:         domain.PaymentInfo{Status: domain.PaymentStatusPending},
		Status:          domain.OrderStatusPending,
		Notes:           in.Notes,
		ReferralSource:  in.ReferralSource,
		Version:         0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if errs := order.ValidateInvariants(); len(errs) != 0 {
		return domain.Order{}, &ValidationError{Violations: errs}
	}

	if err := s.persistWithNumber(&order); err != nil {
		return domain.Order{}, err
	}

	s.appendTimeline(order.ID, domain.TimelineOrderCreated, "", now)
	s.publishEvent(kafka.EventTypeOrderCreated, &order, map[string]interface{}{
		"total": order.Total.StringFixed(2),
		"items": len(order.Items),
	})

	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total":        order.Total.StringFixed(2),
	}).Info("order created")

	return order, nil
}

// persistWithNumber назначает номер заказа и сохраняет его, повторяя попытку
// со свежим номером при коллизии уникального индекса.
func (s *Service) persistWithNumber(order *domain.Order) error {
	for attempt := 0; attempt < orderNumberRetries; attempt++ {
		number, err := domain.NewOrderNumber()
		if err != nil {
			return err
		}
		order.OrderNumber = number

		err = s.repo.Create(*order)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrOrderNumberTaken) {
			s.logger.WithField("order_number", number).Warn("order number collision, regenerating")
			continue
		}
		return fmt.Errorf("persist order: %w", err)
	}
	return domain.ErrOrderNumberTaken
}

// CreatePayment регистрирует платёж шлюза под заказ и привязывает его.
// Для уже оплаченного заказа возвращает ErrOrderNotPayable.
func (s *Service) CreatePayment(ctx context.Context, orderID, method string) (domain.GatewayPayment, error) {
	order, err := s.repo.Get(orderID)
	if err != nil {
		return domain.GatewayPayment{}, err
	}
	if order.Payment.Status != domain.PaymentStatusPending {
		return domain.GatewayPayment{}, domain.ErrOrderNotPayable
	}

	payment, err := s.gateway.CreatePayment(ctx, order.ID, order.Total, method)
	if err != nil {
		return domain.GatewayPayment{}, fmt.Errorf("create gateway payment: %w", err)
	}
	if err := s.repo.AttachGatewayPayment(order.ID, payment.ID, method); err != nil {
		return domain.GatewayPayment{}, err
	}
	return payment, nil
}

// Associate одноразово привязывает гостевой заказ к покупателю.
func (s *Service) Associate(ctx context.Context, orderID string, id Identity) error {
	if err := s.repo.AssociateCustomer(orderID, id.CustomerID, id.Email); err != nil {
		return err
	}
	s.appendTimeline(orderID, domain.TimelineOrderAssociated, id.CustomerID, time.Now().UTC())

	if order, err := s.repo.Get(orderID); err == nil {
		s.publishEvent(kafka.EventTypeOrderAssociated, &order, map[string]interface{}{
			"customer_id": id.CustomerID,
		})
	}
	return nil
}

// UpdateStatus — административная смена статуса заказа. Статус вне
// поддерживаемого множества отклоняется; переход в shipped принимает
// трек-номер.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, trackingNumber string) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.ErrInvalidOrderStatus
	}

	var order domain.Order
	for attempt := 0; ; attempt++ {
		var err error
		order, err = s.repo.Get(orderID)
		if err != nil {
			return domain.Order{}, err
		}

		order.Status = status
		if trackingNumber != "" {
			order.TrackingNumber = trackingNumber
		}
		order.UpdatedAt = time.Now().UTC()

		err = s.repo.Save(order)
		if err == nil {
			order.Version++
			break
		}
		if domain.IsVersionConflict(err) && attempt < 2 {
			continue
		}
		return domain.Order{}, fmt.Errorf("persist status: %w", err)
	}

	s.appendTimeline(orderID, domain.TimelineOrderStatusChanged, string(status), order.UpdatedAt)
	s.publishEvent(kafka.EventTypeOrderStatusChanged, &order, map[string]interface{}{
		"tracking_number": order.TrackingNumber,
	})

	// Письмо о смене статуса — fire-and-forget, подписку проверяет mailer.
	switch status {
	case domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusDelivered:
		s.sendStatusUpdate(ctx, order)
	}

	return order, nil
}

func (s *Service) sendStatusUpdate(ctx context.Context, order domain.Order) {
	email, err := order.RecipientEmail()
	if err != nil {
		s.logger.WithField("order_id", order.ID).Warn("no recipient email, skipping status update mail")
		return
	}
	mailCtx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()
	if err := s.mailer.SendStatusUpdate(mailCtx, email, order); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("status update mail failed")
	}
}

// Get возвращает клиентское представление заказа с проверкой владельца.
// Гостевые заказы не имеют владельца среди покупателей: до привязки их
// видит только администратор.
func (s *Service) Get(ctx context.Context, orderID string, id Identity) (domain.PublicOrder, error) {
	order, err := s.repo.Get(orderID)
	if err != nil {
		return domain.PublicOrder{}, err
	}
	if !id.Admin && (order.CustomerID == "" || order.CustomerID != id.CustomerID) {
		return domain.PublicOrder{}, domain.ErrForbidden
	}
	return order.PublicView(), nil
}

// List возвращает заказы покупателя в клиентском представлении.
func (s *Service) List(ctx context.Context, id Identity, limit int) ([]domain.PublicOrder, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	orders, err := s.repo.ListByCustomer(id.CustomerID, limit)
	if err != nil {
		return nil, err
	}
	views := make([]domain.PublicOrder, 0, len(orders))
	for i := range orders {
		views = append(views, orders[i].PublicView())
	}
	return views, nil
}

func (s *Service) appendTimeline(orderID, eventType, reason string, occurred time.Time) {
	if s.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: occurred,
	}
	if err := s.timeline.Append(event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("append timeline event failed")
	}
}

func (s *Service) publishEvent(eventType kafka.EventType, order *domain.Order, metadata map[string]interface{}) {
	if s.producer == nil {
		return // Kafka не настроен.
	}
	event := kafka.NewOrderEvent(eventType, order.ID, order.OrderNumber, string(order.Status), metadata)
	if err := s.producer.PublishOrderEvent(event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish order event to kafka")
	}
}
