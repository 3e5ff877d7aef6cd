package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/notify"
)

const (
	defaultGatewayTimeout = 5 * time.Second
	mailTimeout           = 5 * time.Second
)

// Reconciler сверяет локальное состояние оплаты заказа с платёжным шлюзом
// по сигналу вебхука. Вебхук — ненадёжный триггер с доставкой
// as-least-once: статус всегда перечитывается из шлюза, а побочные эффекты
// перехода pending→paid защищены compare-and-swap в репозитории, так что
// повторные и конкурентные доставки одного платежа их не дублируют.
type Reconciler struct {
	orders     domain.OrderRepository
	gateway    domain.PaymentGateway
	mailer     domain.CustomerMailer
	dispatcher *notify.Dispatcher
	timeline   domain.TimelineRepository
	producer   *kafka.Producer // опциональный
	metrics    *metrics.FulfillmentMetrics
	logger     *log.Entry

	gatewayTimeout time.Duration
}

// NewReconciler конструирует reconciler. metrics и producer могут быть nil.
func NewReconciler(
	orders domain.OrderRepository,
	gateway domain.PaymentGateway,
	mailer domain.CustomerMailer,
	dispatcher *notify.Dispatcher,
	timeline domain.TimelineRepository,
	producer *kafka.Producer,
	m *metrics.FulfillmentMetrics,
	logger *log.Entry,
) *Reconciler {
	if logger == nil {
		logger = log.New().WithField("component", "reconcile")
	}
	return &Reconciler{
		orders:         orders,
		gateway:        gateway,
		mailer:         mailer,
		dispatcher:     dispatcher,
		timeline:       timeline,
		producer:       producer,
		metrics:        m,
		logger:         logger,
		gatewayTimeout: defaultGatewayTimeout,
	}
}

// WithGatewayTimeout задаёт таймаут запроса к шлюзу.
func (r *Reconciler) WithGatewayTimeout(timeout time.Duration) *Reconciler {
	if timeout > 0 {
		r.gatewayTimeout = timeout
	}
	return r
}

// ProcessWebhook обрабатывает вебхук о платеже gatewayPaymentID.
//
// Возвращаемая ошибка означает, что вебхук надо доставить повторно:
// недоступность шлюза или сбой персистентности. Отсутствие заказа под
// платёж — постоянная ситуация (ErrOrderNotFound), дальше по ней ничего
// не происходит. Сбои писем и рассылки поставщикам никогда не
// превращаются в ошибку вебхука: их учёт ведётся отдельно.
func (r *Reconciler) ProcessWebhook(ctx context.Context, gatewayPaymentID string) error {
	logger := r.logger.WithField("gateway_payment_id", gatewayPaymentID)

	// Шаг 1: перечитываем платёж из шлюза — телу вебхука не доверяем.
	gatewayCtx, cancel := context.WithTimeout(ctx, r.gatewayTimeout)
	payment, err := r.gateway.GetPayment(gatewayCtx, gatewayPaymentID)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			logger.Warn("gateway does not know this payment")
			r.recordWebhook("payment_not_found")
			return domain.ErrPaymentNotFound
		}
		logger.WithError(err).Error("gateway lookup failed")
		r.recordWebhook("gateway_error")
		return fmt.Errorf("gateway lookup: %w", domain.ErrGatewayUnavailable)
	}

	// Шаг 2: ищем заказ по идентификатору платежа.
	order, err := r.orders.GetByGatewayPaymentID(gatewayPaymentID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			logger.Warn("no order for gateway payment")
			r.recordWebhook("order_not_found")
			return domain.ErrOrderNotFound
		}
		r.recordWebhook("storage_error")
		return fmt.Errorf("order lookup: %w", err)
	}
	logger = logger.WithField("order_id", order.ID)

	// Шаги 3–5: маппинг статуса шлюза и CAS-переход.
	switch payment.Status {
	case domain.GatewayStatusPaid:
		return r.applyPaid(ctx, order, payment, logger)

	case domain.GatewayStatusFailed, domain.GatewayStatusCanceled, domain.GatewayStatusExpired:
		return r.applyFailed(order, payment, logger)

	case domain.GatewayStatusPending, domain.GatewayStatusOpen:
		logger.WithField("gateway_status", payment.Status).Debug("payment still pending, nothing to apply")
		r.recordWebhook("pending")
		return nil

	default:
		logger.WithField("gateway_status", payment.Status).Warn("unhandled gateway payment status")
		r.recordWebhook("unhandled")
		return nil
	}
}

func (r *Reconciler) applyPaid(ctx context.Context, order domain.Order, payment domain.GatewayPayment, logger *log.Entry) error {
	now := time.Now().UTC()
	applied, err := r.orders.TransitionPayment(order.ID, domain.PaymentTransition{
		From:          domain.PaymentStatusPending,
		To:            domain.PaymentStatusPaid,
		OrderStatus:   domain.OrderStatusProcessing,
		PaidAt:        &now,
		TransactionID: payment.TransactionID,
	})
	if err != nil {
		r.recordWebhook("storage_error")
		return fmt.Errorf("apply paid transition: %w", err)
	}
	if !applied {
		// Повторная доставка или проигранная гонка: состояние уже
		// применено, побочные эффекты выполнять нельзя.
		logger.Debug("paid transition already applied, skipping side effects")
		r.recordWebhook("duplicate")
		if r.metrics != nil {
			r.metrics.RecordDuplicateWebhook()
		}
		return nil
	}

	logger.Info("payment confirmed, order moved to processing")
	r.recordWebhook("paid")
	if r.metrics != nil {
		r.metrics.RecordPaidTransition()
	}
	r.appendTimeline(order.ID, domain.TimelinePaymentConfirmed, payment.TransactionID, now)

	// Шаг 6: побочные эффекты ровно один раз на подлинный переход.
	// Перечитываем заказ, чтобы эффекты видели применённое состояние.
	fresh, err := r.orders.Get(order.ID)
	if err != nil {
		logger.WithError(err).Error("reload order after paid transition failed")
		fresh = order
		fresh.Payment.Status = domain.PaymentStatusPaid
		fresh.Status = domain.OrderStatusProcessing
	}

	r.publishEvent(kafka.EventTypeOrderPaid, &fresh, map[string]interface{}{
		"transaction_id": payment.TransactionID,
	})
	r.sendReceipt(ctx, fresh, logger)
	if r.dispatcher != nil {
		r.dispatcher.Dispatch(ctx, fresh)
	}
	return nil
}

func (r *Reconciler) applyFailed(order domain.Order, payment domain.GatewayPayment, logger *log.Entry) error {
	applied, err := r.orders.TransitionPayment(order.ID, domain.PaymentTransition{
		From:        domain.PaymentStatusPending,
		To:          domain.PaymentStatusFailed,
		OrderStatus: domain.OrderStatusCancelled,
	})
	if err != nil {
		r.recordWebhook("storage_error")
		return fmt.Errorf("apply failed transition: %w", err)
	}
	if !applied {
		logger.Debug("failed transition already applied or order not pending")
		r.recordWebhook("duplicate")
		return nil
	}

	logger.WithField("gateway_status", payment.Status).Info("payment failed, order cancelled")
	r.recordWebhook("failed")
	if r.metrics != nil {
		r.metrics.RecordPaymentFailure()
	}
	r.appendTimeline(order.ID, domain.TimelinePaymentFailed, payment.Status, time.Now().UTC())

	fresh := order
	fresh.Payment.Status = domain.PaymentStatusFailed
	fresh.Status = domain.OrderStatusCancelled
	r.publishEvent(kafka.EventTypeOrderPaymentFailed, &fresh, map[string]interface{}{
		"gateway_status": payment.Status,
	})
	return nil
}

// sendReceipt отправляет чек об оплате. Сбой не влияет на результат вебхука.
func (r *Reconciler) sendReceipt(ctx context.Context, order domain.Order, logger *log.Entry) {
	email, err := order.RecipientEmail()
	if err != nil {
		logger.Warn("no recipient email resolvable, skipping receipt")
		return
	}

	mailCtx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()
	if err := r.mailer.SendReceipt(mailCtx, email, order); err != nil {
		logger.WithError(err).Warn("payment receipt send failed")
		if r.metrics != nil {
			r.metrics.RecordReceiptFailed()
		}
		return
	}
	if r.metrics != nil {
		r.metrics.RecordReceiptSent()
	}
}

func (r *Reconciler) recordWebhook(result string) {
	if r.metrics != nil {
		r.metrics.RecordWebhookProcessed(result)
	}
}

func (r *Reconciler) appendTimeline(orderID, eventType, reason string, occurred time.Time) {
	if r.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: occurred,
	}
	if err := r.timeline.Append(event); err != nil {
		r.logger.WithError(err).WithField("order_id", orderID).Warn("append timeline event failed")
	}
}

func (r *Reconciler) publishEvent(eventType kafka.EventType, order *domain.Order, metadata map[string]interface{}) {
	if r.producer == nil {
		return
	}
	event := kafka.NewOrderEvent(eventType, order.ID, order.OrderNumber, string(order.Status), metadata)
	if err := r.producer.PublishOrderEvent(event); err != nil {
		r.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish order event to kafka")
	}
}
