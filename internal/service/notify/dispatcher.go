package notify

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const defaultSendTimeout = 10 * time.Second

// Dispatcher рассылает уведомления поставщикам по позициям оплаченного
// заказа. Позиции независимы: рассылка идёт параллельно, сбой одной позиции
// не блокирует остальные. Учёт успехов и ошибок пишется атомарными
// per-item операциями репозитория, поэтому конкурентные вызовы (вебхук и
// ручной retry) не теряют инкременты и не откатывают notified.
type Dispatcher struct {
	orders   domain.OrderRepository
	notifier domain.WholesalerNotifier
	timeline domain.TimelineRepository
	producer *kafka.Producer // опциональный
	metrics  *metrics.FulfillmentMetrics
	logger   *log.Entry

	sendTimeout time.Duration
}

// Result — итог рассылки по одному заказу.
type Result struct {
	Sent    int
	Failed  int
	Skipped int
}

// NewDispatcher конструирует dispatcher. metrics может быть nil (тесты).
func NewDispatcher(
	orders domain.OrderRepository,
	notifier domain.WholesalerNotifier,
	timeline domain.TimelineRepository,
	producer *kafka.Producer,
	m *metrics.FulfillmentMetrics,
	logger *log.Entry,
) *Dispatcher {
	if logger == nil {
		logger = log.New().WithField("component", "notify-dispatcher")
	}
	return &Dispatcher{
		orders:      orders,
		notifier:    notifier,
		timeline:    timeline,
		producer:    producer,
		metrics:     m,
		logger:      logger,
		sendTimeout: defaultSendTimeout,
	}
}

// WithSendTimeout задаёт таймаут одной отправки.
func (d *Dispatcher) WithSendTimeout(timeout time.Duration) *Dispatcher {
	if timeout > 0 {
		d.sendTimeout = timeout
	}
	return d
}

// Dispatch рассылает уведомления по неуведомлённым позициям заказа.
// Уже уведомлённые позиции пропускаются — это делает повторную доставку
// вебхука и ручные retry безопасными. Ошибки отправки не возвращаются
// вызывающему: они записаны в учёт позиции и попадут в следующий sweep.
func (d *Dispatcher) Dispatch(ctx context.Context, order domain.Order) Result {
	start := time.Now()
	defer func() {
		if d.metrics != nil {
			d.metrics.RecordDispatchDuration(time.Since(start))
		}
	}()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result Result
	)

	for _, item := range order.Items {
		if item.Wholesaler.Notified || item.Wholesaler.Email == "" {
			result.Skipped++
			continue
		}

		wg.Add(1)
		go func(item domain.OrderItem) {
			defer wg.Done()
			ok := d.notifyItem(ctx, order, item)
			mu.Lock()
			if ok {
				result.Sent++
			} else {
				result.Failed++
			}
			mu.Unlock()
		}(item)
	}
	wg.Wait()

	d.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"sent":         result.Sent,
		"failed":       result.Failed,
		"skipped":      result.Skipped,
	}).Info("wholesaler dispatch finished")

	return result
}

func (d *Dispatcher) notifyItem(ctx context.Context, order domain.Order, item domain.OrderItem) bool {
	payload := domain.WholesalerNotification{
		OrderNumber:     order.OrderNumber,
		OrderDate:       order.CreatedAt,
		ShippingAddress: order.ShippingAddress,
		ProductCode:     item.Wholesaler.ProductCode,
		ProductName:     item.ProductName,
		Qty:             item.Qty,
		Notes:           order.Notes,
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	if err := d.notifier.NotifyWholesaler(sendCtx, item.Wholesaler.Email, payload); err != nil {
		d.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"item_id":  item.ID,
		}).Warn("wholesaler notification failed")

		if recErr := d.orders.RecordItemNotificationFailure(order.ID, item.ID, err.Error()); recErr != nil {
			d.logger.WithError(recErr).WithField("item_id", item.ID).Error("record notification failure failed")
		}
		d.appendTimeline(order.ID, domain.TimelineNotificationFailure, err.Error())
		if d.metrics != nil {
			d.metrics.RecordNotificationFailed()
		}
		return false
	}

	now := time.Now().UTC()
	if err := d.orders.MarkItemNotified(order.ID, item.ID, now); err != nil {
		d.logger.WithError(err).WithField("item_id", item.ID).Error("mark item notified failed")
		return false
	}

	d.appendTimeline(order.ID, domain.TimelineWholesalerNotified, item.Wholesaler.ProductCode)
	d.publishNotified(order, item)
	if d.metrics != nil {
		d.metrics.RecordNotificationSent()
	}
	return true
}

func (d *Dispatcher) appendTimeline(orderID, eventType, reason string) {
	if d.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
	if err := d.timeline.Append(event); err != nil {
		d.logger.WithError(err).WithField("order_id", orderID).Warn("append timeline event failed")
	}
}

func (d *Dispatcher) publishNotified(order domain.Order, item domain.OrderItem) {
	if d.producer == nil {
		return
	}
	event := kafka.NewOrderEvent(kafka.EventTypeWholesalerNotified, order.ID, order.OrderNumber, string(order.Status), map[string]interface{}{
		"item_id":      item.ID,
		"product_code": item.Wholesaler.ProductCode,
	})
	if err := d.producer.PublishOrderEvent(event); err != nil {
		d.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to publish notified event")
	}
}
