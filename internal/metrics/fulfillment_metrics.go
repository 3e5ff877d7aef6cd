package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics содержит метрики ядра исполнения заказов: обработка
// вебхуков оплаты и рассылка уведомлений поставщикам.
type FulfillmentMetrics struct {
	// Счётчики вебхуков
	webhooksProcessed *prometheus.CounterVec
	paidTransitions   prometheus.Counter
	duplicateWebhooks prometheus.Counter
	paymentFailures   prometheus.Counter

	// Счётчики писем покупателю
	receiptsSent   prometheus.Counter
	receiptsFailed prometheus.Counter

	// Счётчики уведомлений поставщикам
	notificationsSent   prometheus.Counter
	notificationsFailed prometheus.Counter

	// Гистограмма времени рассылки по одному заказу
	dispatchDuration prometheus.Histogram

	// Gauge заказов, ожидающих уведомления поставщиков
	pendingNotifications prometheus.Gauge
}

// NewFulfillmentMetrics создаёт метрики через default registerer.
func NewFulfillmentMetrics() *FulfillmentMetrics {
	return newFulfillmentMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newFulfillmentMetricsWithRegisterer(registerer prometheus.Registerer) *FulfillmentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &FulfillmentMetrics{
		webhooksProcessed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_payment_webhooks_total",
			Help: "Total number of processed payment webhooks grouped by result.",
		}, []string{"result"}),
		paidTransitions: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_payment_paid_transitions_total",
			Help: "Total number of genuine pending to paid transitions.",
		}),
		duplicateWebhooks: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_payment_duplicate_webhooks_total",
			Help: "Total number of webhook deliveries that matched an already applied transition.",
		}),
		paymentFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_payment_failures_total",
			Help: "Total number of payments reported failed, canceled or expired by the gateway.",
		}),
		receiptsSent: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_receipts_sent_total",
			Help: "Total number of payment receipts sent to customers.",
		}),
		receiptsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_receipts_failed_total",
			Help: "Total number of failed receipt sends.",
		}),
		notificationsSent: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_wholesaler_notifications_sent_total",
			Help: "Total number of wholesaler notifications sent successfully.",
		}),
		notificationsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_wholesaler_notifications_failed_total",
			Help: "Total number of failed wholesaler notification attempts.",
		}),
		dispatchDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_wholesaler_dispatch_duration_seconds",
			Help:    "Duration of a per-order wholesaler notification fan-out in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		pendingNotifications: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_orders_pending_notifications",
			Help: "Number of paid orders still waiting for wholesaler notifications.",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordWebhookProcessed увеличивает счётчик вебхуков с меткой результата.
func (m *FulfillmentMetrics) RecordWebhookProcessed(result string) {
	m.webhooksProcessed.WithLabelValues(result).Inc()
}

// RecordPaidTransition увеличивает счётчик подлинных переходов pending→paid.
func (m *FulfillmentMetrics) RecordPaidTransition() {
	m.paidTransitions.Inc()
}

// RecordDuplicateWebhook увеличивает счётчик повторных доставок.
func (m *FulfillmentMetrics) RecordDuplicateWebhook() {
	m.duplicateWebhooks.Inc()
}

// RecordPaymentFailure увеличивает счётчик неуспешных платежей.
func (m *FulfillmentMetrics) RecordPaymentFailure() {
	m.paymentFailures.Inc()
}

// RecordReceiptSent увеличивает счётчик отправленных чеков.
func (m *FulfillmentMetrics) RecordReceiptSent() {
	m.receiptsSent.Inc()
}

// RecordReceiptFailed увеличивает счётчик неудачных отправок чека.
func (m *FulfillmentMetrics) RecordReceiptFailed() {
	m.receiptsFailed.Inc()
}

// RecordNotificationSent увеличивает счётчик успешных уведомлений поставщикам.
func (m *FulfillmentMetrics) RecordNotificationSent() {
	m.notificationsSent.Inc()
}

// RecordNotificationFailed увеличивает счётчик неудачных уведомлений.
func (m *FulfillmentMetrics) RecordNotificationFailed() {
	m.notificationsFailed.Inc()
}

// RecordDispatchDuration записывает длительность рассылки по заказу.
func (m *FulfillmentMetrics) RecordDispatchDuration(duration time.Duration) {
	m.dispatchDuration.Observe(duration.Seconds())
}

// SetPendingNotifications публикует размер очереди неразосланных заказов.
func (m *FulfillmentMetrics) SetPendingNotifications(n int) {
	m.pendingNotifications.Set(float64(n))
}
