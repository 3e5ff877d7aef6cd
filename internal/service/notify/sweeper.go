package notify

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultSweepInterval = 1 * time.Minute
	defaultSweepBatch    = 50
)

var (
	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_notify_sweep_runs_total",
		Help: "Total number of notification sweep runs grouped by result.",
	}, []string{"result"})
	sweepRedispatchedOrders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_notify_sweep_redispatched_orders_total",
		Help: "Total number of orders re-dispatched by the notification sweeper.",
	})
	sweepLastPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_notify_sweep_last_pending",
		Help: "Number of pending orders observed during the last sweep run.",
	})
)

// SweeperOptions задаёт параметры воркера повторной рассылки.
type SweeperOptions struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
}

// SweeperOption настраивает Sweeper.
type SweeperOption func(*SweeperOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) SweeperOption {
	return func(opts *SweeperOptions) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал между проходами.
func WithInterval(interval time.Duration) SweeperOption {
	return func(opts *SweeperOptions) {
		opts.Interval = interval
	}
}

// WithBatchSize задаёт максимум заказов за один проход.
func WithBatchSize(batchSize int) SweeperOption {
	return func(opts *SweeperOptions) {
		opts.BatchSize = batchSize
	}
}

// Sweeper периодически перебирает оплаченные заказы с неразосланными
// уведомлениями и повторно запускает dispatcher. Это резервный контур к
// рассылке из обработчика вебхука: он добирает позиции после сбоев
// почтового канала и рестартов процесса.
type Sweeper struct {
	orders     domain.OrderRepository
	dispatcher *Dispatcher
	logger     *log.Entry
	interval   time.Duration
	batchSize  int
}

// NewSweeper создаёт воркер повторной рассылки.
func NewSweeper(orders domain.OrderRepository, dispatcher *Dispatcher, options ...SweeperOption) *Sweeper {
	opts := SweeperOptions{
		Interval:  defaultSweepInterval,
		BatchSize: defaultSweepBatch,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.New().WithField("component", "notify-sweeper")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultSweepBatch
	}

	return &Sweeper{
		orders:     orders,
		dispatcher: dispatcher,
		logger:     opts.Logger,
		interval:   opts.Interval,
		batchSize:  opts.BatchSize,
	}
}

// Run крутит цикл до отмены контекста.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.WithFields(log.Fields{
		"interval":   s.interval,
		"batch_size": s.batchSize,
	}).Info("notification sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("notification sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход и возвращает число обработанных заказов.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	pending, err := s.orders.FindPendingNotifications(s.batchSize)
	if err != nil {
		s.logger.WithError(err).Error("find pending notifications failed")
		sweepRunsTotal.WithLabelValues("error").Inc()
		return 0
	}
	sweepLastPending.Set(float64(len(pending)))

	if len(pending) == 0 {
		sweepRunsTotal.WithLabelValues("empty").Inc()
		return 0
	}

	for _, order := range pending {
		if ctx.Err() != nil {
			return 0
		}
		result := s.dispatcher.Dispatch(ctx, order)
		sweepRedispatchedOrders.Inc()
		s.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"sent":     result.Sent,
			"failed":   result.Failed,
		}).Debug("sweep re-dispatch finished")
	}

	sweepRunsTotal.WithLabelValues("ok").Inc()
	return len(pending)
}
