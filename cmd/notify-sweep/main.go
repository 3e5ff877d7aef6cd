package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/notifier"
	"github.com/vladislavdragonenkov/storefront/internal/service/notify"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// notify-sweep — отдельный воркер повторной рассылки уведомлений
// поставщикам. Добирает оплаченные заказы с неразосланными позициями,
// оставшиеся после сбоев почтового канала или рестартов сервиса.
func main() {
	var (
		configPath string
		once       bool
	)
	flag.StringVar(&configPath, "config", "", "путь к yaml-конфигурации (опционально)")
	flag.BoolVar(&once, "once", false, "выполнить один проход и выйти")
	flag.Parse()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		log.WithError(err).Fatal("ошибка загрузки конфигурации")
	}
	app.SetupLogger(cfg)

	if cfg.Postgres.DSN == "" {
		log.Fatal("postgres.dsn обязателен: воркер работает только с общим хранилищем")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.WithError(err).Fatal("ошибка подключения к postgres")
	}
	defer store.Close()

	repo := postgres.NewOrderRepository(store)
	timelineRepo := postgres.NewTimelineRepository(store)

	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		p, err := kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			log.WithError(err).Warn("kafka недоступна, продолжаем без публикации событий")
		} else {
			producer = p
			defer producer.Close()
		}
	}

	logger := log.WithField("component", "notify-sweep")
	dispatcher := notify.NewDispatcher(repo, notifier.NewMockNotifier(), timelineRepo, producer, metrics.NewFulfillmentMetrics(), logger)
	sweeper := notify.NewSweeper(repo, dispatcher,
		notify.WithLogger(logger),
		notify.WithInterval(cfg.Sweeper.Interval),
		notify.WithBatchSize(cfg.Sweeper.BatchSize),
	)

	if once {
		dispatched := sweeper.RunOnce(ctx)
		logger.WithField("orders", dispatched).Info("разовый проход завершён")
		return
	}

	sweeper.Run(ctx)
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("воркер завершился с ошибкой")
	}
	logger.Info("воркер остановлен")
}
