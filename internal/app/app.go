package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/gateway"
	"github.com/vladislavdragonenkov/storefront/internal/service/mailer"
	"github.com/vladislavdragonenkov/storefront/internal/service/notifier"
	"github.com/vladislavdragonenkov/storefront/internal/service/notify"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/service/reconcile"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	transporthttp "github.com/vladislavdragonenkov/storefront/internal/transport/http"
	"github.com/vladislavdragonenkov/storefront/internal/transport/http/middleware"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const shutdownTimeout = 5 * time.Second

// SetupLogger настраивает глобальный logrus: формат, уровень и при наличии
// log_file — ротацию через lumberjack с дублированием в stdout.
func SetupLogger(cfg Config) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	level, err := log.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.App.LogFile != "" {
		rot := &lumberjack.Logger{
			Filename:   cfg.App.LogFile,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
		}
		log.SetOutput(io.MultiWriter(os.Stdout, rot))
	}
}

// Run собирает зависимости и держит сервис до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	checkoutCfg, err := cfg.CheckoutConfig()
	if err != nil {
		return err
	}

	// Хранилище: PostgreSQL при заданном DSN, иначе in-memory.
	var (
		repo         domain.OrderRepository
		timelineRepo domain.TimelineRepository
		store        *postgres.Store
	)
	if cfg.Postgres.DSN != "" {
		store, err = postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.WithError(err).Warn("ошибка закрытия postgres store")
			}
		}()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		repo = postgres.NewOrderRepository(store)
		timelineRepo = postgres.NewTimelineRepository(store)
		logger.Info("хранилище заказов: postgres")
	} else {
		repo = memory.NewOrderRepository()
		timelineRepo = memory.NewTimelineRepository()
		logger.Info("хранилище заказов: in-memory")
	}

	// Kafka producer опционален: без брокеров события просто не публикуются.
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		p, err := kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			logger.WithError(err).Warn("kafka недоступна, продолжаем без публикации событий")
		} else {
			producer = p
			logger.WithField("brokers", cfg.Kafka.Brokers).Info("kafka producer инициализирован")
		}
	}
	defer func() {
		if producer == nil {
			return
		}
		if err := producer.Close(); err != nil {
			logger.WithError(err).Warn("ошибка закрытия kafka producer")
		}
	}()

	// NOTE: Using mock integrations for development/demo purposes
	// In production, replace with real catalog, gateway, mailer and notifier clients
	cat := catalog.NewMockCatalog(
		catalog.SampleProduct("prod-1", "Lavender Oil", "25.00"),
		catalog.SampleProduct("prod-2", "Rose Water", "12.50"),
	)
	gw := gateway.NewMockGateway()
	ml := mailer.NewMockMailer()
	nt := notifier.NewMockNotifier()

	m := metrics.NewFulfillmentMetrics()

	orderSvc := orders.NewService(repo, timelineRepo, cat, gw, ml, producer, checkoutCfg, logger.WithField("layer", "orders"))
	dispatcher := notify.NewDispatcher(repo, nt, timelineRepo, producer, m, logger.WithField("layer", "notify"))
	reconciler := reconcile.NewReconciler(repo, gw, ml, dispatcher, timelineRepo, producer, m, logger.WithField("layer", "reconcile"))

	sweeper := notify.NewSweeper(repo, dispatcher,
		notify.WithLogger(logger.WithField("layer", "sweeper")),
		notify.WithInterval(cfg.Sweeper.Interval),
		notify.WithBatchSize(cfg.Sweeper.BatchSize),
	)
	go sweeper.Run(ctx)

	v, _, _ := version.Info()
	checker := health.NewChecker(v)
	if store != nil {
		checker.Register("postgres", func(ctx context.Context) error {
			return store.Ping(ctx)
		})
	}

	auth := middleware.NewAuth(middleware.AuthConfig{
		Secret:   cfg.Security.JWTSecret,
		Issuer:   cfg.Security.Issuer,
		Audience: cfg.Security.Audience,
	})

	router := transporthttp.NewRouter(
		transporthttp.NewOrderHandler(orderSvc),
		transporthttp.NewWebhookHandler(reconciler, logger.WithField("layer", "webhook")),
		auth,
		checker,
		logger.WithField("layer", "http"),
	)

	metricsSrv := startMetricsServer(ctx, cfg.App.MetricsAddr, logger, checker)

	srv := &http.Server{
		Addr:    cfg.App.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP сервер слушает %s", cfg.App.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(srv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает отдельный HTTP-сервер с /metrics и пробами.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := checker.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !status.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("shutdown with error")
	}
}
