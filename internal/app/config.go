package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
)

// Config описывает настройки запуска сервиса витрины.
type Config struct {
	App struct {
		Name        string `koanf:"name"`
		HTTPAddr    string `koanf:"http_addr"`
		MetricsAddr string `koanf:"metrics_addr"`
		LogLevel    string `koanf:"log_level"`
		LogFile     string `koanf:"log_file"`
	} `koanf:"app"`

	Postgres struct {
		// DSN пустой — сервис работает на in-memory хранилище.
		DSN string `koanf:"dsn"`
	} `koanf:"postgres"`

	Kafka struct {
		Brokers []string `koanf:"brokers"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string `koanf:"jwt_secret"`
		Issuer    string `koanf:"issuer"`
		Audience  string `koanf:"audience"`
	} `koanf:"security"`

	Checkout struct {
		TaxRate        string `koanf:"tax_rate"`
		ShippingFee    string `koanf:"shipping_fee"`
		FreeShippingAt string `koanf:"free_shipping_at"`
	} `koanf:"checkout"`

	Sweeper struct {
		Interval  time.Duration `koanf:"interval"`
		BatchSize int           `koanf:"batch_size"`
	} `koanf:"sweeper"`
}

// DefaultConfig возвращает параметры для локального запуска без внешних
// зависимостей: in-memory хранилище, без Kafka.
func DefaultConfig() Config {
	var cfg Config
	cfg.App.Name = "storefront"
	cfg.App.HTTPAddr = ":8080"
	cfg.App.MetricsAddr = ":9090"
	cfg.App.LogLevel = "info"
	cfg.Security.JWTSecret = "dev-secret"
	cfg.Checkout.TaxRate = "0.08"
	cfg.Checkout.ShippingFee = "5.99"
	cfg.Checkout.FreeShippingAt = "50"
	cfg.Sweeper.Interval = time.Minute
	cfg.Sweeper.BatchSize = 50
	return cfg
}

// LoadConfig собирает конфигурацию из yaml-файла (опционально) и переменных
// окружения. Переменные имеют префикс STOREFRONT_, вложенность кодируется
// двойным подчёркиванием: STOREFRONT_POSTGRES__DSN, STOREFRONT_APP__HTTP_ADDR.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("STOREFRONT_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "STOREFRONT_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет обязательные поля и числовые параметры чекаута.
func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.App.MetricsAddr == "" {
		return fmt.Errorf("app.metrics_addr required")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret required")
	}
	if _, err := c.CheckoutConfig(); err != nil {
		return err
	}
	return nil
}

// CheckoutConfig преобразует строковые параметры чекаута в десятичные суммы.
func (c Config) CheckoutConfig() (orders.CheckoutConfig, error) {
	taxRate, err := decimal.NewFromString(c.Checkout.TaxRate)
	if err != nil {
		return orders.CheckoutConfig{}, fmt.Errorf("checkout.tax_rate: %w", err)
	}
	shippingFee, err := decimal.NewFromString(c.Checkout.ShippingFee)
	if err != nil {
		return orders.CheckoutConfig{}, fmt.Errorf("checkout.shipping_fee: %w", err)
	}
	freeShippingAt, err := decimal.NewFromString(c.Checkout.FreeShippingAt)
	if err != nil {
		return orders.CheckoutConfig{}, fmt.Errorf("checkout.free_shipping_at: %w", err)
	}
	return orders.CheckoutConfig{
		TaxRate:        taxRate,
		ShippingFee:    shippingFee,
		FreeShippingAt: freeShippingAt,
	}, nil
}
