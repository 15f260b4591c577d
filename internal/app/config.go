package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageDriver выбирает бэкенд хранения заказов и служебных таблиц.
type StorageDriver string

const (
	// StorageDriverDocstore — JSON-документы на диске. Бэкенд по умолчанию.
	StorageDriverDocstore StorageDriver = "docstore"
	// StorageDriverPostgres — PostgreSQL для заказов, outbox, timeline и
	// idempotency-ключей; каталог и корзины остаются в документном хранилище.
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver StorageDriver
	DataDir       string

	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает базовые значения для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverDocstore,
		DataDir:                     "data",
		PostgresAutoMigrate:         true,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           5,
		OutboxRetryDelay:            200 * time.Millisecond,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// ConfigFromEnv накладывает переменные окружения поверх значений по умолчанию.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("ALMACEN_HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("ALMACEN_METRICS_ADDR")); v != "" {
		cfg.MetricsAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("ALMACEN_STORAGE")); v != "" {
		cfg.StorageDriver = StorageDriver(v)
	}
	if v := strings.TrimSpace(os.Getenv("ALMACEN_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("ALMACEN_POSTGRES_DSN")); v != "" {
		cfg.PostgresDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("ALMACEN_POSTGRES_AUTOMIGRATE")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.PostgresAutoMigrate = parsed
		}
	}
	cfg.KafkaBrokers = strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))

	return cfg
}
