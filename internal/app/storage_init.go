package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/storage/docstore"
	"github.com/cmoralesdiaz/almacen/internal/storage/jsondoc"
	"github.com/cmoralesdiaz/almacen/internal/storage/memory"
	"github.com/cmoralesdiaz/almacen/internal/storage/postgres"
)

// runtimeStorage собирает все репозитории под выбранный драйвер.
// Каталог, корзины, пользователи и конфигурация доставки всегда живут в
// документном хранилище; драйвер выбирает бэкенд заказов и служебных таблиц.
type runtimeStorage struct {
	docs *docstore.Store
	pg   *postgres.Store

	orders      domain.OrderRepository
	products    domain.ProductRepository
	carts       domain.CartRepository
	users       domain.UserRepository
	shippingCfg domain.ShippingConfigRepository
	outbox      domain.OutboxRepository
	timeline    domain.TimelineRepository
	idempotency domain.IdempotencyRepository
}

func initRuntimeStorage(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeStorage, error) {
	docs, err := docstore.New(cfg.DataDir, logger.WithField("component", "docstore"))
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}

	storage := &runtimeStorage{
		docs:        docs,
		products:    jsondoc.NewProductRepository(docs),
		carts:       jsondoc.NewCartRepository(docs),
		users:       jsondoc.NewUserRepository(docs),
		shippingCfg: jsondoc.NewShippingConfigRepository(docs),
	}

	switch cfg.StorageDriver {
	case StorageDriverDocstore, "":
		storage.orders = jsondoc.NewOrderRepository(docs)
		storage.outbox = memory.NewOutboxRepository()
		storage.timeline = memory.NewTimelineRepository()
		storage.idempotency = memory.NewIdempotencyRepository()

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage driver requires a DSN")
		}
		pg, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				_ = pg.Close()
				return nil, fmt.Errorf("ensure postgres schema: %w", err)
			}
		}
		storage.pg = pg
		storage.orders = postgres.NewOrderRepository(pg)
		storage.outbox = postgres.NewOutboxRepository(pg)
		storage.timeline = postgres.NewTimelineRepository(pg)
		storage.idempotency = postgres.NewIdempotencyRepository(pg)

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}

	return storage, nil
}

// ping проверяет доступность всех задействованных бэкендов.
func (s *runtimeStorage) ping(ctx context.Context) error {
	if s.docs != nil {
		if err := s.docs.Ping(); err != nil {
			return fmt.Errorf("docstore: %w", err)
		}
	}
	if s.pg != nil {
		if err := s.pg.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}

func (s *runtimeStorage) close(logger *log.Entry) {
	if s.pg != nil {
		if err := s.pg.Close(); err != nil {
			logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
