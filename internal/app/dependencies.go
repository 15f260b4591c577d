package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/cmoralesdiaz/almacen/internal/cart"
	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/metrics"
	"github.com/cmoralesdiaz/almacen/internal/service/catalog"
	"github.com/cmoralesdiaz/almacen/internal/service/checkout"
	"github.com/cmoralesdiaz/almacen/internal/service/orders"
	"github.com/cmoralesdiaz/almacen/internal/service/shipping"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Storage *runtimeStorage

	Metrics  *metrics.CheckoutMetrics
	Catalog  *catalog.Service
	Carts    *cart.Manager
	Shipping *shipping.Policy
	Orders   *orders.Engine
	Checkout *checkout.Orchestrator

	Users       domain.UserRepository
	Outbox      domain.OutboxRepository
	Idempotency domain.IdempotencyRepository

	Logger *log.Entry
}

// NewDependencies создаёт и связывает все зависимости приложения.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	storage, err := initRuntimeStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	checkoutMetrics := metrics.NewCheckoutMetrics()

	catalogSvc := catalog.NewService(storage.products, logger.WithField("component", "catalog"))
	cartManager := cart.NewManager(storage.carts, catalogSvc, logger.WithField("component", "cart"), checkoutMetrics)
	shippingPolicy := shipping.NewPolicy(storage.shippingCfg, logger.WithField("component", "shipping"))
	ordersEngine := orders.NewEngine(
		storage.orders,
		storage.timeline,
		storage.outbox,
		logger.WithField("component", "orders"),
		checkoutMetrics,
	)
	checkoutOrchestrator := checkout.NewOrchestrator(
		cartManager,
		shippingPolicy,
		ordersEngine,
		catalogSvc,
		storage.timeline,
		storage.outbox,
		logger.WithField("component", "checkout"),
		checkoutMetrics,
	)

	return &Dependencies{
		Storage:     storage,
		Metrics:     checkoutMetrics,
		Catalog:     catalogSvc,
		Carts:       cartManager,
		Shipping:    shippingPolicy,
		Orders:      ordersEngine,
		Checkout:    checkoutOrchestrator,
		Users:       storage.users,
		Outbox:      storage.outbox,
		Idempotency: storage.idempotency,
		Logger:      logger,
	}, nil
}

// Close освобождает ресурсы хранилищ.
func (d *Dependencies) Close() {
	if d == nil || d.Storage == nil {
		return
	}
	d.Storage.close(d.Logger)
}
