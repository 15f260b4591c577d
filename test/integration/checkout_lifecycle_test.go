package integration

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/cmoralesdiaz/almacen/internal/cart"
	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/metrics"
	"github.com/cmoralesdiaz/almacen/internal/service/catalog"
	"github.com/cmoralesdiaz/almacen/internal/service/checkout"
	"github.com/cmoralesdiaz/almacen/internal/service/orders"
	"github.com/cmoralesdiaz/almacen/internal/service/shipping"
	"github.com/cmoralesdiaz/almacen/internal/storage/docstore"
	"github.com/cmoralesdiaz/almacen/internal/storage/jsondoc"
	"github.com/cmoralesdiaz/almacen/internal/storage/memory"
)

// CheckoutLifecycleTestSuite прогоняет полный путь покупателя через
// реальные сервисы и docstore-хранилище: каталог, корзина, оформление,
// статусы заказа, timeline и outbox.
type CheckoutLifecycleTestSuite struct {
	suite.Suite

	products     domain.ProductRepository
	shippingRepo domain.ShippingConfigRepository
	ordersRepo   domain.OrderRepository
	timeline     domain.TimelineRepository
	outbox       domain.OutboxRepository

	catalog      *catalog.Service
	carts        *cart.Manager
	policy       *shipping.Policy
	engine       *orders.Engine
	orchestrator *checkout.Orchestrator

	pan   domain.Product
	leche domain.Product
}

func (suite *CheckoutLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	store, err := docstore.New(suite.T().TempDir(), logger)
	require.NoError(suite.T(), err)

	suite.products = jsondoc.NewProductRepository(store)
	suite.shippingRepo = jsondoc.NewShippingConfigRepository(store)
	suite.ordersRepo = jsondoc.NewOrderRepository(store)
	suite.timeline = memory.NewTimelineRepository()
	suite.outbox = memory.NewOutboxRepository()

	m := metrics.NewCheckoutMetrics()
	suite.catalog = catalog.NewService(suite.products, logger)
	suite.carts = cart.NewManager(jsondoc.NewCartRepository(store), suite.catalog, logger, m)
	suite.policy = shipping.NewPolicy(suite.shippingRepo, logger)
	suite.engine = orders.NewEngine(suite.ordersRepo, suite.timeline, suite.outbox, logger, m)
	suite.orchestrator = checkout.NewOrchestrator(
		suite.carts, suite.policy, suite.engine, suite.catalog,
		suite.timeline, suite.outbox, logger, m,
	)

	require.NoError(suite.T(), suite.shippingRepo.Set(domain.ShippingConfig{
		BaseCost:      3990,
		FreeThreshold: 30000,
		FreeEnabled:   true,
	}))

	suite.pan, err = suite.products.Create(domain.Product{
		Code: "PAN-001", Name: "Pan integral", Price: 1890, Stock: 10, Category: "panaderia", Active: true,
	})
	require.NoError(suite.T(), err)
	suite.leche, err = suite.products.Create(domain.Product{
		Code: "LAC-001", Name: "Leche entera 1L", Price: 1190, Stock: 5, Category: "lacteos", Active: true,
	})
	require.NoError(suite.T(), err)
}

func (suite *CheckoutLifecycleTestSuite) checkoutInput(session string) checkout.Input {
	return checkout.Input{
		SessionID: session,
		Contact: domain.Contact{
			Name:    "Ana",
			Surname: "Rojas",
			Email:   "ana@example.cl",
			Phone:   "+56911112222",
		},
		Shipping: domain.ShippingInfo{
			Address: "Av. Italia 1234",
			City:    "Santiago",
			Region:  "RM",
		},
	}
}

func (suite *CheckoutLifecycleTestSuite) TestCheckoutCreatesConfirmedOrder() {
	const session = "sess-happy"
	_, err := suite.carts.AddItem(session, suite.pan.ID, 2)
	require.NoError(suite.T(), err)
	_, err = suite.carts.AddItem(session, suite.leche.ID, 1)
	require.NoError(suite.T(), err)

	order, err := suite.orchestrator.Checkout(suite.checkoutInput(session))
	require.NoError(suite.T(), err)

	suite.Regexp(`^PED-\d{13}\d{4}$`, order.ID)
	suite.Equal(domain.OrderStatusConfirmed, order.Status)
	suite.Equal(int64(4970), order.Subtotal)
	suite.Equal(int64(3990), order.ShippingCost)
	suite.Equal(int64(8960), order.Total)
	suite.False(order.Read)
	suite.Len(order.Items, 2)

	// Остатки списаны ровно на количество в заказе.
	pan, err := suite.products.Get(suite.pan.ID)
	require.NoError(suite.T(), err)
	suite.Equal(int64(8), pan.Stock)
	leche, err := suite.products.Get(suite.leche.ID)
	require.NoError(suite.T(), err)
	suite.Equal(int64(4), leche.Stock)

	// Корзина очищена.
	cartAfter, err := suite.carts.Get(session)
	require.NoError(suite.T(), err)
	suite.True(cartAfter.IsEmpty())

	// OrderCreated попал в timeline.
	events, err := suite.timeline.List(order.ID)
	require.NoError(suite.T(), err)
	suite.True(suite.hasTimelineEvent(events, domain.TimelineOrderCreated))

	// В outbox лежат и доменное событие заказа, и событие checkout.
	pending, err := suite.outbox.PullPending(10)
	require.NoError(suite.T(), err)
	suite.True(suite.hasOutboxEvent(pending, domain.EventOrderCreated))
	suite.True(suite.hasOutboxEvent(pending, domain.EventCheckoutCompleted))
}

func (suite *CheckoutLifecycleTestSuite) TestFreeShippingAboveThreshold() {
	const session = "sess-free"
	caja, err := suite.products.Create(domain.Product{
		Code: "VIN-001", Name: "Caja de vino", Price: 35990, Stock: 3, Active: true,
	})
	require.NoError(suite.T(), err)

	_, err = suite.carts.AddItem(session, caja.ID, 1)
	require.NoError(suite.T(), err)

	order, err := suite.orchestrator.Checkout(suite.checkoutInput(session))
	require.NoError(suite.T(), err)

	suite.Equal(int64(35990), order.Subtotal)
	suite.Equal(int64(0), order.ShippingCost)
	suite.True(order.Shipping.Free)
	suite.Equal(int64(35990), order.Total)
}

func (suite *CheckoutLifecycleTestSuite) TestCheckoutCompensatesOnStockConflict() {
	const session = "sess-conflict"
	_, err := suite.carts.AddItem(session, suite.pan.ID, 2)
	require.NoError(suite.T(), err)
	_, err = suite.carts.AddItem(session, suite.leche.ID, 3)
	require.NoError(suite.T(), err)

	// Остаток молока падает уже после наполнения корзины.
	leche, err := suite.products.Get(suite.leche.ID)
	require.NoError(suite.T(), err)
	leche.Stock = 1
	require.NoError(suite.T(), suite.products.Save(leche))

	_, err = suite.orchestrator.Checkout(suite.checkoutInput(session))
	require.ErrorIs(suite.T(), err, domain.ErrStockExceeded)

	// Списание хлеба откатилось.
	pan, err := suite.products.Get(suite.pan.ID)
	require.NoError(suite.T(), err)
	suite.Equal(int64(10), pan.Stock)
	lecheAfter, err := suite.products.Get(suite.leche.ID)
	require.NoError(suite.T(), err)
	suite.Equal(int64(1), lecheAfter.Stock)

	// Заказ создан, но отменён, причина зафиксирована в timeline.
	all, err := suite.engine.ListAll()
	require.NoError(suite.T(), err)
	require.Len(suite.T(), all, 1)
	suite.Equal(domain.OrderStatusCanceled, all[0].Status)

	events, err := suite.timeline.List(all[0].ID)
	require.NoError(suite.T(), err)
	suite.True(suite.hasTimelineEvent(events, domain.TimelineCheckoutFailed))

	pending, err := suite.outbox.PullPending(10)
	require.NoError(suite.T(), err)
	suite.True(suite.hasOutboxEvent(pending, domain.EventCheckoutFailed))

	// Корзина не очищается при неудачном оформлении.
	cartAfter, err := suite.carts.Get(session)
	require.NoError(suite.T(), err)
	suite.False(cartAfter.IsEmpty())
}

func (suite *CheckoutLifecycleTestSuite) TestOrderStatusLifecycle() {
	const session = "sess-lifecycle"
	_, err := suite.carts.AddItem(session, suite.pan.ID, 1)
	require.NoError(suite.T(), err)

	order, err := suite.orchestrator.Checkout(suite.checkoutInput(session))
	require.NoError(suite.T(), err)

	for _, next := range []domain.OrderStatus{
		domain.OrderStatusPreparing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	} {
		order, err = suite.engine.TransitionStatus(order.ID, next, "")
		require.NoError(suite.T(), err)
		suite.Equal(next, order.Status)
	}

	// entregado — терминальный статус.
	_, err = suite.engine.TransitionStatus(order.ID, domain.OrderStatusCanceled, "tarde")
	require.ErrorIs(suite.T(), err, domain.ErrInvalidTransition)

	// Повтор текущего статуса — no-op без ошибки.
	same, err := suite.engine.TransitionStatus(order.ID, domain.OrderStatusDelivered, "")
	require.NoError(suite.T(), err)
	suite.Equal(domain.OrderStatusDelivered, same.Status)

	events, err := suite.timeline.List(order.ID)
	require.NoError(suite.T(), err)
	changed := 0
	for _, ev := range events {
		if ev.Type == domain.TimelineOrderStatusChanged {
			changed++
		}
	}
	suite.Equal(3, changed)
}

func (suite *CheckoutLifecycleTestSuite) TestUnreadCountAndMarkRead() {
	for _, session := range []string{"sess-a", "sess-b"} {
		_, err := suite.carts.AddItem(session, suite.pan.ID, 1)
		require.NoError(suite.T(), err)
		_, err = suite.orchestrator.Checkout(suite.checkoutInput(session))
		require.NoError(suite.T(), err)
	}

	unread, err := suite.engine.UnreadCount()
	require.NoError(suite.T(), err)
	suite.Equal(2, unread)

	all, err := suite.engine.ListAll()
	require.NoError(suite.T(), err)
	require.Len(suite.T(), all, 2)

	marked, err := suite.engine.MarkRead([]string{all[0].ID, "PED-desconocido"})
	require.NoError(suite.T(), err)
	suite.Equal(1, marked)

	unread, err = suite.engine.UnreadCount()
	require.NoError(suite.T(), err)
	suite.Equal(1, unread)
}

func (suite *CheckoutLifecycleTestSuite) TestEmptyCartCheckoutRejected() {
	_, err := suite.orchestrator.Checkout(suite.checkoutInput("sess-empty"))
	require.ErrorIs(suite.T(), err, domain.ErrCartEmpty)

	all, err := suite.engine.ListAll()
	require.NoError(suite.T(), err)
	suite.Empty(all)
}

func (suite *CheckoutLifecycleTestSuite) hasTimelineEvent(events []domain.TimelineEvent, eventType string) bool {
	for _, ev := range events {
		if ev.Type == eventType {
			return true
		}
	}
	return false
}

func (suite *CheckoutLifecycleTestSuite) hasOutboxEvent(msgs []domain.OutboxMessage, eventType string) bool {
	for _, msg := range msgs {
		if msg.EventType == eventType {
			return true
		}
	}
	return false
}

func TestCheckoutLifecycleSuite(t *testing.T) {
	suite.Run(t, new(CheckoutLifecycleTestSuite))
}
