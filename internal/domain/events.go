package domain

// Типы интеграционных событий, публикуемых через transactional outbox.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventCheckoutCompleted  = "checkout.completed"
	EventCheckoutFailed     = "checkout.failed"
)

// Типы агрегатов для маршрутизации событий outbox.
const (
	AggregateOrder    = "order"
	AggregateCheckout = "checkout"
)
